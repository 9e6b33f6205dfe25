package store

import (
	"context"
	"fmt"

	"github.com/punchamoorthee/payledger/internal/domain"
	"github.com/shopspring/decimal"
)

const userGiftColumns = `id, sender_id, recipient_id, gift_item_id, transaction_id, message,
	original_purchase_price, is_anonymous, is_redeemed, redeemed_value, redeemed_at, created_at`

func scanUserGift(row rowScanner) (domain.UserGift, error) {
	var g domain.UserGift
	var price, redeemed decimal.NullDecimal
	err := row.Scan(&g.ID, &g.SenderID, &g.RecipientID, &g.GiftItemID, &g.TransactionID, &g.Message,
		&price, &g.IsAnonymous, &g.IsRedeemed, &redeemed, &g.RedeemedAt, &g.CreatedAt)
	if err != nil {
		return domain.UserGift{}, err
	}
	if price.Valid {
		g.OriginalPurchasePrice = &price.Decimal
	}
	if redeemed.Valid {
		g.RedeemedValue = &redeemed.Decimal
	}
	return g, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

func (t *pgTx) GetGiftItem(ctx context.Context, id int64) (domain.GiftItem, error) {
	var item domain.GiftItem
	var tier string
	err := t.tx.QueryRow(ctx,
		"SELECT id, name, price, required_tier, is_active FROM gift_items WHERE id = $1", id,
	).Scan(&item.ID, &item.Name, &item.Price, &tier, &item.IsActive)
	if err != nil {
		return domain.GiftItem{}, notFound(err, "gift item")
	}
	if item.RequiredTier, err = domain.ParseTier(tier); err != nil {
		return domain.GiftItem{}, err
	}
	return item, nil
}

func (t *pgTx) InsertUserGift(ctx context.Context, in domain.UserGift) (domain.UserGift, error) {
	out, err := scanUserGift(t.tx.QueryRow(ctx,
		`INSERT INTO user_gifts (sender_id, recipient_id, gift_item_id, transaction_id, message,
			original_purchase_price, is_anonymous)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+userGiftColumns,
		in.SenderID, in.RecipientID, in.GiftItemID, in.TransactionID, in.Message,
		nullDecimal(in.OriginalPurchasePrice), in.IsAnonymous))
	if err != nil {
		return domain.UserGift{}, fmt.Errorf("gift insert failed: %w", err)
	}
	return out, nil
}

func (t *pgTx) GetUserGiftForUpdate(ctx context.Context, id int64) (domain.UserGift, error) {
	out, err := scanUserGift(t.tx.QueryRow(ctx,
		"SELECT "+userGiftColumns+" FROM user_gifts WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		return domain.UserGift{}, notFound(err, "gift lock")
	}
	return out, nil
}

// UpdateUserGift persists redemption state only; the price snapshot is never rewritten.
func (t *pgTx) UpdateUserGift(ctx context.Context, in domain.UserGift) error {
	tag, err := t.tx.Exec(ctx,
		"UPDATE user_gifts SET is_redeemed = $2, redeemed_value = $3, redeemed_at = $4 WHERE id = $1",
		in.ID, in.IsRedeemed, nullDecimal(in.RedeemedValue), in.RedeemedAt)
	if err != nil {
		return fmt.Errorf("gift update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("gift update: %w", domain.ErrNotFound)
	}
	return nil
}

func (t *pgTx) ListReceivedGifts(ctx context.Context, recipientID int64) ([]domain.UserGift, error) {
	rows, err := t.tx.Query(ctx,
		"SELECT "+userGiftColumns+" FROM user_gifts WHERE recipient_id = $1 ORDER BY id DESC", recipientID)
	if err != nil {
		return nil, fmt.Errorf("gifts query failed: %w", err)
	}
	defer rows.Close()

	var out []domain.UserGift
	for rows.Next() {
		g, err := scanUserGift(rows)
		if err != nil {
			return nil, fmt.Errorf("gift scan failed: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
