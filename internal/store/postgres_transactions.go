package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/punchamoorthee/payledger/internal/domain"
)

const transactionColumns = `id, user_id, amount, currency, item_category, payable_item_id, description,
	payment_country_id, payment_method_type_id, payment_method_name, user_reference, admin_notes,
	verified_by, verified_at, status, created_at, updated_at`

func scanTransaction(row rowScanner) (domain.Transaction, error) {
	var t domain.Transaction
	var category, status string
	err := row.Scan(&t.ID, &t.UserID, &t.Amount, &t.Currency, &category, &t.PayableItemID, &t.Description,
		&t.PaymentCountryID, &t.PaymentMethodTypeID, &t.PaymentMethodName, &t.UserReference, &t.AdminNotes,
		&t.VerifiedBy, &t.VerifiedAt, &status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.Transaction{}, err
	}
	if t.ItemCategory, err = domain.ParseItemCategory(category); err != nil {
		return domain.Transaction{}, err
	}
	if t.Status, err = domain.ParseTransactionStatus(status); err != nil {
		return domain.Transaction{}, err
	}
	return t, nil
}

func (t *pgTx) InsertTransaction(ctx context.Context, in domain.Transaction) (domain.Transaction, error) {
	row := t.tx.QueryRow(ctx,
		`INSERT INTO transactions (user_id, amount, currency, item_category, payable_item_id, description,
			payment_country_id, payment_method_type_id, payment_method_name, user_reference, admin_notes, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING `+transactionColumns,
		in.UserID, in.Amount, in.Currency, string(in.ItemCategory), in.PayableItemID, in.Description,
		in.PaymentCountryID, in.PaymentMethodTypeID, in.PaymentMethodName, in.UserReference, in.AdminNotes,
		string(in.Status))
	out, err := scanTransaction(row)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction insert failed: %w", err)
	}
	return out, nil
}

func (t *pgTx) GetTransaction(ctx context.Context, id int64) (domain.Transaction, error) {
	out, err := scanTransaction(t.tx.QueryRow(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = $1", id))
	if err != nil {
		return domain.Transaction{}, notFound(err, "transaction")
	}
	return out, nil
}

func (t *pgTx) GetTransactionForUpdate(ctx context.Context, id int64) (domain.Transaction, error) {
	out, err := scanTransaction(t.tx.QueryRow(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		return domain.Transaction{}, notFound(err, "transaction lock")
	}
	return out, nil
}

func (t *pgTx) UpdateTransaction(ctx context.Context, in domain.Transaction) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE transactions SET status = $2, user_reference = $3, admin_notes = $4,
			verified_by = $5, verified_at = $6, updated_at = now()
		 WHERE id = $1`,
		in.ID, string(in.Status), in.UserReference, in.AdminNotes, in.VerifiedBy, in.VerifiedAt)
	if err != nil {
		return fmt.Errorf("transaction update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction update: %w", domain.ErrNotFound)
	}
	return nil
}

func (t *pgTx) ListTransactions(ctx context.Context, f TransactionFilter) ([]domain.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != 0 {
		args = append(args, f.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	query := "SELECT " + transactionColumns + " FROM transactions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	// The verification queue is served oldest first; user history newest first.
	if f.Status == domain.TxPendingVerification {
		query += " ORDER BY id ASC"
	} else {
		query += " ORDER BY id DESC"
	}
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("transactions query failed: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		tr, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("transaction scan failed: %w", err)
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}
