package store

import (
	"context"
	"fmt"

	"github.com/punchamoorthee/payledger/internal/domain"
	"github.com/shopspring/decimal"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func (t *pgTx) EnsureBalance(ctx context.Context, userID int64) error {
	_, err := t.tx.Exec(ctx,
		"INSERT INTO balance_accounts (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING",
		userID)
	if err != nil {
		return fmt.Errorf("balance create failed: %w", err)
	}
	return nil
}

func (t *pgTx) GetBalance(ctx context.Context, userID int64) (domain.BalanceAccount, error) {
	var acc domain.BalanceAccount
	err := t.tx.QueryRow(ctx,
		"SELECT user_id, balance, updated_at FROM balance_accounts WHERE user_id = $1",
		userID).Scan(&acc.UserID, &acc.Balance, &acc.UpdatedAt)
	if err != nil {
		return domain.BalanceAccount{}, notFound(err, "balance")
	}
	return acc, nil
}

func (t *pgTx) GetBalanceForUpdate(ctx context.Context, userID int64) (domain.BalanceAccount, error) {
	var acc domain.BalanceAccount
	err := t.tx.QueryRow(ctx,
		"SELECT user_id, balance, updated_at FROM balance_accounts WHERE user_id = $1 FOR UPDATE",
		userID).Scan(&acc.UserID, &acc.Balance, &acc.UpdatedAt)
	if err != nil {
		return domain.BalanceAccount{}, notFound(err, "balance lock")
	}
	return acc, nil
}

func (t *pgTx) SetBalance(ctx context.Context, userID int64, balance decimal.Decimal) error {
	tag, err := t.tx.Exec(ctx,
		"UPDATE balance_accounts SET balance = $2, updated_at = now() WHERE user_id = $1",
		userID, balance)
	if err != nil {
		if isCheckViolation(err) {
			return domain.ErrInsufficientBalance
		}
		return fmt.Errorf("balance update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("balance update: %w", domain.ErrNotFound)
	}
	return nil
}

func (t *pgTx) InsertLedgerEntry(ctx context.Context, e domain.LedgerEntry) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO ledger_entries (user_id, delta, balance_after, reason, reference_type, reference_id)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		e.UserID, e.Delta, e.BalanceAfter, string(e.Reason), e.ReferenceType, e.ReferenceID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ledger entry failed: %w", err)
	}
	return id, nil
}

func (t *pgTx) ListLedgerEntries(ctx context.Context, userID int64, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := t.tx.Query(ctx,
		`SELECT id, user_id, delta, balance_after, reason, reference_type, reference_id, created_at
		 FROM ledger_entries WHERE user_id = $1 ORDER BY id DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger entries query failed: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var reason string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Delta, &e.BalanceAfter, &reason,
			&e.ReferenceType, &e.ReferenceID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("ledger entry scan failed: %w", err)
		}
		e.Reason = domain.EntryReason(reason)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
