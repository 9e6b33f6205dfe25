package store

import (
	"context"
	"fmt"

	"github.com/punchamoorthee/payledger/internal/domain"
)

const withdrawalColumns = `id, user_id, amount, payment_details, status, admin_notes, processed_by, processed_at, created_at`

func scanWithdrawal(row rowScanner) (domain.WithdrawalRequest, error) {
	var w domain.WithdrawalRequest
	var status string
	err := row.Scan(&w.ID, &w.UserID, &w.Amount, &w.PaymentDetails, &status, &w.AdminNotes,
		&w.ProcessedBy, &w.ProcessedAt, &w.CreatedAt)
	if err != nil {
		return domain.WithdrawalRequest{}, err
	}
	if w.Status, err = domain.ParseWithdrawalStatus(status); err != nil {
		return domain.WithdrawalRequest{}, err
	}
	return w, nil
}

func (t *pgTx) InsertWithdrawal(ctx context.Context, in domain.WithdrawalRequest) (domain.WithdrawalRequest, error) {
	out, err := scanWithdrawal(t.tx.QueryRow(ctx,
		`INSERT INTO withdrawal_requests (user_id, amount, payment_details, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+withdrawalColumns,
		in.UserID, in.Amount, in.PaymentDetails, string(in.Status)))
	if err != nil {
		return domain.WithdrawalRequest{}, fmt.Errorf("withdrawal insert failed: %w", err)
	}
	return out, nil
}

func (t *pgTx) GetWithdrawal(ctx context.Context, id int64) (domain.WithdrawalRequest, error) {
	out, err := scanWithdrawal(t.tx.QueryRow(ctx,
		"SELECT "+withdrawalColumns+" FROM withdrawal_requests WHERE id = $1", id))
	if err != nil {
		return domain.WithdrawalRequest{}, notFound(err, "withdrawal")
	}
	return out, nil
}

func (t *pgTx) GetWithdrawalForUpdate(ctx context.Context, id int64) (domain.WithdrawalRequest, error) {
	out, err := scanWithdrawal(t.tx.QueryRow(ctx,
		"SELECT "+withdrawalColumns+" FROM withdrawal_requests WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		return domain.WithdrawalRequest{}, notFound(err, "withdrawal lock")
	}
	return out, nil
}

func (t *pgTx) UpdateWithdrawal(ctx context.Context, in domain.WithdrawalRequest) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE withdrawal_requests SET status = $2, admin_notes = $3, processed_by = $4, processed_at = $5
		 WHERE id = $1`,
		in.ID, string(in.Status), in.AdminNotes, in.ProcessedBy, in.ProcessedAt)
	if err != nil {
		return fmt.Errorf("withdrawal update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("withdrawal update: %w", domain.ErrNotFound)
	}
	return nil
}

func (t *pgTx) ListWithdrawals(ctx context.Context, userID int64) ([]domain.WithdrawalRequest, error) {
	rows, err := t.tx.Query(ctx,
		"SELECT "+withdrawalColumns+" FROM withdrawal_requests WHERE user_id = $1 ORDER BY id DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("withdrawals query failed: %w", err)
	}
	defer rows.Close()

	var out []domain.WithdrawalRequest
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("withdrawal scan failed: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
