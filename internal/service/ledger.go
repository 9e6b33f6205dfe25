package service

import (
	"context"
	"fmt"

	"github.com/punchamoorthee/payledger/internal/domain"
	"github.com/punchamoorthee/payledger/internal/store"
	"github.com/shopspring/decimal"
)

// Movement describes one balance change and the record that justifies it.
type Movement struct {
	UserID        int64
	Amount        decimal.Decimal
	Reason        domain.EntryReason
	ReferenceType string
	ReferenceID   int64
}

// Ledger owns the per-user balance. Credit and Debit run inside the caller's
// unit of work so the balance change commits with its justifying record.
type Ledger struct {
	uow store.UnitOfWork
}

func NewLedger(uow store.UnitOfWork) *Ledger {
	return &Ledger{uow: uow}
}

// normalizeAmount rounds to cents and rejects anything that is not positive.
func normalizeAmount(amount decimal.Decimal) (decimal.Decimal, error) {
	rounded := amount.Round(2)
	if !rounded.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s", domain.ErrInvalidAmount, amount.String())
	}
	return rounded, nil
}

// GetOrCreate returns the user's account locked for the rest of the unit,
// creating a zero-balance account on first access.
func (l *Ledger) GetOrCreate(ctx context.Context, tx store.Tx, userID int64) (domain.BalanceAccount, error) {
	if err := tx.EnsureBalance(ctx, userID); err != nil {
		return domain.BalanceAccount{}, err
	}
	return tx.GetBalanceForUpdate(ctx, userID)
}

func (l *Ledger) Credit(ctx context.Context, tx store.Tx, m Movement) (domain.BalanceAccount, error) {
	return l.apply(ctx, tx, m, false)
}

// Debit fails with ErrInsufficientBalance, writing nothing, when the balance
// would go negative.
func (l *Ledger) Debit(ctx context.Context, tx store.Tx, m Movement) (domain.BalanceAccount, error) {
	return l.apply(ctx, tx, m, true)
}

func (l *Ledger) apply(ctx context.Context, tx store.Tx, m Movement, debit bool) (domain.BalanceAccount, error) {
	amount, err := normalizeAmount(m.Amount)
	if err != nil {
		return domain.BalanceAccount{}, err
	}

	acc, err := l.GetOrCreate(ctx, tx, m.UserID)
	if err != nil {
		return domain.BalanceAccount{}, err
	}

	delta := amount
	if debit {
		delta = amount.Neg()
	}
	next := acc.Balance.Add(delta)
	if next.IsNegative() {
		return domain.BalanceAccount{}, fmt.Errorf("%w: balance %s, requested %s",
			domain.ErrInsufficientBalance, acc.Balance.StringFixed(2), amount.StringFixed(2))
	}

	if err := tx.SetBalance(ctx, m.UserID, next); err != nil {
		return domain.BalanceAccount{}, err
	}
	if _, err := tx.InsertLedgerEntry(ctx, domain.LedgerEntry{
		UserID:        m.UserID,
		Delta:         delta,
		BalanceAfter:  next,
		Reason:        m.Reason,
		ReferenceType: m.ReferenceType,
		ReferenceID:   m.ReferenceID,
	}); err != nil {
		return domain.BalanceAccount{}, err
	}

	acc.Balance = next
	return acc, nil
}

// Account returns the user's balance, creating the account if absent.
func (l *Ledger) Account(ctx context.Context, userID int64) (domain.BalanceAccount, error) {
	var acc domain.BalanceAccount
	err := l.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.EnsureBalance(ctx, userID); err != nil {
			return err
		}
		var err error
		acc, err = tx.GetBalance(ctx, userID)
		return err
	})
	return acc, err
}

// Entries lists the user's journal newest first.
func (l *Ledger) Entries(ctx context.Context, userID int64, limit int) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	err := l.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		entries, err = tx.ListLedgerEntries(ctx, userID, limit)
		return err
	})
	return entries, err
}
