package service

import (
	"context"
	"fmt"

	"github.com/punchamoorthee/payledger/internal/domain"
	"github.com/punchamoorthee/payledger/internal/store"
)

// Dispatcher applies the side effect of a transaction that has just been
// marked completed. It shares the verifying unit of work, so an error here
// undoes the status change as well.
type Dispatcher struct {
	ledger        *Ledger
	subscriptions *SubscriptionService
}

func NewDispatcher(ledger *Ledger, subscriptions *SubscriptionService) *Dispatcher {
	return &Dispatcher{ledger: ledger, subscriptions: subscriptions}
}

func (d *Dispatcher) Fulfill(ctx context.Context, tx store.Tx, t domain.Transaction) error {
	switch kind := t.FulfillmentKind(); kind {
	case domain.CategorySubscription:
		_, err := d.subscriptions.Activate(ctx, tx, Activation{
			UserID:                t.UserID,
			PackageID:             t.PayableItemID,
			OriginalTransactionID: t.ID,
			PaymentMethodName:     t.PaymentMethodName,
			Amount:                t.Amount,
		})
		return err
	case domain.CategoryDeposit:
		_, err := d.ledger.Credit(ctx, tx, Movement{
			UserID:        t.UserID,
			Amount:        t.Amount,
			Reason:        domain.ReasonDeposit,
			ReferenceType: "transaction",
			ReferenceID:   t.ID,
		})
		return err
	case domain.CategoryGift, domain.CategoryWithdrawal:
		// The gift row already exists and withdrawals settle through their own workflow.
		return nil
	default:
		return fmt.Errorf("transaction %d has category %q: %w", t.ID, kind, domain.ErrInvalidRecord)
	}
}
