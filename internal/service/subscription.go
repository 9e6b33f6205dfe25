package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/punchamoorthee/payledger/internal/domain"
	"github.com/punchamoorthee/payledger/internal/store"
	"github.com/shopspring/decimal"
)

// Activation carries what a completed subscription payment needs to grant access.
type Activation struct {
	UserID                int64
	PackageID             int64
	OriginalTransactionID int64
	PaymentMethodName     string
	Amount                decimal.Decimal
}

type SubscriptionService struct {
	uow store.UnitOfWork
	now func() time.Time
}

func NewSubscriptionService(uow store.UnitOfWork) *SubscriptionService {
	return &SubscriptionService{uow: uow, now: time.Now}
}

// Activate replaces whatever subscription the user has with a fresh period of
// the package. It runs inside the verifying unit of work.
func (s *SubscriptionService) Activate(ctx context.Context, tx store.Tx, a Activation) (domain.UserSubscription, error) {
	pkg, err := tx.GetPackage(ctx, a.PackageID)
	if err != nil {
		return domain.UserSubscription{}, err
	}

	active, err := tx.ListActiveSubscriptionsForUpdate(ctx, a.UserID)
	if err != nil {
		return domain.UserSubscription{}, err
	}
	for _, sub := range active {
		if err := tx.CancelSubscription(ctx, sub.ID); err != nil {
			return domain.UserSubscription{}, err
		}
	}

	start := s.now().UTC()
	sub, err := tx.InsertSubscription(ctx, domain.UserSubscription{
		UserID:    a.UserID,
		PackageID: pkg.ID,
		TierLevel: pkg.TierLevel,
		Status:    domain.SubscriptionActive,
		StartDate: start,
		EndDate:   pkg.PeriodEnd(start),
	})
	if err != nil {
		return domain.UserSubscription{}, err
	}

	if _, err := tx.InsertSubscriptionTransaction(ctx, domain.SubscriptionTransaction{
		UserID:                a.UserID,
		SubscriptionID:        sub.ID,
		PackageID:             pkg.ID,
		OriginalTransactionID: a.OriginalTransactionID,
		PaymentMethodName:     a.PaymentMethodName,
		Amount:                a.Amount,
	}); err != nil {
		return domain.UserSubscription{}, err
	}
	return sub, nil
}

// TierOf returns the tier of the user's current subscription, or TierNone.
func (s *SubscriptionService) TierOf(ctx context.Context, tx store.Tx, userID int64) (domain.Tier, error) {
	sub, err := tx.GetActiveSubscription(ctx, userID, s.now())
	if errors.Is(err, domain.ErrNotFound) {
		return domain.TierNone, nil
	}
	if err != nil {
		return domain.TierNone, fmt.Errorf("tier lookup for user %d: %w", userID, err)
	}
	return sub.TierLevel, nil
}

// Current returns the user's unexpired active subscription.
func (s *SubscriptionService) Current(ctx context.Context, userID int64) (domain.UserSubscription, error) {
	var sub domain.UserSubscription
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		sub, err = tx.GetActiveSubscription(ctx, userID, s.now())
		return err
	})
	return sub, err
}
