package store

import (
	"context"
	"fmt"
	"time"

	"github.com/punchamoorthee/payledger/internal/domain"
)

const subscriptionColumns = `id, user_id, package_id, tier_level, status, auto_renew, start_date, end_date`

func scanSubscription(row rowScanner) (domain.UserSubscription, error) {
	var s domain.UserSubscription
	var tier, status string
	err := row.Scan(&s.ID, &s.UserID, &s.PackageID, &tier, &status, &s.AutoRenew, &s.StartDate, &s.EndDate)
	if err != nil {
		return domain.UserSubscription{}, err
	}
	if s.TierLevel, err = domain.ParseTier(tier); err != nil {
		return domain.UserSubscription{}, err
	}
	if s.Status, err = domain.ParseSubscriptionStatus(status); err != nil {
		return domain.UserSubscription{}, err
	}
	return s, nil
}

func (t *pgTx) GetPackage(ctx context.Context, id int64) (domain.SubscriptionPackage, error) {
	var p domain.SubscriptionPackage
	var tier string
	var interval *string
	err := t.tx.QueryRow(ctx,
		`SELECT id, name, tier_level, price, duration_months, billing_interval
		 FROM subscription_packages WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &tier, &p.Price, &p.DurationMonths, &interval)
	if err != nil {
		return domain.SubscriptionPackage{}, notFound(err, "subscription package")
	}
	if p.TierLevel, err = domain.ParseTier(tier); err != nil {
		return domain.SubscriptionPackage{}, err
	}
	if interval != nil {
		p.BillingInterval = domain.BillingInterval(*interval)
	}
	return p, nil
}

func (t *pgTx) ListActiveSubscriptionsForUpdate(ctx context.Context, userID int64) ([]domain.UserSubscription, error) {
	rows, err := t.tx.Query(ctx,
		"SELECT "+subscriptionColumns+" FROM user_subscriptions WHERE user_id = $1 AND status = 'active' FOR UPDATE",
		userID)
	if err != nil {
		return nil, fmt.Errorf("subscriptions lock failed: %w", err)
	}
	defer rows.Close()

	var out []domain.UserSubscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("subscription scan failed: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (t *pgTx) GetActiveSubscription(ctx context.Context, userID int64, at time.Time) (domain.UserSubscription, error) {
	out, err := scanSubscription(t.tx.QueryRow(ctx,
		"SELECT "+subscriptionColumns+` FROM user_subscriptions
		 WHERE user_id = $1 AND status = 'active' AND end_date > $2
		 ORDER BY id DESC LIMIT 1`, userID, at))
	if err != nil {
		return domain.UserSubscription{}, notFound(err, "subscription")
	}
	return out, nil
}

func (t *pgTx) CancelSubscription(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx,
		"UPDATE user_subscriptions SET status = 'cancelled', auto_renew = FALSE WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("subscription cancel failed: %w", err)
	}
	return nil
}

func (t *pgTx) InsertSubscription(ctx context.Context, in domain.UserSubscription) (domain.UserSubscription, error) {
	out, err := scanSubscription(t.tx.QueryRow(ctx,
		`INSERT INTO user_subscriptions (user_id, package_id, tier_level, status, auto_renew, start_date, end_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+subscriptionColumns,
		in.UserID, in.PackageID, in.TierLevel.String(), string(in.Status), in.AutoRenew, in.StartDate, in.EndDate))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.UserSubscription{}, fmt.Errorf("concurrent activation for user %d: %w", in.UserID, domain.ErrInvalidState)
		}
		return domain.UserSubscription{}, fmt.Errorf("subscription insert failed: %w", err)
	}
	return out, nil
}

func (t *pgTx) InsertSubscriptionTransaction(ctx context.Context, in domain.SubscriptionTransaction) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO subscription_transactions (user_id, subscription_id, package_id, original_transaction_id,
			payment_method_name, amount)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		in.UserID, in.SubscriptionID, in.PackageID, in.OriginalTransactionID, in.PaymentMethodName, in.Amount,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("subscription audit insert failed: %w", err)
	}
	return id, nil
}
