package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceAccount holds the spendable site balance of a user.
// Balance never drops below zero.
type BalanceAccount struct {
	UserID    int64           `json:"user_id"`
	Balance   decimal.Decimal `json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// LedgerEntry journals one balance movement. Delta is positive for credits.
type LedgerEntry struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	Delta         decimal.Decimal `json:"delta"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Reason        EntryReason     `json:"reason"`
	ReferenceType string          `json:"reference_type"`
	ReferenceID   int64           `json:"reference_id"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Transaction is one payment attempt.
type Transaction struct {
	ID                  int64             `json:"id"`
	UserID              int64             `json:"user_id"`
	Amount              decimal.Decimal   `json:"amount"`
	Currency            string            `json:"currency"`
	ItemCategory        ItemCategory      `json:"item_category"`
	PayableItemID       int64             `json:"payable_item_id"`
	Description         string            `json:"description,omitempty"`
	PaymentCountryID    int64             `json:"payment_country_id"`
	PaymentMethodTypeID int64             `json:"payment_method_type_id"`
	PaymentMethodName   string            `json:"payment_method_name"`
	UserReference       string            `json:"user_provided_reference,omitempty"`
	AdminNotes          string            `json:"admin_notes,omitempty"`
	VerifiedBy          *int64            `json:"verified_by,omitempty"`
	VerifiedAt          *time.Time        `json:"verified_at,omitempty"`
	Status              TransactionStatus `json:"status"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// FulfillmentKind resolves the side effect a completed transaction triggers.
// A gift-category row described as "deposit" is the legacy spelling of a deposit.
func (t Transaction) FulfillmentKind() ItemCategory {
	if t.ItemCategory == CategoryGift && t.Description == LegacyDepositDescription {
		return CategoryDeposit
	}
	return t.ItemCategory
}

// WithdrawalRequest reserves Amount from the ledger at creation time.
type WithdrawalRequest struct {
	ID             int64            `json:"id"`
	UserID         int64            `json:"user_id"`
	Amount         decimal.Decimal  `json:"amount"`
	PaymentDetails string           `json:"payment_details"`
	Status         WithdrawalStatus `json:"status"`
	AdminNotes     string           `json:"admin_notes,omitempty"`
	ProcessedBy    *int64           `json:"processed_by,omitempty"`
	ProcessedAt    *time.Time       `json:"processed_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// GiftItem is a catalogue entry that can be sent to another user.
type GiftItem struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	RequiredTier Tier            `json:"required_tier"`
	IsActive     bool            `json:"is_active"`
}

// UserGift is a gift sent from one user to another.
// OriginalPurchasePrice is snapshotted at send time and never changes; a nil
// value marks a corrupt row that cannot be redeemed.
type UserGift struct {
	ID                    int64            `json:"id"`
	SenderID              int64            `json:"sender_id"`
	RecipientID           int64            `json:"recipient_id"`
	GiftItemID            int64            `json:"gift_item_id"`
	TransactionID         int64            `json:"transaction_id"`
	Message               string           `json:"message,omitempty"`
	OriginalPurchasePrice *decimal.Decimal `json:"original_purchase_price"`
	IsAnonymous           bool             `json:"is_anonymous"`
	IsRedeemed            bool             `json:"is_redeemed"`
	RedeemedValue         *decimal.Decimal `json:"redeemed_value,omitempty"`
	RedeemedAt            *time.Time       `json:"redeemed_at,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
}

// BillingInterval is the fallback period of a package without DurationMonths.
type BillingInterval string

const (
	BillingMonthly BillingInterval = "monthly"
	BillingYearly  BillingInterval = "yearly"
)

// SubscriptionPackage is a purchasable subscription plan.
type SubscriptionPackage struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	TierLevel       Tier            `json:"tier_level"`
	Price           decimal.Decimal `json:"price"`
	DurationMonths  *int            `json:"duration_months,omitempty"`
	BillingInterval BillingInterval `json:"billing_interval,omitempty"`
}

// PeriodEnd returns the end date of a subscription to this package starting at start.
func (p SubscriptionPackage) PeriodEnd(start time.Time) time.Time {
	if p.DurationMonths != nil && *p.DurationMonths > 0 {
		return start.AddDate(0, *p.DurationMonths, 0)
	}
	switch p.BillingInterval {
	case BillingYearly:
		return start.AddDate(1, 0, 0)
	default:
		return start.AddDate(0, 1, 0)
	}
}

// UserSubscription is a user's subscription to a package.
type UserSubscription struct {
	ID        int64              `json:"id"`
	UserID    int64              `json:"user_id"`
	PackageID int64              `json:"package_id"`
	TierLevel Tier               `json:"tier_level"`
	Status    SubscriptionStatus `json:"status"`
	AutoRenew bool               `json:"auto_renew"`
	StartDate time.Time          `json:"start_date"`
	EndDate   time.Time          `json:"end_date"`
}

// SubscriptionTransaction links an activated subscription to the payment that bought it.
type SubscriptionTransaction struct {
	ID                    int64           `json:"id"`
	UserID                int64           `json:"user_id"`
	SubscriptionID        int64           `json:"subscription_id"`
	PackageID             int64           `json:"package_id"`
	OriginalTransactionID int64           `json:"original_transaction_id"`
	PaymentMethodName     string          `json:"payment_method_name"`
	Amount                decimal.Decimal `json:"amount"`
	CreatedAt             time.Time       `json:"created_at"`
}

// PaymentMethod is the per-country configuration of a payment method type.
type PaymentMethod struct {
	CountryID            int64             `json:"country_id"`
	MethodTypeID         int64             `json:"method_type_id"`
	Name                 string            `json:"name"`
	IsActive             bool              `json:"is_active"`
	UserInstructions     string            `json:"user_instructions"`
	ConfigurationDetails map[string]string `json:"configuration_details,omitempty"`
}

// IdempotencyKey remembers which resource a client request key produced.
type IdempotencyKey struct {
	Key          string    `json:"key"`
	UserID       int64     `json:"user_id"`
	RequestHash  string    `json:"request_hash"`
	ResourceType string    `json:"resource_type"`
	ResourceID   int64     `json:"resource_id"`
	CreatedAt    time.Time `json:"created_at"`
}
