package domain

import "fmt"

// TransactionStatus is the lifecycle state of a Transaction.
type TransactionStatus string

const (
	TxPendingPayment      TransactionStatus = "pending_payment"
	TxPendingVerification TransactionStatus = "pending_verification"
	TxCompleted           TransactionStatus = "completed"
	TxDeclined            TransactionStatus = "declined"
)

// ParseTransactionStatus validates a status read from storage or a request.
func ParseTransactionStatus(s string) (TransactionStatus, error) {
	switch st := TransactionStatus(s); st {
	case TxPendingPayment, TxPendingVerification, TxCompleted, TxDeclined:
		return st, nil
	}
	return "", fmt.Errorf("unknown transaction status %q: %w", s, ErrInvalidState)
}

// IsTerminal reports whether no further transition is possible.
func (s TransactionStatus) IsTerminal() bool {
	return s == TxCompleted || s == TxDeclined
}

// CanTransition reports whether s -> next is a legal step.
func (s TransactionStatus) CanTransition(next TransactionStatus) bool {
	switch s {
	case TxPendingPayment:
		return next == TxPendingVerification
	case TxPendingVerification:
		return next == TxCompleted || next == TxDeclined
	case TxCompleted, TxDeclined:
		return false
	}
	return false
}

// ItemCategory selects the fulfillment path of a Transaction.
type ItemCategory string

const (
	CategorySubscription ItemCategory = "subscription"
	CategoryDeposit      ItemCategory = "deposit"
	CategoryGift         ItemCategory = "gift"
	CategoryWithdrawal   ItemCategory = "withdrawal"
)

// LegacyDepositDescription marks a gift-category transaction that is really a deposit.
const LegacyDepositDescription = "deposit"

func ParseItemCategory(s string) (ItemCategory, error) {
	switch c := ItemCategory(s); c {
	case CategorySubscription, CategoryDeposit, CategoryGift, CategoryWithdrawal:
		return c, nil
	}
	return "", fmt.Errorf("unknown item category %q: %w", s, ErrInvalidRecord)
}

// Payment method names recorded on gift audit transactions.
const (
	MethodSiteBalance = "site_balance"
	MethodDirect      = "direct"
)

// WithdrawalStatus is the lifecycle state of a WithdrawalRequest.
type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalApproved  WithdrawalStatus = "approved"
	WithdrawalProcessed WithdrawalStatus = "processed"
	WithdrawalRejected  WithdrawalStatus = "rejected"
)

func ParseWithdrawalStatus(s string) (WithdrawalStatus, error) {
	switch st := WithdrawalStatus(s); st {
	case WithdrawalPending, WithdrawalApproved, WithdrawalProcessed, WithdrawalRejected:
		return st, nil
	}
	return "", fmt.Errorf("unknown withdrawal status %q: %w", s, ErrInvalidState)
}

// CanTransition reports whether s -> next is a legal step.
// Processed and Rejected are terminal: money that left the system is never refunded.
func (s WithdrawalStatus) CanTransition(next WithdrawalStatus) bool {
	switch s {
	case WithdrawalPending:
		return next == WithdrawalApproved || next == WithdrawalRejected
	case WithdrawalApproved:
		return next == WithdrawalProcessed || next == WithdrawalRejected
	case WithdrawalProcessed, WithdrawalRejected:
		return false
	}
	return false
}

// ReleasesReservation reports whether moving into next returns the reserved funds.
func (s WithdrawalStatus) ReleasesReservation(next WithdrawalStatus) bool {
	return next == WithdrawalRejected && (s == WithdrawalPending || s == WithdrawalApproved)
}

// SubscriptionStatus is the state of a UserSubscription.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
)

func ParseSubscriptionStatus(s string) (SubscriptionStatus, error) {
	switch st := SubscriptionStatus(s); st {
	case SubscriptionActive, SubscriptionCancelled, SubscriptionExpired:
		return st, nil
	}
	return "", fmt.Errorf("unknown subscription status %q: %w", s, ErrInvalidRecord)
}

// EntryReason tags a ledger journal row.
type EntryReason string

const (
	ReasonDeposit           EntryReason = "deposit"
	ReasonGiftPurchase      EntryReason = "gift_purchase"
	ReasonGiftRedemption    EntryReason = "gift_redemption"
	ReasonWithdrawalReserve EntryReason = "withdrawal_reserve"
	ReasonWithdrawalRelease EntryReason = "withdrawal_release"
)
