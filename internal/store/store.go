package store

import (
	"context"
	"time"

	"github.com/punchamoorthee/payledger/internal/domain"
	"github.com/shopspring/decimal"
)

// UnitOfWork runs fn inside one atomic unit. The unit commits when fn returns
// nil and rolls back otherwise; nothing fn wrote survives a returned error.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of repositories bound to one atomic unit. Methods suffixed
// ForUpdate hold a row lock until the unit ends.
type Tx interface {
	// Balances
	EnsureBalance(ctx context.Context, userID int64) error
	GetBalanceForUpdate(ctx context.Context, userID int64) (domain.BalanceAccount, error)
	SetBalance(ctx context.Context, userID int64, balance decimal.Decimal) error
	GetBalance(ctx context.Context, userID int64) (domain.BalanceAccount, error)
	InsertLedgerEntry(ctx context.Context, e domain.LedgerEntry) (int64, error)
	ListLedgerEntries(ctx context.Context, userID int64, limit int) ([]domain.LedgerEntry, error)

	// Payment transactions
	InsertTransaction(ctx context.Context, t domain.Transaction) (domain.Transaction, error)
	GetTransaction(ctx context.Context, id int64) (domain.Transaction, error)
	GetTransactionForUpdate(ctx context.Context, id int64) (domain.Transaction, error)
	UpdateTransaction(ctx context.Context, t domain.Transaction) error
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]domain.Transaction, error)

	// Withdrawals
	InsertWithdrawal(ctx context.Context, w domain.WithdrawalRequest) (domain.WithdrawalRequest, error)
	GetWithdrawal(ctx context.Context, id int64) (domain.WithdrawalRequest, error)
	GetWithdrawalForUpdate(ctx context.Context, id int64) (domain.WithdrawalRequest, error)
	UpdateWithdrawal(ctx context.Context, w domain.WithdrawalRequest) error
	ListWithdrawals(ctx context.Context, userID int64) ([]domain.WithdrawalRequest, error)

	// Gifts
	GetGiftItem(ctx context.Context, id int64) (domain.GiftItem, error)
	InsertUserGift(ctx context.Context, g domain.UserGift) (domain.UserGift, error)
	GetUserGiftForUpdate(ctx context.Context, id int64) (domain.UserGift, error)
	UpdateUserGift(ctx context.Context, g domain.UserGift) error
	ListReceivedGifts(ctx context.Context, recipientID int64) ([]domain.UserGift, error)

	// Subscriptions
	GetPackage(ctx context.Context, id int64) (domain.SubscriptionPackage, error)
	ListActiveSubscriptionsForUpdate(ctx context.Context, userID int64) ([]domain.UserSubscription, error)
	GetActiveSubscription(ctx context.Context, userID int64, at time.Time) (domain.UserSubscription, error)
	CancelSubscription(ctx context.Context, id int64) error
	InsertSubscription(ctx context.Context, s domain.UserSubscription) (domain.UserSubscription, error)
	InsertSubscriptionTransaction(ctx context.Context, st domain.SubscriptionTransaction) (int64, error)

	// Idempotency keys
	GetIdempotencyKey(ctx context.Context, key string) (domain.IdempotencyKey, error)
	InsertIdempotencyKey(ctx context.Context, k domain.IdempotencyKey) error
}

// TransactionFilter narrows ListTransactions. Zero fields are ignored.
type TransactionFilter struct {
	UserID int64
	Status domain.TransactionStatus
	Limit  int
}
