package service

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/punchamoorthee/payledger/internal/directory"
	"github.com/punchamoorthee/payledger/internal/domain"
	"github.com/punchamoorthee/payledger/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	bankCountry = 1
	bankMethod  = 1
	offMethod   = 2
)

type recordingAlerter struct {
	mu     sync.Mutex
	alerts []int64
}

func (a *recordingAlerter) FulfillmentFailed(_ context.Context, t domain.Transaction, _ error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, t.ID)
	return nil
}

type testEnv struct {
	mem          *store.Memory
	ledger       *Ledger
	subs         *SubscriptionService
	transactions *TransactionService
	withdrawals  *WithdrawalService
	gifts        *GiftService
	alerts       *recordingAlerter
}

func setupTest(t *testing.T) *testEnv {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	mem := store.NewMemory()
	methods := directory.NewStatic(
		domain.PaymentMethod{CountryID: bankCountry, MethodTypeID: bankMethod, Name: "Bank Transfer", IsActive: true,
			UserInstructions: "wire it", ConfigurationDetails: map[string]string{"iban": "XX00"}},
		domain.PaymentMethod{CountryID: bankCountry, MethodTypeID: offMethod, Name: "Retired", IsActive: false},
	)
	alerts := &recordingAlerter{}

	ledger := NewLedger(mem)
	subs := NewSubscriptionService(mem)
	return &testEnv{
		mem:          mem,
		ledger:       ledger,
		subs:         subs,
		transactions: NewTransactionService(mem, methods, NewDispatcher(ledger, subs), alerts, log),
		withdrawals:  NewWithdrawalService(mem, ledger, log),
		gifts:        NewGiftService(mem, ledger, subs, methods, "USD", log),
		alerts:       alerts,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (e *testEnv) fund(t *testing.T, userID int64, amount string) {
	t.Helper()
	err := e.mem.Do(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := e.ledger.Credit(ctx, tx, Movement{
			UserID: userID, Amount: dec(amount), Reason: domain.ReasonDeposit, ReferenceType: "test",
		})
		return err
	})
	if err != nil {
		t.Fatalf("fund user %d: %v", userID, err)
	}
}

func (e *testEnv) subscribe(t *testing.T, userID int64, tier domain.Tier) domain.UserSubscription {
	t.Helper()
	pkg := e.mem.AddPackage(domain.SubscriptionPackage{Name: tier.String(), TierLevel: tier, Price: dec("10")})
	var sub domain.UserSubscription
	err := e.mem.Do(context.Background(), func(ctx context.Context, tx store.Tx) error {
		var err error
		sub, err = e.subs.Activate(ctx, tx, Activation{
			UserID: userID, PackageID: pkg.ID, PaymentMethodName: "test", Amount: pkg.Price,
		})
		return err
	})
	if err != nil {
		t.Fatalf("subscribe user %d: %v", userID, err)
	}
	return sub
}

func (e *testEnv) expectBalance(t *testing.T, userID int64, want string) {
	t.Helper()
	acc, err := e.ledger.Account(context.Background(), userID)
	if err != nil {
		t.Fatalf("balance of user %d: %v", userID, err)
	}
	if !acc.Balance.Equal(dec(want)) {
		t.Fatalf("expected balance %s for user %d, got %s", want, userID, acc.Balance)
	}
}

func (e *testEnv) transactionsOf(t *testing.T, userID int64) []domain.Transaction {
	t.Helper()
	out, err := e.transactions.ListForUser(context.Background(), userID, 0)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	return out
}
