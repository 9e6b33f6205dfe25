package store_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/punchamoorthee/payledger/internal/domain"
	"github.com/punchamoorthee/payledger/internal/service"
	"github.com/punchamoorthee/payledger/internal/store"
	"github.com/shopspring/decimal"
)

var errBoom = errors.New("boom")

func openPostgres(t *testing.T) *store.Store {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := store.NewStore(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(s.Close)

	// Applying the schema twice must be harmless.
	for i := 0; i < 2; i++ {
		if err := s.Migrate(ctx); err != nil {
			t.Fatalf("migrate: %v", err)
		}
	}
	return s
}

// uniqueUser keeps runs against a shared database apart.
func uniqueUser() int64 {
	return time.Now().UnixNano() % 1_000_000_000_000
}

func units(t *testing.T) map[string]store.UnitOfWork {
	out := map[string]store.UnitOfWork{"memory": store.NewMemory()}
	if os.Getenv("DATABASE_URL") != "" {
		out["postgres"] = openPostgres(t)
	}
	return out
}

func TestRollbackDiscardsWrites(t *testing.T) {
	for name, uow := range units(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ledger := service.NewLedger(uow)
			user := uniqueUser()

			err := uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
				if _, err := ledger.Credit(ctx, tx, service.Movement{UserID: user, Amount: decimal.NewFromInt(10), Reason: domain.ReasonDeposit, ReferenceType: "test"}); err != nil {
					return err
				}
				return errBoom
			})
			if !errors.Is(err, errBoom) {
				t.Fatalf("expected errBoom, got %v", err)
			}

			acc, err := ledger.Account(ctx, user)
			if err != nil {
				t.Fatalf("account: %v", err)
			}
			if !acc.Balance.IsZero() {
				t.Fatalf("expected zero balance after rollback, got %s", acc.Balance)
			}
			entries, err := ledger.Entries(ctx, user, 10)
			if err != nil {
				t.Fatalf("entries: %v", err)
			}
			if len(entries) != 0 {
				t.Fatalf("expected no journal entries, got %d", len(entries))
			}
		})
	}
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	for name, uow := range units(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ledger := service.NewLedger(uow)
			user := uniqueUser()

			err := uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
				_, err := ledger.Credit(ctx, tx, service.Movement{UserID: user, Amount: decimal.NewFromInt(100), Reason: domain.ReasonDeposit, ReferenceType: "test"})
				return err
			})
			if err != nil {
				t.Fatalf("fund: %v", err)
			}

			const workers = 20
			var wg sync.WaitGroup
			var mu sync.Mutex
			ok, short := 0, 0
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
						_, err := ledger.Debit(ctx, tx, service.Movement{UserID: user, Amount: decimal.NewFromInt(10), Reason: domain.ReasonWithdrawalReserve, ReferenceType: "test"})
						return err
					})
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						ok++
					case errors.Is(err, domain.ErrInsufficientBalance):
						short++
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}()
			}
			wg.Wait()

			if ok != 10 || short != 10 {
				t.Fatalf("expected 10 debits and 10 refusals, got %d and %d", ok, short)
			}
			acc, err := ledger.Account(ctx, user)
			if err != nil {
				t.Fatalf("account: %v", err)
			}
			if !acc.Balance.IsZero() {
				t.Fatalf("expected zero balance, got %s", acc.Balance)
			}
			entries, err := ledger.Entries(ctx, user, 100)
			if err != nil {
				t.Fatalf("entries: %v", err)
			}
			if len(entries) != 11 {
				t.Fatalf("expected 11 journal entries, got %d", len(entries))
			}
			// Newest first; each entry's balance_after follows from the previous one.
			running := decimal.Zero
			for i := len(entries) - 1; i >= 0; i-- {
				running = running.Add(entries[i].Delta)
				if !running.Equal(entries[i].BalanceAfter) {
					t.Fatalf("entry %d: expected balance_after %s, got %s", entries[i].ID, running, entries[i].BalanceAfter)
				}
			}
		})
	}
}

func TestIdempotencyKeyIsUnique(t *testing.T) {
	for name, uow := range units(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			k := domain.IdempotencyKey{
				Key:          "store-test-" + time.Now().Format(time.RFC3339Nano),
				UserID:       1,
				RequestHash:  "h",
				ResourceType: "withdrawal",
				ResourceID:   42,
			}
			insert := func(ctx context.Context, tx store.Tx) error { return tx.InsertIdempotencyKey(ctx, k) }

			if err := uow.Do(ctx, insert); err != nil {
				t.Fatalf("first insert: %v", err)
			}
			if err := uow.Do(ctx, insert); !errors.Is(err, domain.ErrIdempotencyConflict) {
				t.Fatalf("expected ErrIdempotencyConflict, got %v", err)
			}

			err := uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
				got, err := tx.GetIdempotencyKey(ctx, k.Key)
				if err != nil {
					return err
				}
				if got.ResourceID != 42 || got.UserID != 1 {
					t.Errorf("unexpected key %+v", got)
				}
				_, err = tx.GetIdempotencyKey(ctx, k.Key+"-missing")
				if !errors.Is(err, domain.ErrNotFound) {
					t.Errorf("expected ErrNotFound, got %v", err)
				}
				return nil
			})
			if err != nil {
				t.Fatalf("lookup: %v", err)
			}
		})
	}
}
