package directory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/punchamoorthee/payledger/internal/domain"
	"github.com/sirupsen/logrus"
)

type countingDirectory struct {
	next  Directory
	calls atomic.Int64
}

func (c *countingDirectory) Lookup(ctx context.Context, countryID, methodTypeID int64) (domain.PaymentMethod, error) {
	c.calls.Add(1)
	return c.next.Lookup(ctx, countryID, methodTypeID)
}

func TestStaticLookup(t *testing.T) {
	s := NewStatic(domain.PaymentMethod{CountryID: 1, MethodTypeID: 2, Name: "Bank Transfer", IsActive: true})

	pm, err := s.Lookup(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if pm.Name != "Bank Transfer" {
		t.Fatalf("expected Bank Transfer, got %q", pm.Name)
	}
	if _, err := s.Lookup(context.Background(), 2, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCachedLookup(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb, err := Connect(ctx, addr, os.Getenv("REDIS_PASSWORD"), 0)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer rdb.Close()

	log := logrus.New()
	log.SetOutput(io.Discard)

	// A country id unique to this run keeps parallel runs apart.
	country := time.Now().UnixNano()
	inner := &countingDirectory{next: NewStatic(domain.PaymentMethod{
		CountryID: country, MethodTypeID: 1, Name: "Card", IsActive: true,
		ConfigurationDetails: map[string]string{"merchant": "m-1"},
	})}
	c := NewCached(inner, rdb, time.Minute, log)
	t.Cleanup(func() { _ = c.Invalidate(ctx, country, 1) })

	for i := 0; i < 3; i++ {
		pm, err := c.Lookup(ctx, country, 1)
		if err != nil {
			t.Fatalf("lookup %d: %v", i, err)
		}
		if pm.Name != "Card" || pm.ConfigurationDetails["merchant"] != "m-1" {
			t.Fatalf("unexpected method %+v", pm)
		}
	}
	if n := inner.calls.Load(); n != 1 {
		t.Fatalf("expected 1 backing lookup, got %d", n)
	}

	if err := c.Invalidate(ctx, country, 1); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := c.Lookup(ctx, country, 1); err != nil {
		t.Fatalf("lookup after invalidate: %v", err)
	}
	if n := inner.calls.Load(); n != 2 {
		t.Fatalf("expected 2 backing lookups, got %d", n)
	}

	if _, err := c.Lookup(ctx, country, 99); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCacheKey(t *testing.T) {
	if got, want := cacheKey(7, 3), fmt.Sprintf("payledger:method:%d:%d", 7, 3); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
