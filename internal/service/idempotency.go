package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/punchamoorthee/payledger/internal/domain"
	"github.com/punchamoorthee/payledger/internal/store"
)

// Idempotency identifies a client request so a retry returns the resource
// the first attempt created. A zero value disables replay protection.
type Idempotency struct {
	Key         string
	RequestHash string
}

// replay returns the id recorded for the key, if any. Reusing a key for a
// different payload, user or resource type is a mismatch.
func (k Idempotency) replay(ctx context.Context, tx store.Tx, userID int64, resource string) (int64, bool, error) {
	if k.Key == "" {
		return 0, false, nil
	}
	rec, err := tx.GetIdempotencyKey(ctx, k.Key)
	if errors.Is(err, domain.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if rec.UserID != userID || rec.ResourceType != resource || rec.RequestHash != k.RequestHash {
		return 0, false, fmt.Errorf("key %q: %w", k.Key, domain.ErrIdempotencyMismatch)
	}
	return rec.ResourceID, true, nil
}

// remember records the key in the same unit that created the resource.
func (k Idempotency) remember(ctx context.Context, tx store.Tx, userID int64, resource string, id int64) error {
	if k.Key == "" {
		return nil
	}
	return tx.InsertIdempotencyKey(ctx, domain.IdempotencyKey{
		Key:          k.Key,
		UserID:       userID,
		RequestHash:  k.RequestHash,
		ResourceType: resource,
		ResourceID:   id,
	})
}
