package store

import (
	"context"
	"fmt"

	"github.com/punchamoorthee/payledger/internal/domain"
)

func (t *pgTx) GetIdempotencyKey(ctx context.Context, key string) (domain.IdempotencyKey, error) {
	var k domain.IdempotencyKey
	err := t.tx.QueryRow(ctx,
		`SELECT key, user_id, request_hash, resource_type, resource_id, created_at
		 FROM idempotency_keys WHERE key = $1`, key,
	).Scan(&k.Key, &k.UserID, &k.RequestHash, &k.ResourceType, &k.ResourceID, &k.CreatedAt)
	if err != nil {
		return domain.IdempotencyKey{}, notFound(err, "idempotency key")
	}
	return k, nil
}

// InsertIdempotencyKey blocks behind a concurrent unit holding the same key
// and fails with ErrIdempotencyConflict once that unit commits.
func (t *pgTx) InsertIdempotencyKey(ctx context.Context, k domain.IdempotencyKey) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO idempotency_keys (key, user_id, request_hash, resource_type, resource_id)
		 VALUES ($1, $2, $3, $4, $5)`,
		k.Key, k.UserID, k.RequestHash, k.ResourceType, k.ResourceID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrIdempotencyConflict
		}
		return fmt.Errorf("key reservation failed: %w", err)
	}
	return nil
}
