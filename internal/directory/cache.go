package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/punchamoorthee/payledger/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Cached is a read-through Redis cache in front of another Directory.
// Redis failures fall back to the wrapped directory.
type Cached struct {
	next Directory
	rdb  redis.UniversalClient
	ttl  time.Duration
	log  logrus.FieldLogger
}

func NewCached(next Directory, rdb redis.UniversalClient, ttl time.Duration, log logrus.FieldLogger) *Cached {
	return &Cached{next: next, rdb: rdb, ttl: ttl, log: log}
}

func cacheKey(countryID, methodTypeID int64) string {
	return fmt.Sprintf("payledger:method:%d:%d", countryID, methodTypeID)
}

func (c *Cached) Lookup(ctx context.Context, countryID, methodTypeID int64) (domain.PaymentMethod, error) {
	key := cacheKey(countryID, methodTypeID)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var pm domain.PaymentMethod
		if err := json.Unmarshal(raw, &pm); err == nil {
			return pm, nil
		}
		c.log.WithField("key", key).Warn("discarding undecodable cache entry")
	case !errors.Is(err, redis.Nil):
		c.log.WithError(err).WithField("key", key).Warn("payment method cache unavailable")
	}

	pm, err := c.next.Lookup(ctx, countryID, methodTypeID)
	if err != nil {
		return domain.PaymentMethod{}, err
	}

	if raw, err := json.Marshal(pm); err == nil {
		if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.log.WithError(err).WithField("key", key).Warn("payment method cache write failed")
		}
	}
	return pm, nil
}

// Invalidate drops a cached configuration after it was edited.
func (c *Cached) Invalidate(ctx context.Context, countryID, methodTypeID int64) error {
	return c.rdb.Del(ctx, cacheKey(countryID, methodTypeID)).Err()
}

// Connect opens the Redis client used by the cache and checks it answers.
func Connect(ctx context.Context, addr, password string, db int) (redis.UniversalClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  time.Second,
		ReadTimeout:  400 * time.Millisecond,
		WriteTimeout: 400 * time.Millisecond,
		OnConnect: func(ctx context.Context, cn *redis.Conn) error {
			_ = cn.ClientSetName(ctx, "payledger").Err()
			return nil
		},
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}
