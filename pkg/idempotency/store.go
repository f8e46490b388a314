package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// OutcomeKey identifies one terminal-status application for one order.
// Outcome events are deduplicated per (order, status), not per delivery.
func OutcomeKey(orderID, status string) string {
	return fmt.Sprintf("outcome:%s:%s", orderID, status)
}

// Store deduplicates consumed events with redis keys that expire after a TTL.
// Keys are marked only after the event was processed successfully, so a
// failed application stays unmarked and the redelivery is processed again.
// Callers must tolerate the rare false negative after expiry; durable
// deduplication is enforced by the consumer's conditional database update.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// Applied reports whether the key was marked by a prior successful apply.
func (s *Store) Applied(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkApplied records a successful apply for the key.
func (s *Store) MarkApplied(ctx context.Context, key string) error {
	return s.rdb.Set(ctx, key, "1", s.ttl).Err()
}
