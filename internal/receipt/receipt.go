// Package receipt resolves delivery receipts reported by channel gateways.
package receipt

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/outbound-router/internal/model"
)

const keyPrefix = "receipt:"

// Checker answers whether a delivery receipt has been seen for a message.
type Checker interface {
	HasReceipt(ctx context.Context, m *model.Message) (bool, error)
}

// Redis checks for receipt keys written by the delivery callback endpoint.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, ttl: ttl}
}

func (r *Redis) HasReceipt(ctx context.Context, m *model.Message) (bool, error) {
	n, err := r.rdb.Exists(ctx, keyPrefix+m.ID).Result()
	if err != nil {
		return false, fmt.Errorf("check receipt for %s: %w", m.ID, err)
	}
	return n > 0, nil
}

// Record stores a receipt reported by a gateway callback. The key carries a
// TTL so stale receipts do not accumulate.
func (r *Redis) Record(ctx context.Context, messageID, remoteID string) error {
	val := remoteID
	if val == "" {
		val = "1"
	}
	if err := r.rdb.Set(ctx, keyPrefix+messageID, val, r.ttl).Err(); err != nil {
		return fmt.Errorf("record receipt for %s: %w", messageID, err)
	}
	return nil
}
