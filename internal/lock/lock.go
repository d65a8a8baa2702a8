// Package lock provides per-message mutual exclusion across worker
// processes via Redis SET NX with a TTL.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const messagePrefix = "lock:msg:"

// MessageKey derives the lock key for a message id.
func MessageKey(id string) string { return messagePrefix + id }

// Manager hands out TTL-bounded locks. Presence of the key means locked;
// a crashed holder stalls its message for at most the TTL.
type Manager struct {
	rdb *redis.Client
}

func NewManager(rdb *redis.Client) *Manager {
	return &Manager{rdb: rdb}
}

// Acquire attempts to take the lock. false means another worker owns it, or
// a crashed worker's lock has not yet expired; that is not an error and the
// caller should simply skip this cycle.
func (m *Manager) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := m.rdb.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	return ok, nil
}

// Release drops the lock unconditionally.
func (m *Manager) Release(ctx context.Context, key string) error {
	if err := m.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}
