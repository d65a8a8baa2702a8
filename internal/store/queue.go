// Package store persists messages in Redis and maintains the ordered id
// lists the workers feed from.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/outbound-router/internal/model"
)

const (
	recordPrefix = "msg:"

	// SendList and ConfirmList name the two worker feeds.
	SendList    = "queue:send"
	ConfirmList = "queue:confirm"
)

// ErrNotFound is returned when no record exists for an id.
var ErrNotFound = errors.New("message not found")

// ErrExpired wraps ErrNotFound: the record existed but its deadline had
// passed, and it was deleted as a side effect of the read.
var ErrExpired = fmt.Errorf("message expired: %w", ErrNotFound)

// Queue stores one JSON record per message under msg:<id> plus the send and
// confirm id lists. It is safe for concurrent use from any number of
// processes; per-id exclusion is the lock manager's job, not the store's.
type Queue struct {
	rdb *redis.Client
	clk clock.Clock
}

func NewQueue(rdb *redis.Client, clk clock.Clock) *Queue {
	return &Queue{rdb: rdb, clk: clk}
}

func recordKey(id string) string { return recordPrefix + id }

// Enqueue persists the message and appends its id to the send list.
// Messages with priority above 1 take the expedited lane at the front of
// the list; everything else goes to the back.
func (q *Queue) Enqueue(ctx context.Context, m *model.Message) error {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal message %s: %w", m.ID, err)
	}

	pipe := q.rdb.TxPipeline()
	pipe.Set(ctx, recordKey(m.ID), b, 0)
	if m.Priority > 1 {
		pipe.LPush(ctx, SendList, m.ID)
	} else {
		pipe.RPush(ctx, SendList, m.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue message %s: %w", m.ID, err)
	}

	slog.Info("message enqueued",
		"message_id", m.ID,
		"channel", string(m.Channel),
		"priority", m.Priority,
	)
	return nil
}

// Dequeue pops the oldest id from the named list, blocking up to timeout.
// It returns an empty id when the wait times out.
func (q *Queue) Dequeue(ctx context.Context, list string, timeout time.Duration) (string, error) {
	res, err := q.rdb.BLPop(ctx, timeout, list).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("dequeue from %s: %w", list, err)
	}
	// BLPop returns [list, value].
	return res[1], nil
}

// Push appends an id to the back of the named list without touching the
// record. Used by workers to re-enqueue retries and hand off to the confirm
// list.
func (q *Queue) Push(ctx context.Context, list, id string) error {
	if err := q.rdb.RPush(ctx, list, id).Err(); err != nil {
		return fmt.Errorf("push %s onto %s: %w", id, list, err)
	}
	return nil
}

// Get loads the record for id. A record whose deadline has passed is
// deleted and reported as ErrExpired; a missing record is ErrNotFound.
func (q *Queue) Get(ctx context.Context, id string) (*model.Message, error) {
	raw, err := q.rdb.Get(ctx, recordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}

	var m model.Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("unmarshal message %s: %w", id, err)
	}

	if m.Expired(q.clk.Now()) {
		if err := q.rdb.Del(ctx, recordKey(id)).Err(); err != nil {
			slog.Error("failed to delete expired message", "message_id", id, "error", err)
		}
		slog.Info("expired message removed on read", "message_id", id)
		return nil, ErrExpired
	}

	return &m, nil
}

// Update rewrites the full record for the message.
func (q *Queue) Update(ctx context.Context, m *model.Message) error {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal message %s: %w", m.ID, err)
	}
	if err := q.rdb.Set(ctx, recordKey(m.ID), b, 0).Err(); err != nil {
		return fmt.Errorf("update message %s: %w", m.ID, err)
	}
	return nil
}

// Delete removes the record for id. Deleting an absent record is not an
// error.
func (q *Queue) Delete(ctx context.Context, id string) error {
	if err := q.rdb.Del(ctx, recordKey(id)).Err(); err != nil {
		return fmt.Errorf("delete message %s: %w", id, err)
	}
	return nil
}

// Scan returns the ids of all persisted records. Order is unspecified.
func (q *Queue) Scan(ctx context.Context) ([]string, error) {
	var ids []string
	iter := q.rdb.Scan(ctx, 0, recordPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, iter.Val()[len(recordPrefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan message records: %w", err)
	}
	return ids, nil
}
