package worker

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/LeventeLantos/outbound-router/internal/adapter"
	"github.com/LeventeLantos/outbound-router/internal/lock"
	"github.com/LeventeLantos/outbound-router/internal/model"
	"github.com/LeventeLantos/outbound-router/internal/store"
)

// Send drains the send list: it locks each message, drives it through
// sending, and applies the retry, backoff, and fallback policy on failure.
type Send struct {
	queue    *store.Queue
	locks    *lock.Manager
	adapters adapter.Sender
	clk      clock.Clock
	sleep    sleeper
	opts     Options
}

func NewSend(queue *store.Queue, locks *lock.Manager, adapters adapter.Sender, clk clock.Clock, opts Options) *Send {
	return &Send{
		queue:    queue,
		locks:    locks,
		adapters: adapters,
		clk:      clk,
		sleep:    clockSleeper(clk),
		opts:     opts.withDefaults(),
	}
}

// Run polls the send list until ctx is canceled. Run multiple instances for
// concurrency; the per-message lock keeps them from colliding.
func (w *Send) Run(ctx context.Context) {
	runLoop(ctx, "send", store.SendList, w.queue, w.opts.DequeueWait, w.processOne)
}

func (w *Send) processOne(ctx context.Context, id string) {
	key := lock.MessageKey(id)

	acquired, err := w.locks.Acquire(ctx, key, w.opts.LockTTL)
	if err != nil {
		slog.Error("lock acquire failed", "message_id", id, "error", err)
		return
	}
	if !acquired {
		slog.Debug("message locked by another worker, skipping", "message_id", id)
		return
	}
	defer func() {
		if err := w.locks.Release(ctx, key); err != nil {
			slog.Error("lock release failed", "message_id", id, "error", err)
		}
	}()

	m, err := w.queue.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		slog.Error("load message failed", "message_id", id, "error", err)
		return
	}

	now := w.clk.Now()
	if m.RetryAfter != nil && m.RetryAfter.After(now) {
		// Not ripe yet; put it back without processing.
		if err := w.queue.Push(ctx, store.SendList, id); err != nil {
			slog.Error("re-enqueue deferred retry failed", "message_id", id, "error", err)
		}
		return
	}

	if !model.Transition(m, model.EventSend, now) {
		// Stale list entry for a message no longer in queued state.
		return
	}
	m.RetryAfter = nil
	if err := w.queue.Update(ctx, m); err != nil {
		slog.Error("persist sending state failed", "message_id", id, "error", err)
		return
	}

	w.humanDelay(ctx)

	res, sendErr := w.adapters.Send(ctx, adapter.Payload{
		MessageID: m.ID,
		Recipient: m.Recipient,
		Text:      m.Text,
		Channel:   m.Channel,
		Metadata:  m.Metadata,
	})

	switch {
	case sendErr != nil:
		w.handleFailure(ctx, m, sendErr.Error())
	case !res.Success:
		w.handleFailure(ctx, m, res.Error)
	default:
		model.Transition(m, model.EventSuccess, w.clk.Now())
		if err := w.queue.Update(ctx, m); err != nil {
			slog.Error("persist sent state failed", "message_id", id, "error", err)
			return
		}
		if err := w.queue.Push(ctx, store.ConfirmList, id); err != nil {
			slog.Error("push to confirm list failed", "message_id", id, "error", err)
			return
		}
		slog.Info("message sent",
			"message_id", m.ID,
			"channel", string(m.Channel),
			"remote_id", res.MessageID,
		)
	}
}

func (w *Send) handleFailure(ctx context.Context, m *model.Message, reason string) {
	now := w.clk.Now()
	m.LastError = reason
	m.Attempts++
	model.Transition(m, model.EventError, now)

	slog.Warn("send failed",
		"message_id", m.ID,
		"channel", string(m.Channel),
		"attempt", m.Attempts,
		"max_attempts", m.MaxAttempts,
		"error", reason,
	)

	if m.Attempts < m.MaxAttempts {
		model.Transition(m, model.EventRetry, now)
		retryAt := now.Add(time.Duration(m.Attempts) * w.opts.BackoffBase)
		m.RetryAfter = &retryAt
		if err := w.queue.Update(ctx, m); err != nil {
			slog.Error("persist retry state failed", "message_id", m.ID, "error", err)
			return
		}
		if err := w.queue.Push(ctx, store.SendList, m.ID); err != nil {
			slog.Error("re-enqueue retry failed", "message_id", m.ID, "error", err)
		}
		return
	}

	if len(m.FallbackChannels) == 0 {
		// The error event already left the message in failed state;
		// with no channel left to try that is terminal.
		if err := w.queue.Update(ctx, m); err != nil {
			slog.Error("persist failed state failed", "message_id", m.ID, "error", err)
			return
		}
		slog.Warn("message failed permanently", "message_id", m.ID, "channel", string(m.Channel))
		return
	}

	model.Transition(m, model.EventFallback, now)
	m.Channel = m.FallbackChannels[0]
	m.FallbackChannels = m.FallbackChannels[1:]
	m.Attempts = 0
	m.RetryAfter = nil
	model.Transition(m, model.EventReroute, now)

	if err := w.queue.Update(ctx, m); err != nil {
		slog.Error("persist fallback state failed", "message_id", m.ID, "error", err)
		return
	}
	if err := w.queue.Push(ctx, store.SendList, m.ID); err != nil {
		slog.Error("re-enqueue fallback failed", "message_id", m.ID, "error", err)
		return
	}
	slog.Info("message rerouted to fallback channel", "message_id", m.ID, "channel", string(m.Channel))
}

// humanDelay pauses for a uniformly distributed interval so outbound
// traffic does not look machine-generated.
func (w *Send) humanDelay(ctx context.Context) {
	if w.opts.DelayMax <= 0 || w.opts.DelayMax < w.opts.DelayMin {
		return
	}
	span := w.opts.DelayMax - w.opts.DelayMin
	d := w.opts.DelayMin + time.Duration(rand.Int63n(int64(span)+1))
	w.sleep(ctx, d)
}
