package worker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/benbjohnson/clock"

	"github.com/LeventeLantos/outbound-router/internal/lock"
	"github.com/LeventeLantos/outbound-router/internal/model"
	"github.com/LeventeLantos/outbound-router/internal/receipt"
	"github.com/LeventeLantos/outbound-router/internal/store"
)

// Confirm drains the confirm list and finalizes sent messages. A message
// with a receipt confirms normally; one without confirms optimistically via
// the timeout event — absence of a receipt is not treated as failure.
type Confirm struct {
	queue   *store.Queue
	locks   *lock.Manager
	checker receipt.Checker
	clk     clock.Clock
	opts    Options
}

func NewConfirm(queue *store.Queue, locks *lock.Manager, checker receipt.Checker, clk clock.Clock, opts Options) *Confirm {
	return &Confirm{
		queue:   queue,
		locks:   locks,
		checker: checker,
		clk:     clk,
		opts:    opts.withDefaults(),
	}
}

// Run polls the confirm list until ctx is canceled.
func (w *Confirm) Run(ctx context.Context) {
	runLoop(ctx, "confirm", store.ConfirmList, w.queue, w.opts.DequeueWait, w.processOne)
}

func (w *Confirm) processOne(ctx context.Context, id string) {
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

	seen, err := w.checker.HasReceipt(ctx, m)
	if err != nil {
		// Receipt source unavailable; leave the message for a later pass
		// rather than finalizing on bad information.
		slog.Error("receipt check failed", "message_id", id, "error", err)
		if err := w.queue.Push(ctx, store.ConfirmList, id); err != nil {
			slog.Error("re-enqueue for confirmation failed", "message_id", id, "error", err)
		}
		return
	}

	now := w.clk.Now()
	if seen {
		model.Transition(m, model.EventConfirm, now)
	} else {
		model.Transition(m, model.EventTimeout, now)
	}

	if err := w.queue.Update(ctx, m); err != nil {
		slog.Error("persist confirmed state failed", "message_id", id, "error", err)
		return
	}

	slog.Info("message confirmed",
		"message_id", m.ID,
		"channel", string(m.Channel),
		"receipt_seen", seen,
	)
}
