// Package worker contains the queue-driven loops that move messages through
// their lifecycle. Any number of workers may run concurrently, in one
// process or many; all cross-worker safety derives from the per-message
// lock, never from in-process synchronization.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
)

// Options tune a worker loop. Zero values fall back to the defaults below.
type Options struct {
	// DequeueWait bounds each blocking poll of the queue list.
	DequeueWait time.Duration

	// LockTTL bounds how long a crashed worker can stall a message.
	LockTTL time.Duration

	// BackoffBase scales the linear retry backoff: the n-th failed attempt
	// defers the retry by n * BackoffBase.
	BackoffBase time.Duration

	// DelayMin/DelayMax bound the uniform pre-send delay that keeps send
	// patterns from looking machine-like. Set both to zero to disable.
	DelayMin time.Duration
	DelayMax time.Duration
}

func (o Options) withDefaults() Options {
	if o.DequeueWait <= 0 {
		o.DequeueWait = 5 * time.Second
	}
	if o.LockTTL <= 0 {
		o.LockTTL = 60 * time.Second
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 30 * time.Second
	}
	return o
}

// dequeuer is the slice of the queue store the loop needs.
type dequeuer interface {
	Dequeue(ctx context.Context, list string, timeout time.Duration) (string, error)
}

// runLoop polls list until ctx is canceled, handing each dequeued id to
// process. The stop signal takes effect between polls; an id already in
// hand is processed to completion on a detached context so its lock is
// always released.
func runLoop(ctx context.Context, name, list string, q dequeuer, wait time.Duration, process func(ctx context.Context, id string)) {
	slog.Info("worker started", "worker", name, "list", list)

	for {
		if ctx.Err() != nil {
			slog.Info("worker stopping", "worker", name)
			return
		}

		id, err := q.Dequeue(ctx, list, wait)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("worker stopping", "worker", name)
				return
			}
			slog.Error("dequeue failed", "worker", name, "list", list, "error", err)
			sleepCtx(ctx, wait)
			continue
		}
		if id == "" {
			continue
		}

		process(context.WithoutCancel(ctx), id)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// sleeper blocks for d or until ctx is done. Workers take it injected so
// tests run without real time passing.
type sleeper func(ctx context.Context, d time.Duration)

func clockSleeper(clk clock.Clock) sleeper {
	return func(ctx context.Context, d time.Duration) {
		t := clk.Timer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
		case <-t.C:
		}
	}
}
