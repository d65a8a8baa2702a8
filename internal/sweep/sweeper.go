// Package sweep reaps expired message records on a fixed interval.
package sweep

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LeventeLantos/outbound-router/internal/store"
)

// Sweeper scans all persisted records and deletes those past their expiry
// deadline. It may race with a worker holding a message's lock; deleting an
// expired-but-locked record is an accepted lost update given the generous
// default expiry window.
type Sweeper struct {
	interval time.Duration
	queue    *store.Queue

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(interval time.Duration, queue *store.Queue) (*Sweeper, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if queue == nil {
		return nil, errors.New("queue must not be nil")
	}
	return &Sweeper{
		interval: interval,
		queue:    queue,
		done:     make(chan struct{}),
	}, nil
}

// Start launches the sweep loop, running one pass immediately. It returns
// false if the sweeper is already running.
func (s *Sweeper) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		slog.Info("expiry sweeper started", "interval", s.interval.String())

		s.safeSweep(ctx)

		for {
			select {
			case <-ctx.Done():
				slog.Info("expiry sweeper stopping")
				return
			case <-ticker.C:
				s.safeSweep(ctx)
			}
		}
	}()

	return true
}

// Stop halts the loop and waits for any in-flight pass to finish. It
// returns false if the sweeper is not running.
func (s *Sweeper) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return false
	}

	s.cancel()
	<-s.done
	s.running.Store(false)

	slog.Info("expiry sweeper stopped")
	return true
}

func (s *Sweeper) IsRunning() bool {
	return s.running.Load()
}

func (s *Sweeper) safeSweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("sweep pass panic recovered", "panic", r)
		}
	}()

	start := time.Now()
	removed := s.sweepOnce(ctx)
	slog.Info("sweep pass completed",
		"removed", removed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// sweepOnce walks every record once. Reading through the store is what
// deletes expired records, so the pass just counts the expiries it trips.
func (s *Sweeper) sweepOnce(ctx context.Context) int {
	ids, err := s.queue.Scan(ctx)
	if err != nil {
		slog.Error("sweep scan failed", "error", err)
		return 0
	}

	removed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return removed
		}
		_, err := s.queue.Get(ctx, id)
		switch {
		case errors.Is(err, store.ErrExpired):
			removed++
		case err == nil, errors.Is(err, store.ErrNotFound):
			// Alive, or already gone; nothing to do.
		default:
			slog.Error("sweep read failed", "message_id", id, "error", err)
		}
	}
	return removed
}
