package model

import (
	"testing"
	"time"
)

func TestTransition_Table(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from  State
		event Event
		to    State
	}{
		{Drafted, EventRoute, Routing},
		{Routing, EventBlocked, Blocked},
		{Routing, EventOK, Queued},
		{Queued, EventSend, Sending},
		{Sending, EventSuccess, Sent},
		{Sending, EventError, Failed},
		{Sent, EventConfirm, Confirmed},
		{Sent, EventTimeout, Confirmed},
		{Failed, EventRetry, Queued},
		{Failed, EventFallback, Fallback},
		{Fallback, EventReroute, Queued},
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, tc := range cases {
		t.Run(string(tc.from)+"_"+string(tc.event), func(t *testing.T) {
			t.Parallel()

			m := New("+15550001111", "hi", now)
			m.State = tc.from

			if ok := Transition(m, tc.event, now); !ok {
				t.Fatalf("Transition(%s, %s) = false, want true", tc.from, tc.event)
			}
			if m.State != tc.to {
				t.Fatalf("state = %s, want %s", m.State, tc.to)
			}
		})
	}
}

func TestTransition_UnknownEventIsNoOp(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()

	cases := []struct {
		state State
		event Event
	}{
		{Drafted, EventSend},
		{Queued, EventConfirm},
		{Blocked, EventRoute},
		{Confirmed, EventRetry},
		{Sending, EventTimeout},
		{Sent, Event("bogus")},
	}

	for _, tc := range cases {
		m := New("+15550001111", "hi", now)
		m.State = tc.state

		if ok := Transition(m, tc.event, now); ok {
			t.Fatalf("Transition(%s, %s) = true, want false", tc.state, tc.event)
		}
		if m.State != tc.state {
			t.Fatalf("state changed to %s on rejected event", m.State)
		}
		if m.SentAt != nil || m.ConfirmedAt != nil {
			t.Fatalf("timestamps stamped on rejected event")
		}
	}
}

func TestTransition_StampsTimestampsOnce(t *testing.T) {
	t.Parallel()

	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	later := first.Add(time.Hour)

	m := New("a@example.com", "hi", first)
	m.State = Sending

	if !Transition(m, EventSuccess, first) {
		t.Fatal("success transition rejected")
	}
	if m.SentAt == nil || !m.SentAt.Equal(first) {
		t.Fatalf("SentAt = %v, want %v", m.SentAt, first)
	}

	if !Transition(m, EventConfirm, later) {
		t.Fatal("confirm transition rejected")
	}
	if m.ConfirmedAt == nil || !m.ConfirmedAt.Equal(later) {
		t.Fatalf("ConfirmedAt = %v, want %v", m.ConfirmedAt, later)
	}

	// A second pass through Sent must not overwrite the original stamp.
	m2 := New("a@example.com", "hi", first)
	m2.State = Sending
	Transition(m2, EventSuccess, first)
	m2.State = Sending
	Transition(m2, EventSuccess, later)
	if !m2.SentAt.Equal(first) {
		t.Fatalf("SentAt overwritten: %v", m2.SentAt)
	}
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := New("+15550001111", "hello", now)

	if m.ID == "" {
		t.Fatal("expected non-empty id")
	}
	if m.State != Drafted {
		t.Fatalf("state = %s, want drafted", m.State)
	}
	if m.MaxAttempts != DefaultMaxAttempts {
		t.Fatalf("maxAttempts = %d, want %d", m.MaxAttempts, DefaultMaxAttempts)
	}
	if m.Priority != 1 {
		t.Fatalf("priority = %d, want 1", m.Priority)
	}
	if !m.CreatedAt.Equal(now) {
		t.Fatalf("createdAt = %v, want %v", m.CreatedAt, now)
	}
	if m.Channel != "" {
		t.Fatalf("channel = %q, want empty while drafted", m.Channel)
	}
}

func TestExpired(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	m := New("+15550001111", "hi", now)
	if m.Expired(now) {
		t.Fatal("zero ExpiresAt must never expire")
	}

	m.ExpiresAt = now.Add(time.Hour)
	if m.Expired(now) {
		t.Fatal("not yet expired")
	}
	if !m.Expired(now.Add(2 * time.Hour)) {
		t.Fatal("expected expired after deadline")
	}
}
