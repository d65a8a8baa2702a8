package model

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Channel identifies a delivery medium.
type Channel string

const (
	ChannelRichChat       Channel = "rich_chat"
	ChannelRichMessaging  Channel = "rich_messaging"
	ChannelEmail          Channel = "email"
	ChannelBasicMessaging Channel = "basic_messaging"
)

// ChannelsByPriority lists all channels in descending desirability.
var ChannelsByPriority = []Channel{
	ChannelRichChat,
	ChannelRichMessaging,
	ChannelEmail,
	ChannelBasicMessaging,
}

type State string

const (
	Drafted   State = "drafted"
	Routing   State = "routing"
	Blocked   State = "blocked"
	Queued    State = "queued"
	Sending   State = "sending"
	Sent      State = "sent"
	Confirmed State = "confirmed"
	Failed    State = "failed"
	Fallback  State = "fallback"
)

type Event string

const (
	EventRoute    Event = "route"
	EventBlocked  Event = "blocked"
	EventOK       Event = "ok"
	EventSend     Event = "send"
	EventSuccess  Event = "success"
	EventError    Event = "error"
	EventConfirm  Event = "confirm"
	EventTimeout  Event = "timeout"
	EventRetry    Event = "retry"
	EventFallback Event = "fallback"
	EventReroute  Event = "reroute"
)

type Message struct {
	ID               string            `json:"id"`
	Recipient        string            `json:"recipient"`
	Text             string            `json:"text"`
	Channel          Channel           `json:"channel,omitempty"`
	State            State             `json:"state"`
	Attempts         int               `json:"attempts"`
	MaxAttempts      int               `json:"maxAttempts"`
	FallbackChannels []Channel         `json:"fallbackChannels,omitempty"`
	LastError        string            `json:"lastError,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	SentAt           *time.Time        `json:"sentAt,omitempty"`
	ConfirmedAt      *time.Time        `json:"confirmedAt,omitempty"`
	Priority         int               `json:"priority"`
	ExpiresAt        time.Time         `json:"expiresAt"`
	RetryAfter       *time.Time        `json:"retryAfter,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

const DefaultMaxAttempts = 3

// New creates a drafted message with a fresh id. The expiry deadline is left
// to the caller.
func New(recipient, text string, now time.Time) *Message {
	return &Message{
		ID:          uuid.NewString(),
		Recipient:   recipient,
		Text:        text,
		State:       Drafted,
		MaxAttempts: DefaultMaxAttempts,
		Priority:    1,
		CreatedAt:   now.UTC(),
	}
}

// Expired reports whether the message's deadline has passed. A zero
// ExpiresAt means the message never expires.
func (m *Message) Expired(now time.Time) bool {
	return !m.ExpiresAt.IsZero() && now.After(m.ExpiresAt)
}

var transitions = map[State]map[Event]State{
	Drafted: {
		EventRoute: Routing,
	},
	Routing: {
		EventBlocked: Blocked,
		EventOK:      Queued,
	},
	Queued: {
		EventSend: Sending,
	},
	Sending: {
		EventSuccess: Sent,
		EventError:   Failed,
	},
	Sent: {
		EventConfirm: Confirmed,
		// No receipt within the check window still counts as delivered.
		EventTimeout: Confirmed,
	},
	Failed: {
		EventRetry:    Queued,
		EventFallback: Fallback,
	},
	Fallback: {
		EventReroute: Queued,
	},
	// Blocked and Confirmed are terminal.
}

// Next returns the state reached from s via event, or false if the pair is
// not in the table.
func Next(s State, event Event) (State, bool) {
	next, ok := transitions[s][event]
	return next, ok
}

// Transition applies event to the message. An event not defined for the
// current state leaves the message untouched and returns false; it never
// panics and is never an error. On success SentAt/ConfirmedAt are stamped
// the first time the corresponding state is reached.
func Transition(m *Message, event Event, now time.Time) bool {
	next, ok := Next(m.State, event)
	if !ok {
		slog.Warn("no transition defined",
			"message_id", m.ID,
			"state", string(m.State),
			"event", string(event),
		)
		return false
	}

	prev := m.State
	m.State = next

	switch next {
	case Sent:
		if m.SentAt == nil {
			t := now.UTC()
			m.SentAt = &t
		}
	case Confirmed:
		if m.ConfirmedAt == nil {
			t := now.UTC()
			m.ConfirmedAt = &t
		}
	}

	slog.Info("message transitioned",
		"message_id", m.ID,
		"from", string(prev),
		"to", string(next),
		"event", string(event),
	)
	return true
}
