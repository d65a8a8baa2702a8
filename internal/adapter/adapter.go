// Package adapter defines the single send contract every delivery channel
// satisfies, plus the concrete transports.
package adapter

import (
	"context"
	"fmt"

	"github.com/LeventeLantos/outbound-router/internal/model"
)

// Payload carries everything a channel needs to deliver one message.
type Payload struct {
	MessageID string            `json:"messageId"`
	Recipient string            `json:"recipient"`
	Text      string            `json:"text"`
	Channel   model.Channel     `json:"channel"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Result reports the outcome of a send. A transport that reached the remote
// side but was rejected returns Success=false with Error set rather than a
// Go error.
type Result struct {
	Success   bool
	MessageID string
	Error     string
	Details   map[string]string
}

// Sender is the one contract the delivery core depends on.
type Sender interface {
	Send(ctx context.Context, p Payload) (*Result, error)
}

// Registry multiplexes sends across per-channel adapters.
type Registry struct {
	adapters map[model.Channel]Sender
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[model.Channel]Sender)}
}

// Register binds an adapter to a channel, replacing any previous binding.
func (r *Registry) Register(ch model.Channel, s Sender) {
	r.adapters[ch] = s
}

// Send dispatches to the adapter registered for the payload's channel.
func (r *Registry) Send(ctx context.Context, p Payload) (*Result, error) {
	s, ok := r.adapters[p.Channel]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for channel %q", p.Channel)
	}
	return s.Send(ctx, p)
}
