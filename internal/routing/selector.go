// Package routing decides which channel carries a message and in what order
// the remaining channels are tried when it fails.
package routing

import (
	"log/slog"
	"time"

	"github.com/LeventeLantos/outbound-router/internal/model"
)

// Capabilities is a read-only snapshot of what the recipient can receive,
// supplied by the contact directory. A nil *Capabilities means no lookup
// information exists for the recipient.
type Capabilities struct {
	RichChat       bool
	RichMessaging  bool
	Email          bool
	BasicMessaging bool

	// Preferred is the recipient's stated channel preference, empty when
	// none was recorded.
	Preferred model.Channel

	OptedIn bool
	Blocked bool
}

// Has reports whether the snapshot declares capability for ch.
func (c *Capabilities) Has(ch model.Channel) bool {
	switch ch {
	case model.ChannelRichChat:
		return c.RichChat
	case model.ChannelRichMessaging:
		return c.RichMessaging
	case model.ChannelEmail:
		return c.Email
	case model.ChannelBasicMessaging:
		return c.BasicMessaging
	}
	return false
}

// Primary picks the channel to try first. A recorded preference wins when
// the recipient is actually capable of it; otherwise the highest-priority
// capable channel is used. With no capability information at all the
// default is basic messaging.
func Primary(caps *Capabilities) model.Channel {
	if caps == nil {
		return model.ChannelBasicMessaging
	}

	if caps.Preferred != "" && caps.Has(caps.Preferred) {
		return caps.Preferred
	}

	for _, ch := range model.ChannelsByPriority {
		if caps.Has(ch) {
			return ch
		}
	}

	return model.ChannelBasicMessaging
}

// FallbackChain builds the ordered, duplicate-free list of channels to try
// after primary is exhausted. A recorded preference that differs from the
// primary is pinned to the front; the rest follow in priority order.
func FallbackChain(caps *Capabilities, primary model.Channel) []model.Channel {
	if caps == nil {
		return nil
	}

	var chain []model.Channel
	seen := map[model.Channel]bool{primary: true}

	if caps.Preferred != "" && !seen[caps.Preferred] {
		chain = append(chain, caps.Preferred)
		seen[caps.Preferred] = true
	}

	for _, ch := range model.ChannelsByPriority {
		if caps.Has(ch) && !seen[ch] {
			chain = append(chain, ch)
			seen[ch] = true
		}
	}

	return chain
}

// Select resolves both the primary channel and its fallback chain.
func Select(caps *Capabilities) (model.Channel, []model.Channel) {
	primary := Primary(caps)
	return primary, FallbackChain(caps, primary)
}

// blocked applies the recipient safety policy. Unknown recipients are
// allowed through.
func blocked(caps *Capabilities) bool {
	if caps == nil {
		return false
	}
	return caps.Blocked || !caps.OptedIn
}

// Route drives a drafted message through channel assignment:
// drafted -> routing -> queued, or drafted -> routing -> blocked when the
// recipient opted out or is blocked. It returns false when the message ends
// up blocked.
func Route(m *model.Message, caps *Capabilities, now time.Time) bool {
	model.Transition(m, model.EventRoute, now)

	if blocked(caps) {
		slog.Info("message blocked by recipient policy", "message_id", m.ID, "recipient", m.Recipient)
		model.Transition(m, model.EventBlocked, now)
		return false
	}

	m.Channel, m.FallbackChannels = Select(caps)
	model.Transition(m, model.EventOK, now)
	return true
}
