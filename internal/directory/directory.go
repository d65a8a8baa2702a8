// Package directory stores contacts and answers capability lookups for the
// channel selector.
package directory

import (
	"context"

	"github.com/LeventeLantos/outbound-router/internal/model"
	"github.com/LeventeLantos/outbound-router/internal/routing"
)

// Contact is a directory entry. Phone and Email are empty when unknown.
type Contact struct {
	ID                   string
	Name                 string
	Phone                string
	Email                string
	RichChatCapable      bool
	RichMessagingCapable bool
	Preferred            model.Channel
	OptedIn              bool
	Blocked              bool
}

// Directory is the lookup contract the delivery core depends on. A nil
// snapshot with a nil error means the recipient is unknown.
type Directory interface {
	LookupCapabilities(ctx context.Context, recipient string) (*routing.Capabilities, error)
}

// Store adds the write operations the directory API exposes.
type Store interface {
	Directory
	Upsert(ctx context.Context, c Contact) error
	SetOptIn(ctx context.Context, recipient string, optedIn bool) error
}
