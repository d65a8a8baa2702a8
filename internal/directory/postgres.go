package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/LeventeLantos/outbound-router/internal/model"
	"github.com/LeventeLantos/outbound-router/internal/routing"
)

// PostgresDirectory backs the directory with a contacts table.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) LookupCapabilities(ctx context.Context, recipient string) (*routing.Capabilities, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT phone, email, rich_chat_capable, rich_messaging_capable,
		       preferred_channel, opted_in, blocked
		FROM contacts
		WHERE phone = $1 OR email = $1
	`, recipient)

	var (
		phone, email, preferred sql.NullString
		richChat, richMsg       bool
		optedIn, blocked        bool
	)
	err := row.Scan(&phone, &email, &richChat, &richMsg, &preferred, &optedIn, &blocked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup capabilities for %q: %w", recipient, err)
	}

	caps := &routing.Capabilities{
		RichChat:       richChat,
		RichMessaging:  richMsg,
		Email:          email.Valid && email.String != "",
		BasicMessaging: phone.Valid && phone.String != "",
		OptedIn:        optedIn,
		Blocked:        blocked,
	}
	if preferred.Valid {
		caps.Preferred = model.Channel(preferred.String)
	}
	return caps, nil
}

func (d *PostgresDirectory) Upsert(ctx context.Context, c Contact) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO contacts (
			id, name, phone, email, rich_chat_capable, rich_messaging_capable,
			preferred_channel, opted_in, blocked, updated_at
		) VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, NULLIF($7, ''), $8, $9, now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			rich_chat_capable = EXCLUDED.rich_chat_capable,
			rich_messaging_capable = EXCLUDED.rich_messaging_capable,
			preferred_channel = EXCLUDED.preferred_channel,
			opted_in = EXCLUDED.opted_in,
			blocked = EXCLUDED.blocked,
			updated_at = now()
	`, c.ID, c.Name, c.Phone, c.Email, c.RichChatCapable, c.RichMessagingCapable,
		string(c.Preferred), c.OptedIn, c.Blocked)
	if err != nil {
		return fmt.Errorf("upsert contact %s: %w", c.ID, err)
	}
	return nil
}

func (d *PostgresDirectory) SetOptIn(ctx context.Context, recipient string, optedIn bool) error {
	res, err := d.db.ExecContext(ctx, `
		UPDATE contacts
		SET opted_in = $2, updated_at = now()
		WHERE phone = $1 OR email = $1
	`, recipient, optedIn)
	if err != nil {
		return fmt.Errorf("set opt-in for %q: %w", recipient, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no contact found for %q", recipient)
	}
	return nil
}
