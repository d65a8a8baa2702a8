package adapter

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// Email delivers messages over SMTP with STARTTLS.
type Email struct {
	addr string // host:port
	host string
	auth smtp.Auth
	from string
}

func NewEmail(addr, username, password, from string) *Email {
	host := addr
	if i := strings.IndexByte(addr, ':'); i >= 0 {
		host = addr[:i]
	}
	return &Email{
		addr: addr,
		host: host,
		auth: smtp.PlainAuth("", username, password, host),
		from: from,
	}
}

func (e *Email) Send(ctx context.Context, p Payload) (*Result, error) {
	if p.Recipient == "" {
		return &Result{Success: false, Error: "recipient email address required"}, nil
	}

	subject := p.Metadata["subject"]
	if subject == "" {
		subject = "New message"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.from)
	fmt.Fprintf(&b, "To: %s\r\n", p.Recipient)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(p.Text)

	// net/smtp has no context support; honor cancellation before the
	// session starts.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := smtp.SendMail(e.addr, e.auth, e.from, []string{p.Recipient}, []byte(b.String())); err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("smtp send failed: %v", err)}, nil
	}

	return &Result{Success: true, MessageID: "email-" + p.MessageID}, nil
}
