package dispatch

import (
	"context"
	"fmt"
	"net/smtp"
)

// Email sends deployment messages as plain-text mail via an SMTP relay.
type Email struct {
	host     string
	port     string
	username string
	password string
	from     string
	to       []string
}

// NewEmail builds an Email notifier.
func NewEmail(host, port, username, password, from string, to []string) *Email {
	return &Email{host: host, port: port, username: username, password: password, from: from, to: to}
}

func (e *Email) Name() string { return "email" }

func (e *Email) Send(ctx context.Context, msg Message) error {
	auth := smtp.PlainAuth("", e.username, e.password, e.host)
	body := fmt.Sprintf("Subject: %s\r\n\r\n%s\r\n", msg.Title, msg.Body)
	addr := fmt.Sprintf("%s:%s", e.host, e.port)
	return smtp.SendMail(addr, auth, e.from, e.to, []byte(body))
}
