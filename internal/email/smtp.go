package email

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"
)

type smtpDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPClient delivers through an SMTP relay.
type SMTPClient struct {
	dialer smtpDialer
	sender string
}

func NewSMTPClient(host string, port int, username, password, sender string) (*SMTPClient, error) {
	if host == "" || port == 0 {
		return nil, fmt.Errorf("smtp host and port are required")
	}
	if sender == "" {
		return nil, fmt.Errorf("smtp sender is required")
	}
	return &SMTPClient{
		dialer: gomail.NewDialer(host, port, username, password),
		sender: sender,
	}, nil
}

func (c *SMTPClient) Send(ctx context.Context, recipient string, msg Message) error {
	return c.SendFrom(ctx, recipient, msg, "")
}

// SendFrom dials per message. gomail has no context support, so a timeout
// or cancellation abandons the wait but not the dial.
func (c *SMTPClient) SendFrom(ctx context.Context, recipient string, msg Message, sender string) error {
	if recipient == "" {
		return fmt.Errorf("recipient is required")
	}
	from := strings.TrimSpace(sender)
	if from == "" {
		from = c.sender
	}

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", recipient)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}

	done := make(chan error, 1)
	go func() {
		done <- c.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send smtp email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
