package email

import (
	"context"
	"fmt"

	"github.com/codr1/Courtside/internal/config"
)

// Message is one e-mail. HTML is optional; Body is always sent as the
// plain-text part.
type Message struct {
	Subject string
	Body    string
	HTML    string
}

// EmailSender provides a testable abstraction over SES and SMTP delivery.
type EmailSender interface {
	Send(ctx context.Context, recipient string, msg Message) error
	SendFrom(ctx context.Context, recipient string, msg Message, sender string) error
}

// New builds the sender selected in cfg, or nil when e-mail is disabled.
func New(ctx context.Context, cfg *config.Config) (EmailSender, error) {
	switch cfg.Email.Provider {
	case config.EmailSES:
		return NewSESClient(ctx, cfg.Secrets.AWSAccessKeyID, cfg.Secrets.AWSSecretAccessKey, cfg.Email.Region, cfg.Email.From)
	case config.EmailSMTP:
		return NewSMTPClient(cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.SMTPUsername, cfg.Secrets.SMTPPassword, cfg.Email.From)
	case config.EmailNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported email provider: %s", cfg.Email.Provider)
	}
}
