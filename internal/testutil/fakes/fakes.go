// Package fakes holds test doubles for the e-mail and identity providers.
package fakes

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/codr1/Courtside/internal/email"
	"github.com/codr1/Courtside/internal/identity"
)

type SentEmail struct {
	Recipient string
	Sender    string
	Message   email.Message
}

// EmailSender records messages on a buffered channel.
type EmailSender struct {
	Sent chan SentEmail
}

func NewEmailSender() *EmailSender {
	return &EmailSender{Sent: make(chan SentEmail, 20)}
}

func (f *EmailSender) Send(ctx context.Context, recipient string, msg email.Message) error {
	return f.SendFrom(ctx, recipient, msg, "")
}

func (f *EmailSender) SendFrom(ctx context.Context, recipient string, msg email.Message, sender string) error {
	f.Sent <- SentEmail{Recipient: recipient, Sender: sender, Message: msg}
	return nil
}

// Wait returns the next sent e-mail or fails the test after a second.
func (f *EmailSender) Wait(t *testing.T) SentEmail {
	t.Helper()
	select {
	case sent := <-f.Sent:
		return sent
	case <-time.After(time.Second):
		t.Fatal("expected an email to be sent")
		return SentEmail{}
	}
}

// ExpectNone fails the test if an e-mail arrives within a short window.
func (f *EmailSender) ExpectNone(t *testing.T) {
	t.Helper()
	select {
	case sent := <-f.Sent:
		t.Fatalf("unexpected email to %s: %s", sent.Recipient, sent.Message.Subject)
	case <-time.After(50 * time.Millisecond):
	}
}

// Provider is an in-memory identity provider. Tokens map to identities.
type Provider struct {
	mu        sync.Mutex
	Tokens    map[string]identity.Identity
	Users     map[string]string // subject -> email
	Deleted   []string
	ResetLink string
	ResetErr  error
	CreateErr error
	DeleteErr error
	next      int
}

func NewProvider() *Provider {
	return &Provider{
		Tokens: make(map[string]identity.Identity),
		Users:  make(map[string]string),
	}
}

func (p *Provider) Name() string { return "fake" }

func (p *Provider) Verify(ctx context.Context, token string) (identity.Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ident, ok := p.Tokens[token]
	if !ok {
		return identity.Identity{}, identity.ErrInvalidToken
	}
	return ident, nil
}

func (p *Provider) CreateUser(ctx context.Context, emailAddr, displayName, password string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CreateErr != nil {
		return "", p.CreateErr
	}
	for _, existing := range p.Users {
		if existing == emailAddr {
			return "", identity.ErrUserExists
		}
	}
	p.next++
	subject := "fake-" + string(rune('a'+p.next-1))
	p.Users[subject] = emailAddr
	return subject, nil
}

func (p *Provider) DeleteUser(ctx context.Context, subject string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.DeleteErr != nil {
		return p.DeleteErr
	}
	if _, ok := p.Users[subject]; !ok {
		return identity.ErrUserNotFound
	}
	delete(p.Users, subject)
	p.Deleted = append(p.Deleted, subject)
	return nil
}

func (p *Provider) ResetPassword(ctx context.Context, subject, emailAddr string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ResetErr != nil {
		return "", p.ResetErr
	}
	return p.ResetLink, nil
}
