// Package identity verifies bearer tokens and manages accounts with the
// configured identity provider.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/codr1/Courtside/internal/config"
	"github.com/codr1/Courtside/internal/db"
)

var (
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("identity user not found")
	ErrUserExists         = errors.New("identity user already exists")
	ErrUnsupported        = errors.New("operation not supported by identity provider")
	ErrInvalidResetToken  = errors.New("reset link is invalid or has expired")
)

// Identity is what a verified token says about its bearer.
type Identity struct {
	Subject     string
	Email       string
	DisplayName string
}

type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// Directory manages accounts on behalf of admins. ResetPassword returns a
// link to send to the user, or "" when the provider delivers the reset itself.
type Directory interface {
	CreateUser(ctx context.Context, email, displayName, password string) (string, error)
	DeleteUser(ctx context.Context, subject string) error
	ResetPassword(ctx context.Context, subject, email string) (string, error)
}

type Provider interface {
	Verifier
	Directory
	Name() string
}

// New builds the provider selected in cfg. The local provider stores its
// credentials in database.
func New(ctx context.Context, cfg *config.Config, database *db.DB) (Provider, error) {
	switch cfg.Identity.Provider {
	case config.IdentityLocal:
		return NewLocal(database, LocalOptions{
			Secret:   []byte(cfg.Secrets.AppSecretKey),
			TokenTTL: cfg.Identity.TokenTTL,
			Issuer:   cfg.App.Name,
			BaseURL:  cfg.App.BaseURL,
		})
	case config.IdentityFirebase:
		return NewFirebase(ctx, cfg.Identity.FirebaseProjectID, cfg.Secrets.FirebaseCredentialsJSON)
	case config.IdentityCognito:
		return NewCognito(ctx, cfg.Identity.CognitoPoolID, cfg.Identity.CognitoClientID)
	case config.IdentityClerk:
		return NewClerk(cfg.Secrets.ClerkSecretKey), nil
	default:
		return nil, fmt.Errorf("unsupported identity provider: %s", cfg.Identity.Provider)
	}
}
