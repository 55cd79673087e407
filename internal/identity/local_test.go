package identity

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/codr1/Courtside/internal/testutil"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestLocal(t *testing.T) *Local {
	t.Helper()

	local, err := NewLocal(testutil.NewTestDB(t), LocalOptions{
		Secret:   testSecret,
		TokenTTL: time.Hour,
		Issuer:   "Courtside",
		BaseURL:  "https://league.example.com/",
	})
	if err != nil {
		t.Fatalf("new local: %v", err)
	}
	return local
}

func TestNewLocalRejectsShortSecret(t *testing.T) {
	if _, err := NewLocal(testutil.NewTestDB(t), LocalOptions{Secret: []byte("short")}); err == nil {
		t.Fatal("expected error for short secret")
	}
}

func TestLocalCreateAndAuthenticate(t *testing.T) {
	local := newTestLocal(t)
	ctx := context.Background()

	subject, err := local.CreateUser(ctx, " Ann@Example.com ", "Ann", "first-serve-1")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if subject == "" {
		t.Fatal("expected subject")
	}

	if _, err := local.CreateUser(ctx, "ann@example.com", "Ann", "other-password"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	ident, err := local.Authenticate(ctx, "ANN@example.com", "first-serve-1")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if ident.Subject != subject || ident.Email != "ann@example.com" {
		t.Fatalf("unexpected identity: %+v", ident)
	}

	if _, err := local.Authenticate(ctx, "ann@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := local.Authenticate(ctx, "nobody@example.com", "first-serve-1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestLocalTokenRoundTrip(t *testing.T) {
	local := newTestLocal(t)
	ctx := context.Background()

	subject, err := local.CreateUser(ctx, "ann@example.com", "Ann", "first-serve-1")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	token, expiresAt, err := local.IssueToken(Identity{Subject: subject, Email: "ann@example.com", DisplayName: "Ann"})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("expected future expiry, got %v", expiresAt)
	}

	ident, err := local.Verify(ctx, token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ident.Subject != subject || ident.DisplayName != "Ann" {
		t.Fatalf("unexpected identity: %+v", ident)
	}

	other := &Local{db: local.db, opts: local.opts, now: local.now}
	other.opts.Secret = []byte("fedcba9876543210fedcba9876543210")
	forged, _, err := other.IssueToken(Identity{Subject: subject})
	if err != nil {
		t.Fatalf("issue forged token: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", forged},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := local.Verify(ctx, tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestLocalTokenExpires(t *testing.T) {
	local := newTestLocal(t)
	ctx := context.Background()

	subject, err := local.CreateUser(ctx, "ann@example.com", "Ann", "first-serve-1")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, _, err := local.IssueToken(Identity{Subject: subject})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	local.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	if _, err := local.Verify(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestLocalDeleteRevokesTokens(t *testing.T) {
	local := newTestLocal(t)
	ctx := context.Background()

	subject, err := local.CreateUser(ctx, "ann@example.com", "Ann", "first-serve-1")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, _, err := local.IssueToken(Identity{Subject: subject})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	if err := local.DeleteUser(ctx, subject); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := local.Verify(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after delete, got %v", err)
	}
	if err := local.DeleteUser(ctx, subject); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound on second delete, got %v", err)
	}
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()

	if !strings.HasPrefix(link, "https://league.example.com/auth/reset?token=") {
		t.Fatalf("unexpected reset link: %q", link)
	}
	parsed, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	return parsed.Query().Get("token")
}

func TestLocalPasswordReset(t *testing.T) {
	local := newTestLocal(t)
	ctx := context.Background()

	subject, err := local.CreateUser(ctx, "ann@example.com", "Ann", "first-serve-1")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	link, err := local.ResetPassword(ctx, subject, "ann@example.com")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	token := tokenFromLink(t, link)

	if err := local.CompleteReset(ctx, token, "second-serve-2"); err != nil {
		t.Fatalf("complete reset: %v", err)
	}
	if _, err := local.Authenticate(ctx, "ann@example.com", "second-serve-2"); err != nil {
		t.Fatalf("authenticate with new password: %v", err)
	}
	if _, err := local.Authenticate(ctx, "ann@example.com", "first-serve-1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password to fail, got %v", err)
	}

	if err := local.CompleteReset(ctx, token, "third-serve-3"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("expected ErrInvalidResetToken on reuse, got %v", err)
	}
	if err := local.CompleteReset(ctx, "unknown", "third-serve-3"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("expected ErrInvalidResetToken for unknown token, got %v", err)
	}

	if _, err := local.ResetPassword(ctx, "missing", "x@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestLocalPasswordResetExpires(t *testing.T) {
	local := newTestLocal(t)
	ctx := context.Background()

	subject, err := local.CreateUser(ctx, "ann@example.com", "Ann", "first-serve-1")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	link, err := local.ResetPassword(ctx, subject, "ann@example.com")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}

	local.now = func() time.Time { return time.Now().UTC().Add(ResetTokenTTL + time.Minute) }
	if err := local.CompleteReset(ctx, tokenFromLink(t, link), "second-serve-2"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("expected ErrInvalidResetToken for expired token, got %v", err)
	}
}
