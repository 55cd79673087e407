package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/codr1/Courtside/internal/db"
	"github.com/codr1/Courtside/internal/db/dbq"
)

const (
	resetTokenBytes = 32
	ResetTokenTTL   = time.Hour
)

type LocalOptions struct {
	Secret   []byte
	TokenTTL time.Duration
	Issuer   string
	// BaseURL prefixes password reset links.
	BaseURL string
}

// Local keeps bcrypt credentials in the league database and issues HS256
// bearer tokens.
type Local struct {
	db   *db.DB
	opts LocalOptions
	now  func() time.Time
}

type localClaims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func NewLocal(database *db.DB, opts LocalOptions) (*Local, error) {
	if database == nil {
		return nil, errors.New("local identity requires a database")
	}
	if len(opts.Secret) < 32 {
		return nil, errors.New("local identity secret must be at least 32 bytes")
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	if opts.Issuer == "" {
		opts.Issuer = "courtside"
	}
	return &Local{
		db:   database,
		opts: opts,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (l *Local) Name() string { return "local" }

// IssueToken signs a bearer token for ident.
func (l *Local) IssueToken(ident Identity) (string, time.Time, error) {
	now := l.now()
	expiresAt := now.Add(l.opts.TokenTTL)
	claims := localClaims{
		Email: ident.Email,
		Name:  ident.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ident.Subject,
			Issuer:    l.opts.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(l.opts.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks the signature and expiry, and that the credential still
// exists so deleted accounts lose access immediately.
func (l *Local) Verify(ctx context.Context, token string) (Identity, error) {
	var claims localClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return l.opts.Secret, nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(l.opts.Issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithTimeFunc(l.now),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}

	cred, err := l.db.Queries.GetLocalCredential(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Identity{}, ErrInvalidToken
		}
		return Identity{}, fmt.Errorf("load credential: %w", err)
	}

	return Identity{Subject: cred.Subject, Email: cred.Email, DisplayName: claims.Name}, nil
}

// Authenticate checks an email and password pair.
func (l *Local) Authenticate(ctx context.Context, email, password string) (Identity, error) {
	cred, err := l.db.Queries.GetLocalCredentialByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Identity{}, ErrInvalidCredentials
		}
		return Identity{}, fmt.Errorf("load credential: %w", err)
	}
	if !VerifyPassword(cred.PasswordHash, password) {
		return Identity{}, ErrInvalidCredentials
	}
	return Identity{Subject: cred.Subject, Email: cred.Email}, nil
}

func (l *Local) CreateUser(ctx context.Context, email, displayName, password string) (string, error) {
	email = normalizeEmail(email)
	if _, err := l.db.Queries.GetLocalCredentialByEmail(ctx, email); err == nil {
		return "", ErrUserExists
	} else if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("check credential: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	subject := uuid.NewString()
	if err := l.db.Queries.CreateLocalCredential(ctx, dbq.CreateLocalCredentialParams{
		Subject:      subject,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    l.now(),
	}); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return "", ErrUserExists
		}
		return "", fmt.Errorf("create credential: %w", err)
	}
	return subject, nil
}

func (l *Local) DeleteUser(ctx context.Context, subject string) error {
	affected, err := l.db.Queries.DeleteLocalCredential(ctx, subject)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ResetPassword stores a single-use reset token and returns the link that
// carries it. Only the token's hash is kept.
func (l *Local) ResetPassword(ctx context.Context, subject, email string) (string, error) {
	if _, err := l.db.Queries.GetLocalCredential(ctx, subject); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("load credential: %w", err)
	}

	raw := make([]byte, resetTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	now := l.now()
	if err := l.db.Queries.CreatePasswordReset(ctx, dbq.CreatePasswordResetParams{
		TokenHash: hashResetToken(token),
		Subject:   subject,
		ExpiresAt: now.Add(ResetTokenTTL),
		CreatedAt: now,
	}); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}

	return strings.TrimRight(l.opts.BaseURL, "/") + "/auth/reset?token=" + url.QueryEscape(token), nil
}

// CompleteReset sets a new password using a reset token. A token works once.
func (l *Local) CompleteReset(ctx context.Context, token, newPassword string) error {
	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return l.db.RunInTx(ctx, func(tx *db.DB) error {
		now := l.now()
		reset, err := tx.Queries.GetPasswordReset(ctx, hashResetToken(token))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrInvalidResetToken
			}
			return fmt.Errorf("load reset token: %w", err)
		}
		if reset.UsedAt.Valid || !now.Before(reset.ExpiresAt) {
			return ErrInvalidResetToken
		}

		used, err := tx.Queries.MarkPasswordResetUsed(ctx, dbq.MarkPasswordResetUsedParams{
			TokenHash: reset.TokenHash,
			UsedAt:    now,
		})
		if err != nil {
			return fmt.Errorf("mark reset token used: %w", err)
		}
		if used == 0 {
			return ErrInvalidResetToken
		}

		updated, err := tx.Queries.UpdateLocalPassword(ctx, dbq.UpdateLocalPasswordParams{
			Subject:      reset.Subject,
			PasswordHash: hash,
			UpdatedAt:    now,
		})
		if err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if updated == 0 {
			return ErrInvalidResetToken
		}
		return nil
	})
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
