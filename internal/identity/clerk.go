package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/clerk/clerk-sdk-go/v2/jwt"
	"github.com/clerk/clerk-sdk-go/v2/user"
	"github.com/rs/zerolog/log"
)

// Clerk verifies Clerk session tokens and manages Clerk users.
type Clerk struct{}

// NewClerk sets the SDK's global secret key.
func NewClerk(secretKey string) *Clerk {
	if secretKey == "" {
		log.Warn().Msg("Clerk secret key not configured")
	}
	clerk.SetKey(secretKey)
	return &Clerk{}
}

func (c *Clerk) Name() string { return "clerk" }

func (c *Clerk) Verify(ctx context.Context, token string) (Identity, error) {
	claims, err := jwt.Verify(ctx, &jwt.VerifyParams{Token: token})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	clerkUser, err := user.Get(ctx, claims.Subject)
	if err != nil {
		return Identity{}, mapClerkError(err)
	}
	return Identity{
		Subject:     clerkUser.ID,
		Email:       primaryEmail(clerkUser),
		DisplayName: clerkDisplayName(clerkUser),
	}, nil
}

func (c *Clerk) CreateUser(ctx context.Context, email, displayName, password string) (string, error) {
	params := &user.CreateParams{
		EmailAddresses: &[]string{email},
		Password:       clerk.String(password),
	}
	if displayName != "" {
		params.FirstName = clerk.String(displayName)
	}
	created, err := user.Create(ctx, params)
	if err != nil {
		return "", mapClerkError(err)
	}
	return created.ID, nil
}

func (c *Clerk) DeleteUser(ctx context.Context, subject string) error {
	if _, err := user.Delete(ctx, subject); err != nil {
		return mapClerkError(err)
	}
	return nil
}

// ResetPassword is not offered; Clerk users reset from the hosted sign-in.
func (c *Clerk) ResetPassword(ctx context.Context, subject, email string) (string, error) {
	return "", ErrUnsupported
}

func primaryEmail(u *clerk.User) string {
	if u.PrimaryEmailAddressID != nil {
		for _, email := range u.EmailAddresses {
			if email.ID == *u.PrimaryEmailAddressID {
				return email.EmailAddress
			}
		}
	}
	if len(u.EmailAddresses) > 0 {
		return u.EmailAddresses[0].EmailAddress
	}
	return ""
}

func clerkDisplayName(u *clerk.User) string {
	var parts []string
	if u.FirstName != nil && *u.FirstName != "" {
		parts = append(parts, *u.FirstName)
	}
	if u.LastName != nil && *u.LastName != "" {
		parts = append(parts, *u.LastName)
	}
	return strings.Join(parts, " ")
}

func mapClerkError(err error) error {
	var apiErr *clerk.APIErrorResponse
	if !errors.As(err, &apiErr) {
		return err
	}
	if apiErr.HTTPStatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %v", ErrUserNotFound, err)
	}
	for _, e := range apiErr.Errors {
		if e.Code == "form_identifier_exists" {
			return fmt.Errorf("%w: %v", ErrUserExists, err)
		}
	}
	return err
}
