package authz

import (
	"context"
	"errors"

	"github.com/codr1/Courtside/internal/identity"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// AuthUser is the caller as stored in the users table. Role always comes
// from the stored row, never from a token claim.
type AuthUser struct {
	ID    string
	Email string
	Role  string
}

type userContextKey struct{}
type identityContextKey struct{}

func ContextWithUser(ctx context.Context, user *AuthUser) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext retrieves the AuthUser stored in ctx.
// It returns nil if ctx is nil, if no user is stored, or if the stored value has a different type.
func UserFromContext(ctx context.Context) *AuthUser {
	if ctx == nil {
		return nil
	}

	user, ok := ctx.Value(userContextKey{}).(*AuthUser)
	if !ok {
		return nil
	}

	return user
}

// ContextWithIdentity stores a verified token identity. It is set even when
// the subject has no user row yet, which is how signup with a hosted
// provider finds the caller.
func ContextWithIdentity(ctx context.Context, ident identity.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, ident)
}

func IdentityFromContext(ctx context.Context) (identity.Identity, bool) {
	if ctx == nil {
		return identity.Identity{}, false
	}
	ident, ok := ctx.Value(identityContextKey{}).(identity.Identity)
	return ident, ok
}

func IsAdmin(user *AuthUser) bool {
	return user != nil && user.Role == RoleAdmin
}

// ValidRole reports whether role can be assigned to a user.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleUser
}

// RequireRole returns ErrUnauthenticated without a user in ctx and
// ErrForbidden when the user has a different role.
func RequireRole(ctx context.Context, role string) error {
	user := UserFromContext(ctx)
	if user == nil {
		return ErrUnauthenticated
	}
	if user.Role != role {
		return ErrForbidden
	}
	return nil
}
