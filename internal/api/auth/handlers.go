package auth

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Courtside/internal/api/apiutil"
	"github.com/codr1/Courtside/internal/api/authz"
	"github.com/codr1/Courtside/internal/db/dbq"
	"github.com/codr1/Courtside/internal/email"
	"github.com/codr1/Courtside/internal/identity"
	"github.com/codr1/Courtside/internal/ratelimit"
)

const authQueryTimeout = 5 * time.Second

// Deps are the collaborators the auth handlers use. Local is set only when
// the local identity provider is configured.
type Deps struct {
	Queries    *dbq.Queries
	Provider   identity.Provider
	Local      *identity.Local
	Limiter    *ratelimit.Limiter
	Notifier   *email.Notifier
	TrustProxy bool
}

var (
	deps     Deps
	depsOnce sync.Once
)

func InitHandlers(d Deps) {
	if d.Queries == nil || d.Provider == nil {
		return
	}
	depsOnce.Do(func() {
		if d.Limiter == nil {
			d.Limiter = ratelimit.New(nil)
		}
		deps = d
	})
}

type signupRequest struct {
	Email           string `json:"email" validate:"required,email,max=254"`
	DisplayName     string `json:"display_name" validate:"required,max=80"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

type providerSignupRequest struct {
	DisplayName string `json:"display_name" validate:"omitempty,max=80"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type forgotRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (r *signupRequest) Normalize() {
	r.Email = apiutil.NormalizeEmail(r.Email)
	r.DisplayName = strings.TrimSpace(r.DisplayName)
}

func (r *loginRequest) Normalize()  { r.Email = apiutil.NormalizeEmail(r.Email) }
func (r *forgotRequest) Normalize() { r.Email = apiutil.NormalizeEmail(r.Email) }

type resetRequest struct {
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

type tokenResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	User      apiutil.UserView `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func ready(w http.ResponseWriter, r *http.Request) bool {
	if deps.Queries == nil || deps.Provider == nil {
		log.Ctx(r.Context()).Error().Msg("Auth handlers not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return false
	}
	return true
}

// /api/v1/auth/signup
func HandleSignup(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}
	if deps.Local != nil {
		handleLocalSignup(w, r)
		return
	}
	handleProviderSignup(w, r)
}

func handleLocalSignup(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	var req signupRequest
	if !apiutil.DecodeAndValidate(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), authQueryTimeout)
	defer cancel()

	if _, err := deps.Queries.GetUserByEmail(ctx, req.Email); err == nil {
		apiutil.WriteError(w, http.StatusConflict, "An account with that email already exists")
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		logger.Error().Err(err).Msg("Failed to check existing user")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	subject, err := deps.Local.CreateUser(ctx, req.Email, req.DisplayName, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrUserExists) {
			apiutil.WriteError(w, http.StatusConflict, "An account with that email already exists")
			return
		}
		logger.Error().Err(err).Msg("Failed to create credential")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	user, err := deps.Queries.CreateUser(ctx, dbq.CreateUserParams{
		ID:          subject,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Role:        authz.RoleUser,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		logger.Error().Err(err).Str("subject", subject).Msg("Failed to create user row")
		if delErr := deps.Local.DeleteUser(ctx, subject); delErr != nil {
			logger.Error().Err(delErr).Str("subject", subject).Msg("Failed to remove orphaned credential")
		}
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	writeToken(w, r, user, http.StatusCreated)
}

// handleProviderSignup creates the user row for a caller already signed up
// with the hosted provider. Repeating it returns the existing row.
func handleProviderSignup(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	ident, ok := authz.IdentityFromContext(r.Context())
	if !ok {
		apiutil.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req providerSignupRequest
	if r.ContentLength != 0 {
		if !apiutil.DecodeAndValidate(w, r, &req) {
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), authQueryTimeout)
	defer cancel()

	if user, err := deps.Queries.GetUser(ctx, ident.Subject); err == nil {
		_ = apiutil.WriteJSON(w, http.StatusOK, apiutil.NewUserView(user))
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		logger.Error().Err(err).Msg("Failed to load user")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = strings.TrimSpace(ident.DisplayName)
	}
	emailAddr := apiutil.NormalizeEmail(ident.Email)
	if emailAddr == "" {
		apiutil.WriteError(w, http.StatusBadRequest, "Your account has no email address")
		return
	}

	user, err := deps.Queries.CreateUser(ctx, dbq.CreateUserParams{
		ID:          ident.Subject,
		Email:       emailAddr,
		DisplayName: displayName,
		Role:        authz.RoleUser,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			apiutil.WriteError(w, http.StatusConflict, "An account with that email already exists")
			return
		}
		logger.Error().Err(err).Msg("Failed to create user row")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	logger.Info().Str("user_id", user.ID).Str("provider", deps.Provider.Name()).Msg("User signed up")
	_ = apiutil.WriteJSON(w, http.StatusCreated, apiutil.NewUserView(user))
}

// /api/v1/auth/login
func HandleLogin(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}
	logger := log.Ctx(r.Context())

	if deps.Local == nil {
		apiutil.WriteError(w, http.StatusNotImplemented, "Sign in through "+deps.Provider.Name())
		return
	}

	var req loginRequest
	if !apiutil.DecodeAndValidate(w, r, &req) {
		return
	}

	ip := ratelimit.GetClientIP(r, deps.TrustProxy)
	if result := deps.Limiter.CheckLogin(req.Email, ip); !result.Allowed {
		ratelimit.LogRateLimitExceeded("login", req.Email, ip, result.Reason)
		writeTooManyRequests(w, result.RetryAfter)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), authQueryTimeout)
	defer cancel()

	ident, err := deps.Local.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			if lockedOut := deps.Limiter.RecordLoginFailure(req.Email, ip); lockedOut {
				logger.Warn().Str("email", ratelimit.SanitizeIdentifier(req.Email)).Msg("Login locked out")
			}
			apiutil.WriteError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		logger.Error().Err(err).Msg("Failed to authenticate")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}
	deps.Limiter.ResetLoginFailures(req.Email)

	user, err := deps.Queries.GetUser(ctx, ident.Subject)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.Warn().Str("subject", ident.Subject).Msg("Credential without user row")
			apiutil.WriteError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		logger.Error().Err(err).Msg("Failed to load user")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}

	writeToken(w, r, user, http.StatusOK)
}

// /api/v1/auth/forgot
//
// The response never reveals whether the address has an account.
func HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}
	logger := log.Ctx(r.Context())

	var req forgotRequest
	if !apiutil.DecodeAndValidate(w, r, &req) {
		return
	}
	accepted := messageResponse{Message: "If that account exists, a password reset email is on its way."}

	ip := ratelimit.GetClientIP(r, deps.TrustProxy)
	if result := deps.Limiter.CheckResetRequest(req.Email, ip); !result.Allowed {
		ratelimit.LogRateLimitExceeded("password_reset", req.Email, ip, result.Reason)
		_ = apiutil.WriteJSON(w, http.StatusAccepted, accepted)
		return
	}
	deps.Limiter.RecordResetRequest(req.Email, ip)

	ctx, cancel := context.WithTimeout(r.Context(), authQueryTimeout)
	defer cancel()

	user, err := deps.Queries.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.Error().Err(err).Msg("Failed to look up user for password reset")
		}
		_ = apiutil.WriteJSON(w, http.StatusAccepted, accepted)
		return
	}

	link, err := deps.Provider.ResetPassword(ctx, user.ID, user.Email)
	switch {
	case err == nil:
	case errors.Is(err, identity.ErrUnsupported):
		logger.Info().Str("provider", deps.Provider.Name()).Msg("Password reset not supported by provider")
	default:
		logger.Error().Err(err).Str("user_id", user.ID).Msg("Failed to start password reset")
	}
	if link != "" {
		deps.Notifier.PasswordReset(r.Context(), user.Email, link, logger)
	}

	_ = apiutil.WriteJSON(w, http.StatusAccepted, accepted)
}

// /api/v1/auth/reset
func HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}
	logger := log.Ctx(r.Context())

	if deps.Local == nil {
		apiutil.WriteError(w, http.StatusNotImplemented, "Reset your password through "+deps.Provider.Name())
		return
	}

	var req resetRequest
	if !apiutil.DecodeAndValidate(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), authQueryTimeout)
	defer cancel()

	if err := deps.Local.CompleteReset(ctx, req.Token, req.Password); err != nil {
		if errors.Is(err, identity.ErrInvalidResetToken) {
			apiutil.WriteError(w, http.StatusBadRequest, "Reset link is invalid or has expired")
			return
		}
		logger.Error().Err(err).Msg("Failed to reset password")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to reset password")
		return
	}

	_ = apiutil.WriteJSON(w, http.StatusOK, messageResponse{Message: "Password updated"})
}

// /api/v1/me
func HandleMe(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}
	logger := log.Ctx(r.Context())

	authUser, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), authQueryTimeout)
	defer cancel()

	user, err := deps.Queries.GetUser(ctx, authUser.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, http.StatusNotFound, "User not found")
			return
		}
		logger.Error().Err(err).Msg("Failed to load current user")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load user")
		return
	}

	_ = apiutil.WriteJSON(w, http.StatusOK, apiutil.NewUserView(user))
}

func writeToken(w http.ResponseWriter, r *http.Request, user dbq.User, status int) {
	token, expiresAt, err := deps.Local.IssueToken(identity.Identity{
		Subject:     user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
	})
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to issue token")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}
	_ = apiutil.WriteJSON(w, status, tokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      apiutil.NewUserView(user),
	})
}

func writeTooManyRequests(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
	}
	apiutil.WriteError(w, http.StatusTooManyRequests, "Too many attempts, please try again later")
}
