// internal/api/middleware.go
package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/codr1/Courtside/internal/api/apiutil"
	"github.com/codr1/Courtside/internal/api/authz"
	"github.com/codr1/Courtside/internal/db/dbq"
	"github.com/codr1/Courtside/internal/identity"
	"github.com/codr1/Courtside/internal/ratelimit"
)

type Middleware func(http.Handler) http.Handler

type requestIDKey struct{}

const authLookupTimeout = 5 * time.Second

func ChainMiddleware(h http.Handler, middleware ...Middleware) http.Handler {
	for _, m := range middleware {
		h = m(h)
	}
	return h
}

// RequestIDFromContext returns the id assigned by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func WithLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create response wrapper to capture status code
		wrapped := wrapResponseWriter(w)

		next.ServeHTTP(wrapped, r)
		log.Ctx(r.Context()).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.status).
			Dur("duration", time.Since(start)).
			Msg("Request completed")
	})
}

func WithRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger := log.Ctx(r.Context())
				// Log the full stack trace
				stack := debug.Stack()
				logger.Error().
					Interface("error", err).
					Str("stack", string(stack)).
					Msg("Panic recovered")

				apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()

		// Create a logger with the request ID
		logger := log.With().Str("request_id", requestID).Logger()

		// Add both the request ID and logger to context
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		ctx = logger.WithContext(ctx)

		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithCORS allows browser clients from origins to call the API with a
// bearer token.
func WithCORS(origins []string) Middleware {
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         600,
	})
	return c.Handler
}

// WithAuth verifies an "Authorization: Bearer" token and loads the caller's
// user row. Requests without a usable token continue anonymously.
func WithAuth(verifier identity.Verifier, queries *dbq.Queries) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			logger := log.Ctx(r.Context())
			ctx, cancel := context.WithTimeout(r.Context(), authLookupTimeout)
			defer cancel()

			ident, err := verifier.Verify(ctx, token)
			if err != nil {
				if errors.Is(err, identity.ErrInvalidToken) {
					logger.Debug().Err(err).Msg("Ignoring invalid bearer token")
					next.ServeHTTP(w, r)
					return
				}
				logger.Error().Err(err).Msg("Failed to verify bearer token")
				apiutil.WriteError(w, http.StatusServiceUnavailable, "Failed to verify credentials")
				return
			}

			reqCtx := authz.ContextWithIdentity(r.Context(), ident)
			user, err := queries.GetUser(ctx, ident.Subject)
			switch {
			case err == nil:
				reqCtx = authz.ContextWithUser(reqCtx, &authz.AuthUser{
					ID:    user.ID,
					Email: user.Email,
					Role:  user.Role,
				})
				userLogger := logger.With().Str("user_id", user.ID).Logger()
				reqCtx = userLogger.WithContext(reqCtx)
			case errors.Is(err, sql.ErrNoRows):
				logger.Debug().Str("subject", ident.Subject).Msg("Verified token has no user row")
			default:
				logger.Error().Err(err).Msg("Failed to load authenticated user")
				apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
				return
			}

			next.ServeHTTP(w, r.WithContext(reqCtx))
		})
	}
}

// RequireUser rejects anonymous requests with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := apiutil.RequireUser(w, r); !ok {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithAdminAuth rejects anonymous requests with 401 and non-admins with 403.
func WithAdminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := apiutil.RequireAdmin(w, r); !ok {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithRateLimit answers 429 once a client IP exhausts its bucket.
func WithRateLimit(throttle *ratelimit.Throttle, trustProxy bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ratelimit.GetClientIP(r, trustProxy)
			if !throttle.Allow(ip) {
				log.Ctx(r.Context()).Warn().Str("ip", ip).Str("path", r.URL.Path).Msg("Request throttled")
				w.Header().Set("Retry-After", "60")
				apiutil.WriteError(w, http.StatusTooManyRequests, "Too many requests, please try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// responseWriter wrapper to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
