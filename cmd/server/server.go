// cmd/server/server.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Courtside/internal/api"
	"github.com/codr1/Courtside/internal/api/admin"
	"github.com/codr1/Courtside/internal/api/auth"
	"github.com/codr1/Courtside/internal/api/leaderboard"
	"github.com/codr1/Courtside/internal/api/matches"
	"github.com/codr1/Courtside/internal/api/notifications"
	"github.com/codr1/Courtside/internal/api/players"
	"github.com/codr1/Courtside/internal/avatars"
	"github.com/codr1/Courtside/internal/config"
	"github.com/codr1/Courtside/internal/db"
	"github.com/codr1/Courtside/internal/email"
	"github.com/codr1/Courtside/internal/identity"
	"github.com/codr1/Courtside/internal/league"
	"github.com/codr1/Courtside/internal/ratelimit"
)

const (
	authRequestsPerMinute = 10
	authBurst             = 5
)

// application holds the long-lived services the handlers share.
type application struct {
	cfg       *config.Config
	db        *db.DB
	provider  identity.Provider
	local     *identity.Local
	limiter   *ratelimit.Limiter
	throttle  *ratelimit.Throttle
	notifier  *email.Notifier
	avatars   avatars.Store
	league    *league.Service
	closeOnce sync.Once
}

func newApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	database, err := db.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	provider, err := identity.New(ctx, cfg, database)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("identity provider: %w", err)
	}
	local, _ := provider.(*identity.Local)

	sender, err := email.New(ctx, cfg)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("email sender: %w", err)
	}
	if sender == nil {
		log.Warn().Msg("Email disabled; notifications will only appear in the inbox")
	}

	store, err := avatars.New(ctx, cfg)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("avatar store: %w", err)
	}

	return &application{
		cfg:      cfg,
		db:       database,
		provider: provider,
		local:    local,
		limiter:  ratelimit.New(nil),
		throttle: ratelimit.NewThrottle(authRequestsPerMinute, authBurst, nil),
		notifier: email.NewNotifier(sender, database.Queries, email.NotifierOptions{
			From:       cfg.Email.From,
			BaseURL:    cfg.App.BaseURL,
			LeagueName: cfg.App.Name,
		}),
		avatars: store,
		league:  league.NewService(database),
	}, nil
}

func (a *application) close() {
	a.closeOnce.Do(func() {
		a.limiter.Close()
		if err := a.db.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	})
}

func newServer(app *application) *http.Server {
	router := http.NewServeMux()

	// Setup middleware chain
	handler := api.ChainMiddleware(
		router,
		api.WithAuth(app.provider, app.db.Queries),
		api.WithLogging,
		api.WithRecovery,
		api.WithCORS(app.cfg.App.CORSOrigins),
		api.WithRequestID,
	)

	// Register routes
	registerRoutes(router, app)

	return &http.Server{
		Addr:         ":" + strconv.Itoa(app.cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func initHandlers(app *application) {
	queries := app.db.Queries

	auth.InitHandlers(auth.Deps{
		Queries:    queries,
		Provider:   app.provider,
		Local:      app.local,
		Limiter:    app.limiter,
		Notifier:   app.notifier,
		TrustProxy: app.cfg.App.TrustProxy,
	})
	players.InitHandlers(queries, app.avatars, app.cfg.Avatars.MaxUploadMB<<20)
	matches.InitHandlers(matches.Deps{
		Queries:  queries,
		League:   app.league,
		Notifier: app.notifier,
	})
	notifications.InitHandlers(queries, app.league, app.notifier)
	leaderboard.InitHandlers(queries)
	admin.InitHandlers(admin.Deps{
		DB:        app.db,
		League:    app.league,
		Directory: app.provider,
		Notifier:  app.notifier,
	})
}

func registerRoutes(mux *http.ServeMux, app *application) {
	initHandlers(app)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	throttled := func(h http.HandlerFunc) http.Handler {
		return api.WithRateLimit(app.throttle, app.cfg.App.TrustProxy)(h)
	}
	user := func(h http.HandlerFunc) http.Handler {
		return api.RequireUser(h)
	}
	adminOnly := func(h http.HandlerFunc) http.Handler {
		return api.WithAdminAuth(h)
	}

	// Auth routes
	mux.Handle("POST /api/v1/auth/signup", throttled(auth.HandleSignup))
	mux.Handle("POST /api/v1/auth/login", throttled(auth.HandleLogin))
	mux.Handle("POST /api/v1/auth/forgot", throttled(auth.HandleForgotPassword))
	mux.Handle("POST /api/v1/auth/reset", throttled(auth.HandleResetPassword))

	// Profile routes
	mux.Handle("GET /api/v1/me", user(auth.HandleMe))
	mux.Handle("PUT /api/v1/me", user(players.HandleUpdateProfile))
	mux.Handle("POST /api/v1/me/avatar", user(players.HandleUploadAvatar))
	mux.Handle("GET /api/v1/players", user(players.HandleListPlayers))
	mux.Handle("GET /api/v1/players/{id}", user(players.HandleGetPlayer))

	// Match routes
	mux.Handle("POST /api/v1/matches", user(matches.HandleCreateChallenge))
	mux.Handle("GET /api/v1/matches", user(matches.HandleListMatches))
	mux.Handle("GET /api/v1/matches/{id}", user(matches.HandleGetMatch))
	mux.Handle("POST /api/v1/matches/{id}/accept", user(matches.HandleAcceptChallenge))
	mux.Handle("POST /api/v1/matches/{id}/decline", user(matches.HandleDeclineChallenge))
	mux.Handle("POST /api/v1/matches/{id}/score", user(matches.HandleReportScore))
	mux.Handle("GET /api/v1/challenges", user(matches.HandleListChallenges))
	mux.Handle("GET /api/v1/leaderboard", user(leaderboard.HandleLeaderboard))

	// Notification routes
	mux.Handle("GET /api/v1/notifications", user(notifications.HandleNotificationsList))
	mux.Handle("GET /api/v1/notifications/count", user(notifications.HandleNotificationCount))
	mux.Handle("POST /api/v1/notifications/{id}/read", user(notifications.HandleNotificationRead))
	mux.Handle("POST /api/v1/notifications/{id}/accept", user(notifications.HandleNotificationAccept))
	mux.Handle("POST /api/v1/notifications/{id}/decline", user(notifications.HandleNotificationDecline))

	// Admin routes
	mux.Handle("GET /api/v1/admin/users", adminOnly(admin.HandleListUsers))
	mux.Handle("POST /api/v1/admin/users", adminOnly(admin.HandleInviteUser))
	mux.Handle("PATCH /api/v1/admin/users/{uid}", adminOnly(admin.HandleSetRole))
	mux.Handle("DELETE /api/v1/admin/users/{uid}", adminOnly(admin.HandleDeleteUser))
	mux.Handle("POST /api/v1/admin/users/{uid}/reset", adminOnly(admin.HandleResetUserPassword))
	mux.Handle("GET /api/v1/admin/matches", adminOnly(admin.HandleListMatches))
	mux.Handle("PATCH /api/v1/admin/matches/{id}", adminOnly(admin.HandleReviewMatch))
	mux.Handle("GET /api/v1/admin/dashboard", adminOnly(admin.HandleDashboard))
	mux.Handle("GET /api/v1/admin/settings", adminOnly(admin.HandleGetSettings))
	mux.Handle("PUT /api/v1/admin/settings", adminOnly(admin.HandleUpdateSettings))
	mux.Handle("GET /api/v1/admin/logs", adminOnly(admin.HandleListLogs))

	// Locally stored avatars
	if local, ok := app.avatars.(*avatars.LocalStore); ok {
		fs := http.FileServer(http.Dir(local.Dir()))
		mux.Handle("GET "+avatars.LocalURLPrefix+"/", http.StripPrefix(avatars.LocalURLPrefix+"/", fs))
	}
}
