// internal/api/notifications/handlers.go
package notifications

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Courtside/internal/api/apiutil"
	"github.com/codr1/Courtside/internal/db/dbq"
	"github.com/codr1/Courtside/internal/email"
	"github.com/codr1/Courtside/internal/league"
)

var (
	queries     *dbq.Queries
	service     *league.Service
	notifier    *email.Notifier
	queriesOnce sync.Once
)

const (
	notificationsQueryTimeout = 5 * time.Second
	notificationsListLimit    = 50
)

// InitHandlers wires the inbox. svc answers challenges from the inbox and
// n, which may be nil, e-mails the notifications that produces.
func InitHandlers(q *dbq.Queries, svc *league.Service, n *email.Notifier) {
	if q == nil {
		return
	}
	queriesOnce.Do(func() {
		queries = q
		service = svc
		notifier = n
	})
}

func loadQueries() *dbq.Queries {
	return queries
}

type countResponse struct {
	Unread int64 `json:"unread"`
}

// /api/v1/notifications/count
func HandleNotificationCount(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	user, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), notificationsQueryTimeout)
	defer cancel()

	count, err := q.CountUnreadNotifications(ctx, user.ID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to count notifications")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load notifications")
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, countResponse{Unread: count})
}

// /api/v1/notifications
func HandleNotificationsList(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	user, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), notificationsQueryTimeout)
	defer cancel()

	notifications, err := q.ListNotificationsForUser(ctx, dbq.ListNotificationsForUserParams{
		UserID: user.ID,
		Limit:  notificationsListLimit,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list notifications")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load notifications")
		return
	}

	views := make([]apiutil.NotificationView, 0, len(notifications))
	for _, n := range notifications {
		views = append(views, apiutil.NewNotificationView(n))
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, views)
}

// /api/v1/notifications/{id}/read
func HandleNotificationRead(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	user, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}

	id, err := apiutil.PathID(r.PathValue("id"))
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "Invalid notification ID")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), notificationsQueryTimeout)
	defer cancel()

	key := dbq.GetNotificationForUserParams{ID: id, UserID: user.ID}
	affected, err := q.MarkNotificationRead(ctx, key)
	if err != nil {
		logger.Error().Err(err).Int64("id", id).Msg("Failed to mark notification as read")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to update notification")
		return
	}
	// Other users' notifications look the same as missing ones.
	if affected == 0 {
		apiutil.WriteError(w, http.StatusNotFound, "Notification not found")
		return
	}

	notification, err := q.GetNotificationForUser(ctx, key)
	if err != nil {
		logger.Error().Err(err).Int64("id", id).Msg("Failed to reload notification")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to update notification")
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, apiutil.NewNotificationView(notification))
}

// /api/v1/notifications/{id}/accept
func HandleNotificationAccept(w http.ResponseWriter, r *http.Request) {
	answerChallenge(w, r, true)
}

// /api/v1/notifications/{id}/decline
func HandleNotificationDecline(w http.ResponseWriter, r *http.Request) {
	answerChallenge(w, r, false)
}

func answerChallenge(w http.ResponseWriter, r *http.Request, accept bool) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil || service == nil {
		logger.Error().Msg("Notification handlers not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	user, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}

	id, err := apiutil.PathID(r.PathValue("id"))
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "Invalid notification ID")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), notificationsQueryTimeout)
	defer cancel()

	notification, err := q.GetNotificationForUser(ctx, dbq.GetNotificationForUserParams{ID: id, UserID: user.ID})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, http.StatusNotFound, "Notification not found")
			return
		}
		logger.Error().Err(err).Int64("id", id).Msg("Failed to load notification")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load notification")
		return
	}
	if notification.Type != league.NotificationChallenge || !notification.MatchID.Valid {
		apiutil.WriteError(w, http.StatusBadRequest, "Notification is not a challenge")
		return
	}
	if notification.Read {
		apiutil.WriteError(w, http.StatusConflict, "Challenge has already been answered")
		return
	}

	outcome, err := service.RespondToChallenge(ctx, user.ID, notification.MatchID.Int64, accept)
	if err != nil {
		apiutil.WriteLeagueError(w, r, err, "Failed to respond to challenge")
		return
	}
	notifier.Notifications(r.Context(), outcome.Notifications, logger)

	logger.Info().
		Int64("notification_id", id).
		Int64("match_id", outcome.Match.ID).
		Str("status", outcome.Match.Status).
		Msg("Challenge answered from inbox")
	_ = apiutil.WriteJSON(w, http.StatusOK, apiutil.NewMatchView(outcome.Match))
}
