// internal/api/admin/matches.go
package admin

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Courtside/internal/api/apiutil"
	"github.com/codr1/Courtside/internal/db/dbq"
	"github.com/codr1/Courtside/internal/league"
)

type reviewRequest struct {
	Status string `json:"status" validate:"required,oneof=approved rejected"`
}

// GET /api/v1/admin/matches?status=pending
func HandleListMatches(w http.ResponseWriter, r *http.Request) {
	if _, ok := begin(w, r); !ok {
		return
	}

	status := strings.TrimSpace(r.URL.Query().Get("status"))
	if status == "" {
		status = league.StatusPending
	}
	if !league.ValidStatus(status) {
		apiutil.WriteValidationError(w, apiutil.FieldError{Field: "status", Reason: "is not a known match status"})
		return
	}
	limit, err := apiutil.ParseLimit(r.URL.Query().Get("limit"), defaultListLimit, maxListLimit)
	if err != nil {
		apiutil.WriteValidationError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), adminQueryTimeout)
	defer cancel()

	matches, err := deps.DB.Queries.ListMatchesByStatus(ctx, dbq.ListMatchesByStatusParams{
		Status: status,
		Limit:  limit,
	})
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("status", status).Msg("Failed to list matches")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load matches")
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, apiutil.NewMatchViews(matches))
}

// PATCH /api/v1/admin/matches/{id}
func HandleReviewMatch(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	actor, ok := begin(w, r)
	if !ok {
		return
	}
	id, err := apiutil.PathID(r.PathValue("id"))
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "Invalid match id")
		return
	}

	var req reviewRequest
	if !apiutil.DecodeAndValidate(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), adminQueryTimeout)
	defer cancel()

	outcome, err := deps.League.ReviewMatch(ctx, actor.ID, id, req.Status)
	if err != nil {
		apiutil.WriteLeagueError(w, r, err, "Failed to update match")
		return
	}
	deps.Notifier.Notifications(r.Context(), outcome.Notifications, logger)

	logger.Info().Int64("match_id", id).Str("status", req.Status).Msg("Match reviewed")
	_ = apiutil.WriteJSON(w, http.StatusOK, apiutil.NewMatchView(outcome.Match))
}
