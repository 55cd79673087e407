// internal/api/admin/logs.go
package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Courtside/internal/api/apiutil"
)

type adminLogView struct {
	ID         string          `json:"id"`
	ActorID    string          `json:"actor_id"`
	Action     string          `json:"action"`
	TargetType string          `json:"target_type"`
	TargetID   string          `json:"target_id"`
	Details    json.RawMessage `json:"details"`
	CreatedAt  time.Time       `json:"created_at"`
}

// GET /api/v1/admin/logs?limit=
func HandleListLogs(w http.ResponseWriter, r *http.Request) {
	if _, ok := begin(w, r); !ok {
		return
	}

	limit, err := apiutil.ParseLimit(r.URL.Query().Get("limit"), defaultListLimit, maxListLimit)
	if err != nil {
		apiutil.WriteValidationError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), adminQueryTimeout)
	defer cancel()

	logs, err := deps.DB.Queries.ListAdminLogs(ctx, limit)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to list admin logs")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load admin logs")
		return
	}

	views := make([]adminLogView, 0, len(logs))
	for _, entry := range logs {
		details := json.RawMessage(entry.Details)
		if !json.Valid(details) {
			details = json.RawMessage("{}")
		}
		views = append(views, adminLogView{
			ID:         entry.ID,
			ActorID:    entry.ActorID,
			Action:     entry.Action,
			TargetType: entry.TargetType,
			TargetID:   entry.TargetID,
			Details:    details,
			CreatedAt:  entry.CreatedAt.UTC(),
		})
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, views)
}
