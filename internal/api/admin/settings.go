// internal/api/admin/settings.go
package admin

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Courtside/internal/api/apiutil"
	"github.com/codr1/Courtside/internal/audit"
	"github.com/codr1/Courtside/internal/db"
	"github.com/codr1/Courtside/internal/db/dbq"
)

type settingsRequest struct {
	SeasonStart string `json:"season_start"`
	SeasonEnd   string `json:"season_end"`
	MaxSets     int64  `json:"max_sets" validate:"required,min=1,max=5"`
}

type settingsResponse struct {
	SeasonStart string     `json:"season_start"`
	SeasonEnd   string     `json:"season_end"`
	MaxSets     int64      `json:"max_sets"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	UpdatedBy   string     `json:"updated_by,omitempty"`
}

func newSettingsResponse(s dbq.LeagueSetting) settingsResponse {
	resp := settingsResponse{
		SeasonStart: apiutil.FormatDate(s.SeasonStart),
		SeasonEnd:   apiutil.FormatDate(s.SeasonEnd),
		MaxSets:     s.MaxSets,
		UpdatedBy:   apiutil.NullString(s.UpdatedBy),
	}
	if s.UpdatedAt.Valid {
		at := s.UpdatedAt.Time.UTC()
		resp.UpdatedAt = &at
	}
	return resp
}

// GET /api/v1/admin/settings
func HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	if _, ok := begin(w, r); !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), adminQueryTimeout)
	defer cancel()

	settings, err := deps.DB.Queries.GetLeagueSettings(ctx)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to load league settings")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, newSettingsResponse(settings))
}

// PUT /api/v1/admin/settings
func HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())
	actor, ok := begin(w, r)
	if !ok {
		return
	}

	var req settingsRequest
	if !apiutil.DecodeAndValidate(w, r, &req) {
		return
	}
	start, err := apiutil.ParseDate(req.SeasonStart, "season_start")
	if err != nil {
		apiutil.WriteValidationError(w, err)
		return
	}
	end, err := apiutil.ParseDate(req.SeasonEnd, "season_end")
	if err != nil {
		apiutil.WriteValidationError(w, err)
		return
	}
	if start.Valid && end.Valid && end.Time.Before(start.Time) {
		apiutil.WriteValidationError(w, apiutil.FieldError{Field: "season_end", Reason: "must not be before season_start"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), adminQueryTimeout)
	defer cancel()

	now := time.Now().UTC()
	var updated dbq.LeagueSetting
	err = deps.DB.RunInTx(ctx, func(tx *db.DB) error {
		var err error
		updated, err = tx.Queries.UpdateLeagueSettings(ctx, dbq.UpdateLeagueSettingsParams{
			SeasonStart: start,
			SeasonEnd:   end,
			MaxSets:     req.MaxSets,
			UpdatedAt:   now,
			UpdatedBy:   actor.ID,
		})
		if err != nil {
			return err
		}
		return audit.Record(ctx, tx.Queries, audit.Entry{
			ActorID:    actor.ID,
			Action:     audit.ActionUpdateSettings,
			TargetType: audit.TargetSettings,
			TargetID:   "league",
			Details: map[string]any{
				"season_start": req.SeasonStart,
				"season_end":   req.SeasonEnd,
				"max_sets":     req.MaxSets,
			},
		}, now)
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to update league settings")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to update settings")
		return
	}

	logger.Info().Int64("max_sets", req.MaxSets).Msg("League settings updated")
	_ = apiutil.WriteJSON(w, http.StatusOK, newSettingsResponse(updated))
}
