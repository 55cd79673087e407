// internal/api/matches/handlers.go
package matches

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Courtside/internal/api/apiutil"
	"github.com/codr1/Courtside/internal/api/authz"
	"github.com/codr1/Courtside/internal/db/dbq"
	"github.com/codr1/Courtside/internal/email"
	"github.com/codr1/Courtside/internal/league"
)

const matchesQueryTimeout = 5 * time.Second

// Deps are the collaborators the match handlers need. Notifier may be nil.
type Deps struct {
	Queries  *dbq.Queries
	League   *league.Service
	Notifier *email.Notifier
}

var (
	deps     Deps
	depsOnce sync.Once
)

func InitHandlers(d Deps) {
	if d.Queries == nil || d.League == nil {
		return
	}
	depsOnce.Do(func() {
		deps = d
	})
}

type createChallengeRequest struct {
	OpponentID  string `json:"opponent_id" validate:"required"`
	Notes       string `json:"notes" validate:"max=500"`
	ScheduledAt string `json:"scheduled_at"`
}

type reportScoreRequest struct {
	Score    string `json:"score" validate:"required,max=64"`
	WinnerID string `json:"winner_id" validate:"required"`
}

func ready(w http.ResponseWriter, r *http.Request) bool {
	if deps.Queries == nil || deps.League == nil {
		log.Ctx(r.Context()).Error().Msg("Match handlers not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return false
	}
	return true
}

func matchID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := apiutil.PathID(r.PathValue("id"))
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "Invalid match id")
		return 0, false
	}
	return id, true
}

func writeOutcome(w http.ResponseWriter, r *http.Request, status int, outcome league.Outcome) {
	deps.Notifier.Notifications(r.Context(), outcome.Notifications, log.Ctx(r.Context()))
	_ = apiutil.WriteJSON(w, status, apiutil.NewMatchView(outcome.Match))
}

// POST /api/v1/matches
func HandleCreateChallenge(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}
	user, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}

	var req createChallengeRequest
	if !apiutil.DecodeAndValidate(w, r, &req) {
		return
	}
	scheduledAt, err := apiutil.ParseTimestamp(req.ScheduledAt, "scheduled_at")
	if err != nil {
		apiutil.WriteValidationError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), matchesQueryTimeout)
	defer cancel()

	outcome, err := deps.League.CreateChallenge(ctx, league.ChallengeParams{
		ChallengerID: user.ID,
		OpponentID:   strings.TrimSpace(req.OpponentID),
		Notes:        req.Notes,
		ScheduledAt:  scheduledAt,
	})
	if err != nil {
		apiutil.WriteLeagueError(w, r, err, "Failed to create challenge")
		return
	}

	log.Ctx(r.Context()).Info().
		Int64("match_id", outcome.Match.ID).
		Str("opponent_id", outcome.Match.Player2ID).
		Msg("Challenge created")
	writeOutcome(w, r, http.StatusCreated, outcome)
}

// GET /api/v1/matches?status=
func HandleListMatches(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}
	user, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}

	status := strings.TrimSpace(r.URL.Query().Get("status"))
	if status != "" && !league.ValidStatus(status) {
		apiutil.WriteValidationError(w, apiutil.FieldError{Field: "status", Reason: "is not a known match status"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), matchesQueryTimeout)
	defer cancel()

	matches, err := deps.Queries.ListMatchesForPlayer(ctx, dbq.ListMatchesForPlayerParams{
		PlayerID: user.ID,
		Status:   status,
	})
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to list matches")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load matches")
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, apiutil.NewMatchViews(matches))
}

// GET /api/v1/challenges
func HandleListChallenges(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}
	user, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), matchesQueryTimeout)
	defer cancel()

	matches, err := deps.Queries.ListChallengesSent(ctx, user.ID)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to list challenges")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load challenges")
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, apiutil.NewMatchViews(matches))
}

// GET /api/v1/matches/{id}
// Only the two players and admins can see a match; anyone else gets a 404.
func HandleGetMatch(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}
	user, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}
	id, ok := matchID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), matchesQueryTimeout)
	defer cancel()

	match, err := deps.Queries.GetMatchDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, http.StatusNotFound, "Match not found")
			return
		}
		log.Ctx(r.Context()).Error().Err(err).Int64("match_id", id).Msg("Failed to load match")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load match")
		return
	}
	if match.Player1ID != user.ID && match.Player2ID != user.ID && !authz.IsAdmin(user) {
		apiutil.WriteError(w, http.StatusNotFound, "Match not found")
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, apiutil.NewMatchView(match))
}

// POST /api/v1/matches/{id}/accept
func HandleAcceptChallenge(w http.ResponseWriter, r *http.Request) {
	respond(w, r, true)
}

// POST /api/v1/matches/{id}/decline
func HandleDeclineChallenge(w http.ResponseWriter, r *http.Request) {
	respond(w, r, false)
}

func respond(w http.ResponseWriter, r *http.Request, accept bool) {
	if !ready(w, r) {
		return
	}
	user, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}
	id, ok := matchID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), matchesQueryTimeout)
	defer cancel()

	outcome, err := deps.League.RespondToChallenge(ctx, user.ID, id, accept)
	if err != nil {
		apiutil.WriteLeagueError(w, r, err, "Failed to respond to challenge")
		return
	}

	log.Ctx(r.Context()).Info().
		Int64("match_id", id).
		Str("status", outcome.Match.Status).
		Msg("Challenge answered")
	writeOutcome(w, r, http.StatusOK, outcome)
}

// POST /api/v1/matches/{id}/score
func HandleReportScore(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}
	user, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}
	id, ok := matchID(w, r)
	if !ok {
		return
	}

	var req reportScoreRequest
	if !apiutil.DecodeAndValidate(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), matchesQueryTimeout)
	defer cancel()

	outcome, err := deps.League.ReportScore(ctx, league.ScoreReport{
		ReporterID: user.ID,
		MatchID:    id,
		WinnerID:   strings.TrimSpace(req.WinnerID),
		Score:      req.Score,
	})
	if err != nil {
		apiutil.WriteLeagueError(w, r, err, "Failed to report score")
		return
	}

	log.Ctx(r.Context()).Info().
		Int64("match_id", id).
		Str("winner_id", outcome.Match.WinnerID.String).
		Str("score", outcome.Match.Score.String).
		Msg("Score reported")
	writeOutcome(w, r, http.StatusOK, outcome)
}
