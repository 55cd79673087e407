// internal/api/leaderboard/handlers.go
package leaderboard

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Courtside/internal/api/apiutil"
	"github.com/codr1/Courtside/internal/db/dbq"
	"github.com/codr1/Courtside/internal/league"
)

const leaderboardQueryTimeout = 5 * time.Second

var (
	queries     *dbq.Queries
	queriesOnce sync.Once
)

func InitHandlers(q *dbq.Queries) {
	if q == nil {
		return
	}
	queriesOnce.Do(func() {
		queries = q
	})
}

// /api/v1/leaderboard
func HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if queries == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if _, ok := apiutil.RequireUser(w, r); !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), leaderboardQueryTimeout)
	defer cancel()

	standings, err := league.CalculateLeaderboard(ctx, queries)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to calculate leaderboard")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load leaderboard")
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, standings)
}
