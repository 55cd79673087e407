package apiutil

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Courtside/internal/league"
)

// leagueStatus maps league errors to HTTP statuses. Their messages are safe
// to show to clients.
var leagueStatus = []struct {
	err    error
	status int
}{
	{league.ErrMatchNotFound, http.StatusNotFound},
	{league.ErrPlayerNotFound, http.StatusNotFound},
	{league.ErrSelfChallenge, http.StatusBadRequest},
	{league.ErrInvalidWinner, http.StatusBadRequest},
	{league.ErrInvalidScore, http.StatusBadRequest},
	{league.ErrInvalidStatus, http.StatusBadRequest},
	{league.ErrNotParticipant, http.StatusNotFound},
	{league.ErrNotOpponent, http.StatusForbidden},
	{league.ErrInvalidTransition, http.StatusConflict},
	{league.ErrOutOfSeason, http.StatusConflict},
}

// WriteLeagueError writes the response for an error from the league
// service. Unknown errors are logged and become a 500 with fallback.
func WriteLeagueError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	for _, m := range leagueStatus {
		if errors.Is(err, m.err) {
			message := m.err.Error()
			switch m.err {
			case league.ErrInvalidScore:
				message = err.Error()
			case league.ErrNotParticipant:
				// Outsiders see the same answer as for a missing match.
				message = league.ErrMatchNotFound.Error()
			}
			WriteError(w, m.status, message)
			return
		}
	}
	log.Ctx(r.Context()).Error().Err(err).Msg(fallback)
	WriteError(w, http.StatusInternalServerError, fallback)
}
