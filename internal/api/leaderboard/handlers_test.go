package leaderboard

// NOTE: Tests cannot use t.Parallel() due to shared package state.

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/codr1/Courtside/internal/api/authz"
	"github.com/codr1/Courtside/internal/db/dbq"
	"github.com/codr1/Courtside/internal/league"
	"github.com/codr1/Courtside/internal/testutil"
)

func TestHandleLeaderboard(t *testing.T) {
	queries = nil
	queriesOnce = sync.Once{}
	t.Cleanup(func() {
		queries = nil
		queriesOnce = sync.Once{}
	})

	database := testutil.NewTestDB(t)
	ctx := context.Background()
	for _, u := range []struct{ id, name string }{{"alice", "Alice"}, {"bob", "Bob"}, {"carol", "Carol"}} {
		if _, err := database.Queries.CreateUser(ctx, dbq.CreateUserParams{
			ID:          u.id,
			Email:       u.id + "@example.com",
			DisplayName: u.name,
			Role:        authz.RoleUser,
			CreatedAt:   time.Now().UTC(),
		}); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}
	InitHandlers(database.Queries)

	svc := league.NewService(database)
	play := func(challenger, opponent, winner string) {
		t.Helper()
		outcome, err := svc.CreateChallenge(ctx, league.ChallengeParams{ChallengerID: challenger, OpponentID: opponent})
		if err != nil {
			t.Fatalf("challenge: %v", err)
		}
		if _, err := svc.RespondToChallenge(ctx, opponent, outcome.Match.ID, true); err != nil {
			t.Fatalf("accept: %v", err)
		}
		if _, err := svc.ReportScore(ctx, league.ScoreReport{
			ReporterID: challenger,
			MatchID:    outcome.Match.ID,
			WinnerID:   winner,
			Score:      "6-2, 6-2",
		}); err != nil {
			t.Fatalf("score: %v", err)
		}
	}
	play("alice", "bob", "alice")
	play("bob", "carol", "bob")
	play("carol", "alice", "alice")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/leaderboard", nil)
	recorder := httptest.NewRecorder()
	HandleLeaderboard(recorder, req)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a user, got %d", recorder.Code)
	}

	req = req.WithContext(authz.ContextWithUser(req.Context(), &authz.AuthUser{ID: "carol", Role: authz.RoleUser}))
	recorder = httptest.NewRecorder()
	HandleLeaderboard(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	var standings []league.Standing
	if err := json.NewDecoder(recorder.Body).Decode(&standings); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []struct {
		id     string
		points int
	}{
		{"alice", 6},
		{"bob", 4},
		{"carol", 2},
	}
	if len(standings) != len(want) {
		t.Fatalf("expected %d standings, got %d", len(want), len(standings))
	}
	for i, w := range want {
		got := standings[i]
		if got.PlayerID != w.id || got.Points != w.points || got.Rank != i+1 || got.MatchesPlayed != 2 {
			t.Fatalf("standing %d: got %+v, want %s with %d points", i, got, w.id, w.points)
		}
	}
}
