package matches

// NOTE: Tests cannot use t.Parallel() due to shared package state.

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/codr1/Courtside/internal/api/authz"
	"github.com/codr1/Courtside/internal/db"
	"github.com/codr1/Courtside/internal/db/dbq"
	"github.com/codr1/Courtside/internal/email"
	"github.com/codr1/Courtside/internal/league"
	"github.com/codr1/Courtside/internal/testutil"
	"github.com/codr1/Courtside/internal/testutil/fakes"
)

type matchResponse struct {
	ID       int64  `json:"id"`
	Status   string `json:"status"`
	Score    string `json:"score"`
	WinnerID string `json:"winner_id"`
}

func setup(t *testing.T) (*db.DB, *fakes.EmailSender) {
	t.Helper()
	deps = Deps{}
	depsOnce = sync.Once{}
	t.Cleanup(func() {
		deps = Deps{}
		depsOnce = sync.Once{}
	})

	database := testutil.NewTestDB(t)
	for _, u := range []struct{ id, name, role string }{
		{"alice", "Alice", authz.RoleUser},
		{"bob", "Bob", authz.RoleUser},
		{"carol", "Carol", authz.RoleUser},
		{"root", "Root", authz.RoleAdmin},
	} {
		if _, err := database.Queries.CreateUser(context.Background(), dbq.CreateUserParams{
			ID:          u.id,
			Email:       u.id + "@example.com",
			DisplayName: u.name,
			Role:        u.role,
			CreatedAt:   time.Now().UTC(),
		}); err != nil {
			t.Fatalf("create user %s: %v", u.id, err)
		}
	}

	mail := fakes.NewEmailSender()
	InitHandlers(Deps{
		Queries: database.Queries,
		League:  league.NewService(database),
		Notifier: email.NewNotifier(mail, database.Queries, email.NotifierOptions{
			From:       "league@example.com",
			BaseURL:    "https://league.example.com",
			LeagueName: "Test League",
		}),
	})
	return database, mail
}

func call(t *testing.T, handler http.HandlerFunc, method, path, userID, role, body string, pathID int64) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if pathID != 0 {
		req.SetPathValue("id", fmt.Sprint(pathID))
	}
	if userID != "" {
		req = req.WithContext(authz.ContextWithUser(req.Context(), &authz.AuthUser{ID: userID, Role: role}))
	}
	recorder := httptest.NewRecorder()
	handler(recorder, req)
	return recorder
}

func decodeMatch(t *testing.T, recorder *httptest.ResponseRecorder) matchResponse {
	t.Helper()
	var resp matchResponse
	if err := json.NewDecoder(recorder.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func challenge(t *testing.T, challenger, opponent string) int64 {
	t.Helper()
	recorder := call(t, HandleCreateChallenge, http.MethodPost, "/api/v1/matches", challenger, authz.RoleUser,
		fmt.Sprintf(`{"opponent_id":%q,"notes":"Saturday?","scheduled_at":"2026-06-01T10:00:00-07:00"}`, opponent), 0)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("challenge: expected 201, got %d: %s", recorder.Code, recorder.Body.String())
	}
	return decodeMatch(t, recorder).ID
}

func TestMatchLifecycle(t *testing.T) {
	database, mail := setup(t)

	id := challenge(t, "alice", "bob")
	sent := mail.Wait(t)
	if sent.Recipient != "bob@example.com" || !strings.Contains(sent.Message.Body, "Alice challenged you to a match!") {
		t.Fatalf("unexpected challenge email: %+v", sent)
	}

	// The challenger cannot answer their own challenge.
	recorder := call(t, HandleAcceptChallenge, http.MethodPost, "/", "alice", authz.RoleUser, "", id)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for challenger accept, got %d", recorder.Code)
	}

	// No score before the match is approved.
	recorder = call(t, HandleReportScore, http.MethodPost, "/", "alice", authz.RoleUser,
		`{"score":"6-4, 6-3","winner_id":"alice"}`, id)
	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected 409 scoring a pending match, got %d", recorder.Code)
	}

	recorder = call(t, HandleAcceptChallenge, http.MethodPost, "/", "bob", authz.RoleUser, "", id)
	if recorder.Code != http.StatusOK {
		t.Fatalf("accept: expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if got := decodeMatch(t, recorder).Status; got != league.StatusApproved {
		t.Fatalf("expected approved, got %s", got)
	}
	if sent := mail.Wait(t); sent.Recipient != "alice@example.com" {
		t.Fatalf("expected accept email to alice, got %s", sent.Recipient)
	}

	recorder = call(t, HandleReportScore, http.MethodPost, "/", "carol", authz.RoleUser,
		`{"score":"6-4, 6-3","winner_id":"alice"}`, id)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for outsider score, got %d", recorder.Code)
	}

	recorder = call(t, HandleReportScore, http.MethodPost, "/", "bob", authz.RoleUser,
		`{"score":"6-4, 6-3","winner_id":"carol"}`, id)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for outsider winner, got %d", recorder.Code)
	}

	recorder = call(t, HandleReportScore, http.MethodPost, "/", "bob", authz.RoleUser,
		`{"score":"6-4, 9-3","winner_id":"alice"}`, id)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for impossible score, got %d", recorder.Code)
	}

	recorder = call(t, HandleReportScore, http.MethodPost, "/", "bob", authz.RoleUser,
		`{"score":"6-4 6-3","winner_id":"alice"}`, id)
	if recorder.Code != http.StatusOK {
		t.Fatalf("score: expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	got := decodeMatch(t, recorder)
	if got.Status != league.StatusCompleted || got.Score != "6-4, 6-3" || got.WinnerID != "alice" {
		t.Fatalf("unexpected completed match: %+v", got)
	}
	if sent := mail.Wait(t); sent.Recipient != "alice@example.com" {
		t.Fatalf("expected score email to alice, got %s", sent.Recipient)
	}

	stored, err := database.Queries.GetMatch(context.Background(), id)
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if stored.ReportedBy.String != "bob" || !stored.CompletedAt.Valid {
		t.Fatalf("expected reporter and completion time, got %+v", stored)
	}
}

func TestDeclineChallenge(t *testing.T) {
	_, mail := setup(t)
	id := challenge(t, "alice", "bob")
	mail.Wait(t)

	recorder := call(t, HandleDeclineChallenge, http.MethodPost, "/", "bob", authz.RoleUser, "", id)
	if recorder.Code != http.StatusOK {
		t.Fatalf("decline: expected 200, got %d", recorder.Code)
	}
	if got := decodeMatch(t, recorder).Status; got != league.StatusRejected {
		t.Fatalf("expected rejected, got %s", got)
	}
	if sent := mail.Wait(t); !strings.Contains(sent.Message.Body, "Bob declined your challenge.") {
		t.Fatalf("unexpected decline email: %s", sent.Message.Body)
	}

	recorder = call(t, HandleAcceptChallenge, http.MethodPost, "/", "bob", authz.RoleUser, "", id)
	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected 409 accepting a declined challenge, got %d", recorder.Code)
	}
}

func TestCreateChallengeRejects(t *testing.T) {
	database, _ := setup(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"self", `{"opponent_id":"alice"}`, http.StatusBadRequest},
		{"unknown opponent", `{"opponent_id":"ghost"}`, http.StatusNotFound},
		{"missing opponent", `{"notes":"hi"}`, http.StatusBadRequest},
		{"bad time", `{"opponent_id":"bob","scheduled_at":"tomorrow"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := call(t, HandleCreateChallenge, http.MethodPost, "/api/v1/matches", "alice", authz.RoleUser, tt.body, 0)
			if recorder.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, recorder.Code, recorder.Body.String())
			}
		})
	}

	past := time.Now().UTC().AddDate(0, -2, 0)
	if _, err := database.Queries.UpdateLeagueSettings(context.Background(), dbq.UpdateLeagueSettingsParams{
		SeasonStart: sqlDate(past.AddDate(0, -1, 0)),
		SeasonEnd:   sqlDate(past),
		MaxSets:     3,
		UpdatedAt:   time.Now().UTC(),
		UpdatedBy:   "root",
	}); err != nil {
		t.Fatalf("update settings: %v", err)
	}
	recorder := call(t, HandleCreateChallenge, http.MethodPost, "/api/v1/matches", "alice", authz.RoleUser, `{"opponent_id":"bob"}`, 0)
	if recorder.Code != http.StatusConflict {
		t.Fatalf("expected 409 out of season, got %d", recorder.Code)
	}
}

func TestListAndGetMatches(t *testing.T) {
	_, mail := setup(t)
	first := challenge(t, "alice", "bob")
	second := challenge(t, "carol", "alice")
	mail.Wait(t)
	mail.Wait(t)

	recorder := call(t, HandleAcceptChallenge, http.MethodPost, "/", "bob", authz.RoleUser, "", first)
	if recorder.Code != http.StatusOK {
		t.Fatalf("accept: %d", recorder.Code)
	}
	mail.Wait(t)

	var list []matchResponse
	recorder = call(t, HandleListMatches, http.MethodGet, "/api/v1/matches", "alice", authz.RoleUser, "", 0)
	if err := json.NewDecoder(recorder.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 2 || list[0].ID != second {
		t.Fatalf("expected both matches newest first, got %+v", list)
	}

	recorder = call(t, HandleListMatches, http.MethodGet, "/api/v1/matches?status=approved", "alice", authz.RoleUser, "", 0)
	list = nil
	if err := json.NewDecoder(recorder.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].ID != first {
		t.Fatalf("expected only the approved match, got %+v", list)
	}

	recorder = call(t, HandleListMatches, http.MethodGet, "/api/v1/matches?status=bogus", "alice", authz.RoleUser, "", 0)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", recorder.Code)
	}

	recorder = call(t, HandleListChallenges, http.MethodGet, "/api/v1/challenges", "alice", authz.RoleUser, "", 0)
	list = nil
	if err := json.NewDecoder(recorder.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].ID != first {
		t.Fatalf("expected only challenges alice sent, got %+v", list)
	}

	tests := []struct {
		name       string
		userID     string
		role       string
		id         int64
		wantStatus int
	}{
		{"player", "bob", authz.RoleUser, first, http.StatusOK},
		{"outsider", "carol", authz.RoleUser, first, http.StatusNotFound},
		{"admin", "root", authz.RoleAdmin, first, http.StatusOK},
		{"missing", "alice", authz.RoleUser, 9999, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := call(t, HandleGetMatch, http.MethodGet, "/", tt.userID, tt.role, "", tt.id)
			if recorder.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, recorder.Code)
			}
		})
	}
}

func TestOutsiderActionsLookLikeMissingMatch(t *testing.T) {
	_, mail := setup(t)
	id := challenge(t, "alice", "bob")
	mail.Wait(t)

	tests := []struct {
		name    string
		handler http.HandlerFunc
		body    string
	}{
		{"accept", HandleAcceptChallenge, ""},
		{"decline", HandleDeclineChallenge, ""},
		{"score", HandleReportScore, `{"score":"6-4, 6-3","winner_id":"alice"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			missing := call(t, tt.handler, http.MethodPost, "/", "carol", authz.RoleUser, tt.body, 9999)
			outsider := call(t, tt.handler, http.MethodPost, "/", "carol", authz.RoleUser, tt.body, id)
			if outsider.Code != http.StatusNotFound || missing.Code != http.StatusNotFound {
				t.Fatalf("expected 404 for both, got outsider %d missing %d", outsider.Code, missing.Code)
			}
			if outsider.Body.String() != missing.Body.String() {
				t.Fatalf("outsider body %q differs from missing body %q", outsider.Body.String(), missing.Body.String())
			}
		})
	}
	mail.ExpectNone(t)
}

func TestMatchHandlersRequireUser(t *testing.T) {
	setup(t)
	for name, handler := range map[string]http.HandlerFunc{
		"create":     HandleCreateChallenge,
		"list":       HandleListMatches,
		"challenges": HandleListChallenges,
		"get":        HandleGetMatch,
		"accept":     HandleAcceptChallenge,
		"score":      HandleReportScore,
	} {
		recorder := call(t, handler, http.MethodPost, "/", "", "", `{}`, 1)
		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, recorder.Code)
		}
	}
}

func sqlDate(t time.Time) sql.NullTime {
	return sql.NullTime{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), Valid: true}
}
