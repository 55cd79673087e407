package scheduler

// NOTE: Tests cannot use t.Parallel() due to shared package state.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/codr1/Courtside/internal/config"
	"github.com/codr1/Courtside/internal/db"
	"github.com/codr1/Courtside/internal/db/dbq"
	"github.com/codr1/Courtside/internal/email"
	"github.com/codr1/Courtside/internal/league"
	"github.com/codr1/Courtside/internal/testutil"
	"github.com/codr1/Courtside/internal/testutil/fakes"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func resetSingleton(t *testing.T) {
	t.Helper()
	service = nil
	serviceErr = nil
	serviceOnce = sync.Once{}
	t.Cleanup(func() {
		if service != nil {
			_ = service.Stop()
		}
		service = nil
		serviceErr = nil
		serviceOnce = sync.Once{}
	})
}

func noop(context.Context) error { return nil }

func seedPlayers(t *testing.T, database *db.DB) {
	t.Helper()
	for _, id := range []string{"alice", "bob"} {
		if _, err := database.Queries.CreateUser(context.Background(), dbq.CreateUserParams{
			ID:          id,
			Email:       id + "@example.com",
			DisplayName: id,
			Role:        "user",
			CreatedAt:   testNow.Add(-30 * 24 * time.Hour),
		}); err != nil {
			t.Fatalf("insert user %s: %v", id, err)
		}
	}
}

func TestServiceInstanceBeforeInit(t *testing.T) {
	resetSingleton(t)

	if _, err := ServiceInstance(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if _, err := AddJob("job", "* * * * *", time.Minute, noop); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestAddJobValidation(t *testing.T) {
	resetSingleton(t)
	if err := Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	tests := []struct {
		name    string
		job     string
		cron    string
		wantErr error
	}{
		{"empty name", " ", "* * * * *", ErrEmptyJobName},
		{"empty cron", "job", "", ErrEmptyCronExpr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := AddJob(tt.job, tt.cron, time.Minute, noop); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	if _, err := AddJob("bad_cron", "not a cron", time.Minute, noop); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
	if _, err := AddJob("ok", "*/5 * * * *", time.Minute, noop); err != nil {
		t.Fatalf("add job: %v", err)
	}
}

func TestRegisterLeagueJobs(t *testing.T) {
	resetSingleton(t)
	if err := Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	database := testutil.NewTestDB(t)
	cfg, err := config.Parse([]byte("app:\n  name: test\n"))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}

	if err := RegisterLeagueJobs(JobDeps{}); err == nil {
		t.Fatal("expected error without dependencies")
	}
	err = RegisterLeagueJobs(JobDeps{
		League:  league.NewService(database),
		Queries: database.Queries,
		Config:  cfg,
	})
	if err != nil {
		t.Fatalf("register jobs: %v", err)
	}

	svc, _ := ServiceInstance()
	names := map[string]bool{}
	for _, job := range svc.scheduler.Jobs() {
		names[job.Name()] = true
	}
	if !names[ChallengeExpiryJob] || !names[NotificationCleanupJob] {
		t.Fatalf("expected both league jobs, got %v", names)
	}
}

func TestExpireChallengesJob(t *testing.T) {
	database := testutil.NewTestDB(t)
	seedPlayers(t, database)
	ctx := context.Background()

	service := league.NewService(database)
	service.SetClock(func() time.Time { return testNow.Add(-15 * 24 * time.Hour) })
	stale, err := service.CreateChallenge(ctx, league.ChallengeParams{ChallengerID: "alice", OpponentID: "bob"})
	if err != nil {
		t.Fatalf("create challenge: %v", err)
	}
	service.SetClock(func() time.Time { return testNow })

	expired, err := ExpireChallenges(ctx, service, nil, 14*24*time.Hour)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expected 1 expired challenge, got %d", expired)
	}

	match, err := database.Queries.GetMatch(ctx, stale.Match.ID)
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if match.Status != league.StatusRejected {
		t.Fatalf("expected rejected, got %s", match.Status)
	}

	expired, err = ExpireChallenges(ctx, service, nil, 14*24*time.Hour)
	if err != nil || expired != 0 {
		t.Fatalf("second run: expired=%d err=%v", expired, err)
	}
}

func TestExpireChallengesJobMailsPartialProgress(t *testing.T) {
	database := testutil.NewTestDB(t)
	seedPlayers(t, database)
	ctx := context.Background()

	service := league.NewService(database)
	service.SetClock(func() time.Time { return testNow.Add(-15 * 24 * time.Hour) })
	first, err := service.CreateChallenge(ctx, league.ChallengeParams{ChallengerID: "alice", OpponentID: "bob"})
	if err != nil {
		t.Fatalf("create first challenge: %v", err)
	}
	second, err := service.CreateChallenge(ctx, league.ChallengeParams{ChallengerID: "bob", OpponentID: "alice"})
	if err != nil {
		t.Fatalf("create second challenge: %v", err)
	}
	service.SetClock(func() time.Time { return testNow })

	if _, err := database.ExecContext(ctx, fmt.Sprintf(`
CREATE TRIGGER block_expiry BEFORE UPDATE OF status ON matches
WHEN OLD.id = %d
BEGIN
	SELECT RAISE(ABORT, 'match locked');
END`, second.Match.ID)); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	mail := fakes.NewEmailSender()
	notifier := email.NewNotifier(mail, database.Queries, email.NotifierOptions{
		From:       "league@example.com",
		BaseURL:    "https://league.example.com",
		LeagueName: "Test League",
	})

	expired, err := ExpireChallenges(ctx, service, notifier, 14*24*time.Hour)
	if err == nil {
		t.Fatal("expected an error from the blocked challenge")
	}
	if expired != 1 {
		t.Fatalf("expected 1 expired challenge before the failure, got %d", expired)
	}

	sent := mail.Wait(t)
	if sent.Recipient != "alice@example.com" || !strings.Contains(sent.Message.Body, "Your challenge to bob expired.") {
		t.Fatalf("unexpected expiry email: %+v", sent)
	}
	mail.ExpectNone(t)

	for id, want := range map[int64]string{first.Match.ID: league.StatusRejected, second.Match.ID: league.StatusPending} {
		match, err := database.Queries.GetMatch(ctx, id)
		if err != nil {
			t.Fatalf("get match %d: %v", id, err)
		}
		if match.Status != want {
			t.Fatalf("match %d: expected %s, got %s", id, want, match.Status)
		}
	}
}

func TestCleanupNotifications(t *testing.T) {
	database := testutil.NewTestDB(t)
	seedPlayers(t, database)
	ctx := context.Background()

	create := func(age time.Duration, read bool) int64 {
		n, err := database.Queries.CreateNotification(ctx, dbq.CreateNotificationParams{
			UserID:    "alice",
			Type:      league.NotificationInfo,
			Message:   "hello",
			Link:      "/matches/1",
			MatchID:   sql.NullInt64{},
			CreatedAt: testNow.Add(-age),
		})
		if err != nil {
			t.Fatalf("create notification: %v", err)
		}
		if read {
			if _, err := database.Queries.MarkNotificationRead(ctx, dbq.GetNotificationForUserParams{ID: n.ID, UserID: "alice"}); err != nil {
				t.Fatalf("mark read: %v", err)
			}
		}
		return n.ID
	}

	oldRead := create(100*24*time.Hour, true)
	oldUnread := create(100*24*time.Hour, false)
	recentRead := create(24*time.Hour, true)

	deleted, err := CleanupNotifications(ctx, database.Queries, testNow, 90*24*time.Hour)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", deleted)
	}

	for id, wantExists := range map[int64]bool{oldRead: false, oldUnread: true, recentRead: true} {
		_, err := database.Queries.GetNotificationForUser(ctx, dbq.GetNotificationForUserParams{ID: id, UserID: "alice"})
		exists := err == nil
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			t.Fatalf("get notification %d: %v", id, err)
		}
		if exists != wantExists {
			t.Fatalf("notification %d: exists=%v, want %v", id, exists, wantExists)
		}
	}
}

func TestRunBoundsTaskContext(t *testing.T) {
	resetSingleton(t)
	if err := Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	svc, _ := ServiceInstance()

	errBoom := errors.New("boom")
	var deadline time.Time
	err := svc.run("bounded", time.Minute, func(ctx context.Context) error {
		deadline, _ = ctx.Deadline()
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected task error, got %v", err)
	}
	if deadline.IsZero() || time.Until(deadline) > time.Minute {
		t.Fatalf("expected deadline within a minute, got %v", deadline)
	}

	if err := svc.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	err = svc.run("after_stop", time.Minute, func(ctx context.Context) error {
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancelled context after stop, got %v", err)
	}
}
