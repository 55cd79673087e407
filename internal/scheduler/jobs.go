package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/codr1/Courtside/internal/config"
	"github.com/codr1/Courtside/internal/db/dbq"
	"github.com/codr1/Courtside/internal/email"
	"github.com/codr1/Courtside/internal/league"
)

const (
	ChallengeExpiryJob     = "challenge_expiry"
	NotificationCleanupJob = "notification_cleanup"

	jobTimeout = 2 * time.Minute
)

// JobDeps carries what the league jobs need.
type JobDeps struct {
	League   *league.Service
	Queries  *dbq.Queries
	Notifier *email.Notifier
	Config   *config.Config
}

// RegisterLeagueJobs registers challenge expiry and notification cleanup.
func RegisterLeagueJobs(deps JobDeps) error {
	if deps.League == nil || deps.Queries == nil || deps.Config == nil {
		return fmt.Errorf("league jobs require league service, queries and config")
	}

	maxAge := days(deps.Config.League.ChallengeExpiryDays)
	retention := days(deps.Config.League.NotificationRetentionDays)

	if _, err := AddJob(ChallengeExpiryJob, deps.Config.Scheduler.ChallengeExpiryCron, jobTimeout, func(ctx context.Context) error {
		_, err := ExpireChallenges(ctx, deps.League, deps.Notifier, maxAge)
		return err
	}); err != nil {
		return err
	}

	if _, err := AddJob(NotificationCleanupJob, deps.Config.Scheduler.NotificationCleanupCron, jobTimeout, func(ctx context.Context) error {
		_, err := CleanupNotifications(ctx, deps.Queries, time.Now().UTC(), retention)
		return err
	}); err != nil {
		return err
	}

	return nil
}

// ExpireChallenges rejects stale pending challenges and e-mails the
// challengers. It returns the number of matches expired. Challenges expired
// before a failure are still e-mailed.
func ExpireChallenges(ctx context.Context, service *league.Service, notifier *email.Notifier, maxAge time.Duration) (int, error) {
	logger := zerolog.Ctx(ctx)
	outcomes, err := service.ExpireChallenges(ctx, maxAge)
	if len(outcomes) == 0 && err == nil {
		logger.Debug().Msg("No stale challenges")
		return 0, nil
	}

	for _, outcome := range outcomes {
		logger.Info().
			Int64("match_id", outcome.Match.ID).
			Str("challenger_id", outcome.Match.Player1ID).
			Str("opponent_id", outcome.Match.Player2ID).
			Msg("Challenge expired")
		notifier.Notifications(ctx, outcome.Notifications, logger)
	}
	if err != nil {
		return len(outcomes), fmt.Errorf("expire challenges: %w", err)
	}
	return len(outcomes), nil
}

// CleanupNotifications deletes read notifications older than retention.
func CleanupNotifications(ctx context.Context, q *dbq.Queries, now time.Time, retention time.Duration) (int64, error) {
	logger := zerolog.Ctx(ctx)
	cutoff := now.UTC().Add(-retention)
	deleted, err := q.DeleteReadNotificationsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete read notifications: %w", err)
	}
	if deleted > 0 {
		logger.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("Old notifications deleted")
	}
	return deleted, nil
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
