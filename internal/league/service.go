package league

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/codr1/Courtside/internal/audit"
	"github.com/codr1/Courtside/internal/db"
	"github.com/codr1/Courtside/internal/db/dbq"
)

var (
	ErrMatchNotFound     = errors.New("match not found")
	ErrPlayerNotFound    = errors.New("player not found")
	ErrSelfChallenge     = errors.New("you cannot challenge yourself")
	ErrNotParticipant    = errors.New("not a participant in this match")
	ErrNotOpponent       = errors.New("only the challenged player can respond")
	ErrInvalidTransition = errors.New("match status does not allow this action")
	ErrInvalidWinner     = errors.New("winner must be one of the match players")
	ErrOutOfSeason       = errors.New("challenges are closed outside the season")
	ErrInvalidStatus     = errors.New("status must be approved or rejected")
)

const (
	NotificationChallenge = "challenge"
	NotificationInfo      = "info"
)

// Outcome is the state of a match after a transition plus the notifications
// the transition created.
type Outcome struct {
	Match         dbq.MatchDetail
	Notifications []dbq.Notification
}

// Service applies match lifecycle changes. Each change, the notifications it
// creates and any admin log entry commit in one transaction.
type Service struct {
	db  *db.DB
	now func() time.Time
}

func NewService(database *db.DB) *Service {
	return &Service{
		db:  database,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source; used by tests and the seed tool.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// MatchLink is the client path for a match.
func MatchLink(matchID int64) string {
	return "/matches/" + strconv.FormatInt(matchID, 10)
}

// PlayerName is the name shown to other players.
func PlayerName(user dbq.User) string {
	if name := strings.TrimSpace(user.DisplayName); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(user.Email, "@"); ok && local != "" {
		return local
	}
	return "A player"
}

// InSeason reports whether now falls inside the configured season. Unset
// bounds are open.
func InSeason(settings dbq.LeagueSetting, now time.Time) bool {
	day := dateOnly(now)
	if settings.SeasonStart.Valid && day.Before(dateOnly(settings.SeasonStart.Time)) {
		return false
	}
	if settings.SeasonEnd.Valid && day.After(dateOnly(settings.SeasonEnd.Time)) {
		return false
	}
	return true
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

type ChallengeParams struct {
	ChallengerID string
	OpponentID   string
	Notes        string
	ScheduledAt  *time.Time
}

// CreateChallenge creates a pending match and notifies the opponent.
func (s *Service) CreateChallenge(ctx context.Context, params ChallengeParams) (Outcome, error) {
	if params.ChallengerID == params.OpponentID {
		return Outcome{}, ErrSelfChallenge
	}

	var outcome Outcome
	err := s.db.RunInTx(ctx, func(tx *db.DB) error {
		now := s.now()
		challenger, err := loadPlayer(ctx, tx.Queries, params.ChallengerID)
		if err != nil {
			return err
		}
		if _, err := loadPlayer(ctx, tx.Queries, params.OpponentID); err != nil {
			return err
		}

		settings, err := tx.Queries.GetLeagueSettings(ctx)
		if err != nil {
			return fmt.Errorf("load league settings: %w", err)
		}
		if !InSeason(settings, now) {
			return ErrOutOfSeason
		}

		var scheduledAt sql.NullTime
		if params.ScheduledAt != nil {
			scheduledAt = sql.NullTime{Time: params.ScheduledAt.UTC(), Valid: true}
		}
		match, err := tx.Queries.CreateMatch(ctx, dbq.CreateMatchParams{
			Player1ID:   params.ChallengerID,
			Player2ID:   params.OpponentID,
			Notes:       strings.TrimSpace(params.Notes),
			ScheduledAt: scheduledAt,
			CreatedAt:   now,
		})
		if err != nil {
			return fmt.Errorf("create match: %w", err)
		}

		notification, err := notify(ctx, tx.Queries, params.OpponentID, NotificationChallenge,
			fmt.Sprintf("%s challenged you to a match!", PlayerName(challenger)), match.ID, now)
		if err != nil {
			return err
		}

		outcome, err = loadOutcome(ctx, tx.Queries, match.ID, notification)
		return err
	})
	return outcome, err
}

// RespondToChallenge lets the challenged player accept or decline a pending
// match. The challenger is notified and the responder's challenge
// notifications are marked read.
func (s *Service) RespondToChallenge(ctx context.Context, responderID string, matchID int64, accept bool) (Outcome, error) {
	target := StatusRejected
	verb := "declined your challenge."
	if accept {
		target = StatusApproved
		verb = "accepted your challenge!"
	}

	var outcome Outcome
	err := s.db.RunInTx(ctx, func(tx *db.DB) error {
		now := s.now()
		match, err := loadMatch(ctx, tx.Queries, matchID)
		if err != nil {
			return err
		}
		if match.Player2ID != responderID {
			if match.Player1ID == responderID {
				return ErrNotOpponent
			}
			return ErrNotParticipant
		}
		if err := transition(ctx, tx.Queries, match, target, now); err != nil {
			return err
		}

		responder, err := loadPlayer(ctx, tx.Queries, responderID)
		if err != nil {
			return err
		}
		notification, err := notify(ctx, tx.Queries, match.Player1ID, NotificationInfo,
			fmt.Sprintf("%s %s", PlayerName(responder), verb), match.ID, now)
		if err != nil {
			return err
		}
		if _, err := tx.Queries.MarkChallengeNotificationsRead(ctx, dbq.MarkChallengeNotificationsReadParams{
			MatchID: match.ID,
			UserID:  responderID,
		}); err != nil {
			return fmt.Errorf("mark challenge notifications read: %w", err)
		}

		outcome, err = loadOutcome(ctx, tx.Queries, match.ID, notification)
		return err
	})
	return outcome, err
}

type ScoreReport struct {
	ReporterID string
	MatchID    int64
	WinnerID   string
	Score      string
}

// ReportScore completes an approved match. The score is validated against
// the league's max sets and stored in canonical form.
func (s *Service) ReportScore(ctx context.Context, report ScoreReport) (Outcome, error) {
	var outcome Outcome
	err := s.db.RunInTx(ctx, func(tx *db.DB) error {
		now := s.now()
		match, err := loadMatch(ctx, tx.Queries, report.MatchID)
		if err != nil {
			return err
		}
		if match.Player1ID != report.ReporterID && match.Player2ID != report.ReporterID {
			return ErrNotParticipant
		}
		if !CanTransition(match.Status, StatusCompleted) {
			return ErrInvalidTransition
		}
		if report.WinnerID != match.Player1ID && report.WinnerID != match.Player2ID {
			return ErrInvalidWinner
		}

		settings, err := tx.Queries.GetLeagueSettings(ctx)
		if err != nil {
			return fmt.Errorf("load league settings: %w", err)
		}
		score, err := ParseScore(report.Score, int(settings.MaxSets))
		if err != nil {
			return err
		}

		affected, err := tx.Queries.CompleteMatch(ctx, dbq.CompleteMatchParams{
			ID:          match.ID,
			WinnerID:    report.WinnerID,
			Score:       score.String(),
			ReportedBy:  report.ReporterID,
			CompletedAt: now,
		})
		if err != nil {
			return fmt.Errorf("complete match: %w", err)
		}
		if affected == 0 {
			return ErrInvalidTransition
		}

		reporter, err := loadPlayer(ctx, tx.Queries, report.ReporterID)
		if err != nil {
			return err
		}
		winner := reporter
		if report.WinnerID != report.ReporterID {
			if winner, err = loadPlayer(ctx, tx.Queries, report.WinnerID); err != nil {
				return err
			}
		}
		otherID := match.Player1ID
		if otherID == report.ReporterID {
			otherID = match.Player2ID
		}
		notification, err := notify(ctx, tx.Queries, otherID, NotificationInfo,
			fmt.Sprintf("%s reported a result: %s won %s.", PlayerName(reporter), PlayerName(winner), score),
			match.ID, now)
		if err != nil {
			return err
		}

		outcome, err = loadOutcome(ctx, tx.Queries, match.ID, notification)
		return err
	})
	return outcome, err
}

// ReviewMatch is the admin approve/reject of a pending match. Both players
// are notified and the decision is written to the admin log.
func (s *Service) ReviewMatch(ctx context.Context, actorID string, matchID int64, status string) (Outcome, error) {
	if status != StatusApproved && status != StatusRejected {
		return Outcome{}, ErrInvalidStatus
	}

	var outcome Outcome
	err := s.db.RunInTx(ctx, func(tx *db.DB) error {
		now := s.now()
		match, err := loadMatchDetail(ctx, tx.Queries, matchID)
		if err != nil {
			return err
		}
		previous := match.Status
		if err := transition(ctx, tx.Queries, match.Match, status, now); err != nil {
			return err
		}

		var notifications []dbq.Notification
		for _, recipient := range []struct{ id, opponent string }{
			{match.Player1ID, match.Player2Name},
			{match.Player2ID, match.Player1Name},
		} {
			notification, err := notify(ctx, tx.Queries, recipient.id, NotificationInfo,
				fmt.Sprintf("An admin %s your match against %s.", status, recipient.opponent), match.ID, now)
			if err != nil {
				return err
			}
			notifications = append(notifications, notification)
		}
		if _, err := tx.Queries.MarkChallengeNotificationsRead(ctx, dbq.MarkChallengeNotificationsReadParams{
			MatchID: match.ID,
			UserID:  match.Player2ID,
		}); err != nil {
			return fmt.Errorf("mark challenge notifications read: %w", err)
		}

		if err := audit.Record(ctx, tx.Queries, audit.Entry{
			ActorID:    actorID,
			Action:     audit.MatchAction(status),
			TargetType: audit.TargetMatch,
			TargetID:   strconv.FormatInt(match.ID, 10),
			Details:    map[string]string{"status": status, "previous": previous},
		}, now); err != nil {
			return fmt.Errorf("record admin log: %w", err)
		}

		outcome, err = loadOutcome(ctx, tx.Queries, match.ID, notifications...)
		return err
	})
	return outcome, err
}

// ExpireChallenges rejects pending challenges created before now-maxAge and
// tells each challenger. Matches that changed concurrently are skipped.
func (s *Service) ExpireChallenges(ctx context.Context, maxAge time.Duration) ([]Outcome, error) {
	cutoff := s.now().Add(-maxAge)
	stale, err := s.db.Queries.ListStaleChallenges(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stale challenges: %w", err)
	}

	var outcomes []Outcome
	for _, match := range stale {
		var outcome Outcome
		err := s.db.RunInTx(ctx, func(tx *db.DB) error {
			now := s.now()
			affected, err := tx.Queries.UpdateMatchStatus(ctx, dbq.UpdateMatchStatusParams{
				ID:         match.ID,
				FromStatus: StatusPending,
				ToStatus:   StatusRejected,
				UpdatedAt:  now,
			})
			if err != nil {
				return fmt.Errorf("expire match %d: %w", match.ID, err)
			}
			if affected == 0 {
				return nil
			}

			notification, err := notify(ctx, tx.Queries, match.Player1ID, NotificationInfo,
				fmt.Sprintf("Your challenge to %s expired.", match.Player2Name), match.ID, now)
			if err != nil {
				return err
			}
			if _, err := tx.Queries.MarkChallengeNotificationsRead(ctx, dbq.MarkChallengeNotificationsReadParams{
				MatchID: match.ID,
				UserID:  match.Player2ID,
			}); err != nil {
				return fmt.Errorf("mark challenge notifications read: %w", err)
			}

			outcome, err = loadOutcome(ctx, tx.Queries, match.ID, notification)
			return err
		})
		if err != nil {
			return outcomes, err
		}
		if outcome.Match.ID != 0 {
			outcomes = append(outcomes, outcome)
		}
	}
	return outcomes, nil
}

// transition applies from->to with a conditional update so a concurrent
// change to the same match makes this one fail.
func transition(ctx context.Context, q *dbq.Queries, match dbq.Match, to string, now time.Time) error {
	if !CanTransition(match.Status, to) {
		return ErrInvalidTransition
	}
	affected, err := q.UpdateMatchStatus(ctx, dbq.UpdateMatchStatusParams{
		ID:         match.ID,
		FromStatus: match.Status,
		ToStatus:   to,
		UpdatedAt:  now,
	})
	if err != nil {
		return fmt.Errorf("update match status: %w", err)
	}
	if affected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func notify(ctx context.Context, q *dbq.Queries, userID, kind, message string, matchID int64, now time.Time) (dbq.Notification, error) {
	notification, err := q.CreateNotification(ctx, dbq.CreateNotificationParams{
		UserID:    userID,
		Type:      kind,
		Message:   message,
		Link:      MatchLink(matchID),
		MatchID:   sql.NullInt64{Int64: matchID, Valid: true},
		CreatedAt: now,
	})
	if err != nil {
		return dbq.Notification{}, fmt.Errorf("create notification: %w", err)
	}
	return notification, nil
}

func loadPlayer(ctx context.Context, q *dbq.Queries, id string) (dbq.User, error) {
	user, err := q.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dbq.User{}, ErrPlayerNotFound
		}
		return dbq.User{}, fmt.Errorf("load player: %w", err)
	}
	return user, nil
}

func loadMatch(ctx context.Context, q *dbq.Queries, id int64) (dbq.Match, error) {
	match, err := q.GetMatch(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dbq.Match{}, ErrMatchNotFound
		}
		return dbq.Match{}, fmt.Errorf("load match: %w", err)
	}
	return match, nil
}

func loadMatchDetail(ctx context.Context, q *dbq.Queries, id int64) (dbq.MatchDetail, error) {
	match, err := q.GetMatchDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dbq.MatchDetail{}, ErrMatchNotFound
		}
		return dbq.MatchDetail{}, fmt.Errorf("load match: %w", err)
	}
	return match, nil
}

func loadOutcome(ctx context.Context, q *dbq.Queries, matchID int64, notifications ...dbq.Notification) (Outcome, error) {
	match, err := loadMatchDetail(ctx, q, matchID)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Match: match, Notifications: notifications}, nil
}
