package dbq

import (
	"context"
	"database/sql"
	"time"
)

const matchColumns = `m.id, m.player1_id, m.player2_id, m.status, m.notes, m.score, m.winner_id,
    m.reported_by, m.scheduled_at, m.completed_at, m.created_at, m.updated_at`

const matchDetailSelect = `
SELECT ` + matchColumns + `,
    p1.display_name, p1.email, p2.display_name, p2.email
FROM matches m
JOIN users p1 ON p1.id = m.player1_id
JOIN users p2 ON p2.id = m.player2_id`

func scanMatch(row interface{ Scan(...interface{}) error }) (Match, error) {
	var i Match
	err := row.Scan(
		&i.ID,
		&i.Player1ID,
		&i.Player2ID,
		&i.Status,
		&i.Notes,
		&i.Score,
		&i.WinnerID,
		&i.ReportedBy,
		&i.ScheduledAt,
		&i.CompletedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func scanMatchDetail(row interface{ Scan(...interface{}) error }) (MatchDetail, error) {
	var i MatchDetail
	err := row.Scan(
		&i.ID,
		&i.Player1ID,
		&i.Player2ID,
		&i.Status,
		&i.Notes,
		&i.Score,
		&i.WinnerID,
		&i.ReportedBy,
		&i.ScheduledAt,
		&i.CompletedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.Player1Name,
		&i.Player1Email,
		&i.Player2Name,
		&i.Player2Email,
	)
	return i, err
}

func (q *Queries) queryMatchDetails(ctx context.Context, query string, args ...interface{}) ([]MatchDetail, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []MatchDetail{}
	for rows.Next() {
		i, err := scanMatchDetail(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createMatch = `
INSERT INTO matches (player1_id, player2_id, status, notes, scheduled_at, created_at, updated_at)
VALUES (?, ?, 'pending', ?, ?, ?, ?)`

type CreateMatchParams struct {
	Player1ID   string
	Player2ID   string
	Notes       string
	ScheduledAt sql.NullTime
	CreatedAt   time.Time
}

func (q *Queries) CreateMatch(ctx context.Context, arg CreateMatchParams) (Match, error) {
	result, err := q.db.ExecContext(ctx, createMatch,
		arg.Player1ID,
		arg.Player2ID,
		arg.Notes,
		arg.ScheduledAt,
		arg.CreatedAt,
		arg.CreatedAt,
	)
	if err != nil {
		return Match{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return Match{}, err
	}
	return q.GetMatch(ctx, id)
}

const getMatch = `SELECT ` + matchColumns + ` FROM matches m WHERE m.id = ?`

func (q *Queries) GetMatch(ctx context.Context, id int64) (Match, error) {
	return scanMatch(q.db.QueryRowContext(ctx, getMatch, id))
}

const getMatchDetail = matchDetailSelect + ` WHERE m.id = ?`

func (q *Queries) GetMatchDetail(ctx context.Context, id int64) (MatchDetail, error) {
	return scanMatchDetail(q.db.QueryRowContext(ctx, getMatchDetail, id))
}

const listMatchesForPlayer = matchDetailSelect + `
WHERE (m.player1_id = ? OR m.player2_id = ?)
  AND (? = '' OR m.status = ?)
ORDER BY m.created_at DESC, m.id DESC`

type ListMatchesForPlayerParams struct {
	PlayerID string
	// Status filters by match status; empty returns every status.
	Status string
}

func (q *Queries) ListMatchesForPlayer(ctx context.Context, arg ListMatchesForPlayerParams) ([]MatchDetail, error) {
	return q.queryMatchDetails(ctx, listMatchesForPlayer, arg.PlayerID, arg.PlayerID, arg.Status, arg.Status)
}

const listChallengesSent = matchDetailSelect + `
WHERE m.player1_id = ?
ORDER BY m.created_at DESC, m.id DESC`

func (q *Queries) ListChallengesSent(ctx context.Context, playerID string) ([]MatchDetail, error) {
	return q.queryMatchDetails(ctx, listChallengesSent, playerID)
}

const listPlayerHistory = matchDetailSelect + `
WHERE (m.player1_id = ? OR m.player2_id = ?)
  AND m.status IN ('approved', 'completed')
ORDER BY m.created_at DESC, m.id DESC`

func (q *Queries) ListPlayerHistory(ctx context.Context, playerID string) ([]MatchDetail, error) {
	return q.queryMatchDetails(ctx, listPlayerHistory, playerID, playerID)
}

const listMatchesByStatus = matchDetailSelect + `
WHERE m.status = ?
ORDER BY m.created_at DESC, m.id DESC
LIMIT ?`

type ListMatchesByStatusParams struct {
	Status string
	Limit  int64
}

func (q *Queries) ListMatchesByStatus(ctx context.Context, arg ListMatchesByStatusParams) ([]MatchDetail, error) {
	return q.queryMatchDetails(ctx, listMatchesByStatus, arg.Status, arg.Limit)
}

const listRecentMatches = matchDetailSelect + `
ORDER BY m.created_at DESC, m.id DESC
LIMIT ?`

func (q *Queries) ListRecentMatches(ctx context.Context, limit int64) ([]MatchDetail, error) {
	return q.queryMatchDetails(ctx, listRecentMatches, limit)
}

const listMatchCreatedTimesSince = `SELECT created_at FROM matches WHERE created_at >= ? ORDER BY created_at`

func (q *Queries) ListMatchCreatedTimesSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	rows, err := q.db.QueryContext(ctx, listMatchCreatedTimesSince, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []time.Time{}
	for rows.Next() {
		var createdAt time.Time
		if err := rows.Scan(&createdAt); err != nil {
			return nil, err
		}
		items = append(items, createdAt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listStaleChallenges = matchDetailSelect + `
WHERE m.status = 'pending' AND m.created_at < ?
ORDER BY m.created_at, m.id`

func (q *Queries) ListStaleChallenges(ctx context.Context, before time.Time) ([]MatchDetail, error) {
	return q.queryMatchDetails(ctx, listStaleChallenges, before)
}

const updateMatchStatus = `
UPDATE matches
SET status = ?, updated_at = ?
WHERE id = ? AND status = ?`

type UpdateMatchStatusParams struct {
	ID         int64
	FromStatus string
	ToStatus   string
	UpdatedAt  time.Time
}

// UpdateMatchStatus only applies when the match is still in FromStatus and
// returns the number of rows changed.
func (q *Queries) UpdateMatchStatus(ctx context.Context, arg UpdateMatchStatusParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateMatchStatus, arg.ToStatus, arg.UpdatedAt, arg.ID, arg.FromStatus)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const completeMatch = `
UPDATE matches
SET status = 'completed', winner_id = ?, score = ?, reported_by = ?,
    completed_at = ?, updated_at = ?
WHERE id = ? AND status = 'approved'`

type CompleteMatchParams struct {
	ID          int64
	WinnerID    string
	Score       string
	ReportedBy  string
	CompletedAt time.Time
}

func (q *Queries) CompleteMatch(ctx context.Context, arg CompleteMatchParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, completeMatch,
		arg.WinnerID,
		arg.Score,
		arg.ReportedBy,
		arg.CompletedAt,
		arg.CompletedAt,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const countMatchesByStatus = `SELECT COUNT(*) FROM matches WHERE status = ?`

func (q *Queries) CountMatchesByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countMatchesByStatus, status).Scan(&count)
	return count, err
}

const listDecidedMatches = `
SELECT id, player1_id, player2_id, winner_id
FROM matches
WHERE status = 'completed' AND winner_id IS NOT NULL
ORDER BY id`

type DecidedMatch struct {
	ID        int64
	Player1ID string
	Player2ID string
	WinnerID  string
}

func (q *Queries) ListDecidedMatches(ctx context.Context) ([]DecidedMatch, error) {
	rows, err := q.db.QueryContext(ctx, listDecidedMatches)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []DecidedMatch{}
	for rows.Next() {
		var i DecidedMatch
		if err := rows.Scan(&i.ID, &i.Player1ID, &i.Player2ID, &i.WinnerID); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
