package dbq

import (
	"context"
	"database/sql"
	"time"
)

const createAdminLog = `
INSERT INTO admin_logs (id, actor_id, action, target_type, target_id, details, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

type CreateAdminLogParams struct {
	ID         string
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	Details    string
	CreatedAt  time.Time
}

func (q *Queries) CreateAdminLog(ctx context.Context, arg CreateAdminLogParams) error {
	_, err := q.db.ExecContext(ctx, createAdminLog,
		arg.ID,
		arg.ActorID,
		arg.Action,
		arg.TargetType,
		arg.TargetID,
		arg.Details,
		arg.CreatedAt,
	)
	return err
}

const listAdminLogs = `
SELECT id, actor_id, action, target_type, target_id, details, created_at
FROM admin_logs
ORDER BY created_at DESC, id
LIMIT ?`

func (q *Queries) ListAdminLogs(ctx context.Context, limit int64) ([]AdminLog, error) {
	rows, err := q.db.QueryContext(ctx, listAdminLogs, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []AdminLog{}
	for rows.Next() {
		var i AdminLog
		if err := rows.Scan(
			&i.ID,
			&i.ActorID,
			&i.Action,
			&i.TargetType,
			&i.TargetID,
			&i.Details,
			&i.CreatedAt,
		); err != nil {
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

const getLeagueSettings = `
SELECT season_start, season_end, max_sets, updated_at, updated_by
FROM league_settings
WHERE id = 1`

func (q *Queries) GetLeagueSettings(ctx context.Context) (LeagueSetting, error) {
	var i LeagueSetting
	err := q.db.QueryRowContext(ctx, getLeagueSettings).Scan(
		&i.SeasonStart,
		&i.SeasonEnd,
		&i.MaxSets,
		&i.UpdatedAt,
		&i.UpdatedBy,
	)
	return i, err
}

const updateLeagueSettings = `
UPDATE league_settings
SET season_start = ?, season_end = ?, max_sets = ?, updated_at = ?, updated_by = ?
WHERE id = 1`

type UpdateLeagueSettingsParams struct {
	SeasonStart sql.NullTime
	SeasonEnd   sql.NullTime
	MaxSets     int64
	UpdatedAt   time.Time
	UpdatedBy   string
}

func (q *Queries) UpdateLeagueSettings(ctx context.Context, arg UpdateLeagueSettingsParams) (LeagueSetting, error) {
	if _, err := q.db.ExecContext(ctx, updateLeagueSettings,
		arg.SeasonStart,
		arg.SeasonEnd,
		arg.MaxSets,
		arg.UpdatedAt,
		arg.UpdatedBy,
	); err != nil {
		return LeagueSetting{}, err
	}
	return q.GetLeagueSettings(ctx)
}
