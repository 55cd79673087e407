package dbq

import (
	"context"
	"database/sql"
	"time"
)

const notificationColumns = `id, user_id, type, message, link, match_id, read, created_at`

func scanNotification(row interface{ Scan(...interface{}) error }) (Notification, error) {
	var i Notification
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Type,
		&i.Message,
		&i.Link,
		&i.MatchID,
		&i.Read,
		&i.CreatedAt,
	)
	return i, err
}

const createNotification = `
INSERT INTO notifications (user_id, type, message, link, match_id, read, created_at)
VALUES (?, ?, ?, ?, ?, 0, ?)`

type CreateNotificationParams struct {
	UserID    string
	Type      string
	Message   string
	Link      string
	MatchID   sql.NullInt64
	CreatedAt time.Time
}

func (q *Queries) CreateNotification(ctx context.Context, arg CreateNotificationParams) (Notification, error) {
	result, err := q.db.ExecContext(ctx, createNotification,
		arg.UserID,
		arg.Type,
		arg.Message,
		arg.Link,
		arg.MatchID,
		arg.CreatedAt,
	)
	if err != nil {
		return Notification{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return Notification{}, err
	}
	return scanNotification(q.db.QueryRowContext(ctx, getNotification, id))
}

const getNotification = `SELECT ` + notificationColumns + ` FROM notifications WHERE id = ?`

const listNotificationsForUser = `
SELECT ` + notificationColumns + `
FROM notifications
WHERE user_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?`

type ListNotificationsForUserParams struct {
	UserID string
	Limit  int64
}

func (q *Queries) ListNotificationsForUser(ctx context.Context, arg ListNotificationsForUserParams) ([]Notification, error) {
	rows, err := q.db.QueryContext(ctx, listNotificationsForUser, arg.UserID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Notification{}
	for rows.Next() {
		i, err := scanNotification(rows)
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

const countUnreadNotifications = `SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read = 0`

func (q *Queries) CountUnreadNotifications(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countUnreadNotifications, userID).Scan(&count)
	return count, err
}

const getNotificationForUser = `
SELECT ` + notificationColumns + `
FROM notifications
WHERE id = ? AND user_id = ?`

type GetNotificationForUserParams struct {
	ID     int64
	UserID string
}

func (q *Queries) GetNotificationForUser(ctx context.Context, arg GetNotificationForUserParams) (Notification, error) {
	return scanNotification(q.db.QueryRowContext(ctx, getNotificationForUser, arg.ID, arg.UserID))
}

const markNotificationRead = `UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?`

func (q *Queries) MarkNotificationRead(ctx context.Context, arg GetNotificationForUserParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, markNotificationRead, arg.ID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const markChallengeNotificationsRead = `
UPDATE notifications
SET read = 1
WHERE match_id = ? AND user_id = ? AND type = 'challenge' AND read = 0`

type MarkChallengeNotificationsReadParams struct {
	MatchID int64
	UserID  string
}

func (q *Queries) MarkChallengeNotificationsRead(ctx context.Context, arg MarkChallengeNotificationsReadParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, markChallengeNotificationsRead, arg.MatchID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteReadNotificationsBefore = `DELETE FROM notifications WHERE read = 1 AND created_at < ?`

func (q *Queries) DeleteReadNotificationsBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteReadNotificationsBefore, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
