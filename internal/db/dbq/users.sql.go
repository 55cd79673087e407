package dbq

import (
	"context"
	"database/sql"
	"time"
)

const userColumns = `id, email, display_name, role, phone, city, avatar_url, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (User, error) {
	var i User
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.DisplayName,
		&i.Role,
		&i.Phone,
		&i.City,
		&i.AvatarURL,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func (q *Queries) queryUsers(ctx context.Context, query string, args ...interface{}) ([]User, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []User{}
	for rows.Next() {
		i, err := scanUser(rows)
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

// userAfterUpdate reloads a user after an UPDATE, reporting sql.ErrNoRows
// when nothing matched.
func (q *Queries) userAfterUpdate(ctx context.Context, id string, result sql.Result, err error) (User, error) {
	if err != nil {
		return User{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return User{}, err
	}
	if affected == 0 {
		return User{}, sql.ErrNoRows
	}
	return q.GetUser(ctx, id)
}

const createUser = `
INSERT INTO users (id, email, display_name, role, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`

type CreateUserParams struct {
	ID          string
	Email       string
	DisplayName string
	Role        string
	CreatedAt   time.Time
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	if _, err := q.db.ExecContext(ctx, createUser,
		arg.ID,
		arg.Email,
		arg.DisplayName,
		arg.Role,
		arg.CreatedAt,
		arg.CreatedAt,
	); err != nil {
		return User{}, err
	}
	return q.GetUser(ctx, arg.ID)
}

const upsertUser = `
INSERT INTO users (id, email, display_name, role, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    email = excluded.email,
    display_name = excluded.display_name,
    role = excluded.role,
    updated_at = excluded.updated_at`

func (q *Queries) UpsertUser(ctx context.Context, arg CreateUserParams) (User, error) {
	if _, err := q.db.ExecContext(ctx, upsertUser,
		arg.ID,
		arg.Email,
		arg.DisplayName,
		arg.Role,
		arg.CreatedAt,
		arg.CreatedAt,
	); err != nil {
		return User{}, err
	}
	return q.GetUser(ctx, arg.ID)
}

const getUser = `SELECT ` + userColumns + ` FROM users WHERE id = ?`

func (q *Queries) GetUser(ctx context.Context, id string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUser, id))
}

const getUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE email = ?`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByEmail, email))
}

const listUsers = `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC, id`

func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	return q.queryUsers(ctx, listUsers)
}

// Players without a display name are not offered as opponents.
const listPlayers = `
SELECT ` + userColumns + `
FROM users
WHERE display_name <> ''
ORDER BY display_name COLLATE NOCASE, id`

func (q *Queries) ListPlayers(ctx context.Context) ([]User, error) {
	return q.queryUsers(ctx, listPlayers)
}

const updateUserProfile = `
UPDATE users
SET display_name = ?, phone = ?, city = ?, updated_at = ?
WHERE id = ?`

type UpdateUserProfileParams struct {
	ID          string
	DisplayName string
	Phone       sql.NullString
	City        sql.NullString
	UpdatedAt   time.Time
}

func (q *Queries) UpdateUserProfile(ctx context.Context, arg UpdateUserProfileParams) (User, error) {
	result, err := q.db.ExecContext(ctx, updateUserProfile,
		arg.DisplayName,
		arg.Phone,
		arg.City,
		arg.UpdatedAt,
		arg.ID,
	)
	return q.userAfterUpdate(ctx, arg.ID, result, err)
}

const updateUserAvatar = `
UPDATE users
SET avatar_url = ?, updated_at = ?
WHERE id = ?`

type UpdateUserAvatarParams struct {
	ID        string
	AvatarURL string
	UpdatedAt time.Time
}

func (q *Queries) UpdateUserAvatar(ctx context.Context, arg UpdateUserAvatarParams) (User, error) {
	result, err := q.db.ExecContext(ctx, updateUserAvatar, arg.AvatarURL, arg.UpdatedAt, arg.ID)
	return q.userAfterUpdate(ctx, arg.ID, result, err)
}

const updateUserRole = `
UPDATE users
SET role = ?, updated_at = ?
WHERE id = ?`

type UpdateUserRoleParams struct {
	ID        string
	Role      string
	UpdatedAt time.Time
}

func (q *Queries) UpdateUserRole(ctx context.Context, arg UpdateUserRoleParams) (User, error) {
	result, err := q.db.ExecContext(ctx, updateUserRole, arg.Role, arg.UpdatedAt, arg.ID)
	return q.userAfterUpdate(ctx, arg.ID, result, err)
}

const deleteUser = `DELETE FROM users WHERE id = ?`

func (q *Queries) DeleteUser(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteUser, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const countUsers = `SELECT COUNT(*) FROM users`

func (q *Queries) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countUsers).Scan(&count)
	return count, err
}

const countUsersByRole = `SELECT COUNT(*) FROM users WHERE role = ?`

func (q *Queries) CountUsersByRole(ctx context.Context, role string) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countUsersByRole, role).Scan(&count)
	return count, err
}
