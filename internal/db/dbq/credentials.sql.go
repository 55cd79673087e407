package dbq

import (
	"context"
	"time"
)

const credentialColumns = `subject, email, password_hash, created_at, updated_at`

func scanCredential(row interface{ Scan(...interface{}) error }) (LocalCredential, error) {
	var i LocalCredential
	err := row.Scan(&i.Subject, &i.Email, &i.PasswordHash, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const createLocalCredential = `
INSERT INTO local_credentials (subject, email, password_hash, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)`

type CreateLocalCredentialParams struct {
	Subject      string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

func (q *Queries) CreateLocalCredential(ctx context.Context, arg CreateLocalCredentialParams) error {
	_, err := q.db.ExecContext(ctx, createLocalCredential,
		arg.Subject,
		arg.Email,
		arg.PasswordHash,
		arg.CreatedAt,
		arg.CreatedAt,
	)
	return err
}

const getLocalCredential = `SELECT ` + credentialColumns + ` FROM local_credentials WHERE subject = ?`

func (q *Queries) GetLocalCredential(ctx context.Context, subject string) (LocalCredential, error) {
	return scanCredential(q.db.QueryRowContext(ctx, getLocalCredential, subject))
}

const getLocalCredentialByEmail = `SELECT ` + credentialColumns + ` FROM local_credentials WHERE email = ?`

func (q *Queries) GetLocalCredentialByEmail(ctx context.Context, email string) (LocalCredential, error) {
	return scanCredential(q.db.QueryRowContext(ctx, getLocalCredentialByEmail, email))
}

const updateLocalPassword = `
UPDATE local_credentials
SET password_hash = ?, updated_at = ?
WHERE subject = ?`

type UpdateLocalPasswordParams struct {
	Subject      string
	PasswordHash string
	UpdatedAt    time.Time
}

func (q *Queries) UpdateLocalPassword(ctx context.Context, arg UpdateLocalPasswordParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateLocalPassword, arg.PasswordHash, arg.UpdatedAt, arg.Subject)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteLocalCredential = `DELETE FROM local_credentials WHERE subject = ?`

func (q *Queries) DeleteLocalCredential(ctx context.Context, subject string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteLocalCredential, subject)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const createPasswordReset = `
INSERT INTO password_resets (token_hash, subject, expires_at, created_at)
VALUES (?, ?, ?, ?)`

type CreatePasswordResetParams struct {
	TokenHash string
	Subject   string
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (q *Queries) CreatePasswordReset(ctx context.Context, arg CreatePasswordResetParams) error {
	_, err := q.db.ExecContext(ctx, createPasswordReset, arg.TokenHash, arg.Subject, arg.ExpiresAt, arg.CreatedAt)
	return err
}

const getPasswordReset = `
SELECT token_hash, subject, expires_at, used_at, created_at
FROM password_resets
WHERE token_hash = ?`

func (q *Queries) GetPasswordReset(ctx context.Context, tokenHash string) (PasswordReset, error) {
	var i PasswordReset
	err := q.db.QueryRowContext(ctx, getPasswordReset, tokenHash).Scan(
		&i.TokenHash,
		&i.Subject,
		&i.ExpiresAt,
		&i.UsedAt,
		&i.CreatedAt,
	)
	return i, err
}

const markPasswordResetUsed = `
UPDATE password_resets
SET used_at = ?
WHERE token_hash = ? AND used_at IS NULL`

type MarkPasswordResetUsedParams struct {
	TokenHash string
	UsedAt    time.Time
}

func (q *Queries) MarkPasswordResetUsed(ctx context.Context, arg MarkPasswordResetUsedParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, markPasswordResetUsed, arg.UsedAt, arg.TokenHash)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
