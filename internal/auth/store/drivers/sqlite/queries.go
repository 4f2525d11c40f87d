package sqlite

import (
	"context"
	"database/sql"
	"time"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type queries struct {
	db dbtx
}

const userColumns = `id, external_id, display_name, picture_url, active, last_login_at, created_at, updated_at`

const getUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = ?`

const getUserByExternalID = `SELECT ` + userColumns + ` FROM users WHERE external_id = ?`

const createUser = `
INSERT INTO users (id, external_id, display_name, picture_url, active, last_login_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

const recordLogin = `
UPDATE users
SET last_login_at = ?,
    picture_url = CASE WHEN ? <> '' THEN ? ELSE picture_url END,
    updated_at = ?
WHERE id = ?`

const setUserActive = `UPDATE users SET active = ?, updated_at = ? WHERE id = ?`

const putRefreshToken = `
INSERT INTO refresh_tokens (user_id, digest, expires_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
    digest = excluded.digest,
    expires_at = excluded.expires_at,
    updated_at = excluded.updated_at`

const getRefreshToken = `
SELECT user_id, digest, expires_at, created_at, updated_at
FROM refresh_tokens WHERE user_id = ?`

const rotateRefreshToken = `
UPDATE refresh_tokens
SET digest = ?, expires_at = ?, updated_at = ?
WHERE user_id = ? AND digest = ? AND expires_at > ?`

const deleteRefreshToken = `DELETE FROM refresh_tokens WHERE user_id = ?`

const deleteExpiredRefreshTokens = `DELETE FROM refresh_tokens WHERE expires_at <= ?`

type userRow struct {
	ID          string
	ExternalID  string
	DisplayName string
	PictureURL  string
	Active      bool
	LastLoginAt sql.NullInt64
	CreatedAt   int64
	UpdatedAt   int64
}

func (q *queries) getUser(ctx context.Context, query string, arg string) (userRow, error) {
	var r userRow
	err := q.db.QueryRowContext(ctx, query, arg).Scan(
		&r.ID,
		&r.ExternalID,
		&r.DisplayName,
		&r.PictureURL,
		&r.Active,
		&r.LastLoginAt,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	return r, err
}

type refreshTokenRow struct {
	UserID    string
	Digest    string
	ExpiresAt int64
	CreatedAt int64
	UpdatedAt int64
}

func (q *queries) getRefreshToken(ctx context.Context, userID string) (refreshTokenRow, error) {
	var r refreshTokenRow
	err := q.db.QueryRowContext(ctx, getRefreshToken, userID).Scan(
		&r.UserID,
		&r.Digest,
		&r.ExpiresAt,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	return r, err
}

func (q *queries) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func unix(t time.Time) int64 { return t.Unix() }

func fromUnix(sec int64) time.Time { return time.Unix(sec, 0).UTC() }
