package postgres

import (
	"context"
	"time"

	"github.com/aussiebroadwan/splitbill/internal/auth/domain"
	"github.com/aussiebroadwan/splitbill/internal/auth/store"
)

const userColumns = `id, external_id, display_name, picture_url, active, last_login_at, created_at, updated_at`

type usersRepo struct {
	q querier
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *usersRepo) GetUserByExternalID(ctx context.Context, externalID string) (domain.User, error) {
	return scanUser(r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE external_id = $1`, externalID))
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}

	_, err := r.q.Exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.ExternalID, u.DisplayName, u.PictureURL, u.Active, u.LastLoginAt, u.CreatedAt, u.UpdatedAt,
	)
	return mapConstraint(err)
}

func (r *usersRepo) RecordLogin(ctx context.Context, userID, picture string, at time.Time) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE users SET last_login_at = $2, picture_url = COALESCE(NULLIF($3, ''), picture_url), updated_at = $2 WHERE id = $1`,
		userID, at, picture,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *usersRepo) SetActive(ctx context.Context, userID string, active bool) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE users SET active = $2, updated_at = now() WHERE id = $1`,
		userID, active,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
