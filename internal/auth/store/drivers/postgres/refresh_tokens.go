package postgres

import (
	"context"
	"time"

	"github.com/aussiebroadwan/splitbill/internal/auth/domain"
)

type refreshTokensRepo struct {
	q querier
}

func (r *refreshTokensRepo) Put(ctx context.Context, t domain.RefreshToken) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO refresh_tokens (user_id, digest, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET digest = EXCLUDED.digest, expires_at = EXCLUDED.expires_at, updated_at = now()`,
		t.UserID, t.Digest, t.ExpiresAt,
	)
	return err
}

func (r *refreshTokensRepo) Get(ctx context.Context, userID string) (domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := r.q.QueryRow(ctx,
		`SELECT user_id, digest, expires_at, created_at, updated_at FROM refresh_tokens WHERE user_id = $1`,
		userID,
	).Scan(&t.UserID, &t.Digest, &t.ExpiresAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	return t, nil
}

func (r *refreshTokensRepo) Rotate(
	ctx context.Context,
	userID, oldDigest, newDigest string,
	now, expiresAt time.Time,
) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE refresh_tokens SET digest = $3, expires_at = $4, updated_at = $5
		 WHERE user_id = $1 AND digest = $2 AND expires_at > $5`,
		userID, oldDigest, newDigest, expiresAt, now,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *refreshTokensRepo) Delete(ctx context.Context, userID string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	return err
}

func (r *refreshTokensRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
