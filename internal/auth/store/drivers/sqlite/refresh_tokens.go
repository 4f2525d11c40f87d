package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/splitbill/internal/auth/domain"
)

type refreshTokensRepo struct {
	q *queries
}

func (r *refreshTokensRepo) Put(ctx context.Context, t domain.RefreshToken) error {
	now := time.Now()
	_, err := r.q.exec(ctx, putRefreshToken,
		t.UserID,
		t.Digest,
		unix(t.ExpiresAt),
		unix(now),
		unix(now),
	)
	return err
}

func (r *refreshTokensRepo) Get(ctx context.Context, userID string) (domain.RefreshToken, error) {
	row, err := r.q.getRefreshToken(ctx, userID)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	return mapRefreshToken(row), nil
}

func (r *refreshTokensRepo) Rotate(
	ctx context.Context,
	userID, oldDigest, newDigest string,
	now, expiresAt time.Time,
) (bool, error) {
	n, err := r.q.exec(ctx, rotateRefreshToken,
		newDigest,
		unix(expiresAt),
		unix(now),
		userID,
		oldDigest,
		unix(now),
	)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *refreshTokensRepo) Delete(ctx context.Context, userID string) error {
	_, err := r.q.exec(ctx, deleteRefreshToken, userID)
	return err
}

func (r *refreshTokensRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.q.exec(ctx, deleteExpiredRefreshTokens, unix(now))
}
