package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/splitbill/internal/auth/domain"
	"github.com/aussiebroadwan/splitbill/internal/auth/store"
)

type usersRepo struct {
	q *queries
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row, err := r.q.getUser(ctx, getUserByID, id)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return mapUser(row), nil
}

func (r *usersRepo) GetUserByExternalID(ctx context.Context, externalID string) (domain.User, error) {
	row, err := r.q.getUser(ctx, getUserByExternalID, externalID)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return mapUser(row), nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}

	var lastLogin any
	if u.LastLoginAt != nil {
		lastLogin = unix(*u.LastLoginAt)
	}

	_, err := r.q.exec(ctx, createUser,
		u.ID,
		u.ExternalID,
		u.DisplayName,
		u.PictureURL,
		u.Active,
		lastLogin,
		unix(u.CreatedAt),
		unix(u.UpdatedAt),
	)
	return mapConstraint(err)
}

func (r *usersRepo) RecordLogin(ctx context.Context, userID, picture string, at time.Time) error {
	n, err := r.q.exec(ctx, recordLogin, unix(at), picture, picture, unix(at), userID)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *usersRepo) SetActive(ctx context.Context, userID string, active bool) error {
	n, err := r.q.exec(ctx, setUserActive, active, unix(time.Now()), userID)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
