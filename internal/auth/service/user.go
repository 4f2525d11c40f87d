package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/splitbill/internal/auth/domain"
	"github.com/aussiebroadwan/splitbill/internal/auth/store"
	"github.com/aussiebroadwan/splitbill/pkg/slogx"
)

type UserService struct {
	Store store.Store
}

// GetUser fetches a user by id.
func (s *UserService) GetUser(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	return u, err
}

// Deactivate marks the user inactive and revokes their refresh token in one
// transaction. Outstanding access tokens stop working on their next use.
func (s *UserService) Deactivate(ctx context.Context, userID string) error {
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().SetActive(ctx, userID, false); err != nil {
			return err
		}
		return tx.RefreshTokens().Delete(ctx, userID)
	})
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("user deactivated", slog.String("user_id", userID))
	return nil
}

// Reactivate lets the user log in again. No session is restored.
func (s *UserService) Reactivate(ctx context.Context, userID string) error {
	err := s.Store.Users().SetActive(ctx, userID, true)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}
