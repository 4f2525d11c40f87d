package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aussiebroadwan/splitbill/internal/auth/domain"
	"github.com/aussiebroadwan/splitbill/internal/auth/store"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return NewStoreWithPool(mock), mock
}

var userCols = []string{"id", "external_id", "display_name", "picture_url", "active", "last_login_at", "created_at", "updated_at"}

func TestUsers_GetByExternalID(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, external_id, display_name, picture_url, active, last_login_at, created_at, updated_at FROM users WHERE external_id = \$1`).
		WithArgs("ext-1").
		WillReturnRows(pgxmock.NewRows(userCols).
			AddRow("u1", "ext-1", "alice", "", true, &now, now, now))

	u, err := s.Users().GetUserByExternalID(ctx, "ext-1")
	require.NoError(t, err)
	require.Equal(t, "u1", u.ID)
	require.Equal(t, "alice", u.DisplayName)
	require.True(t, u.Active)
	require.NotNil(t, u.LastLoginAt)

	mock.ExpectQuery(`FROM users WHERE external_id = \$1`).
		WithArgs("ext-2").
		WillReturnError(pgx.ErrNoRows)

	_, err = s.Users().GetUserByExternalID(ctx, "ext-2")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestUsers_CreateUniqueViolation(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	u := domain.User{ID: "u1", ExternalID: "ext-1", DisplayName: "alice", Active: true, CreatedAt: time.Now()}

	mock.ExpectExec(`INSERT INTO users \(id, external_id, display_name, picture_url, active, last_login_at, created_at, updated_at\) VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8\)`).
		WithArgs(u.ID, u.ExternalID, u.DisplayName, u.PictureURL, u.Active, u.LastLoginAt, u.CreatedAt, u.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, s.Users().CreateUser(ctx, u))

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(u.ID, u.ExternalID, u.DisplayName, u.PictureURL, u.Active, u.LastLoginAt, u.CreatedAt, u.CreatedAt).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
	require.ErrorIs(t, s.Users().CreateUser(ctx, u), store.ErrAlreadyExists)
}

func TestUsers_SetActiveMissing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE users SET active = \$2, updated_at = now\(\) WHERE id = \$1`).
		WithArgs("ghost", false).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.ErrorIs(t, s.Users().SetActive(context.Background(), "ghost", false), store.ErrNotFound)
}

func TestRefreshTokens_Rotate(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	exp := now.Add(720 * time.Hour)

	const rotate = `UPDATE refresh_tokens SET digest = \$3, expires_at = \$4, updated_at = \$5\s+WHERE user_id = \$1 AND digest = \$2 AND expires_at > \$5`

	mock.ExpectExec(rotate).
		WithArgs("u1", "digest$old", "digest$new", exp, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	ok, err := s.RefreshTokens().Rotate(ctx, "u1", "digest$old", "digest$new", now, exp)
	require.NoError(t, err)
	require.True(t, ok)

	mock.ExpectExec(rotate).
		WithArgs("u1", "digest$old", "digest$newer", exp, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	ok, err = s.RefreshTokens().Rotate(ctx, "u1", "digest$old", "digest$newer", now, exp)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRefreshTokens_DeleteExpired(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectExec(`DELETE FROM refresh_tokens WHERE expires_at <= \$1`).
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := s.RefreshTokens().DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commit", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM refresh_tokens WHERE user_id = \$1`).
			WithArgs("u1").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectCommit()

		err := s.WithTx(ctx, func(tx store.Tx) error {
			return tx.RefreshTokens().Delete(ctx, "u1")
		})
		require.NoError(t, err)
	})

	t.Run("rollback", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := s.WithTx(ctx, func(tx store.Tx) error { return boom })
		require.ErrorIs(t, err, boom)
	})
}
