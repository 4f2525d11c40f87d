package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/splitbill/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. Sub-repositories hang off it as methods so a Tx-scoped
// Store can hand out the same repos bound to the transaction, and so nested
// transactions are refused rather than silently opened.
type Store interface {
	Users() Users
	RefreshTokens() RefreshTokens

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by internal id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByExternalID looks a user up by identity assertion subject.
	GetUserByExternalID(ctx context.Context, externalID string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	// A duplicate external id yields ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) error

	// RecordLogin stamps last_login_at and, when picture is non-empty,
	// replaces picture_url.
	RecordLogin(ctx context.Context, userID, picture string, at time.Time) error

	// SetActive flips the active flag and bumps updated_at.
	SetActive(ctx context.Context, userID string, active bool) error
}

type RefreshTokens interface {
	// Put stores the digest for userID, replacing any previous row.
	Put(ctx context.Context, t domain.RefreshToken) error

	// Get returns the stored row for userID.
	Get(ctx context.Context, userID string) (domain.RefreshToken, error)

	// Rotate swaps oldDigest for newDigest in a single conditional update.
	// It reports false when no live row for userID carried oldDigest; a
	// replayed token and an unknown one are indistinguishable.
	Rotate(ctx context.Context, userID, oldDigest, newDigest string, now, expiresAt time.Time) (bool, error)

	// Delete removes the row for userID. Deleting nothing is not an error.
	Delete(ctx context.Context, userID string) error

	// DeleteExpired removes rows that expired before now and reports how
	// many went.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
