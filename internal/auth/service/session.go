package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/splitbill/internal/auth/domain"
	"github.com/aussiebroadwan/splitbill/internal/auth/store"
	"github.com/aussiebroadwan/splitbill/pkg/cryptox"
	"github.com/aussiebroadwan/splitbill/pkg/idx"
	"github.com/aussiebroadwan/splitbill/pkg/oidcx"
	"github.com/aussiebroadwan/splitbill/pkg/slogx"
)

// DefaultRefreshTTL bounds how long an unused refresh token stays valid.
const DefaultRefreshTTL = 30 * 24 * time.Hour

// IdentityVerifier checks an externally issued identity assertion.
type IdentityVerifier interface {
	Verify(ctx context.Context, assertion string) (oidcx.Identity, error)
}

// SessionService is the server side of the session protocol: it turns
// identity assertions into token pairs, rotates refresh tokens and decides
// whether an access token's subject may still act.
type SessionService struct {
	Store      store.Store
	Identity   IdentityVerifier
	Tokens     *AccessTokens
	RefreshTTL time.Duration
	Metrics    *Metrics

	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

func (s *SessionService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *SessionService) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return DefaultRefreshTTL
}

// CreateSession verifies assertion, finds or creates the user it names and
// issues a fresh pair, replacing any refresh token the user held before.
func (s *SessionService) CreateSession(ctx context.Context, assertion string) (domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	identity, err := s.Identity.Verify(ctx, assertion)
	if err != nil {
		l.Info("identity assertion rejected", slog.Any("error", err))
		s.Metrics.session(OutcomeRejected)
		return domain.TokenPair{}, ErrLoginRejected
	}

	var pair domain.TokenPair

	// A concurrent first login for the same subject can lose the insert race;
	// one retry then finds the row.
	for attempt := 0; ; attempt++ {
		pair, err = s.login(ctx, identity)
		if errors.Is(err, store.ErrAlreadyExists) && attempt == 0 {
			continue
		}
		break
	}

	switch {
	case errors.Is(err, ErrLoginRejected):
		s.Metrics.session(OutcomeRejected)
		return domain.TokenPair{}, err
	case err != nil:
		s.Metrics.session(OutcomeError)
		return domain.TokenPair{}, err
	}

	s.Metrics.session(OutcomeSuccess)
	return pair, nil
}

func (s *SessionService) login(ctx context.Context, identity oidcx.Identity) (domain.TokenPair, error) {
	l := slogx.FromContext(ctx)
	now := s.now()

	var pair domain.TokenPair
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		user, err := tx.Users().GetUserByExternalID(ctx, identity.Subject)
		switch {
		case errors.Is(err, store.ErrNotFound):
			user = domain.User{
				ID:          idx.New().String(),
				ExternalID:  identity.Subject,
				DisplayName: identity.DisplayName,
				PictureURL:  identity.Picture,
				Active:      true,
				LastLoginAt: &now,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := tx.Users().CreateUser(ctx, user); err != nil {
				return err
			}
			l.Info("user created", slog.String("user_id", user.ID))

		case err != nil:
			return err

		case !user.Active:
			l.Info("login refused for inactive user", slog.String("user_id", user.ID))
			return ErrLoginRejected

		default:
			if err := tx.Users().RecordLogin(ctx, user.ID, identity.Picture, now); err != nil {
				return err
			}
		}

		refresh, err := cryptox.GenerateRefreshToken(user.ID)
		if err != nil {
			return err
		}
		if err := tx.RefreshTokens().Put(ctx, domain.RefreshToken{
			UserID:    user.ID,
			Digest:    cryptox.DigestRefreshToken(refresh),
			ExpiresAt: now.Add(s.refreshTTL()),
		}); err != nil {
			return err
		}

		access, err := s.Tokens.Issue(user.ID)
		if err != nil {
			return err
		}

		pair = domain.TokenPair{
			AccessToken:  access,
			RefreshToken: cryptox.EncodeRefreshToken(refresh),
		}
		return nil
	})
	return pair, err
}

// RefreshSession rotates a refresh token. The swap is one conditional update
// keyed by the user id embedded in the token and the digest it must match, so
// of several concurrent presentations of the same token exactly one wins.
// Unknown, reused and expired tokens all yield ErrInvalidToken.
func (s *SessionService) RefreshSession(ctx context.Context, opaque string) (domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	presented, err := cryptox.DecodeRefreshToken(opaque)
	if err != nil {
		s.Metrics.refresh(OutcomeRejected)
		return domain.TokenPair{}, ErrInvalidToken
	}

	next, err := cryptox.GenerateRefreshToken(presented.UserID)
	if err != nil {
		s.Metrics.refresh(OutcomeError)
		return domain.TokenPair{}, err
	}

	now := s.now()
	ok, err := s.Store.RefreshTokens().Rotate(ctx,
		presented.UserID,
		cryptox.DigestRefreshToken(presented),
		cryptox.DigestRefreshToken(next),
		now,
		now.Add(s.refreshTTL()),
	)
	if err != nil {
		s.Metrics.refresh(OutcomeError)
		return domain.TokenPair{}, err
	}
	if !ok {
		l.Info("refresh token rejected", slog.String("user_id", presented.UserID))
		s.Metrics.refresh(OutcomeRejected)
		return domain.TokenPair{}, ErrInvalidToken
	}

	access, err := s.Tokens.Issue(presented.UserID)
	if err != nil {
		s.Metrics.refresh(OutcomeError)
		return domain.TokenPair{}, err
	}

	s.Metrics.refresh(OutcomeSuccess)
	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: cryptox.EncodeRefreshToken(next),
	}, nil
}

// Authenticate runs for every protected request once the access token has
// verified. Nothing is cached between requests.
func (s *SessionService) Authenticate(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.Metrics.authFailure()
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	if !user.Active {
		s.Metrics.authFailure()
		return domain.User{}, ErrUnauthenticated
	}
	return user, nil
}

// Revoke deletes the user's refresh token. Revoking twice is fine.
func (s *SessionService) Revoke(ctx context.Context, userID string) error {
	return s.Store.RefreshTokens().Delete(ctx, userID)
}
