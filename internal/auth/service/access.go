package service

import (
	"context"
	"fmt"
	"time"

	"github.com/aussiebroadwan/splitbill/pkg/jwtx"
)

// AccessTokens issues and verifies the service's own HS256 access tokens.
// The key is resolved once from the KeySource when constructed.
type AccessTokens struct {
	ServiceID string
	TTL       time.Duration

	signer   *jwtx.HS256Signer
	verifier *jwtx.HS256Verifier
	now      func() time.Time
}

// AccessTokenConfig configures NewAccessTokens. Zero durations take the jwtx
// defaults.
type AccessTokenConfig struct {
	Keys      jwtx.KeySource
	ServiceID string
	TTL       time.Duration
	Leeway    time.Duration
	Now       func() time.Time
}

func NewAccessTokens(ctx context.Context, cfg AccessTokenConfig) (*AccessTokens, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = jwtx.DefaultAccessTokenTTL
	}
	if cfg.Leeway <= 0 {
		cfg.Leeway = jwtx.DefaultLeeway
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	key, err := cfg.Keys.Key(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve access token key: %w", err)
	}

	signer, err := jwtx.NewSignerHS256(key)
	if err != nil {
		return nil, err
	}

	verifier := jwtx.NewVerifierHS256(key, jwtx.VerifyOptions{
		Issuer:   cfg.ServiceID,
		Audience: []string{cfg.ServiceID},
		Leeway:   cfg.Leeway,
		Now:      cfg.Now,
	})

	return &AccessTokens{
		ServiceID: cfg.ServiceID,
		TTL:       cfg.TTL,
		signer:    signer,
		verifier:  verifier,
		now:       cfg.Now,
	}, nil
}

// Issue mints an access token for userID.
func (a *AccessTokens) Issue(userID string) (string, error) {
	claims := jwtx.NewAccessClaims(userID, a.ServiceID, []string{a.ServiceID}, a.TTL, a.now())
	return a.signer.Sign(claims)
}

// Verify returns the token's subject. Every failure wraps ErrInvalidToken.
func (a *AccessTokens) Verify(token string) (string, error) {
	claims, err := a.verifier.Verify(token)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims.Subject, nil
}

// Check signs and verifies a throwaway token. Readiness probes use it.
func (a *AccessTokens) Check() error {
	tok, err := a.Issue("readiness-probe")
	if err != nil {
		return err
	}
	_, err = a.Verify(tok)
	return err
}
