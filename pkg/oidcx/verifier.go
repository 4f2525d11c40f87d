package oidcx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/splitbill/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidAssertion = errors.New("oidcx: invalid identity assertion")
	ErrMissingKID       = errors.New("oidcx: assertion has no kid")
	ErrAlgMismatch      = errors.New("oidcx: assertion alg does not match key")
)

// SupportedAlgs lists the assertion signing algorithms we accept.
var SupportedAlgs = []string{
	jwt.SigningMethodRS256.Alg(),
	jwt.SigningMethodES256.Alg(),
	jwt.SigningMethodEdDSA.Alg(),
}

// Verifier checks identity assertions against a KeyProvider.
type Verifier struct {
	keys     KeyProvider
	clientID string
	leeway   time.Duration

	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

// NewVerifier returns a verifier that requires clientID in the audience.
func NewVerifier(keys KeyProvider, clientID string, leeway time.Duration) *Verifier {
	return &Verifier{keys: keys, clientID: clientID, leeway: leeway}
}

// Verify checks the assertion's algorithm, kid, signature, issuer, audience
// and expiry. Every failure wraps ErrInvalidAssertion.
func (v *Verifier) Verify(ctx context.Context, assertion string) (Identity, error) {
	issuer := v.keys.Issuer()
	if issuer == "" {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidAssertion, ErrNotConfigured)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods(SupportedAlgs),
		jwt.WithoutClaimsValidation(),
	)

	var claims IdentityClaims
	_, err := parser.ParseWithClaims(assertion, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, ErrMissingKID
		}
		key, err := v.keys.Key(ctx, kid)
		if err != nil {
			return nil, err
		}
		if alg := v.keys.KeyAlg(kid); alg != "" && alg != t.Method.Alg() {
			return nil, fmt.Errorf("%w: key %s is %s, assertion is %s", ErrAlgMismatch, kid, alg, t.Method.Alg())
		}
		return key, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidAssertion, jwtx.MapParseError(err))
	}

	now := time.Now()
	if v.Now != nil {
		now = v.Now()
	}

	for _, check := range []error{
		claims.ValidateSubject(),
		claims.ValidateIssuer(issuer),
		claims.ValidateAudience([]string{v.clientID}),
		claims.ValidateExpiryAt(now, v.leeway),
	} {
		if check != nil {
			return Identity{}, fmt.Errorf("%w: %w", ErrInvalidAssertion, check)
		}
	}

	return Identity{
		Subject:     claims.Subject,
		DisplayName: claims.DisplayName(),
		Picture:     claims.Picture,
		Claims:      claims,
	}, nil
}
