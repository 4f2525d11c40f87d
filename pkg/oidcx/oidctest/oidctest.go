// Package oidctest runs a fake identity provider in-process: an httptest
// server publishing a discovery document and a key set, plus helpers to mint
// assertions signed by it.
package oidctest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/splitbill/pkg/jwtx"
	"github.com/aussiebroadwan/splitbill/pkg/oidcx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	DiscoveryPath = "/.well-known/openid-configuration"
	JWKSPath      = "/jwks.json"
)

type signingKey struct {
	kid  string
	priv *rsa.PrivateKey
}

// Provider is a fake identity provider.
type Provider struct {
	Server   *httptest.Server
	ClientID string

	mu      sync.Mutex
	keys    []signingKey
	failing bool

	discoveryHits atomic.Int64
	jwksHits      atomic.Int64
}

// New starts a provider that issues assertions for clientID. The server is
// closed when the test finishes.
func New(t testing.TB, clientID string) *Provider {
	t.Helper()

	p := &Provider{ClientID: clientID}
	p.addKey(t)

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+DiscoveryPath, p.serveDiscovery)
	mux.HandleFunc("GET "+JWKSPath, p.serveJWKS)
	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Server.Close)

	return p
}

// Issuer is the provider's issuer identifier.
func (p *Provider) Issuer() string { return p.Server.URL }

// DiscoveryURL is the address of the configuration document.
func (p *Provider) DiscoveryURL() string { return p.Server.URL + DiscoveryPath }

// DiscoveryHits counts discovery requests served.
func (p *Provider) DiscoveryHits() int { return int(p.discoveryHits.Load()) }

// JWKSHits counts key set requests served.
func (p *Provider) JWKSHits() int { return int(p.jwksHits.Load()) }

// SetFailing makes every endpoint answer 500 until cleared.
func (p *Provider) SetFailing(failing bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failing = failing
}

// RotateKey publishes a new signing key alongside the old ones and makes it
// the key used by Sign. It returns the new kid.
func (p *Provider) RotateKey(t testing.TB) string {
	t.Helper()
	return p.addKey(t)
}

func (p *Provider) addKey(t testing.TB) string {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	p.mu.Lock()
	defer p.mu.Unlock()
	kid := fmt.Sprintf("test-key-%d", len(p.keys)+1)
	p.keys = append(p.keys, signingKey{kid: kid, priv: priv})
	return kid
}

func (p *Provider) current() signingKey {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.keys[len(p.keys)-1]
}

func (p *Provider) isFailing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failing
}

func (p *Provider) serveDiscovery(w http.ResponseWriter, r *http.Request) {
	p.discoveryHits.Add(1)
	if p.isFailing() {
		http.Error(w, "unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, oidcx.Discovery{
		Issuer:  p.Issuer(),
		JWKSURI: p.Server.URL + JWKSPath,
	})
}

func (p *Provider) serveJWKS(w http.ResponseWriter, r *http.Request) {
	p.jwksHits.Add(1)
	if p.isFailing() {
		http.Error(w, "unavailable", http.StatusInternalServerError)
		return
	}

	p.mu.Lock()
	set := jwtx.JWKS{Keys: make([]jwtx.JWK, 0, len(p.keys))}
	for _, k := range p.keys {
		set.Keys = append(set.Keys, jwtx.NewRSAJWK(k.kid, "RS256", &k.priv.PublicKey))
	}
	p.mu.Unlock()

	writeJSON(w, set)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// Claims returns valid claims for subject, good for ten minutes.
func (p *Provider) Claims(subject string) oidcx.IdentityClaims {
	now := time.Now()
	return oidcx.IdentityClaims{
		Claims: jwtx.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    p.Issuer(),
				Subject:   subject,
				Audience:  jwt.ClaimStrings{p.ClientID},
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
			},
		},
	}
}

// Sign signs claims with the current key.
func (p *Provider) Sign(t testing.TB, claims oidcx.IdentityClaims) string {
	t.Helper()

	k := p.current()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = k.kid
	s, err := tok.SignedString(k.priv)
	require.NoError(t, err)
	return s
}

// Assertion mints a valid assertion for subject.
func (p *Provider) Assertion(t testing.TB, subject string) string {
	t.Helper()
	return p.Sign(t, p.Claims(subject))
}

// Expired mints an assertion that expired an hour ago.
func (p *Provider) Expired(t testing.TB, subject string) string {
	t.Helper()
	c := p.Claims(subject)
	past := time.Now().Add(-time.Hour)
	c.IssuedAt = jwt.NewNumericDate(past.Add(-10 * time.Minute))
	c.ExpiresAt = jwt.NewNumericDate(past)
	return p.Sign(t, c)
}

// Tampered returns an assertion for subject whose payload was swapped after
// signing, so the signature no longer matches.
func (p *Provider) Tampered(t testing.TB, subject string) string {
	t.Helper()
	genuine := strings.Split(p.Assertion(t, "someone-else"), ".")
	forged := strings.Split(p.Assertion(t, subject), ".")
	genuine[1] = forged[1]
	return strings.Join(genuine, ".")
}
