package oidcx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aussiebroadwan/splitbill/pkg/jwtx"
	"golang.org/x/time/rate"
)

var (
	ErrDiscovery       = errors.New("oidcx: discovery failed")
	ErrKeyFetch        = errors.New("oidcx: key fetch failed")
	ErrKeyFetchLimited = errors.New("oidcx: key fetch rate limited")
	ErrNotConfigured   = errors.New("oidcx: provider not configured")
)

// Provider defaults.
const (
	DefaultFetchTimeout      = 10 * time.Second
	DefaultMissFetchInterval = time.Minute
	DefaultMissFetchBurst    = 3
)

// KeyProvider resolves assertion signing keys by kid and reports the issuer
// assertions must carry. KeyAlg returns the algorithm published for kid, or
// "" when the key does not pin one.
type KeyProvider interface {
	Issuer() string
	Key(ctx context.Context, kid string) (any, error)
	KeyAlg(kid string) string
}

// ProviderConfig configures a Provider. Zero values take the package
// defaults.
type ProviderConfig struct {
	DiscoveryURL string

	FetchTimeout      time.Duration
	CacheSize         int
	KeyTTL            time.Duration
	MissFetchInterval time.Duration
	MissFetchBurst    int

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Provider tracks an external identity provider: its discovery document and
// its published signing keys. Keys live in a bounded TTL cache; a lookup for
// an unknown kid triggers a key set fetch, throttled so forged kids cannot
// turn the verifier into a request amplifier.
type Provider struct {
	discoveryURL string
	timeout      time.Duration
	client       *http.Client
	logger       *slog.Logger

	keys    *jwtx.KeyCache
	limiter *rate.Limiter

	mu          sync.RWMutex
	doc         *Discovery
	refreshedAt time.Time
}

// NewProvider creates a Provider. No network calls happen until Refresh.
func NewProvider(cfg ProviderConfig) *Provider {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.MissFetchInterval <= 0 {
		cfg.MissFetchInterval = DefaultMissFetchInterval
	}
	if cfg.MissFetchBurst <= 0 {
		cfg.MissFetchBurst = DefaultMissFetchBurst
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.FetchTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Provider{
		discoveryURL: cfg.DiscoveryURL,
		timeout:      cfg.FetchTimeout,
		client:       cfg.HTTPClient,
		logger:       cfg.Logger,
		keys:         jwtx.NewKeyCache(cfg.CacheSize, cfg.KeyTTL),
		limiter:      rate.NewLimiter(rate.Every(cfg.MissFetchInterval), cfg.MissFetchBurst),
	}
}

// Refresh re-reads the discovery document and the key set. On any failure
// the configuration in effect before the call is kept and the error is
// returned for the caller to log.
func (p *Provider) Refresh(ctx context.Context) error {
	if p.discoveryURL == "" {
		return ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	doc, err := FetchDiscovery(ctx, p.client, p.discoveryURL)
	if err != nil {
		return err
	}

	set, err := FetchJWKS(ctx, p.client, doc.JWKSURI)
	if err != nil {
		return err
	}
	n, err := p.keys.AddJWKS(set)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrKeyFetch, err)
	}

	p.mu.Lock()
	p.doc = &doc
	p.refreshedAt = time.Now()
	p.mu.Unlock()

	p.logger.Info("identity provider refreshed", "issuer", doc.Issuer, "keys", n)
	return nil
}

// Issuer returns the discovered issuer, or "" before the first successful
// Refresh.
func (p *Provider) Issuer() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.doc == nil {
		return ""
	}
	return p.doc.Issuer
}

// RefreshedAt reports when the configuration was last replaced.
func (p *Provider) RefreshedAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.refreshedAt
}

// KeyAlg returns the alg the JWKS declared for kid.
func (p *Provider) KeyAlg(kid string) string { return p.keys.Alg(kid) }

// Key returns the verification key for kid.
func (p *Provider) Key(ctx context.Context, kid string) (any, error) {
	if key, err := p.keys.Get(kid); err == nil {
		return key, nil
	}

	p.mu.RLock()
	doc := p.doc
	p.mu.RUnlock()
	if doc == nil {
		return nil, ErrNotConfigured
	}

	if !p.limiter.Allow() {
		p.logger.Warn("identity key fetch throttled", "kid", kid)
		return nil, ErrKeyFetchLimited
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	set, err := FetchJWKS(ctx, p.client, doc.JWKSURI)
	if err != nil {
		return nil, err
	}
	if _, err := p.keys.AddJWKS(set); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyFetch, err)
	}

	key, err := p.keys.Get(kid)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", jwtx.ErrUnknownKID, err)
	}
	return key, nil
}

// PurgeKeys drops expired keys from the cache.
func (p *Provider) PurgeKeys() int {
	return p.keys.Purge()
}

// IsReady reports whether the provider has a configuration and at least one
// live key.
func (p *Provider) IsReady() bool {
	return p.Issuer() != "" && p.keys.IsReady()
}
