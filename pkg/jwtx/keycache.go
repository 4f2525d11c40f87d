package jwtx

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrNoKey = errors.New("jwtx: key not found")

// Defaults for provider key caching.
const (
	DefaultKeyCacheSize = 32
	DefaultKeyTTL       = 24 * time.Hour
)

type cachedKey struct {
	key     any
	alg     string
	expires time.Time
}

// KeyCache holds verification keys fetched from an identity provider, keyed
// by kid. It is bounded: once full, the entry closest to expiry is evicted.
// Entries past their TTL are treated as missing. Safe for concurrent use;
// request paths only read it.
type KeyCache struct {
	mu      sync.RWMutex
	entries map[string]cachedKey
	maxSize int
	ttl     time.Duration

	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

// NewKeyCache returns an empty cache. Non-positive arguments fall back to the
// package defaults.
func NewKeyCache(maxSize int, ttl time.Duration) *KeyCache {
	if maxSize <= 0 {
		maxSize = DefaultKeyCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultKeyTTL
	}
	return &KeyCache{
		entries: make(map[string]cachedKey, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

func (c *KeyCache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Get returns the live key for kid.
func (c *KeyCache) Get(kid string) (any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[kid]
	if !ok || !c.now().Before(e.expires) {
		return nil, ErrNoKey
	}
	return e.key, nil
}

// Alg returns the algorithm the provider declared for kid, if any.
func (c *KeyCache) Alg(kid string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[kid].alg
}

// AddJWK parses j and stores it with a fresh TTL.
func (c *KeyCache) AddJWK(j JWK) error {
	if j.Kid == "" {
		return errors.New("jwtx: jwk without kid")
	}
	key, err := ParseJWK(j)
	if err != nil {
		return fmt.Errorf("jwtx: parse jwk %q: %w", j.Kid, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(j.Kid, cachedKey{key: key, alg: j.Alg, expires: c.now().Add(c.ttl)})
	return nil
}

// AddJWKS stores every signing key in the set. Keys we cannot use (wrong use,
// unsupported type) are skipped; an error is returned only when nothing in a
// non-empty set was usable.
func (c *KeyCache) AddJWKS(set JWKS) (int, error) {
	var (
		added int
		errs  []error
	)
	for _, j := range set.Keys {
		if j.Use != "" && j.Use != "sig" {
			continue
		}
		if err := c.AddJWK(j); err != nil {
			errs = append(errs, err)
			continue
		}
		added++
	}

	if added == 0 && len(errs) > 0 {
		return 0, errors.Join(errs...)
	}
	return added, nil
}

// put inserts under the write lock, evicting when full.
func (c *KeyCache) put(kid string, e cachedKey) {
	if _, exists := c.entries[kid]; !exists && len(c.entries) >= c.maxSize {
		c.purgeLocked()
	}
	if _, exists := c.entries[kid]; !exists && len(c.entries) >= c.maxSize {
		var (
			victim string
			soon   time.Time
		)
		for k, v := range c.entries {
			if victim == "" || v.expires.Before(soon) {
				victim, soon = k, v.expires
			}
		}
		delete(c.entries, victim)
	}
	c.entries[kid] = e
}

// Purge drops expired entries and reports how many were removed.
func (c *KeyCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purgeLocked()
}

func (c *KeyCache) purgeLocked() int {
	now := c.now()
	removed := 0
	for kid, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, kid)
			removed++
		}
	}
	return removed
}

// Len reports the number of entries, expired or not.
func (c *KeyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// IsReady returns true if at least one live key is cached.
func (c *KeyCache) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	for _, e := range c.entries {
		if now.Before(e.expires) {
			return true
		}
	}
	return false
}
