package jwtx

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aussiebroadwan/splitbill/pkg/cryptox"
	"golang.org/x/crypto/hkdf"
)

// accessKeyInfo separates derived access-token keys from any other use of
// the configured secret.
const accessKeyInfo = "splitbill access token hs256 v1"

// KeySource supplies the symmetric key used to sign and verify access tokens.
// Which source a deployment uses decides whether tokens survive restarts and
// whether several instances can verify each other's tokens.
type KeySource interface {
	Key(ctx context.Context) ([]byte, error)
}

// EphemeralKeySource generates a random key once per process. Restarting the
// process invalidates every outstanding access token, and independent
// instances cannot share a verifier.
type EphemeralKeySource struct {
	once sync.Once
	key  []byte
	err  error
}

func NewEphemeralKeySource() *EphemeralKeySource {
	return &EphemeralKeySource{}
}

func (s *EphemeralKeySource) Key(context.Context) ([]byte, error) {
	s.once.Do(func() {
		s.key, s.err = cryptox.RandomBytes(MinHMACKeySize)
	})
	return s.key, s.err
}

// SecretKeySource derives the key from a configured secret with HKDF-SHA256.
// Every instance configured with the same secret derives the same key.
type SecretKeySource struct {
	secret []byte
}

// NewSecretKeySource rejects secrets shorter than MinHMACKeySize.
func NewSecretKeySource(secret []byte) (*SecretKeySource, error) {
	if len(secret) < MinHMACKeySize {
		return nil, fmt.Errorf("jwtx: access key secret must be at least %d bytes", MinHMACKeySize)
	}
	return &SecretKeySource{secret: append([]byte(nil), secret...)}, nil
}

func (s *SecretKeySource) Key(context.Context) ([]byte, error) {
	key := make([]byte, MinHMACKeySize)
	r := hkdf.New(sha256.New, s.secret, nil, []byte(accessKeyInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("jwtx: derive access key: %w", err)
	}
	return key, nil
}

// FileKeySource loads the key from a file, generating it on first use. Point
// several instances at a shared volume to let them verify each other's tokens.
type FileKeySource struct {
	Path string

	mu  sync.Mutex
	key []byte
}

func (s *FileKeySource) Key(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key != nil {
		return s.key, nil
	}
	if s.Path == "" {
		return nil, errors.New("jwtx: key file path not set")
	}

	key, err := cryptox.LoadOrGenerateSecretFile(s.Path, MinHMACKeySize)
	if err != nil {
		return nil, err
	}
	s.key = key
	return key, nil
}

// StaticKeySource returns a fixed key. Handy in tests.
type StaticKeySource []byte

func (s StaticKeySource) Key(context.Context) ([]byte, error) {
	if len(s) < MinHMACKeySize {
		return nil, fmt.Errorf("jwtx: static key must be at least %d bytes", MinHMACKeySize)
	}
	return []byte(s), nil
}
