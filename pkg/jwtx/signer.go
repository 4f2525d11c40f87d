package jwtx

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// MinHMACKeySize is the smallest HS256 key we accept (256 bits).
const MinHMACKeySize = 32

// Signer is our interface for anything that can sign JWTs.
type Signer interface {
	Alg() string
	Sign(Claims) (string, error)
}

// HS256Signer signs access tokens with a symmetric key. The same key backs
// the matching HS256Verifier, so it must never leave the service.
type HS256Signer struct {
	key []byte
}

// NewSignerHS256 creates an HS256 signer. Keys shorter than MinHMACKeySize
// are rejected.
func NewSignerHS256(key []byte) (*HS256Signer, error) {
	if len(key) < MinHMACKeySize {
		return nil, errors.New("jwtx: HS256 key too short")
	}
	return &HS256Signer{key: append([]byte(nil), key...)}, nil
}

func (s *HS256Signer) Alg() string { return jwt.SigningMethodHS256.Alg() }

// Sign takes your claims and turns them into a signed JWT string.
func (s *HS256Signer) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.key)
}
