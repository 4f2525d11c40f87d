package oidcx

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/splitbill/pkg/jwtx"
)

// StaticKeys is a fixed KeyProvider. Algs optionally pins a kid to one
// signing algorithm.
type StaticKeys struct {
	Iss  string
	Keys map[string]any
	Algs map[string]string
}

func (s StaticKeys) Issuer() string { return s.Iss }

func (s StaticKeys) KeyAlg(kid string) string { return s.Algs[kid] }

func (s StaticKeys) Key(_ context.Context, kid string) (any, error) {
	key, ok := s.Keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", jwtx.ErrUnknownKID, kid)
	}
	return key, nil
}
