package oidcx

import "github.com/aussiebroadwan/splitbill/pkg/jwtx"

// IdentityClaims are the claims read from an identity assertion.
type IdentityClaims struct {
	jwtx.Claims

	PreferredUsername string `json:"preferred_username,omitempty"`
	Nickname          string `json:"nickname,omitempty"`
	GivenName         string `json:"given_name,omitempty"`
	Email             string `json:"email,omitempty"`
	Picture           string `json:"picture,omitempty"`
}

// DisplayName picks the first non-empty of preferred_username, nickname,
// given_name, email and finally sub.
func (c IdentityClaims) DisplayName() string {
	for _, v := range []string{c.PreferredUsername, c.Nickname, c.GivenName, c.Email} {
		if v != "" {
			return v
		}
	}
	return c.Subject
}

// Identity is a verified external identity.
type Identity struct {
	Subject     string
	DisplayName string
	Picture     string
	Claims      IdentityClaims
}
