package oidcx_test

import (
	"testing"

	"github.com/aussiebroadwan/splitbill/pkg/jwtx"
	"github.com/aussiebroadwan/splitbill/pkg/oidcx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestDisplayNameOrder(t *testing.T) {
	t.Parallel()

	base := oidcx.IdentityClaims{
		Claims:            jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "sub-1"}},
		PreferredUsername: "pref",
		Nickname:          "nick",
		GivenName:         "given",
		Email:             "mail@example.com",
	}

	c := base
	require.Equal(t, "pref", c.DisplayName())

	c.PreferredUsername = ""
	require.Equal(t, "nick", c.DisplayName())

	c.Nickname = ""
	require.Equal(t, "given", c.DisplayName())

	c.GivenName = ""
	require.Equal(t, "mail@example.com", c.DisplayName())

	c.Email = ""
	require.Equal(t, "sub-1", c.DisplayName())
}
