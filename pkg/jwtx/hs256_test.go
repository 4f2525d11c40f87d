package jwtx_test

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/splitbill/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const serviceID = "splitbill"

var testKey = bytes.Repeat([]byte{0x42}, jwtx.MinHMACKeySize)

func newPair(t *testing.T, now func() time.Time) (*jwtx.HS256Signer, *jwtx.HS256Verifier) {
	t.Helper()

	signer, err := jwtx.NewSignerHS256(testKey)
	require.NoError(t, err)

	verifier := jwtx.NewVerifierHS256(testKey, jwtx.VerifyOptions{
		Issuer:   serviceID,
		Audience: []string{serviceID},
		Leeway:   jwtx.DefaultLeeway,
		Now:      now,
	})
	return signer, verifier
}

func TestHS256SignAndVerify(t *testing.T) {
	t.Parallel()

	issued := time.Now().UTC()
	signer, verifier := newPair(t, nil)
	require.Equal(t, "HS256", signer.Alg())

	claims := jwtx.NewAccessClaims("user-123", serviceID, []string{serviceID}, jwtx.DefaultAccessTokenTTL, issued)
	token, err := signer.Sign(claims)
	require.NoError(t, err)

	parsed, err := verifier.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-123", parsed.Subject)
	require.Equal(t, serviceID, parsed.Issuer)
	require.Equal(t, claims.ID, parsed.ID)
}

func TestHS256ExpiryBoundary(t *testing.T) {
	t.Parallel()

	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ttl := jwtx.DefaultAccessTokenTTL

	var now time.Time
	signer, verifier := newPair(t, func() time.Time { return now })

	token, err := signer.Sign(jwtx.NewAccessClaims("user-1", serviceID, []string{serviceID}, ttl, issued))
	require.NoError(t, err)

	t.Run("one second before ttl", func(t *testing.T) {
		now = issued.Add(ttl - time.Second)
		_, err := verifier.Verify(token)
		require.NoError(t, err)
	})

	t.Run("inside leeway", func(t *testing.T) {
		now = issued.Add(ttl + jwtx.DefaultLeeway - time.Second)
		_, err := verifier.Verify(token)
		require.NoError(t, err)
	})

	t.Run("after ttl plus leeway", func(t *testing.T) {
		now = issued.Add(ttl + jwtx.DefaultLeeway + time.Second)
		_, err := verifier.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})
}

func TestHS256VerifyRejects(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	signer, verifier := newPair(t, nil)

	sign := func(c jwtx.Claims) string {
		tok, err := signer.Sign(c)
		require.NoError(t, err)
		return tok
	}

	t.Run("wrong issuer", func(t *testing.T) {
		tok := sign(jwtx.NewAccessClaims("u", "evil", []string{serviceID}, time.Hour, now))
		_, err := verifier.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("wrong audience", func(t *testing.T) {
		tok := sign(jwtx.NewAccessClaims("u", serviceID, []string{"other"}, time.Hour, now))
		_, err := verifier.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrAudience)
	})

	t.Run("missing subject", func(t *testing.T) {
		tok := sign(jwtx.NewAccessClaims("", serviceID, []string{serviceID}, time.Hour, now))
		_, err := verifier.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrInvalidClaim)
	})

	t.Run("different key", func(t *testing.T) {
		other, err := jwtx.NewSignerHS256(bytes.Repeat([]byte{0x01}, jwtx.MinHMACKeySize))
		require.NoError(t, err)
		tok, err := other.Sign(jwtx.NewAccessClaims("u", serviceID, []string{serviceID}, time.Hour, now))
		require.NoError(t, err)

		_, err = verifier.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("tampered payload", func(t *testing.T) {
		tok := sign(jwtx.NewAccessClaims("u", serviceID, []string{serviceID}, time.Hour, now))
		parts := strings.Split(tok, ".")
		forged := sign(jwtx.NewAccessClaims("admin", serviceID, []string{serviceID}, time.Hour, now))
		parts[1] = strings.Split(forged, ".")[1]

		_, err := verifier.Verify(strings.Join(parts, "."))
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := verifier.Verify("not-a-jwt")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})

	t.Run("asymmetric algorithm", func(t *testing.T) {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256,
			jwtx.NewAccessClaims("u", serviceID, []string{serviceID}, time.Hour, now)).SignedString(key)
		require.NoError(t, err)

		_, err = verifier.Verify(tok)
		require.Error(t, err)
	})

	t.Run("alg none", func(t *testing.T) {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodNone,
			jwtx.NewAccessClaims("u", serviceID, []string{serviceID}, time.Hour, now)).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = verifier.Verify(tok)
		require.Error(t, err)
	})
}

func TestNewSignerHS256RejectsShortKey(t *testing.T) {
	_, err := jwtx.NewSignerHS256([]byte("short"))
	require.Error(t, err)
}
