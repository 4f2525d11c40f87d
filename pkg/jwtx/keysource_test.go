package jwtx_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/splitbill/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestEphemeralKeySource(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	a := jwtx.NewEphemeralKeySource()
	k1, err := a.Key(ctx)
	require.NoError(t, err)
	require.Len(t, k1, jwtx.MinHMACKeySize)

	k2, err := a.Key(ctx)
	require.NoError(t, err)
	require.Equal(t, k1, k2, "key must be stable for the life of the source")

	b := jwtx.NewEphemeralKeySource()
	k3, err := b.Key(ctx)
	require.NoError(t, err)
	require.NotEqual(t, k1, k3, "separate processes get separate keys")
}

func TestSecretKeySource(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	secret := bytes.Repeat([]byte("s"), 48)

	t.Run("same secret derives same key", func(t *testing.T) {
		a, err := jwtx.NewSecretKeySource(secret)
		require.NoError(t, err)
		b, err := jwtx.NewSecretKeySource(secret)
		require.NoError(t, err)

		ka, err := a.Key(ctx)
		require.NoError(t, err)
		kb, err := b.Key(ctx)
		require.NoError(t, err)
		require.Equal(t, ka, kb)
		require.Len(t, ka, jwtx.MinHMACKeySize)
		require.NotEqual(t, secret[:jwtx.MinHMACKeySize], ka, "key is derived, not the raw secret")
	})

	t.Run("different secrets differ", func(t *testing.T) {
		a, err := jwtx.NewSecretKeySource(secret)
		require.NoError(t, err)
		b, err := jwtx.NewSecretKeySource(bytes.Repeat([]byte("t"), 48))
		require.NoError(t, err)

		ka, _ := a.Key(ctx)
		kb, _ := b.Key(ctx)
		require.NotEqual(t, ka, kb)
	})

	t.Run("short secret rejected", func(t *testing.T) {
		_, err := jwtx.NewSecretKeySource([]byte("too-short"))
		require.Error(t, err)
	})
}

func TestFileKeySource(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "keys", "access.key")

	first := &jwtx.FileKeySource{Path: path}
	k1, err := first.Key(ctx)
	require.NoError(t, err)
	require.Len(t, k1, jwtx.MinHMACKeySize)

	// A second instance pointed at the same file shares the key.
	second := &jwtx.FileKeySource{Path: path}
	k2, err := second.Key(ctx)
	require.NoError(t, err)
	require.Equal(t, k1, k2)

	t.Run("missing path", func(t *testing.T) {
		_, err := (&jwtx.FileKeySource{}).Key(ctx)
		require.Error(t, err)
	})
}

func TestStaticKeySource(t *testing.T) {
	ctx := context.Background()

	key, err := jwtx.StaticKeySource(testKey).Key(ctx)
	require.NoError(t, err)
	require.Equal(t, testKey, key)

	_, err = jwtx.StaticKeySource("short").Key(ctx)
	require.Error(t, err)
}
