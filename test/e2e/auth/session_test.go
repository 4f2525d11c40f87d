package auth_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aussiebroadwan/splitbill/internal/auth/store/drivers/postgres/postgrestest"
	"github.com/aussiebroadwan/splitbill/pkg/authsdk"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// TestSessionLifecycle drives the service through the SDK the way a client
// app would. One database is shared; every subtest runs its own service.
func TestSessionLifecycle(t *testing.T) {
	dsn := postgrestest.Start(t)

	t.Run("health", func(t *testing.T) {
		svc := startService(t, dsn)
		client := authsdk.NewSDKClient(svc.baseURL)

		live, err := client.GetLiveness(t.Context())
		assertHealthy(t, live, err)

		ready, err := client.GetReadiness(t.Context())
		assertHealthy(t, ready, err)
		require.Equal(t, "ok", ready.Checks.Database)
		require.Equal(t, "ok", ready.Checks.IdentityProvider)
	})

	t.Run("login and call", func(t *testing.T) {
		svc := startService(t, dsn)
		mgr := svc.newManager(&authsdk.MemoryStore{})

		_, err := mgr.User(t.Context())
		require.ErrorIs(t, err, authsdk.ErrSessionMissing)

		claims := svc.idp.Claims("e2e-alice")
		claims.PreferredUsername = "alice"
		require.NoError(t, mgr.Login(t.Context(), svc.idp.Sign(t, claims)))

		me, err := mgr.User(t.Context())
		require.NoError(t, err)
		require.Equal(t, "alice", me.DisplayName)

		// A second login for the same subject is the same user.
		require.NoError(t, mgr.Login(t.Context(), svc.idp.Assertion(t, "e2e-alice")))
		again, err := mgr.User(t.Context())
		require.NoError(t, err)
		require.Equal(t, me.ID, again.ID)
	})

	t.Run("login rejected", func(t *testing.T) {
		svc := startService(t, dsn)
		mgr := svc.newManager(&authsdk.MemoryStore{})

		require.ErrorIs(t, mgr.Login(t.Context(), svc.idp.Expired(t, "e2e-bob")), authsdk.ErrLoginRejected)
		require.ErrorIs(t, mgr.Login(t.Context(), svc.idp.Tampered(t, "e2e-bob")), authsdk.ErrLoginRejected)

		_, err := mgr.GetOrRefreshAccess(t.Context())
		require.ErrorIs(t, err, authsdk.ErrSessionMissing)
	})

	t.Run("refresh rotates and refuses replay", func(t *testing.T) {
		svc := startService(t, dsn)
		client := authsdk.NewSDKClient(svc.baseURL)

		first, err := client.Login(t.Context(), svc.idp.Assertion(t, "e2e-carol"))
		require.NoError(t, err)

		second, err := client.Refresh(t.Context(), first.RefreshToken)
		require.NoError(t, err)
		require.NotEqual(t, first.RefreshToken, second.RefreshToken)

		_, err = client.Refresh(t.Context(), first.RefreshToken)
		require.ErrorIs(t, err, authsdk.ErrUnauthorized)

		// Replaying the old token does not cost the holder of the new one.
		_, err = client.Refresh(t.Context(), second.RefreshToken)
		require.NoError(t, err)

		m := svc.metrics(t)
		assertMetric(t, m, `splitbill_auth_refresh_total{outcome="success"} 2`)
		assertMetric(t, m, `splitbill_auth_refresh_total{outcome="rejected"} 1`)
	})

	t.Run("concurrent callers share one refresh", func(t *testing.T) {
		svc := startService(t, dsn)
		store := &authsdk.MemoryStore{}
		mgr := svc.newManager(store)
		require.NoError(t, mgr.Login(t.Context(), svc.idp.Assertion(t, "e2e-dave")))

		// Leave a usable refresh token behind an access token that can only
		// be refreshed.
		s, err := store.Get(t.Context())
		require.NoError(t, err)
		require.NoError(t, store.Set(t.Context(), &authsdk.Session{AccessToken: "stale", RefreshToken: s.RefreshToken}))

		const callers = 8
		var wg sync.WaitGroup
		for range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := mgr.User(t.Context()); err != nil {
					t.Error(err)
				}
			}()
		}
		wg.Wait()

		assertMetric(t, svc.metrics(t), `splitbill_auth_refresh_total{outcome="success"} 1`)
	})

	t.Run("deactivated user loses the session", func(t *testing.T) {
		svc := startService(t, dsn)
		mgr := svc.newManager(&authsdk.MemoryStore{})

		var ended atomic.Int32
		mgr.OnSessionEnded(func() { ended.Add(1) })

		require.NoError(t, mgr.Login(t.Context(), svc.idp.Assertion(t, "e2e-erin")))
		me, err := mgr.User(t.Context())
		require.NoError(t, err)

		require.NoError(t, svc.users.Deactivate(context.Background(), me.ID))

		_, err = mgr.User(t.Context())
		require.ErrorIs(t, err, authsdk.ErrSessionRejected)
		require.Equal(t, int32(1), ended.Load())

		_, err = mgr.GetOrRefreshAccess(t.Context())
		require.ErrorIs(t, err, authsdk.ErrSessionMissing)
	})

	t.Run("logout revokes the refresh token", func(t *testing.T) {
		svc := startService(t, dsn)
		store := &authsdk.MemoryStore{}
		mgr := svc.newManager(store)
		require.NoError(t, mgr.Login(t.Context(), svc.idp.Assertion(t, "e2e-frank")))

		s, err := store.Get(t.Context())
		require.NoError(t, err)

		require.NoError(t, mgr.Logout(t.Context()))

		_, err = authsdk.NewSDKClient(svc.baseURL).Refresh(t.Context(), s.RefreshToken)
		require.ErrorIs(t, err, authsdk.ErrUnauthorized)
	})

	t.Run("workers share a redis session", func(t *testing.T) {
		svc := startService(t, dsn)
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })

		store := authsdk.NewRedisStore(rdb, "splitbill:e2e:session", 0)
		a := svc.newManager(store)
		b := svc.newManager(store)

		require.NoError(t, a.Login(t.Context(), svc.idp.Assertion(t, "e2e-grace")))

		fromA, err := a.User(t.Context())
		require.NoError(t, err)
		fromB, err := b.User(t.Context())
		require.NoError(t, err)
		require.Equal(t, fromA.ID, fromB.ID)

		require.NoError(t, b.Logout(t.Context()))
		_, err = a.User(t.Context())
		require.ErrorIs(t, err, authsdk.ErrSessionMissing)
	})
}
