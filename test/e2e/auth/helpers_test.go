package auth_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aussiebroadwan/splitbill/internal/auth/app"
	"github.com/aussiebroadwan/splitbill/internal/auth/service"
	"github.com/aussiebroadwan/splitbill/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/splitbill/pkg/authsdk"
	"github.com/aussiebroadwan/splitbill/pkg/oidcx/oidctest"
	"github.com/stretchr/testify/require"
)

/*
 * Helpers for the auth service end-to-end tests. Each test runs the whole
 * application in process against a PostgreSQL container and a fake identity
 * provider, and talks to it over HTTP through the SDK.
 */

const clientID = "splitbill-app"

// authService is one running auth service.
type authService struct {
	baseURL string
	idp     *oidctest.Provider
	users   *service.UserService
}

// startService runs the application against dsn. Migrations are applied on
// every start, so several services may share one database.
func startService(t *testing.T, dsn string) *authService {
	t.Helper()
	ctx := context.Background()

	idp := oidctest.New(t, clientID)

	cfg, err := app.LoadConfigFrom(map[string]string{
		"ENV":               "test",
		"IDP_DISCOVERY_URL": idp.DiscoveryURL(),
		"IDP_CLIENT_ID":     clientID,
		"DATABASE_DRIVER":   "postgres",
		"DATABASE_DSN":      dsn,
	})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	application, err := app.NewWithLogger(ctx, cfg, logger)
	require.NoError(t, err)
	application.Start(ctx)
	t.Cleanup(func() { _ = application.Shutdown() })

	srv := httptest.NewServer(application.Handler())
	t.Cleanup(srv.Close)

	st, err := postgres.NewStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	return &authService{
		baseURL: srv.URL,
		idp:     idp,
		users:   &service.UserService{Store: st},
	}
}

// newManager returns a Manager for s backed by store.
func (s *authService) newManager(store authsdk.Store) *authsdk.Manager {
	m := authsdk.NewManager(authsdk.NewSDKClient(s.baseURL), store)
	m.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return m
}

// metrics scrapes /metrics.
func (s *authService) metrics(t *testing.T) string {
	t.Helper()
	resp, err := http.Get(s.baseURL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

// assertMetric checks that the exposition contains line.
func assertMetric(t *testing.T, exposition, line string) {
	t.Helper()
	for _, l := range strings.Split(exposition, "\n") {
		if l == line {
			return
		}
	}
	t.Fatalf("metric line %q not found", line)
}

// assertHealthy verifies a health check response is OK.
func assertHealthy(t *testing.T, health *authsdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}
