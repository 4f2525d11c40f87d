package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/splitbill/internal/auth/http"
	"github.com/aussiebroadwan/splitbill/internal/auth/service"
	"github.com/aussiebroadwan/splitbill/internal/auth/store"
	"github.com/aussiebroadwan/splitbill/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/splitbill/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/splitbill/pkg/oidcx"
	"github.com/aussiebroadwan/splitbill/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// BuildVersion is overridden at build time via -ldflags.
var BuildVersion = "v0.1.0"

// Application encapsulates the auth service and all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	provider *oidcx.Provider
	registry *prometheus.Registry

	tokens              *service.AccessTokens
	sessionService      *service.SessionService
	userService         *service.UserService
	housekeepingService *service.HousekeepingService
	identityRefresher   *service.IdentityRefresher

	server *http.Server
	router *httpapi.Router
}

// New builds the application with a logger configured from cfg.
func New(ctx context.Context, cfg Config) (*Application, error) {
	logger := slogx.New(slogx.Config{
		Service: "splitbill-auth",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
	return NewWithLogger(ctx, cfg, logger)
}

// NewWithLogger builds the application around an existing logger.
func NewWithLogger(ctx context.Context, cfg Config, logger *slog.Logger) (*Application, error) {
	app := &Application{cfg: cfg, logger: logger}

	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := app.initServices(ctx); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Handler is the root HTTP handler.
func (app *Application) Handler() http.Handler { return app.router }

// Start launches the background workers. The first identity provider
// refresh completes before Start returns.
func (app *Application) Start(ctx context.Context) {
	if app.cfg.Identity.DiscoveryURL != "" {
		app.identityRefresher.Start(ctx)
	} else {
		app.logger.Warn("no identity provider configured; logins will be rejected")
	}
	app.housekeepingService.Start()
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.Start(context.Background())

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains the HTTP server, stops the workers and closes the store.
// It must only be called after Start.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if app.cfg.Identity.DiscoveryURL != "" {
		app.identityRefresher.Stop()
	}
	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

func (app *Application) initDatabase(ctx context.Context) error {
	var (
		db  store.Store
		err error
	)

	switch app.cfg.Database.Driver {
	case "postgres":
		db, err = postgres.NewStore(ctx, app.cfg.Database.DSN)
	default:
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.Database.File)
		db, err = sqlite.NewStore(dsn)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.Database.Driver)
	return nil
}

func (app *Application) initServices(ctx context.Context) error {
	keys, err := AccessKeySource(app.cfg.Auth, app.logger)
	if err != nil {
		return fmt.Errorf("failed to configure access key: %w", err)
	}

	app.tokens, err = service.NewAccessTokens(ctx, service.AccessTokenConfig{
		Keys:      keys,
		ServiceID: app.cfg.Auth.ServiceID,
		TTL:       app.cfg.Auth.AccessTTL,
		Leeway:    app.cfg.Auth.AccessLeeway,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize access tokens: %w", err)
	}

	idp := app.cfg.Identity
	app.provider = oidcx.NewProvider(oidcx.ProviderConfig{
		DiscoveryURL:      idp.DiscoveryURL,
		FetchTimeout:      idp.FetchTimeout,
		CacheSize:         idp.KeyCacheSize,
		KeyTTL:            idp.KeyTTL,
		MissFetchInterval: idp.MissFetchInterval,
		Logger:            app.logger,
	})

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app.sessionService = &service.SessionService{
		Store:      app.db,
		Identity:   oidcx.NewVerifier(app.provider, idp.ClientID, app.cfg.Auth.AccessLeeway),
		Tokens:     app.tokens,
		RefreshTTL: app.cfg.Auth.RefreshTTL,
		Metrics:    service.NewMetrics(app.registry),
	}
	app.userService = &service.UserService{Store: app.db}

	app.identityRefresher = service.NewIdentityRefresher(app.provider, app.logger, idp.RefreshInterval)
	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.provider,
		app.logger,
		app.cfg.HousekeepingInterval,
	)

	return nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.registry, app.logger)
	router.SessionService = app.sessionService
	router.UserService = app.userService
	router.Identity = app.provider
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
