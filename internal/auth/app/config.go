package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the auth service configuration, read from the environment.
type Config struct {
	Auth     AuthConfig     `envPrefix:"AUTH_"`
	Identity IdentityConfig `envPrefix:"IDP_"`
	Database DatabaseConfig `envPrefix:"DATABASE_"`

	Env                  string        `env:"ENV" envDefault:"dev"`          // dev, staging, prod
	LogLevel             string        `env:"LOG_LEVEL" envDefault:"info"`   // debug, info, warn, error
	LogFormat            string        `env:"LOG_FORMAT" envDefault:"json"`  // json, text
	Port                 int           `env:"PORT" envDefault:"8080"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`
}

// AuthConfig controls the tokens this service issues.
type AuthConfig struct {
	ServiceID    string        `env:"SERVICE_ID" envDefault:"splitbill"`
	AccessTTL    time.Duration `env:"ACCESS_TTL" envDefault:"1h"`
	AccessLeeway time.Duration `env:"ACCESS_LEEWAY" envDefault:"5m"`
	RefreshTTL   time.Duration `env:"REFRESH_TTL" envDefault:"720h"`

	// At most one of these may be set. With neither, the access key is
	// generated per process.
	AccessKeySecret string `env:"ACCESS_KEY_SECRET"`
	AccessKeyFile   string `env:"ACCESS_KEY_FILE"`
}

// IdentityConfig points at the external identity provider.
type IdentityConfig struct {
	DiscoveryURL      string        `env:"DISCOVERY_URL"`
	ClientID          string        `env:"CLIENT_ID"`
	RefreshInterval   time.Duration `env:"REFRESH_INTERVAL" envDefault:"24h"`
	FetchTimeout      time.Duration `env:"FETCH_TIMEOUT" envDefault:"10s"`
	KeyCacheSize      int           `env:"KEY_CACHE_SIZE" envDefault:"32"`
	KeyTTL            time.Duration `env:"KEY_TTL" envDefault:"24h"`
	MissFetchInterval time.Duration `env:"MISS_FETCH_INTERVAL" envDefault:"1m"`
}

// DatabaseConfig selects the store driver.
type DatabaseConfig struct {
	Driver string `env:"DRIVER" envDefault:"sqlite"` // sqlite, postgres
	File   string `env:"FILE" envDefault:"splitbill-auth.db"`
	DSN    string `env:"DSN"`
}

// LoadConfig reads the process environment.
func LoadConfig() (Config, error) {
	return loadConfig(env.Options{})
}

// LoadConfigFrom reads vars instead of the process environment.
func LoadConfigFrom(vars map[string]string) (Config, error) {
	return loadConfig(env.Options{Environment: vars})
}

func loadConfig(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports combinations the service cannot start with.
func (c Config) Validate() error {
	var errs []error

	if c.Auth.ServiceID == "" {
		errs = append(errs, errors.New("AUTH_SERVICE_ID must not be empty"))
	}
	if c.Auth.AccessKeySecret != "" && c.Auth.AccessKeyFile != "" {
		errs = append(errs, errors.New("set only one of AUTH_ACCESS_KEY_SECRET and AUTH_ACCESS_KEY_FILE"))
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		errs = append(errs, errors.New("AUTH_ACCESS_TTL and AUTH_REFRESH_TTL must be positive"))
	}

	switch {
	case c.Identity.DiscoveryURL == "" && c.Env != "dev":
		errs = append(errs, errors.New("IDP_DISCOVERY_URL is required outside dev"))
	case c.Identity.DiscoveryURL != "" && c.Identity.ClientID == "":
		errs = append(errs, errors.New("IDP_CLIENT_ID is required with IDP_DISCOVERY_URL"))
	}

	switch c.Database.Driver {
	case "sqlite":
	case "postgres":
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("DATABASE_DSN is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DATABASE_DRIVER %q", c.Database.Driver))
	}

	return errors.Join(errs...)
}
