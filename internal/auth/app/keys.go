package app

import (
	"log/slog"

	"github.com/aussiebroadwan/splitbill/pkg/jwtx"
)

// AccessKeySource picks where the access token key comes from. A configured
// secret wins over a key file; with neither the key lives only as long as
// the process.
func AccessKeySource(cfg AuthConfig, logger *slog.Logger) (jwtx.KeySource, error) {
	switch {
	case cfg.AccessKeySecret != "":
		logger.Info("access key derived from configured secret")
		return jwtx.NewSecretKeySource([]byte(cfg.AccessKeySecret))

	case cfg.AccessKeyFile != "":
		logger.Info("access key loaded from file", "path", cfg.AccessKeyFile)
		return &jwtx.FileKeySource{Path: cfg.AccessKeyFile}, nil

	default:
		logger.Warn("using an ephemeral access key; access tokens will not survive a restart")
		return jwtx.NewEphemeralKeySource(), nil
	}
}
