// Package config defines the server configuration structure.
package config

import (
	"fmt"
	"log/slog"

	"github.com/minddrive/ns-server/internal/node/distnet"
	"github.com/minddrive/ns-server/pkg/secret"
)

// ToDistnetConfig converts ServerConfig to distnet.Config.
//
// This handles cookie generation and field mapping.
func ToDistnetConfig(cfg *ServerConfig, logger *slog.Logger) (distnet.Config, error) {
	if cfg == nil {
		return distnet.Config{}, fmt.Errorf("server config is nil")
	}

	// A node without a cookie cannot join an encrypted cluster, so an
	// absent cookie gets a generated one rather than running open.
	cookie := cfg.Cluster.Cookie
	if cookie == "" {
		generated, err := generateCookie()
		if err != nil {
			return distnet.Config{}, fmt.Errorf("generate cookie: %w", err)
		}
		cookie = generated
		logger.Info("generated cluster cookie")
	}

	return distnet.Config{
		ShortName:    cfg.Node.ShortName,
		GossipPort:   cfg.Cluster.GossipPort,
		Cookie:       cookie,
		TickInterval: cfg.Cluster.TickInterval,
		Verbosity:    cfg.Cluster.Verbosity,
		External:     cfg.Node.ExternalLayer,
		Logger:       logger,
	}, nil
}

// generateCookie generates a random cluster cookie.
func generateCookie() (string, error) {
	cookie, err := secret.Generate()
	if err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return cookie, nil
}
