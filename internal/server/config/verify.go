// Package config defines the server configuration structure.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyNode(&cfg.Node); err != nil {
		return err
	}
	if err := verifyCluster(&cfg.Cluster); err != nil {
		return err
	}
	if err := verifyAdmin(&cfg.Admin); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyNode(cfg *NodeSection) error {
	if cfg.ShortName == "" {
		return errors.New("node.short_name is required")
	}
	if strings.Contains(cfg.ShortName, "@") {
		return errors.New("node.short_name must not contain '@'")
	}
	if cfg.DataDir == "" {
		return errors.New("node.data_dir is required")
	}
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return fmt.Errorf("cannot create data directory: %w", err)
	}
	return nil
}

func verifyCluster(cfg *ClusterSection) error {
	if cfg.GossipPort < 1 || cfg.GossipPort > 65535 {
		return fmt.Errorf("cluster.gossip_port %d out of range", cfg.GossipPort)
	}
	if cfg.TickInterval < 0 {
		return errors.New("cluster.tick_interval must not be negative")
	}
	return nil
}

func verifyAdmin(cfg *AdminSection) error {
	if cfg.Addr == "" {
		return errors.New("admin.addr is required")
	}
	if cfg.RateLimit < 0 {
		return errors.New("admin.rate_limit must not be negative")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch strings.ToLower(cfg.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is not a known level", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("log.format %q is not a known format", cfg.Format)
	}
	return nil
}
