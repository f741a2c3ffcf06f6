// Package config defines the server configuration structure.
package config

import (
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Node.ShortName != DefaultShortName {
		t.Errorf("Node.ShortName = %q, want %q", cfg.Node.ShortName, DefaultShortName)
	}
	if cfg.Node.DataDir != DefaultDataDir {
		t.Errorf("Node.DataDir = %q, want %q", cfg.Node.DataDir, DefaultDataDir)
	}
	if cfg.Node.ExternalLayer {
		t.Error("ExternalLayer should be disabled by default")
	}

	if cfg.Cluster.GossipPort != DefaultGossipPort {
		t.Errorf("Cluster.GossipPort = %d, want %d", cfg.Cluster.GossipPort, DefaultGossipPort)
	}
	if cfg.Cluster.Cookie != "" {
		t.Error("no cookie should be preset by default")
	}

	if cfg.Admin.Addr != DefaultAdminAddr {
		t.Errorf("Admin.Addr = %q, want %q", cfg.Admin.Addr, DefaultAdminAddr)
	}

	if cfg.Log.Level != DefaultLogLevel {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, DefaultLogLevel)
	}
	if cfg.Log.Format != DefaultLogFormat {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, DefaultLogFormat)
	}
}

func TestSanitize(t *testing.T) {
	cfg := &ServerConfig{
		Cluster: ClusterSection{
			Cookie: "super-secret-cookie-1234567890",
		},
	}

	sanitized := Sanitize(cfg)

	// Original should be unchanged
	if cfg.Cluster.Cookie != "super-secret-cookie-1234567890" {
		t.Error("Original config should not be modified")
	}

	// Sanitized should mask the cookie
	if sanitized.Cluster.Cookie == cfg.Cluster.Cookie {
		t.Error("Sanitized config should mask the cookie")
	}
	if len(sanitized.Cluster.Cookie) != len(cfg.Cluster.Cookie) {
		t.Errorf("Masked cookie length = %d, want %d", len(sanitized.Cluster.Cookie), len(cfg.Cluster.Cookie))
	}
}

func TestSanitize_EmptyCookie(t *testing.T) {
	cfg := &ServerConfig{}

	sanitized := Sanitize(cfg)

	if sanitized.Cluster.Cookie != "" {
		t.Error("Empty cookie should remain empty")
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"a", "****"},
		{"abcd", "****"},
		{"abcde", "ab*de"},
		{"abcdef", "ab**ef"},
		{"1234567890", "12******90"},
	}

	for _, tt := range tests {
		result := maskSecret(tt.input)
		if result != tt.expected {
			t.Errorf("maskSecret(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func validConfig(t *testing.T) *ServerConfig {
	t.Helper()
	cfg := Default()
	cfg.Node.DataDir = t.TempDir()
	return cfg
}

func TestVerify_ValidConfig(t *testing.T) {
	if err := Verify(validConfig(t)); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
}

func TestVerify_Rejections(t *testing.T) {
	tests := []struct {
		name string
		mod  func(cfg *ServerConfig)
	}{
		{"empty short name", func(cfg *ServerConfig) { cfg.Node.ShortName = "" }},
		{"short name with @", func(cfg *ServerConfig) { cfg.Node.ShortName = "ns@1" }},
		{"empty data dir", func(cfg *ServerConfig) { cfg.Node.DataDir = "" }},
		{"gossip port zero", func(cfg *ServerConfig) { cfg.Cluster.GossipPort = 0 }},
		{"gossip port too large", func(cfg *ServerConfig) { cfg.Cluster.GossipPort = 70000 }},
		{"negative tick interval", func(cfg *ServerConfig) { cfg.Cluster.TickInterval = -time.Second }},
		{"empty admin addr", func(cfg *ServerConfig) { cfg.Admin.Addr = "" }},
		{"negative rate limit", func(cfg *ServerConfig) { cfg.Admin.RateLimit = -1 }},
		{"unknown log level", func(cfg *ServerConfig) { cfg.Log.Level = "verbose" }},
		{"unknown log format", func(cfg *ServerConfig) { cfg.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mod(cfg)
			if err := Verify(cfg); err == nil {
				t.Error("Verify accepted an invalid config")
			}
		})
	}
}

func TestVerify_CreateDataDir(t *testing.T) {
	dir := t.TempDir()
	newDir := dir + "/subdir/data"

	cfg := validConfig(t)
	cfg.Node.DataDir = newDir

	if err := Verify(cfg); err != nil {
		t.Errorf("Verify failed: %v", err)
	}

	if _, err := os.Stat(newDir); os.IsNotExist(err) {
		t.Error("Data directory should have been created")
	}
}

func TestToDistnetConfig(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&strings.Builder{}, nil))

	cfg := Default()
	cfg.Cluster.Cookie = "cookie-1"
	cfg.Cluster.TickInterval = 200 * time.Millisecond
	cfg.Node.ExternalLayer = true

	dcfg, err := ToDistnetConfig(cfg, logger)
	if err != nil {
		t.Fatalf("ToDistnetConfig: %v", err)
	}
	if dcfg.ShortName != cfg.Node.ShortName {
		t.Errorf("ShortName = %q, want %q", dcfg.ShortName, cfg.Node.ShortName)
	}
	if dcfg.Cookie != "cookie-1" {
		t.Errorf("Cookie = %q, want cookie-1", dcfg.Cookie)
	}
	if dcfg.TickInterval != 200*time.Millisecond {
		t.Errorf("TickInterval = %v", dcfg.TickInterval)
	}
	if !dcfg.External {
		t.Error("External not carried over")
	}
}

func TestToDistnetConfig_GeneratesCookie(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&strings.Builder{}, nil))

	a, err := ToDistnetConfig(Default(), logger)
	if err != nil {
		t.Fatalf("ToDistnetConfig: %v", err)
	}
	b, err := ToDistnetConfig(Default(), logger)
	if err != nil {
		t.Fatalf("ToDistnetConfig: %v", err)
	}

	if a.Cookie == "" {
		t.Fatal("no cookie generated for empty config")
	}
	if a.Cookie == b.Cookie {
		t.Fatal("generated cookies are not random")
	}
	if len(a.Cookie) != 32 {
		t.Fatalf("cookie length = %d, want 32 hex chars", len(a.Cookie))
	}
}
