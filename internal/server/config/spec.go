// Package config defines the server configuration structure.
package config

import "time"

// ServerConfig is the root configuration for ns-server.
type ServerConfig struct {
	Node    NodeSection    `koanf:"node"`
	Cluster ClusterSection `koanf:"cluster"`
	Admin   AdminSection   `koanf:"admin"`
	Log     LogSection     `koanf:"log"`
}

// NodeSection configures the local node identity.
type NodeSection struct {
	// ShortName is the node's short name; the fully-qualified identity
	// is ShortName@address.
	ShortName string `koanf:"short_name"`

	// DataDir holds the address files, the rename marker, the node-name
	// file, and the owned configuration store.
	DataDir string `koanf:"data_dir"`

	// Address, when set, is treated as an operator-preset address and
	// saved as user-supplied before the identity service starts.
	Address string `koanf:"address"`

	// ExternalLayer marks the communication layer as supplied at
	// process launch rather than owned by this process.
	ExternalLayer bool `koanf:"external_layer"`
}

// ClusterSection configures cluster communication.
type ClusterSection struct {
	// GossipPort is the communication layer bind port.
	GossipPort int `koanf:"gossip_port"`

	// Cookie is the cluster shared secret. If empty, a random cookie is
	// generated at startup.
	Cookie string `koanf:"cookie"`

	// TickInterval is the layer's gossip interval. Zero keeps the layer
	// default.
	TickInterval time.Duration `koanf:"tick_interval"`

	// Verbosity is the log level of the layer's own output.
	Verbosity string `koanf:"verbosity"`

	// CompanionAddr is the local supervisor's HTTP address. Empty
	// disables companion notifications.
	CompanionAddr string `koanf:"companion_addr"`

	// PeerAddr is a peer whose TCP reachability gates startup
	// completion. Empty skips the wait.
	PeerAddr string `koanf:"peer_addr"`
}

// AdminSection configures the admin HTTP server.
type AdminSection struct {
	Addr string `koanf:"addr"`

	// RateLimit is the per-client request rate (requests/second).
	// Zero disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
