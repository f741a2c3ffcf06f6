// Package config defines the server configuration structure.
package config

// Default configuration values.
const (
	DefaultShortName = "ns_1"
	DefaultDataDir   = "/var/lib/ns-server/data"

	DefaultGossipPort = 21100
	DefaultVerbosity  = "info"

	DefaultAdminAddr = "127.0.0.1:8091"
	DefaultRateLimit = 100

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Node: NodeSection{
			ShortName: DefaultShortName,
			DataDir:   DefaultDataDir,
		},
		Cluster: ClusterSection{
			GossipPort: DefaultGossipPort,
			Verbosity:  DefaultVerbosity,
		},
		Admin: AdminSection{
			Addr:      DefaultAdminAddr,
			RateLimit: DefaultRateLimit,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
