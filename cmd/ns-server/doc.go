// Package main provides the entry point for ns-server.
//
// The server owns the node's identity and address management:
//
//   - Address discovery, validation, and persistence under the data dir
//   - Communication layer bring-up and teardown
//   - Crash-recoverable node rename across the owned configuration
//   - Admin HTTP API for address changes and health
//
// Usage:
//
//	ns-server [flags]
//	ns-server --config /path/to/config.yaml
//
// The server loads configuration, brings up the node identity, and
// starts the admin listener.
package main
