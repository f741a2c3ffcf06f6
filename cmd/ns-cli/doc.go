// Package main provides the entry point for ns-cli.
//
// The CLI tool provides command-line access to an ns-server node for:
//
//   - Reading the current node address and identity
//   - Changing or resetting the node address
//   - Checking node health
//
// Usage:
//
//	ns-cli [command] [flags]
//	ns-cli address get
//	ns-cli --server 10.0.0.5:8091 address change 10.0.0.6
package main
