// Package config provides server configuration for ns-server.
//
// This package defines the server configuration structure and validation:
//
//   - spec.go: ServerConfig struct definition
//   - default.go: Default configuration values
//   - verify.go: Business validation (required fields, path existence)
//   - sanitize.go: Log sanitization (hide sensitive values)
//   - distnet.go: Conversion to the communication layer config
//
// Configuration is loaded via internal/infra/confloader and supports
// multiple sources: files, environment variables, and flags.
package config
