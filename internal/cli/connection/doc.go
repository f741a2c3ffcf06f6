// Package connection provides connection management for ns-cli.
//
// This package holds the HTTP client used to drive the admin API:
//
//   - http.go: HTTP client and response envelope parsing
package connection
