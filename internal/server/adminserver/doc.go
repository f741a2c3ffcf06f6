// Package adminserver provides the HTTP runtime control interface of
// the node: address inspection and change, health, and metrics.
package adminserver
