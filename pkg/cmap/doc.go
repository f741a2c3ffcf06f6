// Package cmap provides a concurrent-safe sharded map.
//
// Sharding spreads keys over independently locked buckets, keeping
// contention low for hot request paths such as per-client rate
// limiter lookup.
package cmap
