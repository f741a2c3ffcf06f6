// Package configstore provides the node-owned configuration store: a
// small key/value database whose keys and values may embed the node's
// identity and must be rewritten when that identity changes.
//
// The production implementation is Badger-backed; an in-memory
// implementation backs tests. Replication to the rest of the cluster
// goes through the Replicator interface.
package configstore

import (
	"context"
	"errors"
	"time"
)

// Common errors.
var (
	ErrKeyNotFound = errors.New("configstore: key not found")
	ErrClosed      = errors.New("configstore: store closed")
)

// Store is the owned configuration key/value store.
type Store interface {
	// Get returns the value for key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores key/value, replacing any existing value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Scan iterates over every entry. The callback returns false to
	// stop iteration. The snapshot observed is consistent; mutations
	// made during iteration are not visible to it.
	Scan(ctx context.Context, fn func(key, value string) bool) error

	// Close releases the store.
	Close() error
}

// Replicator propagates configuration changes to the rest of the
// cluster. The rename protocol waits for it before rewriting entries
// and forces a sync afterwards.
type Replicator interface {
	// WaitReachable blocks until the replication companion is
	// reachable, or the timeout elapses.
	WaitReachable(ctx context.Context, timeout time.Duration) error

	// ForceSync pushes pending changes out synchronously.
	ForceSync(ctx context.Context) error
}
