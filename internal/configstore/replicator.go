package configstore

import (
	"context"
	"time"
)

// LocalReplicator is the Replicator for a store whose replication
// companion runs in the same process: it is always reachable and has
// nothing to sync. Deployments with an out-of-process replicator
// substitute their own implementation.
type LocalReplicator struct{}

// NewLocalReplicator creates a LocalReplicator.
func NewLocalReplicator() *LocalReplicator {
	return &LocalReplicator{}
}

// WaitReachable returns immediately.
func (r *LocalReplicator) WaitReachable(ctx context.Context, timeout time.Duration) error {
	return ctx.Err()
}

// ForceSync returns immediately.
func (r *LocalReplicator) ForceSync(ctx context.Context) error {
	return ctx.Err()
}
