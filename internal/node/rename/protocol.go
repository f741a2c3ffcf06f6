package rename

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/minddrive/ns-server/internal/configstore"
	"github.com/minddrive/ns-server/internal/telemetry/metric"
)

// DefaultWaitTimeout bounds the wait for the configuration store's
// replication companion before entries are rewritten.
const DefaultWaitTimeout = 60 * time.Second

// Notifier is the local companion process that must learn the new
// identity. Notification is best-effort: an absent companion is
// skipped.
type Notifier interface {
	Alive(ctx context.Context) bool
	NotifyIdentity(ctx context.Context, nodeName string) error
}

// Protocol rewrites the old node identity out of the owned
// configuration and notifies dependents.
type Protocol struct {
	store       configstore.Store
	repl        configstore.Replicator
	notifier    Notifier
	marker      *Marker
	logger      *slog.Logger
	metrics     *metric.NodeMetrics
	waitTimeout time.Duration
}

// Option configures a Protocol.
type Option func(*Protocol)

// WithNotifier sets the companion notifier.
func WithNotifier(n Notifier) Option {
	return func(p *Protocol) { p.notifier = n }
}

// WithMetrics attaches rename metrics.
func WithMetrics(m *metric.NodeMetrics) Option {
	return func(p *Protocol) { p.metrics = m }
}

// WithWaitTimeout overrides the replication reachability timeout.
func WithWaitTimeout(d time.Duration) Option {
	return func(p *Protocol) { p.waitTimeout = d }
}

// New creates a Protocol.
func New(store configstore.Store, repl configstore.Replicator, marker *Marker, logger *slog.Logger, opts ...Option) *Protocol {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Protocol{
		store:       store,
		repl:        repl,
		marker:      marker,
		logger:      logger,
		waitTimeout: DefaultWaitTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Marker returns the protocol's marker.
func (p *Protocol) Marker() *Marker {
	return p.marker
}

// Run drives the rename protocol from oldName to newName and removes
// the marker on success. Every step before marker removal is
// idempotent, so a crashed run can always be re-driven from the marker.
func (p *Protocol) Run(ctx context.Context, oldName, newName string) error {
	if oldName == newName {
		// Marker survived a no-op change; nothing to rewrite.
		p.logger.Info("rename marker matches current identity, nothing to do",
			"node", newName)
		return p.marker.Remove()
	}

	p.logger.Info("running rename protocol",
		"old", oldName,
		"new", newName)

	// Companion notification is best-effort: skipped when the
	// companion is not running, logged when it fails.
	if p.notifier != nil {
		if p.notifier.Alive(ctx) {
			if err := p.notifier.NotifyIdentity(ctx, newName); err != nil {
				p.logger.Warn("companion identity notification failed",
					"node", newName,
					"error", err)
			}
		} else {
			p.logger.Info("companion not running, skipping identity notification")
		}
	}

	if err := p.repl.WaitReachable(ctx, p.waitTimeout); err != nil {
		return fmt.Errorf("rename: wait for replication companion: %w", err)
	}

	rewritten, err := p.rewrite(ctx, oldName, newName)
	if err != nil {
		return fmt.Errorf("rename: rewrite config: %w", err)
	}

	if err := p.repl.ForceSync(ctx); err != nil {
		return fmt.Errorf("rename: force replication sync: %w", err)
	}

	if err := p.marker.Remove(); err != nil {
		return err
	}

	p.metrics.IncRenameRun()
	p.metrics.AddRenameKeysRewritten(rewritten)
	p.logger.Info("rename protocol complete",
		"old", oldName,
		"new", newName,
		"entries_rewritten", rewritten)
	return nil
}

// rewrite substitutes oldName with newName in every key and value of
// the owned configuration. Entries with no occurrence are left alone so
// their versions never bump spuriously. This is a full scan rather than
// a targeted index: renames are rare administrative events, and
// correctness wins over efficiency here.
func (p *Protocol) rewrite(ctx context.Context, oldName, newName string) (int, error) {
	type entry struct {
		oldKey, newKey, newValue string
		keyChanged               bool
	}

	var changed []entry
	err := p.store.Scan(ctx, func(key, value string) bool {
		newKey := strings.ReplaceAll(key, oldName, newName)
		newValue := strings.ReplaceAll(value, oldName, newName)
		if newKey != key || newValue != value {
			changed = append(changed, entry{
				oldKey:     key,
				newKey:     newKey,
				newValue:   newValue,
				keyChanged: newKey != key,
			})
		}
		return true
	})
	if err != nil {
		return 0, err
	}

	for _, e := range changed {
		if err := p.store.Set(ctx, e.newKey, e.newValue); err != nil {
			return 0, err
		}
		if e.keyChanged {
			if err := p.store.Delete(ctx, e.oldKey); err != nil {
				return 0, err
			}
		}
		p.logger.Debug("rewrote configuration entry",
			"key", e.oldKey,
			"new_key", e.newKey)
	}

	return len(changed), nil
}
