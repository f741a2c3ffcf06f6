// Package prober validates that a candidate node address is usable by
// the distributed communication layer before the node commits to it.
package prober

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/minddrive/ns-server/internal/telemetry/metric"
)

// Defaults tolerate a slow-to-initialize OS network stack at boot
// without blocking startup indefinitely.
const (
	DefaultAttempts = 10
	DefaultInterval = time.Second
)

// ErrUnreachable indicates the address could not be resolved or
// listened on within the attempt budget.
var ErrUnreachable = errors.New("prober: address unreachable")

// Prober checks that an address is resolvable and bindable.
type Prober struct {
	attempts int
	interval time.Duration
	logger   *slog.Logger
	metrics  *metric.NodeMetrics
}

// Option configures a Prober.
type Option func(*Prober)

// WithAttempts overrides the attempt budget.
func WithAttempts(n int) Option {
	return func(p *Prober) { p.attempts = n }
}

// WithInterval overrides the spacing between attempts.
func WithInterval(d time.Duration) Option {
	return func(p *Prober) { p.interval = d }
}

// WithMetrics attaches probe metrics.
func WithMetrics(m *metric.NodeMetrics) Option {
	return func(p *Prober) { p.metrics = m }
}

// New creates a Prober.
func New(logger *slog.Logger, opts ...Option) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Prober{
		attempts: DefaultAttempts,
		interval: DefaultInterval,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe verifies that the communication layer could bind and listen on
// address. It retries up to the attempt budget with fixed spacing, then
// returns ErrUnreachable. A syntactically disallowed address and a
// transient resolve/listen failure are logged differently but map to
// the same outcome for the caller.
func (p *Prober) Probe(ctx context.Context, address string) error {
	var lastErr error

	for attempt := 1; attempt <= p.attempts; attempt++ {
		err := tryListen(address)
		if err == nil {
			if attempt > 1 {
				p.logger.Info("address became usable",
					"address", address,
					"attempt", attempt)
			}
			return nil
		}
		lastErr = err
		p.metrics.IncProbeFailure()

		var addrErr *net.AddrError
		if errors.As(err, &addrErr) {
			p.logger.Warn("address not allowed",
				"address", address,
				"error", err,
				"attempt", attempt)
		} else {
			p.logger.Warn("address not yet usable",
				"address", address,
				"error", err,
				"attempt", attempt)
		}

		if attempt == p.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrUnreachable, ctx.Err())
		case <-time.After(p.interval):
		}
	}

	return fmt.Errorf("%w: %v", ErrUnreachable, lastErr)
}

// tryListen resolves address and opens (then immediately closes) an
// ephemeral listener on it, which is exactly the bind the communication
// layer will perform.
func tryListen(address string) error {
	tcpAddr, err := net.ResolveTCPAddr("tcp", net.JoinHostPort(address, "0"))
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}

	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return ln.Close()
}
