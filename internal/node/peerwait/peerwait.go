// Package peerwait polls connectivity to a named peer until it is
// reachable or a retry budget is exhausted.
package peerwait

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"
)

// Defaults per the startup contract: a short, bounded wait that keeps
// the window where dependent local services see an unreachable peer
// small without stalling startup forever.
const (
	DefaultAttempts    = 10
	DefaultInterval    = 100 * time.Millisecond
	DefaultDialTimeout = time.Second
)

// ErrExhausted indicates the peer never became reachable within the
// retry budget.
var ErrExhausted = errors.New("peerwait: peer unreachable after retry budget")

// Waiter polls TCP connectivity to a peer.
type Waiter struct {
	attempts    int
	interval    time.Duration
	dialTimeout time.Duration
	logger      *slog.Logger
}

// Option configures a Waiter.
type Option func(*Waiter)

// WithAttempts overrides the attempt budget.
func WithAttempts(n int) Option {
	return func(w *Waiter) { w.attempts = n }
}

// WithInterval overrides the spacing between attempts.
func WithInterval(d time.Duration) Option {
	return func(w *Waiter) { w.interval = d }
}

// WithDialTimeout overrides the per-attempt dial timeout.
func WithDialTimeout(d time.Duration) Option {
	return func(w *Waiter) { w.dialTimeout = d }
}

// New creates a Waiter.
func New(logger *slog.Logger, opts ...Option) *Waiter {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Waiter{
		attempts:    DefaultAttempts,
		interval:    DefaultInterval,
		dialTimeout: DefaultDialTimeout,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WaitFor blocks until a TCP connection to addr (host:port) succeeds,
// retrying with fixed spacing. On exhausting the budget it returns
// ErrExhausted; the caller decides whether that is fatal.
func (w *Waiter) WaitFor(ctx context.Context, addr string) error {
	var lastErr error

	for attempt := 1; attempt <= w.attempts; attempt++ {
		conn, err := net.DialTimeout("tcp", addr, w.dialTimeout)
		if err == nil {
			conn.Close()
			w.logger.Debug("peer reachable",
				"peer", addr,
				"attempt", attempt)
			return nil
		}
		lastErr = err
		w.logger.Warn("peer not reachable",
			"peer", addr,
			"error", err,
			"attempt", attempt)

		if attempt == w.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrExhausted, ctx.Err())
		case <-time.After(w.interval):
		}
	}

	return fmt.Errorf("%w: %v", ErrExhausted, lastErr)
}
