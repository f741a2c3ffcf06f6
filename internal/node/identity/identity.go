// Package identity owns the node's identity: the address the node is
// reachable at, whether an operator supplied it, and whether this
// process started the communication layer. It is the single writer of
// that state; every mutating operation is serialized, so no two address
// changes ever interleave.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"

	sockaddr "github.com/hashicorp/go-sockaddr"

	"github.com/minddrive/ns-server/internal/node/addrstore"
	"github.com/minddrive/ns-server/internal/node/distnet"
	"github.com/minddrive/ns-server/internal/telemetry/metric"
)

// Outcome reports how an address change request ended.
type Outcome int

const (
	// OutcomeNothing means the request was a no-op (idempotent repeat,
	// downgrade attempt, or completed change without a layer restart).
	OutcomeNothing Outcome = iota

	// OutcomeNetRestarted means the layer was restarted under the new
	// address and the rename protocol ran.
	OutcomeNetRestarted

	// OutcomeNotSelfStarted means the request was rejected because the
	// layer is externally owned.
	OutcomeNotSelfStarted

	// OutcomeSaveFailed means the layer switched but the new address
	// could not be persisted. The layer stays on the new address; the
	// caller must retry the save.
	OutcomeSaveFailed
)

// String returns the wire name of the outcome, as exposed by the
// runtime control interface.
func (o Outcome) String() string {
	switch o {
	case OutcomeNothing:
		return "nothing"
	case OutcomeNetRestarted:
		return "net_restarted"
	case OutcomeNotSelfStarted:
		return "not_self_started"
	case OutcomeSaveFailed:
		return "address_save_failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// ErrNotStarted is returned for requests made before Start completed.
var ErrNotStarted = errors.New("identity: service not started")

// CommLayer is the distributed communication layer controller.
type CommLayer interface {
	BringUp(address string) (distnet.Status, error)
	Teardown() error
	NodeName() string
	Cookie() string
	SetCookie(cookie string) error
}

// AddressStore persists the node address across restarts.
type AddressStore interface {
	Read() (addr string, userSupplied bool, err error)
	Save(addr string, userSupplied bool) error
}

// Prober validates a candidate address.
type Prober interface {
	Probe(ctx context.Context, address string) error
}

// PeerWaiter polls connectivity to the mandatory companion node.
type PeerWaiter interface {
	WaitFor(ctx context.Context, addr string) error
}

// Renamer drives the rename protocol.
type Renamer interface {
	Run(ctx context.Context, oldName, newName string) error
}

// MarkerStore reads and writes the rename marker.
type MarkerStore interface {
	Write(oldName string) error
	Read() (oldName string, exists bool, err error)
}

// Config configures the Service.
type Config struct {
	// ShortName is the node's short name; the fully-qualified identity
	// is ShortName@address.
	ShortName string

	// DefaultAddress is used when no address was persisted. Empty means
	// auto-detect a private address, falling back to loopback.
	DefaultAddress string

	// NodeNameFile, when set, receives the fully-qualified identity on
	// every successful bring-up, for external supervisors.
	NodeNameFile string

	// PeerAddr is the companion node whose reachability gates startup
	// completion. Empty skips the wait.
	PeerAddr string

	// Halt is invoked on unrecoverable startup failures. The default
	// logs and exits the process.
	Halt func(reason string, err error)
}

// Service is the node identity state machine. All state is rebuilt at
// every start; only the address is persisted.
type Service struct {
	cfg     Config
	store   AddressStore
	prober  Prober
	layer   CommLayer
	waiter  PeerWaiter
	renamer Renamer
	marker  MarkerStore
	logger  *slog.Logger
	metrics *metric.NodeMetrics
	halt    func(reason string, err error)

	// mu serializes every operation; the whole
	// teardown→bringup→persist→rename sequence of one request runs
	// before the next is admitted.
	mu           sync.Mutex
	addr         string
	userSupplied bool
	selfStarted  bool
	started      bool
}

// New creates the Service.
func New(cfg Config, store AddressStore, prober Prober, layer CommLayer, waiter PeerWaiter, renamer Renamer, marker MarkerStore, logger *slog.Logger, metrics *metric.NodeMetrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	halt := cfg.Halt
	if halt == nil {
		halt = func(reason string, err error) {
			logger.Error("halting: "+reason, "error", err)
			os.Exit(1)
		}
	}
	return &Service{
		cfg:     cfg,
		store:   store,
		prober:  prober,
		layer:   layer,
		waiter:  waiter,
		renamer: renamer,
		marker:  marker,
		logger:  logger,
		metrics: metrics,
		halt:    halt,
	}
}

// Start brings the node to its bound state: read the persisted address
// (or fall back to an auto-detected one), probe it, bring the layer up,
// record the node name for supervisors, wait for the companion peer,
// and resume a crashed rename if a marker survived.
//
// Failures here are fatal: running under an unknown or untrusted
// address risks split-brain, so the halt hook fires and the error is
// returned for callers that injected a non-exiting halt.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	addr, userSupplied, err := s.store.Read()
	switch {
	case errors.Is(err, addrstore.ErrNotFound):
		addr, userSupplied = s.defaultAddress(), false
		s.logger.Info("no saved address, using default",
			"address", addr)
	case err != nil:
		s.halt("cannot read saved address", err)
		return err
	default:
		s.logger.Info("using saved address",
			"address", addr,
			"user_supplied", userSupplied)
	}

	if err := s.prober.Probe(ctx, addr); err != nil {
		s.halt("configured address failed the probe", err)
		return err
	}

	status, err := s.layer.BringUp(addr)
	if err != nil {
		s.halt("communication layer bring-up failed", err)
		return err
	}

	s.addr = addr
	s.userSupplied = userSupplied
	s.selfStarted = status == distnet.StatusSelfStarted
	s.metrics.SetLayerUp(true)

	if err := s.writeNodeNameFile(); err != nil {
		s.logger.Warn("failed to write node-name file", "error", err)
	}

	if s.cfg.PeerAddr != "" {
		if err := s.waiter.WaitFor(ctx, s.cfg.PeerAddr); err != nil {
			s.halt("companion peer never became reachable", err)
			return err
		}
	}

	if oldName, exists, err := s.marker.Read(); err != nil {
		s.logger.Warn("cannot read rename marker", "error", err)
	} else if exists {
		s.logger.Info("rename marker found, resuming rename protocol",
			"old", oldName)
		if err := s.renamer.Run(ctx, oldName, s.layer.NodeName()); err != nil {
			// The marker survives; the next start re-drives the
			// protocol.
			s.logger.Error("rename protocol resume failed", "error", err)
		}
	}

	s.started = true
	s.logger.Info("node identity service started",
		"node", s.layer.NodeName(),
		"self_started", s.selfStarted)
	return nil
}

// AdjustAddress changes the node's address and/or user-supplied flag.
// onRename, when non-nil, runs after all guards pass and before the
// layer is disturbed.
//
// The layer is deliberately left on the new address when persistence
// fails: an automatic rollback could fail too and compound the
// inconsistency. The caller remediates by retrying the save.
func (s *Service) AdjustAddress(ctx context.Context, newAddr string, userSupplied bool, onRename func()) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return OutcomeNothing, ErrNotStarted
	}

	if !s.selfStarted {
		s.metrics.IncAddressChange(OutcomeNotSelfStarted.String())
		return OutcomeNotSelfStarted, nil
	}

	// A loopback address is never a meaningful operator choice.
	if isLoopback(newAddr) {
		userSupplied = false
	}

	// A user-confirmed address is never silently downgraded.
	if !userSupplied && s.userSupplied {
		s.metrics.IncAddressChange(OutcomeNothing.String())
		return OutcomeNothing, nil
	}

	if newAddr == s.addr && userSupplied == s.userSupplied {
		s.metrics.IncAddressChange(OutcomeNothing.String())
		return OutcomeNothing, nil
	}

	if onRename != nil {
		onRename()
	}

	oldName := s.layer.NodeName()
	cookie := s.layer.Cookie()

	s.metrics.SetLayerUp(false)
	if err := s.layer.Teardown(); err != nil {
		return OutcomeNothing, fmt.Errorf("identity: teardown: %w", err)
	}

	status, err := s.layer.BringUp(newAddr)
	if err != nil {
		return OutcomeNothing, fmt.Errorf("identity: bring up %s: %w", newAddr, err)
	}
	restarted := status == distnet.StatusSelfStarted
	s.metrics.SetLayerUp(true)

	// The live layer has switched; in-memory state follows it
	// immediately, whatever fails below.
	s.addr = newAddr
	s.userSupplied = userSupplied
	s.selfStarted = restarted

	if restarted {
		if err := s.layer.SetCookie(cookie); err != nil {
			s.logger.Warn("failed to restore cookie on new layer", "error", err)
		}
	}

	if err := s.writeNodeNameFile(); err != nil {
		s.logger.Warn("failed to write node-name file", "error", err)
	}

	// The marker goes down the instant the new layer is live, so a
	// crash anywhere past this point leaves durable proof that the
	// rename must be re-driven.
	if err := s.marker.Write(oldName); err != nil {
		return OutcomeNothing, fmt.Errorf("identity: write rename marker: %w", err)
	}

	if err := s.store.Save(newAddr, userSupplied); err != nil {
		s.logger.Error("address switched but not persisted",
			"address", newAddr,
			"error", err)
		s.metrics.IncAddressChange(OutcomeSaveFailed.String())
		return OutcomeSaveFailed, err
	}

	if restarted {
		if err := s.renamer.Run(ctx, oldName, s.layer.NodeName()); err != nil {
			// Marker stays; the protocol is re-driven at next start.
			s.logger.Error("rename protocol failed", "error", err)
		}
		s.metrics.IncAddressChange(OutcomeNetRestarted.String())
		return OutcomeNetRestarted, nil
	}

	s.metrics.IncAddressChange(OutcomeNothing.String())
	return OutcomeNothing, nil
}

// UsingUserSuppliedAddress reports whether the current address was
// explicitly configured by an operator.
func (s *Service) UsingUserSuppliedAddress() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userSupplied
}

// CurrentAddress returns the bound address and its user-supplied flag.
func (s *Service) CurrentAddress() (addr string, userSupplied bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr, s.userSupplied
}

// NodeName returns the fully-qualified node identity.
func (s *Service) NodeName() string {
	return s.layer.NodeName()
}

// ResetAddress clears the user-supplied flag and re-persists the
// current address as auto-detected. It is a no-op unless the node is
// self-started and currently on a user-supplied address.
func (s *Service) ResetAddress(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return ErrNotStarted
	}
	if !s.selfStarted || !s.userSupplied {
		return nil
	}

	if err := s.store.Save(s.addr, false); err != nil {
		return fmt.Errorf("identity: reset address: %w", err)
	}
	s.userSupplied = false
	s.logger.Info("address reset to auto-detected", "address", s.addr)
	return nil
}

// writeNodeNameFile records the fully-qualified identity for external
// supervisors. Callers treat failures as non-fatal.
func (s *Service) writeNodeNameFile() error {
	if s.cfg.NodeNameFile == "" {
		return nil
	}
	return addrstore.WriteFileAtomic(s.cfg.NodeNameFile, []byte(s.layer.NodeName()+"\n"))
}

// defaultAddress picks the address used when nothing was persisted: the
// configured default, else an auto-detected private address, else
// loopback.
func (s *Service) defaultAddress() string {
	if s.cfg.DefaultAddress != "" {
		return s.cfg.DefaultAddress
	}
	if ip, err := sockaddr.GetPrivateIP(); err == nil && ip != "" {
		return ip
	}
	return "127.0.0.1"
}

// isLoopback reports whether addr is a loopback address (127.0.0.1,
// ::1, or anything else in a loopback block).
func isLoopback(addr string) bool {
	ip := net.ParseIP(addr)
	return ip != nil && ip.IsLoopback()
}
