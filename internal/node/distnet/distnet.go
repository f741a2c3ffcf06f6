// Package distnet controls the distributed communication layer the
// cluster nodes talk over. The layer itself is hashicorp/memberlist;
// this package treats it as an idempotent external resource that is
// brought up under a fully-qualified node identity (shortName@address)
// and torn down only after the local node has observably gone down.
package distnet

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/memberlist"
	"golang.org/x/crypto/blake2b"
)

// Status reports how a bring-up call ended.
type Status int

const (
	// StatusSelfStarted means this controller owns the layer.
	StatusSelfStarted Status = iota

	// StatusAlreadyRunning means the layer was supplied externally at
	// process launch; this controller must never tear it down.
	StatusAlreadyRunning
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusSelfStarted:
		return "self_started"
	case StatusAlreadyRunning:
		return "already_running"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Errors returned by the controller.
var (
	ErrExternallyManaged = errors.New("distnet: layer is externally managed")
	ErrAddressMismatch   = errors.New("distnet: layer already running under a different address")
)

// How long teardown waits for the local leave event before falling back
// to a hard shutdown.
const leaveTimeout = 5 * time.Second

// Config configures the Controller.
type Config struct {
	// ShortName is the node's short name, e.g. "ns_1".
	ShortName string

	// GossipPort is the port the layer binds on.
	GossipPort int

	// Cookie is the cluster shared secret. When non-empty, gossip
	// traffic is encrypted with a key derived from it.
	Cookie string

	// TickInterval is the layer's gossip interval. Zero keeps the
	// layer default.
	TickInterval time.Duration

	// Verbosity is the log level for the layer's own output.
	Verbosity string

	// External marks the layer as supplied at process launch. The
	// controller then never creates or destroys it.
	External bool

	// Logger for controller and layer logging.
	Logger *slog.Logger
}

// Controller brings the communication layer up and down.
type Controller struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	ml      *memberlist.Memberlist
	mlcfg   *memberlist.Config
	keyring *memberlist.Keyring
	address string
	cookie  string
	self    bool
	downCh  chan struct{}
}

// NewController creates a Controller. The layer is not brought up yet.
func NewController(cfg Config) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Controller{
		cfg:    cfg,
		logger: cfg.Logger,
		cookie: cfg.Cookie,
	}
}

// BringUp idempotently ensures the layer is active under
// shortName@address. The gossip interval and verbosity from the config
// are applied on every call, since a fresh instance resets them.
//
// It reports whether this controller is what started the layer; when
// the layer was supplied externally the controller records the address
// but touches nothing.
func (c *Controller) BringUp(address string) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.External {
		c.address = address
		c.logger.Info("communication layer supplied externally, not starting",
			"node", c.nodeNameLocked())
		return StatusAlreadyRunning, nil
	}

	if c.ml != nil {
		if c.address != address {
			return StatusSelfStarted, fmt.Errorf("%w: running=%s requested=%s",
				ErrAddressMismatch, c.address, address)
		}
		// Already up under the requested identity; re-apply the
		// ambient settings and report ownership unchanged.
		c.applyTuningLocked(c.mlcfg)
		return StatusSelfStarted, nil
	}

	mlcfg := memberlist.DefaultLANConfig()
	mlcfg.Name = c.cfg.ShortName + "@" + address
	mlcfg.BindAddr = address
	mlcfg.BindPort = c.cfg.GossipPort
	mlcfg.AdvertisePort = c.cfg.GossipPort
	mlcfg.Events = &eventDelegate{controller: c}
	mlcfg.LogOutput = &slogWriter{logger: c.logger, level: parseVerbosity(c.cfg.Verbosity)}
	c.applyTuningLocked(mlcfg)

	if c.cookie != "" {
		key := deriveKey(c.cookie)
		kr, err := memberlist.NewKeyring(nil, key)
		if err != nil {
			return StatusSelfStarted, fmt.Errorf("distnet: keyring: %w", err)
		}
		mlcfg.Keyring = kr
		c.keyring = kr
	}

	ml, err := memberlist.Create(mlcfg)
	if err != nil {
		return StatusSelfStarted, fmt.Errorf("distnet: bring up %s: %w", mlcfg.Name, err)
	}

	c.ml = ml
	c.mlcfg = mlcfg
	c.address = address
	c.self = true

	c.logger.Info("communication layer up",
		"node", mlcfg.Name,
		"bind_port", c.cfg.GossipPort)
	return StatusSelfStarted, nil
}

// Teardown stops the layer and blocks until the local node has
// observably gone down. It subscribes a one-shot listener for the local
// leave event, broadcasts the leave, waits for the event (with a bounded
// fallback), then shuts the transport down.
func (c *Controller) Teardown() error {
	c.mu.Lock()
	if c.cfg.External {
		c.mu.Unlock()
		return ErrExternallyManaged
	}
	ml := c.ml
	if ml == nil {
		c.mu.Unlock()
		return nil
	}
	name := c.nodeNameLocked()
	down := make(chan struct{}, 1)
	c.downCh = down
	c.mu.Unlock()

	if err := ml.Leave(leaveTimeout); err != nil {
		c.logger.Warn("leave broadcast failed", "node", name, "error", err)
	}

	select {
	case <-down:
	case <-time.After(leaveTimeout):
		c.logger.Warn("local down-notification not observed, shutting down anyway",
			"node", name)
	}

	err := ml.Shutdown()

	c.mu.Lock()
	c.ml = nil
	c.mlcfg = nil
	c.keyring = nil
	c.self = false
	c.downCh = nil
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("distnet: shutdown %s: %w", name, err)
	}
	c.logger.Info("communication layer down", "node", name)
	return nil
}

// Running reports whether the layer is up (or externally supplied).
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ml != nil || c.cfg.External
}

// SelfStarted reports whether this controller started the layer.
func (c *Controller) SelfStarted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.self
}

// NodeName returns the fully-qualified node identity for the current
// (or most recent) address, e.g. "ns_1@10.0.0.5".
func (c *Controller) NodeName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nodeNameLocked()
}

// Cookie returns the current shared secret.
func (c *Controller) Cookie() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cookie
}

// SetCookie replaces the shared secret. If the layer is running with
// encryption, the keyring is re-keyed in place; otherwise the cookie
// takes effect at the next bring-up.
func (c *Controller) SetCookie(cookie string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cookie = cookie
	if c.keyring == nil || cookie == "" {
		return nil
	}

	key := deriveKey(cookie)
	if err := c.keyring.AddKey(key); err != nil {
		return fmt.Errorf("distnet: add key: %w", err)
	}
	if err := c.keyring.UseKey(key); err != nil {
		return fmt.Errorf("distnet: use key: %w", err)
	}
	return nil
}

func (c *Controller) nodeNameLocked() string {
	if c.address == "" {
		return ""
	}
	return c.cfg.ShortName + "@" + c.address
}

// applyTuningLocked applies tick-time and verbosity to a layer config.
func (c *Controller) applyTuningLocked(mlcfg *memberlist.Config) {
	if c.cfg.TickInterval > 0 {
		mlcfg.GossipInterval = c.cfg.TickInterval
	}
	if w, ok := mlcfg.LogOutput.(*slogWriter); ok {
		w.level = parseVerbosity(c.cfg.Verbosity)
	}
}

// notifyDown signals a pending teardown that the local node left.
func (c *Controller) notifyDown(nodeName string) {
	c.mu.Lock()
	down := c.downCh
	local := c.nodeNameLocked()
	c.mu.Unlock()

	if down == nil || nodeName != local {
		return
	}
	select {
	case down <- struct{}{}:
	default:
	}
}

// deriveKey derives the 32-byte gossip encryption key from the cluster
// cookie.
func deriveKey(cookie string) []byte {
	sum := blake2b.Sum256([]byte(cookie))
	return sum[:]
}

func parseVerbosity(v string) slog.Level {
	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
