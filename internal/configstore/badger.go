package configstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"
)

// BadgerStore implements Store on an embedded Badger database.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger
	closed atomic.Bool

	metricLSMSize      prometheus.Gauge
	metricValueLogSize prometheus.Gauge
}

// BadgerConfig configures a BadgerStore.
type BadgerConfig struct {
	// Dir is the database directory.
	Dir string

	// SyncWrites forces an fsync on every write. Configuration writes
	// are rare, so this defaults to on.
	SyncWrites bool

	// Logger for Badger's internal logging.
	Logger *slog.Logger

	// Registerer receives the store's size gauges; nil disables them.
	Registerer prometheus.Registerer
}

// NewBadgerStore opens (creating if necessary) the store at cfg.Dir.
func NewBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("configstore: dir is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	opts := badger.DefaultOptions(cfg.Dir)
	opts.Logger = &badgerLogger{logger: cfg.Logger}
	opts.SyncWrites = cfg.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("configstore: open db: %w", err)
	}

	s := &BadgerStore{
		db:     db,
		logger: cfg.Logger,
		metricLSMSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nsserver",
			Subsystem: "configstore",
			Name:      "lsm_size_bytes",
			Help:      "Configuration store LSM tree size in bytes.",
		}),
		metricValueLogSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nsserver",
			Subsystem: "configstore",
			Name:      "value_log_size_bytes",
			Help:      "Configuration store value log size in bytes.",
		}),
	}

	if cfg.Registerer != nil {
		cfg.Registerer.MustRegister(s.metricLSMSize, s.metricValueLogSize)
	}

	return s, nil
}

// Get returns the value for key.
func (s *BadgerStore) Get(ctx context.Context, key string) (string, error) {
	if s.closed.Load() {
		return "", ErrClosed
	}

	var value string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrKeyNotFound
			}
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		value = string(raw)
		return nil
	})
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set stores key/value.
func (s *BadgerStore) Set(ctx context.Context, key, value string) error {
	if s.closed.Load() {
		return ErrClosed
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("configstore: set %q: %w", key, err)
	}
	s.updateSizeMetrics()
	return nil
}

// Delete removes key.
func (s *BadgerStore) Delete(ctx context.Context, key string) error {
	if s.closed.Load() {
		return ErrClosed
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("configstore: delete %q: %w", key, err)
	}
	s.updateSizeMetrics()
	return nil
}

// Scan iterates over all entries in a single read transaction.
func (s *BadgerStore) Scan(ctx context.Context, fn func(key, value string) bool) error {
	if s.closed.Load() {
		return ErrClosed
	}

	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if !fn(string(item.Key()), string(value)) {
				break
			}
		}
		return nil
	})
}

// Close shuts the database down.
func (s *BadgerStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *BadgerStore) updateSizeMetrics() {
	lsm, vlog := s.db.Size()
	s.metricLSMSize.Set(float64(lsm))
	s.metricValueLogSize.Set(float64(vlog))
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
