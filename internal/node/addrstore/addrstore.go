// Package addrstore persists the node address across restarts.
//
// The address lives in one of two files under the node data directory:
//
//   - ip_start: the address when it was explicitly supplied by an operator
//   - ip:       the address when it was auto-detected
//
// The two files are mutually exclusive views of the same logical field.
// Whenever one slot is written the other is deleted, so at most one of
// them ever holds a non-empty value.
package addrstore

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// File names of the two address slots.
const (
	ipStartFile = "ip_start"
	ipFile      = "ip"
)

// ErrNotFound indicates that no address has been persisted.
var ErrNotFound = errors.New("addrstore: no saved address")

// Store reads and writes the persisted node address.
type Store struct {
	ipStartPath string
	ipPath      string
	logger      *slog.Logger
}

// New creates a Store rooted at dir.
func New(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		ipStartPath: filepath.Join(dir, ipStartFile),
		ipPath:      filepath.Join(dir, ipFile),
		logger:      logger,
	}
}

// Read returns the persisted address and whether it was user-supplied.
//
// The user-supplied slot takes precedence. Content is whitespace-trimmed;
// an empty file is treated the same as an absent one. Any I/O failure
// other than "file absent" is returned as an error distinct from
// ErrNotFound, because guessing an address on a node whose disk is
// misbehaving is worse than refusing to start.
func (s *Store) Read() (addr string, userSupplied bool, err error) {
	addr, err = readSlot(s.ipStartPath)
	if err != nil {
		return "", false, fmt.Errorf("addrstore: read %s: %w", s.ipStartPath, err)
	}
	if addr != "" {
		return addr, true, nil
	}

	addr, err = readSlot(s.ipPath)
	if err != nil {
		return "", false, fmt.Errorf("addrstore: read %s: %w", s.ipPath, err)
	}
	if addr != "" {
		return addr, false, nil
	}

	return "", false, ErrNotFound
}

// Save persists addr to the authoritative slot and removes the other
// slot. The write is atomic with respect to a process crash: the
// content goes to a temp file first and is moved into place with a
// rename. Deletion of the stale slot is best-effort; a failure there is
// logged but does not fail the save.
func (s *Store) Save(addr string, userSupplied bool) error {
	target, stale := s.ipPath, s.ipStartPath
	if userSupplied {
		target, stale = s.ipStartPath, s.ipPath
	}

	if err := WriteFileAtomic(target, []byte(addr+"\n")); err != nil {
		return fmt.Errorf("addrstore: save %s: %w", target, err)
	}

	if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove stale address slot",
			"path", stale,
			"error", err)
	}

	s.logger.Info("saved node address",
		"address", addr,
		"user_supplied", userSupplied)
	return nil
}

// readSlot returns the trimmed content of path, or "" when the file is
// absent or empty.
func readSlot(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// WriteFileAtomic writes data to path via a temp file and rename, so a
// crash mid-write never leaves a partially written file behind. Readers
// of path observe either the old content or the new one.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
