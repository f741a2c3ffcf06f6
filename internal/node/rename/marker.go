// Package rename implements the crash-recoverable node rename protocol.
//
// After an address change the node's old identity may still be embedded
// in configuration it owns. The protocol rewrites every occurrence and
// notifies the local companion process. A marker file written before
// the protocol runs, and removed only after it fully completes, makes
// a crashed rename resumable: the marker's presence at the next start
// is the sole signal that the protocol must be re-driven.
package rename

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/minddrive/ns-server/internal/node/addrstore"
)

// markerFile is the marker's file name under the node data directory.
const markerFile = "rename_marker"

// Marker is the durable record of an in-flight rename. Its content is
// the old fully-qualified node identity; its existence alone is the
// signal.
type Marker struct {
	path string
}

// NewMarker creates a Marker rooted at dir.
func NewMarker(dir string) *Marker {
	return &Marker{path: filepath.Join(dir, markerFile)}
}

// Write records oldName durably. At most one marker exists at a time;
// writing replaces any previous one.
func (m *Marker) Write(oldName string) error {
	if err := addrstore.WriteFileAtomic(m.path, []byte(oldName+"\n")); err != nil {
		return fmt.Errorf("rename: write marker: %w", err)
	}
	return nil
}

// Read returns the recorded old identity and whether a marker exists.
func (m *Marker) Read() (oldName string, exists bool, err error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("rename: read marker: %w", err)
	}
	return strings.TrimSpace(string(data)), true, nil
}

// Remove deletes the marker. Removing an absent marker is not an error.
func (m *Marker) Remove() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rename: remove marker: %w", err)
	}
	return nil
}
