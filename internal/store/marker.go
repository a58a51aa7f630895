package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const engineMarkerFile = ".engine"

// EnsureEngine guards against reopening a store directory with a different
// engine than it was created with (grounded on get_current_engine in the
// original kvs-server binary). On first use it records engine into the
// marker file; on subsequent runs it compares and fails if the requested
// engine does not match what is on record.
func EnsureEngine(dir, engine string) error {
	path := filepath.Join(dir, engineMarkerFile)

	existing, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("store: reading engine marker: %w", err)
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("store: creating store dir: %w", err)
		}
		if err := os.WriteFile(path, []byte(engine), 0644); err != nil {
			return fmt.Errorf("store: writing engine marker: %w", err)
		}
		return nil
	}

	recorded := strings.TrimSpace(string(existing))
	if recorded != engine {
		return fmt.Errorf("store: %s was previously opened with engine %q, cannot reopen with %q", dir, recorded, engine)
	}
	return nil
}
