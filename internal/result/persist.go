package result

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Writer persists run results to a fixed target path. Interim snapshots
// and the final write go through the same temp-file-then-rename dance so a
// crash mid-write never leaves a corrupt artifact behind.
type Writer struct {
	path string
}

// NewWriter creates a writer for the given target path. Relative paths are
// resolved against the working directory once, up front.
func NewWriter(path string) (*Writer, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output path: %w", err)
	}
	return &Writer{path: abs}, nil
}

// Path returns the resolved target path.
func (w *Writer) Path() string {
	return w.path
}

// Save serializes the result and atomically replaces the target path.
func (w *Writer) Save(v any) error {
	if dir := filepath.Dir(w.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	tempPath := w.path + ".temp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempPath, w.path); err != nil {
		// Leave nothing half-written behind.
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace output file: %w", err)
	}
	return nil
}
