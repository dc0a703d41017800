// Package filex provides small filesystem helpers shared across the worker.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDir creates dir (and parents) if it does not exist and verifies it
// is writable by the current process.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	probe := filepath.Join(dir, ".write-probe")
	f, err := os.Create(probe)
	if err != nil {
		return fmt.Errorf("dir %s is not writable: %w", dir, err)
	}
	f.Close()
	_ = os.Remove(probe)

	return nil
}

// EnsureSubDir joins base and name, creating the resulting directory if
// needed, and returns its path.
func EnsureSubDir(base string, name string) (string, error) {
	dir := filepath.Join(base, name)
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return dir, nil
}
