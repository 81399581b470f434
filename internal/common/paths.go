package common

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureWritableDir returns the first directory that can be created and written to.
// Candidates are tried in order; empty candidates are skipped.
func EnsureWritableDir(candidates ...string) (string, error) {
	var lastErr error
	for _, dir := range candidates {
		if dir == "" {
			continue
		}
		if err := probeWritable(dir); err != nil {
			lastErr = err
			continue
		}
		return dir, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no candidate directories")
	}
	return "", lastErr
}

// CwdFallback returns <cwd>/name, or name when the working directory is unknown
func CwdFallback(name string) string {
	cwd, err := os.Getwd()
	if err != nil {
		return name
	}
	return filepath.Join(cwd, name)
}

func probeWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	probe, err := os.CreateTemp(dir, ".write-probe-*")
	if err != nil {
		return fmt.Errorf("directory %s is not writable: %w", dir, err)
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)
	return nil
}
