package storage

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Manager writes generated files and remembers what it wrote
type Manager struct {
	dryRun    bool
	written   map[string]bool
	unchanged map[string]bool
	mu        sync.RWMutex
}

// NewManager creates a new storage manager. A dry-run manager records what it
// would write without touching the file system.
func NewManager(dryRun bool) *Manager {
	return &Manager{
		dryRun:    dryRun,
		written:   make(map[string]bool),
		unchanged: make(map[string]bool),
	}
}

// IsUpToDate reports whether path already holds exactly content
func (m *Manager) IsUpToDate(path string, content []byte) bool {
	existing, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return bytes.Equal(existing, content)
}

// Save writes content to path unless the file is already up to date. It reports
// whether the file was (or, in dry-run mode, would have been) written.
func (m *Manager) Save(path string, content []byte) (bool, error) {
	if m.IsUpToDate(path, content) {
		m.mu.Lock()
		m.unchanged[path] = true
		m.mu.Unlock()
		return false, nil
	}

	if !m.dryRun {
		if err := writeAtomic(path, content); err != nil {
			return false, err
		}
	}

	m.mu.Lock()
	m.written[path] = true
	m.mu.Unlock()

	return true, nil
}

// writeAtomic writes through a temporary file in the target directory and renames
// it into place, so readers never observe a partial file
func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempFile := tmp.Name()

	_, err = tmp.Write(content)
	closeErr := tmp.Close()

	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write generated code: %w", err)
	}

	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	// CreateTemp uses 0600
	if err := os.Chmod(tempFile, 0644); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to set file mode: %w", err)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}

// DryRun reports whether the manager leaves the file system untouched
func (m *Manager) DryRun() bool {
	return m.dryRun
}

// Written returns the written paths in lexical order
func (m *Manager) Written() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	paths := make([]string, 0, len(m.written))
	for p := range m.written {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// WrittenCount returns the number of files written
func (m *Manager) WrittenCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.written)
}

// UnchangedCount returns the number of files that were already up to date
func (m *Manager) UnchangedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.unchanged)
}
