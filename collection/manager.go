package collection

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vectorlite/vectorlite/internal/verrors"
)

// Manager owns every collection rooted under one data directory,
// mirroring pkg/tenant/manager.go's map[string]*T + sync.RWMutex
// shape, repurposed from tenant quota bookkeeping to collection
// lifecycle per spec.md §4.6.
type Manager struct {
	root        string
	collections map[string]*Collection
	mu          sync.RWMutex

	stopTicker chan struct{}
	wg         sync.WaitGroup
}

// NewManager opens every collection directory found under root,
// starting a background goroutine that periodically flushes whichever
// collections have crossed their snapshot triggers.
func NewManager(root string) (*Manager, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("collection: manager root: %w", err)
	}
	m := &Manager{
		root:        root,
		collections: make(map[string]*Collection),
		stopTicker:  make(chan struct{}),
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("collection: list collections dir: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if _, err := os.Stat(filepath.Join(root, name, manifestFileName)); err != nil {
			continue // not a collection directory (no manifest yet)
		}
		c, err := Open(filepath.Join(root, name), name)
		if err != nil {
			return nil, fmt.Errorf("collection: reopen %q: %w", name, err)
		}
		m.collections[name] = c
	}

	m.wg.Add(1)
	go m.snapshotLoop()
	return m, nil
}

// snapshotLoop periodically flushes every collection whose snapshot
// triggers (max WAL bytes or max ops since the last snapshot, per
// spec.md §4.5) have fired. Grounded on the ticker-driven background
// goroutine shape used throughout cmd/server for graceful shutdown,
// not any single teacher file.
func (m *Manager) snapshotLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopTicker:
			return
		case <-ticker.C:
			for _, c := range m.snapshotAll() {
				_ = c.maybeSnapshot()
			}
		}
	}
}

func (m *Manager) snapshotAll() []*Collection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Collection, 0, len(m.collections))
	for _, c := range m.collections {
		out = append(out, c)
	}
	return out
}

// CreateCollection creates and registers a new collection.
func (m *Manager) CreateCollection(name string, cfg Config) (*Collection, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("collection: %w", verrors.ErrInvalidName)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.collections[name]; exists {
		return nil, fmt.Errorf("collection %q: %w", name, verrors.ErrAlreadyExists)
	}

	c, err := Create(filepath.Join(m.root, name), name, cfg)
	if err != nil {
		return nil, err
	}
	m.collections[name] = c
	return c, nil
}

// Get retrieves a collection by name.
func (m *Manager) Get(name string) (*Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, exists := m.collections[name]
	if !exists {
		return nil, fmt.Errorf("collection %q: %w", name, verrors.ErrNotFound)
	}
	return c, nil
}

// DropCollection flushes a final snapshot, closes the collection, and
// removes its directory, per spec.md §4.6's drop semantics.
func (m *Manager) DropCollection(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, exists := m.collections[name]
	if !exists {
		return fmt.Errorf("collection %q: %w", name, verrors.ErrNotFound)
	}
	if err := c.Close(); err != nil {
		return fmt.Errorf("collection %q: close before drop: %w", name, err)
	}
	if err := os.RemoveAll(filepath.Join(m.root, name)); err != nil {
		return fmt.Errorf("collection %q: remove directory: %w", name, err)
	}
	delete(m.collections, name)
	return nil
}

// List returns the names of every registered collection.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	return names
}

// Stats fans out Stats() across every collection.
func (m *Manager) Stats() map[string]Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Stats, len(m.collections))
	for name, c := range m.collections {
		out[name] = c.Stats()
	}
	return out
}

// Close stops the background snapshot loop and closes every
// collection, flushing a final snapshot for each.
func (m *Manager) Close() error {
	close(m.stopTicker)
	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for name, c := range m.collections {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("collection %q: %w", name, err)
		}
	}
	return firstErr
}
