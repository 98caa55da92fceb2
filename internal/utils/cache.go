package utils

import (
	"os"
	"path/filepath"
	"sync"
	"time"
)

// fileEntry is a cached value together with the file state it was read from
type fileEntry[V any] struct {
	value   V
	modTime time.Time
	size    int64
}

// FileCache holds one value per file path. An entry is served only while the
// file keeps the modification time and size it had when the entry was stored.
type FileCache[V any] struct {
	mu      sync.RWMutex
	entries map[string]fileEntry[V]
}

// NewFileCache creates an empty file cache
func NewFileCache[V any]() *FileCache[V] {
	return &FileCache[V]{entries: make(map[string]fileEntry[V])}
}

// Get returns the value stored for path if the file is unchanged. A stale or
// unreadable entry is evicted.
func (c *FileCache[V]) Get(path string) (V, bool) {
	path = filepath.Clean(path)

	c.mu.RLock()
	entry, ok := c.entries[path]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if stat, err := os.Stat(path); err == nil && stat.ModTime().Equal(entry.modTime) && stat.Size() == entry.size {
		return entry.value, true
	}

	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
	return zero, false
}

// Put stores value for path with the file's current state
func (c *FileCache[V]) Put(path string, value V) error {
	path = filepath.Clean(path)
	stat, err := os.Stat(path)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = fileEntry[V]{value: value, modTime: stat.ModTime(), size: stat.Size()}
	return nil
}
