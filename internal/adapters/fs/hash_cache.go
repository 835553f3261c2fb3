package fs

import (
	"encoding/json"
	"errors"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.trai.ch/rbt/internal/core/domain"
	"go.trai.ch/zerr"
)

type hashEntry struct {
	Size    int64  `json:"size"`
	ModTime int64  `json:"mtime"`
	Sum     uint64 `json:"sum"`
}

// HashCache remembers file content hashes keyed by path, size and
// modification time so unchanged inputs are not re-read across builds.
// A HashCache with an empty path is memory-only.
type HashCache struct {
	mu      sync.RWMutex
	path    string
	entries map[string]hashEntry
	dirty   bool
}

// NewHashCache returns an empty memory-only cache.
func NewHashCache() *HashCache {
	return &HashCache{entries: make(map[string]hashEntry)}
}

// LoadHashCache reads the cache persisted at path. A missing or unreadable
// file yields an empty cache that will be written to path on Save.
func LoadHashCache(path string) (*HashCache, error) {
	c := &HashCache{path: path, entries: make(map[string]hashEntry)}

	data, err := os.ReadFile(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return c, nil
		}
		return nil, zerr.With(zerr.Wrap(err, "failed to read file hash cache"), "path", path)
	}

	if err := json.Unmarshal(data, &c.entries); err != nil {
		// Discard a corrupt cache; it is rebuilt as files are hashed.
		c.entries = make(map[string]hashEntry)
		c.dirty = true
	}
	return c, nil
}

// Lookup returns the cached hash for path if size and mtime still match info.
func (c *HashCache) Lookup(path string, info iofs.FileInfo) (uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[path]
	if !ok || e.Size != info.Size() || e.ModTime != info.ModTime().UnixNano() {
		return 0, false
	}
	return e.Sum, true
}

// Store records the hash of path as of info.
func (c *HashCache) Store(path string, info iofs.FileInfo, sum uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[path] = hashEntry{Size: info.Size(), ModTime: info.ModTime().UnixNano(), Sum: sum}
	c.dirty = true
}

// Len returns the number of cached entries.
func (c *HashCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Save persists the cache if it changed since it was loaded.
func (c *HashCache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.path == "" || !c.dirty {
		return nil
	}

	data, err := json.Marshal(c.entries)
	if err != nil {
		return zerr.Wrap(err, "failed to marshal file hash cache")
	}

	if err := writeFileAtomic(c.path, data); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to write file hash cache"), "path", c.path)
	}
	c.dirty = false
	return nil
}

// writeFileAtomic writes data to a temporary sibling of path and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), domain.FilePerm); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
