package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const (
	// FileCacheMaxAge is the fixed expiry window for file entries,
	// measured from the file's modification time.
	FileCacheMaxAge = 7 * 24 * time.Hour

	// FileCacheMaxBytes is the total size ceiling. When a write pushes
	// the tracked size past it, the oldest files are evicted until the
	// cache is back under budget.
	FileCacheMaxBytes = 500 * 1024 * 1024
)

// FileCacheMetrics is a snapshot of the cache counters.
type FileCacheMetrics struct {
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	Sets     int64   `json:"sets"`
	Deletes  int64   `json:"deletes"`
	HitRatio float64 `json:"hitRatio"`
}

// FileCache is a content-addressed on-disk cache for larger, long-lived
// artifacts. Entries are stored one file per key, named by
// SHA-256(key), and expire a fixed FileCacheMaxAge after their write
// time. Unlike Store backends it is size-bounded rather than
// per-entry-TTL'd.
type FileCache struct {
	dir     string
	maxAge  time.Duration
	maxSize int64
	logger  *slog.Logger

	mu      sync.Mutex
	hits    int64
	misses  int64
	sets    int64
	deletes int64
}

func NewFileCache(dir string, logger *slog.Logger) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir %s: %w", dir, err)
	}
	return &FileCache{
		dir:     dir,
		maxAge:  FileCacheMaxAge,
		maxSize: FileCacheMaxBytes,
		logger:  logger,
	}, nil
}

func (c *FileCache) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:]))
}

// Get returns the cached bytes for key, or found=false when the entry
// is absent or older than the expiry window.
func (c *FileCache) Get(key string) ([]byte, bool) {
	path := c.path(key)

	info, err := os.Stat(path)
	if err != nil {
		c.count(&c.misses)
		return nil, false
	}
	if time.Since(info.ModTime()) > c.maxAge {
		if err := os.Remove(path); err != nil {
			c.logger.Warn("failed to remove expired cache file", "key", key, "error", err)
		}
		c.count(&c.misses)
		return nil, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		c.count(&c.misses)
		return nil, false
	}
	c.count(&c.hits)
	return data, true
}

// Set writes the entry and runs an eviction sweep if the cache grew
// past its size ceiling.
func (c *FileCache) Set(key string, data []byte) error {
	if err := os.WriteFile(c.path(key), data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache file for %s: %w", key, err)
	}
	c.count(&c.sets)
	c.evictIfOverBudget()
	return nil
}

func (c *FileCache) Delete(key string) error {
	err := os.Remove(c.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete cache file for %s: %w", key, err)
	}
	if err == nil {
		c.count(&c.deletes)
	}
	return nil
}

// evictIfOverBudget deletes files oldest-modification-first until the
// total size is back under the ceiling.
func (c *FileCache) evictIfOverBudget() {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		c.logger.Warn("cache sweep failed to list dir", "dir", c.dir, "error", err)
		return
	}

	type fileInfo struct {
		path    string
		size    int64
		modTime time.Time
	}

	var files []fileInfo
	var total int64
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil || entry.IsDir() {
			continue
		}
		files = append(files, fileInfo{
			path:    filepath.Join(c.dir, entry.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
		total += info.Size()
	}
	if total <= c.maxSize {
		return
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})

	for _, f := range files {
		if total <= c.maxSize {
			break
		}
		if err := os.Remove(f.path); err != nil {
			c.logger.Warn("cache sweep failed to remove file", "path", f.path, "error", err)
			continue
		}
		total -= f.size
		c.count(&c.deletes)
	}
	c.logger.Info("cache sweep finished", "remainingBytes", total)
}

func (c *FileCache) count(counter *int64) {
	c.mu.Lock()
	*counter++
	c.mu.Unlock()
}

// Metrics returns a consistent snapshot of the counters.
func (c *FileCache) Metrics() FileCacheMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := FileCacheMetrics{
		Hits:    c.hits,
		Misses:  c.misses,
		Sets:    c.sets,
		Deletes: c.deletes,
	}
	if lookups := c.hits + c.misses; lookups > 0 {
		m.HitRatio = float64(c.hits) / float64(lookups)
	}
	return m
}
