package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/dshills/asmexplain/internal/logging"
	"github.com/dshills/asmexplain/internal/metrics"
)

const (
	explanationsDir = "explanations"
	entryExt        = ".txt"
)

// Key identifies one function's explanation.
type Key struct {
	FileID  string
	Address string
}

// String returns "fileID:address".
func (k Key) String() string {
	return k.FileID + ":" + k.Address
}

// PersistenceError reports a failed write to the durable tier. It is logged
// and counted by Put, never returned to callers.
type PersistenceError struct {
	Key  Key
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting explanation %s to %s: %v", e.Key, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Options configures a Cache.
type Options struct {
	// Dir is the artifact root. Explanations are stored under
	// <Dir>/<fileId>/explanations/<address>.txt.
	Dir string
	// Persist enables the durable tier. Without it the cache is memory-only.
	Persist bool
	Logger  *log.Logger
	Metrics *metrics.Metrics
}

// Cache is a two-tier explanation cache: an in-memory map backed by plain
// text files. It is safe for concurrent use.
type Cache struct {
	dir     string
	persist bool
	logger  *log.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	entries map[Key]string

	persistFailures atomic.Int64
}

// New creates a Cache.
func New(opts Options) *Cache {
	return &Cache{
		dir:     opts.Dir,
		persist: opts.Persist && opts.Dir != "",
		logger:  logging.OrDiscard(opts.Logger),
		metrics: opts.Metrics,
		entries: make(map[Key]string),
	}
}

// Lookup is like Get but also reports which tier served the entry
// (metrics.SourceMemory or metrics.SourceDisk).
func (c *Cache) Lookup(key Key) (text, source string, ok bool) {
	c.mu.RLock()
	text, ok = c.entries[key]
	c.mu.RUnlock()
	if ok {
		return text, metrics.SourceMemory, true
	}
	if !c.persist {
		return "", "", false
	}

	path := c.entryPath(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("reading cached explanation", "key", key.String(), "path", path, "err", err)
			c.metrics.CacheReadFailure()
		}
		return "", "", false
	}
	text = string(data)

	c.mu.Lock()
	if existing, found := c.entries[key]; found {
		text = existing
	} else {
		c.entries[key] = text
	}
	c.mu.Unlock()
	return text, metrics.SourceDisk, true
}

// Get returns the explanation for key from memory, then disk. A disk hit is
// promoted to memory. Returns ("", false) on a miss.
func (c *Cache) Get(key Key) (string, bool) {
	text, _, ok := c.Lookup(key)
	return text, ok
}

// Put stores text in memory and, when persistence is enabled, on disk.
// Disk failures are logged and counted but do not fail the call.
func (c *Cache) Put(key Key, text string) {
	c.mu.Lock()
	c.entries[key] = text
	c.mu.Unlock()

	if !c.persist {
		return
	}
	if err := c.write(key, text); err != nil {
		c.persistFailures.Add(1)
		c.metrics.PersistenceFailure()
		c.logger.Warn("explanation not persisted", "err", err)
	}
}

func (c *Cache) write(key Key, text string) error {
	path := c.entryPath(key)
	fail := func(err error) error {
		return &PersistenceError{Key: key, Path: path, Err: err}
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail(err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fail(err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fail(err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fail(err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fail(err)
	}
	return nil
}

// Len returns the number of in-memory entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats describes the cache contents.
type Stats struct {
	Dir                 string `json:"dir"`
	Persist             bool   `json:"persist"`
	MemoryEntries       int    `json:"memoryEntries"`
	DiskEntries         int    `json:"diskEntries"`
	TotalBytes          int64  `json:"totalBytes"`
	PersistenceFailures int64  `json:"persistenceFailures"`
}

// Stats returns information about both tiers. When fileID is non-empty, disk
// entries are counted for that file only.
func (c *Cache) Stats(fileID string) (Stats, error) {
	stats := Stats{
		Dir:                 c.dir,
		Persist:             c.persist,
		MemoryEntries:       c.Len(),
		PersistenceFailures: c.persistFailures.Load(),
	}
	if !c.persist {
		return stats, nil
	}
	err := c.walkEntries(fileID, func(_ string, info fs.FileInfo) {
		stats.DiskEntries++
		stats.TotalBytes += info.Size()
	})
	return stats, err
}

// Clear removes entries for fileID from both tiers, or every entry when
// fileID is empty. It returns the number of durable entries removed.
func (c *Cache) Clear(fileID string) (int, error) {
	c.mu.Lock()
	for k := range c.entries {
		if fileID == "" || k.FileID == fileID {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()

	if !c.persist {
		return 0, nil
	}
	var removed int
	var errs []error
	walkErr := c.walkEntries(fileID, func(path string, _ fs.FileInfo) {
		if err := os.Remove(path); err != nil {
			errs = append(errs, err)
			return
		}
		removed++
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}
	return removed, errors.Join(errs...)
}

// walkEntries calls fn for each durable entry of fileID (all files when empty).
func (c *Cache) walkEntries(fileID string, fn func(path string, info fs.FileInfo)) error {
	var fileDirs []string
	if fileID != "" {
		fileDirs = []string{filepath.Join(c.dir, fileID)}
	} else {
		entries, err := os.ReadDir(c.dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("reading cache directory: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() {
				fileDirs = append(fileDirs, filepath.Join(c.dir, e.Name()))
			}
		}
	}

	for _, fd := range fileDirs {
		dir := filepath.Join(fd, explanationsDir)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("reading %s: %w", dir, err)
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || filepath.Ext(name) != entryExt || strings.HasPrefix(name, ".") {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			fn(filepath.Join(dir, name), info)
		}
	}
	return nil
}

// Dir returns the artifact root the durable tier writes under.
func (c *Cache) Dir() string {
	return c.dir
}

// Persistent reports whether the durable tier is enabled.
func (c *Cache) Persistent() bool {
	return c.persist
}

func (c *Cache) entryPath(key Key) string {
	return filepath.Join(c.dir, key.FileID, explanationsDir, key.Address+entryExt)
}
