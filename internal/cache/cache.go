// pattern: Imperative Shell

// Package cache holds local copies of remote content and derives each
// item's downloading status from them.
package cache

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"syncwatch/internal/index"
	"syncwatch/internal/notify"
)

// ErrInvalidKey is returned for keys that would escape the cache directory.
var ErrInvalidKey = errors.New("invalid cache key")

// Cache stores content at <dir>/<key>. It tracks which keys are being
// downloaded and signals subscribers when a download starts or lands.
type Cache struct {
	dir    string
	broker *notify.Broker

	mu       sync.Mutex
	inflight map[string]struct{}
}

// New creates the cache directory if needed.
func New(dir string) (*Cache, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &Cache{
		dir:      dir,
		broker:   notify.NewBroker(),
		inflight: make(map[string]struct{}),
	}, nil
}

// Dir returns the cache root.
func (c *Cache) Dir() string {
	return c.dir
}

// Path returns the local path for key.
func (c *Cache) Path(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(c.dir, filepath.FromSlash(key)), nil
}

// ValidateKey rejects empty, absolute, or non-canonical keys and any key
// with a ".." segment.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || path.Clean(key) != key {
		return fmt.Errorf("%q: %w", key, ErrInvalidKey)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return fmt.Errorf("%q: %w", key, ErrInvalidKey)
		}
	}
	return nil
}

// Status reports the downloading status of obj:
//   - downloading while a download is in flight
//   - not-downloaded when no local copy exists or it is stale
//   - current when the local copy matches the remote size and is not older
//
// It returns "" when the local copy cannot be inspected.
func (c *Cache) Status(obj index.Object) string {
	if c.InFlight(obj.Key) {
		return index.DownloadingStatusDownloading
	}

	p, err := c.Path(obj.Key)
	if err != nil {
		return ""
	}
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return index.DownloadingStatusNotDownloaded
		}
		return ""
	}
	if info.IsDir() {
		return ""
	}

	if info.Size() != obj.Size {
		return index.DownloadingStatusNotDownloaded
	}
	// Local filesystems may keep less precision than the remote.
	if !obj.ModTime.IsZero() && info.ModTime().Before(obj.ModTime.Truncate(time.Second)) {
		return index.DownloadingStatusNotDownloaded
	}
	return index.DownloadingStatusCurrent
}

// InFlight reports whether key is being downloaded.
func (c *Cache) InFlight(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[key]
	return ok
}

// Begin marks key as in flight. It returns false if it already was.
func (c *Cache) Begin(key string) bool {
	c.mu.Lock()
	if _, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		return false
	}
	c.inflight[key] = struct{}{}
	c.mu.Unlock()

	c.broker.Notify()
	return true
}

// Commit writes r to the local copy of key, stamps it with modTime and
// clears the in-flight mark. The copy appears atomically. On error the mark
// is left for the caller to Abort.
func (c *Cache) Commit(key string, r io.Reader, modTime time.Time) (int64, error) {
	dst, err := c.Path(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, fmt.Errorf("create parent directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".syncwatch-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	n, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		cleanup()
		return n, fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return n, fmt.Errorf("close temp file: %w", err)
	}
	if !modTime.IsZero() {
		if err := os.Chtimes(tmpName, modTime, modTime); err != nil {
			cleanup()
			return n, fmt.Errorf("set modification time: %w", err)
		}
	}
	if err := os.Rename(tmpName, dst); err != nil {
		cleanup()
		return n, fmt.Errorf("rename into place: %w", err)
	}

	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()

	c.broker.Notify()
	return n, nil
}

// Abort clears the in-flight mark without notifying subscribers, so a
// failed download does not immediately trigger another pass.
func (c *Cache) Abort(key string) {
	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()
}

// Subscribe returns a channel signalled on Begin and Commit.
func (c *Cache) Subscribe() chan struct{} {
	return c.broker.Subscribe()
}

// Unsubscribe removes a subscriber.
func (c *Cache) Unsubscribe(ch chan struct{}) {
	c.broker.Unsubscribe(ch)
}
