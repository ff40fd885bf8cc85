// pattern: Imperative Shell

// Package fetch is the on-demand fetch service: it copies an item's content
// from its Source into the local content cache in the background.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"syncwatch/internal/index"
	"syncwatch/internal/logging"
	"syncwatch/internal/metrics"
)

var (
	// ErrNotFound is returned when the Source does not hold the item.
	ErrNotFound = index.ErrNotFound
	// ErrUnsupportedURL is returned for URLs the Source cannot resolve.
	ErrUnsupportedURL = index.ErrUnsupportedURL
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("fetcher closed")
)

// DefaultMaxConcurrent bounds parallel copies when none is configured.
const DefaultMaxConcurrent = 4

// Cache is where downloaded content lands.
type Cache interface {
	Begin(key string) bool
	Commit(key string, r io.Reader, modTime time.Time) (int64, error)
	Abort(key string)
}

// Fetcher starts background downloads. Requests are fire-and-forget: the
// caller learns the outcome only through the cache status on a later pass.
type Fetcher struct {
	src    index.Source
	cache  Cache
	logger *logging.ScopedLogger
	sem    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New creates a Fetcher that runs at most maxConcurrent copies at once.
func New(src index.Source, cache Cache, maxConcurrent int, logger *logging.ScopedLogger) *Fetcher {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Fetcher{
		src:    src,
		cache:  cache,
		logger: logger,
		sem:    make(chan struct{}, maxConcurrent),
		ctx:    ctx,
		cancel: cancel,
	}
}

// StartDownloading resolves url and confirms the item exists, then starts
// copying it unless a copy is already in flight. It returns once the copy
// has been scheduled; the copy's own failure is only logged.
func (f *Fetcher) StartDownloading(url string) error {
	key, err := f.src.KeyForURL(url)
	if err != nil {
		return fmt.Errorf("start downloading: %w", err)
	}

	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return ErrClosed
	}

	obj, err := f.src.Stat(f.ctx, key)
	if err != nil {
		return fmt.Errorf("start downloading: %w", err)
	}

	if !f.cache.Begin(key) {
		f.logger.Debug("download already in flight", "key", key)
		return nil
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		f.cache.Abort(key)
		return ErrClosed
	}
	f.wg.Add(1)
	f.mu.Unlock()

	go f.download(obj)
	return nil
}

func (f *Fetcher) download(obj index.Object) {
	defer f.wg.Done()

	select {
	case f.sem <- struct{}{}:
	case <-f.ctx.Done():
		f.cache.Abort(obj.Key)
		return
	}
	defer func() { <-f.sem }()

	metrics.AddDownloadsInFlight(1)
	defer metrics.AddDownloadsInFlight(-1)

	start := time.Now()
	n, err := f.copy(obj)
	if err != nil {
		f.cache.Abort(obj.Key)
		metrics.RecordDownload(n, false)
		if f.ctx.Err() != nil {
			f.logger.Debug("download cancelled", "key", obj.Key)
			return
		}
		f.logger.Warn("download failed", "key", obj.Key, "url", obj.URL, "error", err)
		return
	}

	metrics.RecordDownload(n, true)
	f.logger.Info("download complete",
		"key", obj.Key,
		"bytes", n,
		"duration", time.Since(start).String())
}

func (f *Fetcher) copy(obj index.Object) (int64, error) {
	rc, err := f.src.Open(f.ctx, obj.Key)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rc.Close() }()

	return f.cache.Commit(obj.Key, &ctxReader{ctx: f.ctx, r: rc}, obj.ModTime)
}

// Close cancels in-flight copies and waits for them to finish.
func (f *Fetcher) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()

	f.cancel()
	f.wg.Wait()
	return nil
}

// ctxReader stops a copy between reads once ctx is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
