// pattern: Imperative Shell

// Package dirsource serves a directory tree as an index.Source. It stands
// in for remote storage that is mounted or mirrored locally.
package dirsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"syncwatch/internal/index"
	"syncwatch/internal/logging"
	"syncwatch/internal/metrics"
)

const sourceName = "dir"

// DefaultPollInterval is how often Watch rescans as a safeguard against
// missed filesystem events (network mounts, bind mounts).
const DefaultPollInterval = 30 * time.Second

// Options configure a Source.
type Options struct {
	PollInterval time.Duration
	Logger       *logging.ScopedLogger
}

// Source lists and watches files under a root directory. Keys are
// slash-separated paths relative to the root; URLs are file:// URLs.
type Source struct {
	root         string
	pollInterval time.Duration
	logger       *logging.ScopedLogger
}

// New creates a Source rooted at root, which must be an existing directory.
func New(root string, opts Options) (*Source, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", abs)
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Source{root: abs, pollInterval: opts.PollInterval, logger: logger}, nil
}

// Root returns the absolute root directory.
func (s *Source) Root() string { return s.root }

func (s *Source) Name() string { return sourceName }

// List walks the directory for prefix. A prefix that does not exist yet
// lists as empty.
func (s *Source) List(ctx context.Context, prefix string) (objs []index.Object, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordSourceOperation(sourceName, "list", time.Since(start), err == nil)
	}()

	base, err := s.localPath(prefix, true)
	if err != nil {
		return nil, err
	}

	objs = []index.Object{}
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == base && errors.Is(walkErr, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			// Removed between readdir and stat.
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		objs = append(objs, s.object(p, info))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", base, err)
	}
	return objs, nil
}

func (s *Source) Stat(_ context.Context, key string) (index.Object, error) {
	p, err := s.localPath(key, false)
	if err != nil {
		return index.Object{}, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return index.Object{}, fmt.Errorf("stat %s: %w", key, index.ErrNotFound)
		}
		return index.Object{}, fmt.Errorf("stat %s: %w", key, err)
	}
	if !info.Mode().IsRegular() {
		return index.Object{}, fmt.Errorf("stat %s: not a regular file: %w", key, index.ErrNotFound)
	}
	return s.object(p, info), nil
}

func (s *Source) Open(_ context.Context, key string) (io.ReadCloser, error) {
	start := time.Now()
	p, err := s.localPath(key, false)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	metrics.RecordSourceOperation(sourceName, "open", time.Since(start), err == nil)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("open %s: %w", key, index.ErrNotFound)
		}
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	return f, nil
}

// KeyForURL accepts file:// URLs that point inside the root.
func (s *Source) KeyForURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "file" || (u.Host != "" && u.Host != "localhost") {
		return "", fmt.Errorf("%q: %w", rawURL, index.ErrUnsupportedURL)
	}
	rel, err := filepath.Rel(s.root, filepath.FromSlash(u.Path))
	if err != nil || rel == "." || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%q: %w", rawURL, index.ErrUnsupportedURL)
	}
	return filepath.ToSlash(rel), nil
}

// Watch signals changed on any filesystem event under the prefixes, and
// on a periodic rescan whose listing fingerprint differs from the last.
func (s *Source) Watch(ctx context.Context, prefixes []string, changed func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	bases := make([]string, 0, len(prefixes))
	for _, prefix := range prefixes {
		base, err := s.localPath(prefix, true)
		if err != nil {
			return err
		}
		bases = append(bases, base)
	}

	// The root catches scope directories created after Watch starts.
	if err := watcher.Add(s.root); err != nil {
		return fmt.Errorf("watch %s: %w", s.root, err)
	}
	for _, base := range bases {
		s.addTree(watcher, base)
	}

	last := s.fingerprint(ctx, prefixes)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !underAny(event.Name, bases) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					s.addTree(watcher, event.Name)
				}
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			changed()

		case <-ticker.C:
			if fp := s.fingerprint(ctx, prefixes); fp != last {
				last = fp
				changed()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("file watcher error", "root", s.root, "error", err)
		}
	}
}

// addTree watches dir and every directory below it. Directories that
// vanish while walking are ignored.
func (s *Source) addTree(watcher *fsnotify.Watcher, dir string) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := watcher.Add(p); err != nil {
				s.logger.Debug("cannot watch directory", "dir", p, "error", err)
			}
		}
		return nil
	})
}

func (s *Source) fingerprint(ctx context.Context, prefixes []string) string {
	var all []index.Object
	for _, prefix := range prefixes {
		objs, err := s.List(ctx, prefix)
		if err != nil {
			continue
		}
		all = append(all, objs...)
	}
	return index.Fingerprint(all)
}

// localPath maps a key or prefix to a path under the root. An empty prefix
// is the root itself.
func (s *Source) localPath(key string, prefix bool) (string, error) {
	key = strings.Trim(key, "/")
	if key == "" {
		if prefix {
			return s.root, nil
		}
		return "", fmt.Errorf("empty key: %w", index.ErrNotFound)
	}
	local := filepath.FromSlash(key)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("key %q escapes the source root", key)
	}
	return filepath.Join(s.root, local), nil
}

func (s *Source) object(p string, info fs.FileInfo) index.Object {
	rel, _ := filepath.Rel(s.root, p)
	return index.Object{
		Key:     filepath.ToSlash(rel),
		URL:     FileURL(p),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
}

// FileURL returns the file:// URL for an absolute path.
func FileURL(p string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(p)}).String()
}

func underAny(p string, bases []string) bool {
	for _, base := range bases {
		if p == base || strings.HasPrefix(p, base+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
