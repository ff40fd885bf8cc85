// pattern: Imperative Shell

// Package tracker assembles the sync-status tracker from configuration:
// source, content cache, fetch service, index query, reconciler, result
// store and watcher.
package tracker

import (
	"context"
	"fmt"

	"syncwatch/internal/cache"
	"syncwatch/internal/config"
	"syncwatch/internal/fetch"
	"syncwatch/internal/index"
	"syncwatch/internal/index/dirsource"
	"syncwatch/internal/index/s3source"
	"syncwatch/internal/logging"
	"syncwatch/internal/reconcile"
	"syncwatch/internal/store"
	"syncwatch/internal/watcher"
)

// Tracker owns every component of one running tracker.
type Tracker struct {
	source  index.Source
	cache   *cache.Cache
	fetcher *fetch.Fetcher
	query   *index.Query
	store   *store.Store
	watcher *watcher.Watcher
	logger  *logging.ScopedLogger
}

// New validates cfg, builds the configured Source and wires a Tracker
// around it.
func New(ctx context.Context, cfg config.Config, logs logging.LoggerProvider) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	src, err := NewSource(ctx, cfg, logs)
	if err != nil {
		return nil, err
	}
	return NewWithSource(src, cfg, logs)
}

// NewSource builds the Source selected by cfg.Backend.
func NewSource(ctx context.Context, cfg config.Config, logs logging.LoggerProvider) (index.Source, error) {
	switch cfg.Backend {
	case config.BackendDir:
		src, err := dirsource.New(config.ResolvePath(cfg.Dir.Root), dirsource.Options{
			Logger: logs.For("index.dir"),
		})
		if err != nil {
			return nil, fmt.Errorf("directory source: %w", err)
		}
		return src, nil

	case config.BackendS3:
		accessKey, _ := cfg.GetCredentialValue(config.CredentialS3AccessKey)
		secretKey, _ := cfg.GetCredentialValue(config.CredentialS3SecretKey)
		src, err := s3source.Connect(ctx, s3source.Config{
			Endpoint:     cfg.S3.Endpoint,
			Bucket:       cfg.S3.Bucket,
			Region:       cfg.S3.Region,
			AccessKey:    accessKey,
			SecretKey:    secretKey,
			PollInterval: cfg.S3.PollInterval,
			Logger:       logs.For("index.s3"),
		})
		if err != nil {
			return nil, fmt.Errorf("s3 source: %w", err)
		}
		return src, nil

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// NewWithSource wires a Tracker around an existing Source.
func NewWithSource(src index.Source, cfg config.Config, logs logging.LoggerProvider) (*Tracker, error) {
	c, err := cache.New(cfg.ResolveCacheDir())
	if err != nil {
		return nil, err
	}

	fetcher := fetch.New(src, c, cfg.MaxConcurrentDownloads, logs.For("fetch"))
	query := index.NewQuery(src, index.Options{
		BatchingInterval: cfg.BatchingInterval,
		Scopes:           Scopes(cfg.Scopes),
		NamePattern:      cfg.NamePattern,
		Status:           c,
		Changes:          c,
		Logger:           logs.For("index"),
	})
	st := store.New()
	rec := reconcile.New(fetcher, st, logs.For("reconcile"))

	return &Tracker{
		source:  src,
		cache:   c,
		fetcher: fetcher,
		query:   query,
		store:   st,
		watcher: watcher.New(query, rec, logs.For("watcher")),
		logger:  logs.For("tracker"),
	}, nil
}

// Scopes returns the configured scopes in query order, omitting blanks.
func Scopes(sc config.ScopesConfig) []index.ScopePrefix {
	var scopes []index.ScopePrefix
	if sc.Documents != "" {
		scopes = append(scopes, index.ScopePrefix{Scope: index.ScopeDocuments, Prefix: sc.Documents})
	}
	if sc.External != "" {
		scopes = append(scopes, index.ScopePrefix{Scope: index.ScopeExternal, Prefix: sc.External})
	}
	return scopes
}

// Start begins watching. Repeated calls are no-ops.
func (t *Tracker) Start() error {
	return t.watcher.Start()
}

// Stop releases the index subscription; the tracker can be started again.
func (t *Tracker) Stop() {
	t.watcher.Stop()
}

// Active reports whether the index subscription is held.
func (t *Tracker) Active() bool {
	return t.watcher.Active()
}

// Status returns the watcher status.
func (t *Tracker) Status() watcher.Status {
	return t.watcher.Status()
}

// Store returns the result store consumers read from.
func (t *Tracker) Store() *store.Store {
	return t.store
}

// Source returns the backend being watched.
func (t *Tracker) Source() index.Source {
	return t.source
}

// CacheDir returns the local content cache directory.
func (t *Tracker) CacheDir() string {
	return t.cache.Dir()
}

// Close stops watching and cancels in-flight downloads.
func (t *Tracker) Close() error {
	t.watcher.Stop()
	if err := t.fetcher.Close(); err != nil {
		return fmt.Errorf("close fetcher: %w", err)
	}
	t.logger.Info("tracker closed")
	return nil
}
