// pattern: Imperative Shell

package index

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"syncwatch/internal/logging"
	"syncwatch/internal/metrics"
)

// DefaultBatchingInterval is the coalescing window used when Options leaves
// it unset.
const DefaultBatchingInterval = time.Second

// ScopePrefix binds a scope to the key prefix it covers in a Source.
type ScopePrefix struct {
	Scope  Scope
	Prefix string
}

// DefaultScopes covers both owned and externally shared documents.
func DefaultScopes() []ScopePrefix {
	return []ScopePrefix{
		{Scope: ScopeDocuments, Prefix: "Documents"},
		{Scope: ScopeExternal, Prefix: "Shared"},
	}
}

// Options configure a Query.
type Options struct {
	// BatchingInterval is the window over which change signals collapse
	// into one EventUpdated. Zero or negative means DefaultBatchingInterval.
	BatchingInterval time.Duration
	// Scopes are listed in order; an item found in two scopes is reported
	// once, under the first.
	Scopes []ScopePrefix
	// NamePattern is a path.Match glob applied to the last key component.
	NamePattern string
	// Status fills Item.DownloadingStatus. Nil leaves it absent.
	Status StatusResolver
	// Changes, when set, is watched alongside the Source.
	Changes ChangeNotifier
	Logger  *logging.ScopedLogger
}

// Query is a live search over a Source. After Start it gathers the initial
// result set, reports EventGatheringComplete, then keeps watching and
// reports batched EventUpdated notifications.
//
// While updates are disabled the result set is frozen and no event is
// delivered; changes observed in the meantime are delivered once updates
// are enabled again.
type Query struct {
	src    Source
	opts   Options
	logger *logging.ScopedLogger

	mu          sync.Mutex
	started     bool
	disabled    bool
	handler     Handler
	results     []Item
	pending     []Item
	pendingKind EventKind
	hasPending  bool
	cancel      context.CancelFunc
	done        chan struct{}
	resume      chan struct{}
}

// NewQuery creates a stopped query over src.
func NewQuery(src Source, opts Options) *Query {
	if opts.BatchingInterval <= 0 {
		opts.BatchingInterval = DefaultBatchingInterval
	}
	if len(opts.Scopes) == 0 {
		opts.Scopes = DefaultScopes()
	}
	if opts.NamePattern == "" {
		opts.NamePattern = "*"
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Query{
		src:    src,
		opts:   opts,
		logger: logger,
	}
}

// Start begins gathering and watching, delivering events to handler.
// It returns immediately; it fails with ErrAlreadyStarted if running.
func (q *Query) Start(handler Handler) error {
	if handler == nil {
		return fmt.Errorf("start query: nil handler")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(context.Background())
	q.started = true
	q.disabled = false
	q.handler = handler
	q.results = nil
	q.pending = nil
	q.hasPending = false
	q.cancel = cancel
	q.done = make(chan struct{})
	q.resume = make(chan struct{}, 1)

	q.logger.Info("query started",
		"source", q.src.Name(),
		"scopes", len(q.opts.Scopes),
		"batching_interval", q.opts.BatchingInterval.String())

	go q.run(ctx, q.done, q.resume)
	return nil
}

// IsStarted reports whether the query is running.
func (q *Query) IsStarted() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.started
}

// Stop cancels watching and waits for the delivery goroutine to exit.
// The query counts as started until then, so a Start racing with Stop
// fails with ErrAlreadyStarted instead of running a second loop.
// Safe to call on a query that was never started.
func (q *Query) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.handler = nil
	cancel, done := q.cancel, q.done
	q.mu.Unlock()

	cancel()
	<-done

	q.mu.Lock()
	q.started = false
	q.mu.Unlock()
	q.logger.Info("query stopped", "source", q.src.Name())
}

// DisableUpdates freezes the result set and holds back events.
func (q *Query) DisableUpdates() {
	q.mu.Lock()
	q.disabled = true
	q.mu.Unlock()
}

// EnableUpdates lifts DisableUpdates and releases any held-back change.
func (q *Query) EnableUpdates() {
	q.mu.Lock()
	q.disabled = false
	release := q.hasPending
	resume := q.resume
	q.mu.Unlock()

	if release && resume != nil {
		select {
		case resume <- struct{}{}:
		default:
		}
	}
}

// Results returns a copy of the current result set.
func (q *Query) Results() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.results)
}

func (q *Query) run(ctx context.Context, done, resume chan struct{}) {
	defer close(done)

	kick := make(chan struct{}, 1)
	signal := func() {
		select {
		case kick <- struct{}{}:
		default:
		}
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	// Watch before gathering so changes made during the listing are not lost.
	wg.Add(1)
	go func() {
		defer wg.Done()
		q.watchSource(ctx, signal)
	}()
	if q.opts.Changes != nil {
		ch := q.opts.Changes.Subscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer q.opts.Changes.Unsubscribe(ch)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ch:
					signal()
				}
			}
		}()
	}

	items, err := q.gather(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		q.logger.Warn("initial gathering failed", "source", q.src.Name(), "error", err)
	}
	if q.stage(items, EventGatheringComplete) {
		q.deliver(EventGatheringComplete)
	}

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case <-kick:
			// The first change opens the batching window; later ones ride along.
			if timerC == nil {
				timer = time.NewTimer(q.opts.BatchingInterval)
				timerC = timer.C
			}

		case <-timerC:
			timerC = nil
			items, err := q.gather(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				q.logger.Warn("index refresh failed, keeping previous results",
					"source", q.src.Name(), "error", err)
				continue
			}
			if q.stage(items, EventUpdated) {
				q.deliver(EventUpdated)
			}

		case <-resume:
			if kind, ok := q.applyPending(); ok {
				q.deliver(kind)
			}
		}
	}
}

func (q *Query) watchSource(ctx context.Context, signal func()) {
	prefixes := make([]string, len(q.opts.Scopes))
	for i, sp := range q.opts.Scopes {
		prefixes[i] = sp.Prefix
	}
	if err := q.src.Watch(ctx, prefixes, signal); err != nil && ctx.Err() == nil {
		q.logger.Warn("source watch stopped", "source", q.src.Name(), "error", err)
	}
}

// stage publishes items as the result set, or parks them while updates are
// disabled. It reports whether the caller should deliver kind now.
func (q *Query) stage(items []Item, kind EventKind) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.disabled {
		// A parked gathering result is still announced as gathering.
		if !q.hasPending || q.pendingKind != EventGatheringComplete {
			q.pendingKind = kind
		}
		q.pending = items
		q.hasPending = true
		return false
	}
	q.results = items
	return true
}

func (q *Query) applyPending() (EventKind, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.disabled || !q.hasPending {
		return 0, false
	}
	q.results = q.pending
	q.pending = nil
	q.hasPending = false
	return q.pendingKind, true
}

func (q *Query) deliver(kind EventKind) {
	q.mu.Lock()
	handler := q.handler
	n := len(q.results)
	q.mu.Unlock()

	if handler == nil {
		return
	}

	metrics.RecordIndexEvent(kind.String(), n)
	q.logger.Debug("delivering index event", "event", kind.String(), "items", n)
	handler(Event{Kind: kind, Items: n})
}

// gather lists every scope and builds the de-duplicated result set.
func (q *Query) gather(ctx context.Context) ([]Item, error) {
	items := []Item{}
	seen := make(map[string]struct{})

	for _, sp := range q.opts.Scopes {
		objs, err := q.src.List(ctx, sp.Prefix)
		if err != nil {
			return nil, fmt.Errorf("list %s scope: %w", sp.Scope, err)
		}
		slices.SortFunc(objs, func(a, b Object) int {
			return strings.Compare(a.Key, b.Key)
		})

		for _, obj := range objs {
			if _, dup := seen[obj.Key]; dup {
				continue
			}
			if !q.matchName(obj.Key) {
				continue
			}
			seen[obj.Key] = struct{}{}
			items = append(items, Item{
				URL:               obj.URL,
				Key:               obj.Key,
				Scope:             sp.Scope,
				Size:              obj.Size,
				ModTime:           obj.ModTime,
				DownloadingStatus: q.status(obj),
			})
		}
	}
	return items, nil
}

func (q *Query) matchName(key string) bool {
	ok, err := path.Match(q.opts.NamePattern, path.Base(key))
	return err == nil && ok
}

func (q *Query) status(obj Object) string {
	if q.opts.Status == nil {
		return ""
	}
	return q.opts.Status.Status(obj)
}
