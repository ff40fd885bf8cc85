// pattern: Imperative Shell

// Package watcher subscribes to the remote index and runs one
// reconciliation pass per delivered event, never two at once.
package watcher

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"syncwatch/internal/index"
	"syncwatch/internal/logging"
	"syncwatch/internal/reconcile"
)

// Query is the live index search the watcher subscribes to.
type Query interface {
	Start(handler index.Handler) error
	Stop()
	DisableUpdates()
	EnableUpdates()
	Results() []index.Item
}

// Reconciler runs one pass over the full item set.
type Reconciler interface {
	Reconcile(items []index.Item) reconcile.Report
}

// Status describes the watcher for status endpoints.
type Status struct {
	Active   bool      `json:"active"`
	Passes   uint64    `json:"passes"`
	LastPass time.Time `json:"last_pass,omitzero"`
	LastRows int       `json:"last_rows"`
}

// Watcher owns the index subscription. It moves from idle to active on
// Start and back on Stop; events keep it active.
type Watcher struct {
	query      Query
	reconciler Reconciler
	logger     *logging.ScopedLogger

	// lifecycle serializes Start and Stop. Stop holds it until the query's
	// delivery goroutine has exited, so a restart never overlaps a pass.
	lifecycle sync.Mutex

	mu     sync.Mutex
	active bool
	status Status
}

func New(query Query, reconciler Reconciler, logger *logging.ScopedLogger) *Watcher {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Watcher{
		query:      query,
		reconciler: reconciler,
		logger:     logger,
	}
}

// Start subscribes to the index. Calling it while active does nothing, so
// repeated calls never create a second subscription. It does not block on
// the initial gathering. A Start that arrives while Stop is tearing down
// waits for the teardown.
func (w *Watcher) Start() error {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()

	if w.Active() {
		w.logger.Debug("start ignored, already active")
		return nil
	}

	if err := w.query.Start(w.handle); err != nil {
		if errors.Is(err, index.ErrAlreadyStarted) {
			w.setActive(true)
			return nil
		}
		return fmt.Errorf("start index query: %w", err)
	}

	w.setActive(true)
	w.logger.Info("watcher started")
	return nil
}

// Stop releases the subscription and returns once no pass is running.
// Safe when never started and when called repeatedly. It must not be
// called from inside a reconciliation pass.
func (w *Watcher) Stop() {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()

	if !w.Active() {
		return
	}
	w.setActive(false)

	w.query.Stop()
	w.logger.Info("watcher stopped")
}

func (w *Watcher) setActive(active bool) {
	w.mu.Lock()
	w.active = active
	w.mu.Unlock()
}

// Active reports whether the watcher holds a subscription.
func (w *Watcher) Active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// Status returns the active flag and pass counters.
func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := w.status
	st.Active = w.active
	return st
}

// handle runs one pass with index updates disabled. Updates are enabled
// again however the pass ends, including by panic.
func (w *Watcher) handle(ev index.Event) {
	w.query.DisableUpdates()
	defer w.query.EnableUpdates()
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("reconciliation pass panicked",
				"event", ev.Kind.String(),
				"panic", fmt.Sprint(r))
		}
	}()

	w.logger.Debug("index event", "event", ev.Kind.String(), "items", ev.Items)

	items := w.query.Results()
	report := w.reconciler.Reconcile(items)

	w.mu.Lock()
	w.status.Passes++
	w.status.LastPass = time.Now()
	w.status.LastRows = report.Rows
	w.mu.Unlock()
}
