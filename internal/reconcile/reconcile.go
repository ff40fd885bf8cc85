// pattern: Imperative Shell

// Package reconcile turns the full set of index items into a published
// result snapshot, requesting content for every item that is not current.
package reconcile

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"syncwatch/internal/index"
	"syncwatch/internal/logging"
	"syncwatch/internal/metrics"
	"syncwatch/internal/store"
)

// Fetcher begins an asynchronous download of the item at url.
type Fetcher interface {
	StartDownloading(url string) error
}

// Publisher replaces the current snapshot.
type Publisher interface {
	Replace(rows []store.Row) store.Snapshot
}

// Report summarizes one pass.
type Report struct {
	Items         int
	Rows          int
	FetchRequests int
	FetchFailures int
	Skipped       int
	Generation    uint64
	Duration      time.Duration
}

// Reconciler runs reconciliation passes. A pass is synchronous and must not
// run concurrently with another; the watcher guarantees that.
type Reconciler struct {
	fetcher   Fetcher
	publisher Publisher
	logger    *logging.ScopedLogger
	newID     func() string
}

func New(fetcher Fetcher, publisher Publisher, logger *logging.ScopedLogger) *Reconciler {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Reconciler{
		fetcher:   fetcher,
		publisher: publisher,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

// Reconcile maps every item to a row in enumeration order, requests a fetch
// for each item that is not current, and publishes the rows as one snapshot.
// Fetch failures and unreadable items are logged and never abort the pass.
func (r *Reconciler) Reconcile(items []index.Item) Report {
	start := time.Now()
	report := Report{Items: len(items)}
	rows := make([]store.Row, 0, len(items))

	for i, item := range items {
		name, err := displayName(item.URL)
		if err != nil {
			report.Skipped++
			metrics.RecordSkippedItem()
			r.logger.Warn("skipping item with unreadable url",
				"index", i, "key", item.Key, "url", item.URL, "error", err)
			continue
		}

		status := DeriveStatus(item.DownloadingStatus)
		if ShouldFetch(status) {
			report.FetchRequests++
			if err := r.fetcher.StartDownloading(item.URL); err != nil {
				report.FetchFailures++
				metrics.RecordFetchRequest(false)
				r.logger.Warn("fetch request failed", "url", item.URL, "error", err)
			} else {
				metrics.RecordFetchRequest(true)
			}
		}

		rows = append(rows, store.Row{
			ID:     r.newID(),
			Name:   name,
			URL:    item.URL,
			Status: string(status),
		})
	}

	snap := r.publisher.Replace(rows)
	report.Rows = snap.Len()
	report.Generation = snap.Generation()
	report.Duration = time.Since(start)

	metrics.RecordReconcilePass(report.Duration, report.Rows)
	r.logger.Info("reconciliation pass complete",
		"generation", report.Generation,
		"items", report.Items,
		"rows", report.Rows,
		"fetch_requests", report.FetchRequests,
		"fetch_failures", report.FetchFailures,
		"skipped", report.Skipped,
		"duration", report.Duration.String())

	return report
}

// displayName returns the unescaped last path component of an absolute URL.
func displayName(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("missing url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("url is not absolute")
	}

	p := strings.TrimRight(u.Path, "/")
	if p == "" {
		if u.Host == "" {
			return "", fmt.Errorf("url has no path")
		}
		return u.Host, nil
	}
	return path.Base(p), nil
}
