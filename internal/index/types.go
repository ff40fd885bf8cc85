// pattern: Functional Core

// Package index is the remote index service: a live query over a storage
// Source that reports what items exist, where they live, and whether their
// content is present locally.
package index

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrNotFound is returned by a Source for a key it does not hold.
	ErrNotFound = errors.New("item not found")
	// ErrUnsupportedURL is returned when a URL does not belong to a Source.
	ErrUnsupportedURL = errors.New("url does not belong to this source")
	// ErrAlreadyStarted is returned by Query.Start on a running query.
	ErrAlreadyStarted = errors.New("query already started")
)

// Values of Item.DownloadingStatus. An empty value means the attribute is
// absent for that item.
const (
	DownloadingStatusCurrent       = "current"
	DownloadingStatusDownloading   = "downloading"
	DownloadingStatusNotDownloaded = "not-downloaded"
)

// Scope is a class of remote location a query covers.
type Scope string

const (
	// ScopeDocuments covers documents owned by the user.
	ScopeDocuments Scope = "documents"
	// ScopeExternal covers documents shared into the user's storage.
	ScopeExternal Scope = "external"
)

// Object is what a Source knows about one stored item.
type Object struct {
	Key     string
	URL     string
	Size    int64
	ModTime time.Time
	ETag    string
}

// Item is one result of a query.
type Item struct {
	URL               string
	Key               string
	Scope             Scope
	Size              int64
	ModTime           time.Time
	DownloadingStatus string
}

// EventKind distinguishes the two notifications a query delivers.
type EventKind int

const (
	// EventGatheringComplete follows the initial listing after Start.
	EventGatheringComplete EventKind = iota
	// EventUpdated follows a batch of changes after gathering.
	EventUpdated
)

func (k EventKind) String() string {
	switch k {
	case EventGatheringComplete:
		return "gathering-complete"
	case EventUpdated:
		return "updated"
	default:
		return "unknown"
	}
}

// Event is delivered to a query's handler.
type Event struct {
	Kind  EventKind
	Items int
}

// Handler receives query events. Handlers run one at a time on the query's
// delivery goroutine and must not call Query.Stop.
type Handler func(Event)

// Source is a storage backend that can be listed, watched and read.
type Source interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// List returns every object whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]Object, error)
	// Watch blocks until ctx is done, calling changed whenever something
	// under one of the prefixes may have changed.
	Watch(ctx context.Context, prefixes []string, changed func()) error
	// Stat returns the object for key, or ErrNotFound.
	Stat(ctx context.Context, key string) (Object, error)
	// Open streams the content of key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// KeyForURL maps an Object URL back to its key, or ErrUnsupportedURL.
	KeyForURL(rawURL string) (string, error)
}

// StatusResolver derives the downloading status of an object. It returns
// "" when the status cannot be determined.
type StatusResolver interface {
	Status(obj Object) string
}

// ChangeNotifier signals local changes that affect item status, such as a
// download starting or finishing.
type ChangeNotifier interface {
	Subscribe() chan struct{}
	Unsubscribe(ch chan struct{})
}
