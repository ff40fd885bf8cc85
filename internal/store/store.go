// pattern: Imperative Shell

// Package store publishes the latest reconciliation result to readers.
package store

import (
	"encoding/json"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"syncwatch/internal/notify"
)

// Row is one display row of a snapshot.
type Row struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	URL    string `json:"url"`
	Status string `json:"status"`
}

// Snapshot is an immutable, ordered result set from one completed pass.
// The zero Snapshot is the empty state before any pass has run.
type Snapshot struct {
	generation  uint64
	publishedAt time.Time
	rows        []Row
}

// Generation counts completed passes; 0 means nothing published yet.
func (s Snapshot) Generation() uint64 { return s.generation }

// PublishedAt is when the snapshot replaced its predecessor.
func (s Snapshot) PublishedAt() time.Time { return s.publishedAt }

// Len returns the number of rows.
func (s Snapshot) Len() int { return len(s.rows) }

// Rows returns a copy of the rows in enumeration order.
func (s Snapshot) Rows() []Row {
	if s.rows == nil {
		return []Row{}
	}
	return slices.Clone(s.rows)
}

// Row returns row i without copying the whole slice.
func (s Snapshot) Row(i int) Row { return s.rows[i] }

type snapshotJSON struct {
	Generation  uint64    `json:"generation"`
	PublishedAt time.Time `json:"published_at"`
	Rows        []Row     `json:"rows"`
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotJSON{
		Generation:  s.generation,
		PublishedAt: s.publishedAt,
		Rows:        s.Rows(),
	})
}

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw snapshotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Snapshot{generation: raw.Generation, publishedAt: raw.PublishedAt, rows: raw.Rows}
	return nil
}

// Store holds the current snapshot. Replace swaps a fully built snapshot in
// with a single pointer store, so readers see either the old rows or the new
// rows and never a mix.
type Store struct {
	current atomic.Pointer[Snapshot]
	mu      sync.Mutex // serializes writers so generations stay ordered
	broker  *notify.Broker
	now     func() time.Time
}

func New() *Store {
	s := &Store{
		broker: notify.NewBroker(),
		now:    time.Now,
	}
	s.current.Store(&Snapshot{})
	return s
}

// Replace publishes rows as the new snapshot and notifies subscribers.
// The rows are copied; the caller may reuse its slice.
func (s *Store) Replace(rows []Row) Snapshot {
	s.mu.Lock()
	next := &Snapshot{
		generation:  s.current.Load().generation + 1,
		publishedAt: s.now(),
		rows:        slices.Clone(rows),
	}
	s.current.Store(next)
	s.mu.Unlock()

	s.broker.Notify()
	return *next
}

// Current returns the latest published snapshot.
func (s *Store) Current() Snapshot {
	return *s.current.Load()
}

// Subscribe returns a channel signalled after every Replace.
func (s *Store) Subscribe() chan struct{} {
	return s.broker.Subscribe()
}

// Unsubscribe stops signals to ch.
func (s *Store) Unsubscribe(ch chan struct{}) {
	s.broker.Unsubscribe(ch)
}
