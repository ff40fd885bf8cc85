// pattern: Imperative Shell

// Package indextest provides an in-memory index.Source for tests.
package indextest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"syncwatch/internal/index"
)

// Source is an in-memory index.Source. Objects live under mem://<bucket>/.
// Every mutation signals running watchers.
type Source struct {
	bucket string

	mu       sync.Mutex
	objects  map[string]memObject
	watchers map[int]func()
	nextID   int
	listErr  error
	lists    int
}

type memObject struct {
	content []byte
	modTime time.Time
}

// NewSource creates an empty in-memory source.
func NewSource(bucket string) *Source {
	return &Source{
		bucket:   bucket,
		objects:  make(map[string]memObject),
		watchers: make(map[int]func()),
	}
}

// Put stores content under key and notifies watchers.
func (s *Source) Put(key, content string, modTime time.Time) {
	s.mu.Lock()
	s.objects[key] = memObject{content: []byte(content), modTime: modTime}
	s.mu.Unlock()
	s.Touch()
}

// Delete removes key and notifies watchers.
func (s *Source) Delete(key string) {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	s.Touch()
}

// Touch signals watchers without changing anything.
func (s *Source) Touch() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// FailLists makes subsequent List calls return err. Nil clears it.
func (s *Source) FailLists(err error) {
	s.mu.Lock()
	s.listErr = err
	s.mu.Unlock()
}

// ListCalls reports how many times List has been called.
func (s *Source) ListCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lists
}

// Watching reports how many Watch calls are running.
func (s *Source) Watching() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers)
}

// URL returns the URL an object stored under key is reported with.
func (s *Source) URL(key string) string {
	return (&url.URL{Scheme: "mem", Host: s.bucket, Path: "/" + key}).String()
}

func (s *Source) Name() string { return "mem" }

func (s *Source) List(_ context.Context, prefix string) ([]index.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lists++
	if s.listErr != nil {
		return nil, s.listErr
	}

	var objs []index.Object
	for key, obj := range s.objects {
		if prefix != "" && !strings.HasPrefix(key, strings.TrimSuffix(prefix, "/")+"/") {
			continue
		}
		objs = append(objs, s.object(key, obj))
	}
	return objs, nil
}

func (s *Source) Watch(ctx context.Context, _ []string, changed func()) error {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = changed
	s.mu.Unlock()

	<-ctx.Done()

	s.mu.Lock()
	delete(s.watchers, id)
	s.mu.Unlock()
	return nil
}

func (s *Source) Stat(_ context.Context, key string) (index.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[key]
	if !ok {
		return index.Object{}, fmt.Errorf("stat %s: %w", key, index.ErrNotFound)
	}
	return s.object(key, obj), nil
}

func (s *Source) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", key, index.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(obj.content)), nil
}

func (s *Source) KeyForURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "mem" || u.Host != s.bucket {
		return "", fmt.Errorf("%q: %w", rawURL, index.ErrUnsupportedURL)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", fmt.Errorf("%q: %w", rawURL, index.ErrUnsupportedURL)
	}
	return key, nil
}

func (s *Source) object(key string, obj memObject) index.Object {
	return index.Object{
		Key:     key,
		URL:     s.URL(key),
		Size:    int64(len(obj.content)),
		ModTime: obj.modTime,
		ETag:    fmt.Sprintf("%d-%d", len(obj.content), obj.modTime.UnixNano()),
	}
}
