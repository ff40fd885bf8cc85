package tui

import (
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"syncwatch/internal/config"
	"syncwatch/internal/logging"
	"syncwatch/internal/store"
)

type fakeTracker struct {
	mu       sync.Mutex
	active   bool
	starts   int
	startErr error
	st       *store.Store
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{st: store.New()}
}

func (f *fakeTracker) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.active = true
	return nil
}

func (f *fakeTracker) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *fakeTracker) Store() *store.Store { return f.st }

func sampleRows() []store.Row {
	return []store.Row{
		{ID: "1", Name: "report.pdf", URL: "file:///remote/Documents/report.pdf", Status: "current"},
		{ID: "2", Name: "notes.txt", URL: "file:///remote/Documents/notes.txt", Status: "downloading"},
		{ID: "3", Name: "photo.jpg", URL: "file:///remote/Shared/photo.jpg", Status: "not-downloaded"},
	}
}

func newTestModel(t *testing.T, tracker *fakeTracker) Model {
	t.Helper()
	cfg := config.DefaultConfig()
	logs := logging.NewTestLogManager(100)
	t.Cleanup(func() { _ = logs.Close() })
	return NewModel(&cfg, tracker, logs)
}

// update feeds msg to m and returns the resulting Model.
func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return model, cmd
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// runCmd runs cmd with a timeout, failing the test if it blocks.
func runCmd(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command, got nil")
	}
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()
	select {
	case msg := <-done:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("command did not return")
		return nil
	}
}
