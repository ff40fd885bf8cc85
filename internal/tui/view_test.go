package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"syncwatch/internal/logging"
)

func sizedModel(t *testing.T, tracker *fakeTracker) Model {
	t.Helper()
	m := newTestModel(t, tracker)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	return m
}

func TestView_IdleHint(t *testing.T) {
	m := sizedModel(t, newFakeTracker())
	view := m.View()

	for _, want := range []string{"syncwatch", "idle", "Press s to start"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestView_ShowsRows(t *testing.T) {
	tracker := newFakeTracker()
	_ = tracker.Start()
	m := sizedModel(t, tracker)
	m, _ = update(t, m, resultsMsg{snapshot: tracker.Store().Replace(sampleRows())})

	view := m.View()
	for _, want := range []string{"watching", "3 items", "report.pdf", "notes.txt", "downloading", "file:///remote/Shared/photo.jpg"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestView_EmptyFilterMessage(t *testing.T) {
	tracker := newFakeTracker()
	_ = tracker.Start()
	m := sizedModel(t, tracker)
	m, _ = update(t, m, resultsMsg{snapshot: tracker.Store().Replace(sampleRows())})
	m.statusFilter = "unknown"
	m.rowList.SetItems(toListItems(m.snapshot.Rows(), m.statusFilter))

	if view := m.View(); !strings.Contains(view, "No unknown items.") {
		t.Errorf("view missing empty filter message:\n%s", view)
	}
}

func TestView_ErrorStatus(t *testing.T) {
	m := sizedModel(t, newFakeTracker())
	m.setError("Failed to start query", errors.New("bucket missing"))

	view := m.View()
	if !strings.Contains(view, "bucket missing") || !strings.Contains(view, "esc to clear") {
		t.Errorf("view missing error details:\n%s", view)
	}
}

func TestView_LogPanel(t *testing.T) {
	m := sizedModel(t, newFakeTracker())
	m, _ = update(t, m, keyMsg("l"))
	m, _ = update(t, m, logEntriesMsg{entries: []logging.LogEntry{{
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:     "WARN",
		Scope:     "reconcile",
		Message:   "fetch request failed",
		Fields:    map[string]any{"url": "file:///x"},
	}}})

	view := m.View()
	for _, want := range []string{"Logs (1)", "03:04:05", "[reconcile]", "fetch request failed", "url=file:///x"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestView_ListenURLInHeader(t *testing.T) {
	m := sizedModel(t, newFakeTracker())
	m.listenURLs = []string{"http://127.0.0.1:4242"}

	if view := m.View(); !strings.Contains(view, "http://127.0.0.1:4242") {
		t.Errorf("header missing listen URL:\n%s", view)
	}
}
