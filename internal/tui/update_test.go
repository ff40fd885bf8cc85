package tui

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"syncwatch/internal/events"
	"syncwatch/internal/logging"
	"syncwatch/internal/store"
)

func TestUpdate_ResultsReplaceRows(t *testing.T) {
	tracker := newFakeTracker()
	m := newTestModel(t, tracker)

	snap := tracker.Store().Replace(sampleRows())
	m, cmd := update(t, m, resultsMsg{snapshot: snap})

	if got := len(m.VisibleRows()); got != 3 {
		t.Errorf("visible rows = %d, want 3", got)
	}
	if m.Snapshot().Generation() != snap.Generation() {
		t.Errorf("generation = %d, want %d", m.Snapshot().Generation(), snap.Generation())
	}
	if cmd == nil {
		t.Error("results handling should keep waiting for the next replace")
	}

	// A later pass replaces the rows wholesale.
	snap = tracker.Store().Replace(sampleRows()[:1])
	m, _ = update(t, m, resultsMsg{snapshot: snap})
	if got := len(m.VisibleRows()); got != 1 {
		t.Errorf("visible rows after second pass = %d, want 1", got)
	}
}

func TestUpdate_StaleSnapshotIgnored(t *testing.T) {
	tracker := newFakeTracker()
	m := newTestModel(t, tracker)

	old := tracker.Store().Replace(sampleRows())
	latest := tracker.Store().Replace(sampleRows()[:2])

	m, _ = update(t, m, resultsMsg{snapshot: latest})
	m, _ = update(t, m, resultsMsg{snapshot: old})

	if got := len(m.VisibleRows()); got != 2 {
		t.Errorf("visible rows = %d, want the latest snapshot's 2", got)
	}
}

func TestWaitForResults_ReturnsCurrentSnapshot(t *testing.T) {
	tracker := newFakeTracker()
	m := newTestModel(t, tracker)

	cmd := waitForResults(m.results, tracker.Store())
	tracker.Store().Replace(sampleRows()[:1])
	tracker.Store().Replace(sampleRows())

	msg, ok := runCmd(t, cmd).(resultsMsg)
	if !ok {
		t.Fatalf("expected resultsMsg")
	}
	if msg.snapshot.Len() != 3 {
		t.Errorf("snapshot has %d rows, want the latest 3", msg.snapshot.Len())
	}
}

func TestUpdate_StartKey(t *testing.T) {
	tracker := newFakeTracker()
	m := newTestModel(t, tracker)

	m, cmd := update(t, m, keyMsg("s"))
	if m.statusLevel != StatusLoading {
		t.Errorf("status level = %v, want loading", m.statusLevel)
	}

	msg := runCmd(t, cmd)
	start, ok := msg.(queryStartMsg)
	if !ok {
		t.Fatalf("expected queryStartMsg, got %T", msg)
	}
	if start.err != nil || start.wasActive {
		t.Errorf("unexpected start result: %+v", start)
	}
	if !tracker.Active() {
		t.Error("tracker should be active after s")
	}

	m, _ = update(t, m, start)
	if m.statusMessage != "Gathering remote index…" {
		t.Errorf("status message = %q", m.statusMessage)
	}

	// Starting again reports the query is already active.
	_, cmd = update(t, m, keyMsg("s"))
	again := runCmd(t, cmd).(queryStartMsg)
	if !again.wasActive {
		t.Error("second start should see an active query")
	}
	if tracker.starts != 2 {
		t.Errorf("Start called %d times, want 2", tracker.starts)
	}
}

func TestUpdate_StartFailure(t *testing.T) {
	tracker := newFakeTracker()
	m := newTestModel(t, tracker)

	m, _ = update(t, m, queryStartMsg{err: errors.New("bucket missing")})
	if m.statusLevel != StatusError || m.err == nil {
		t.Fatalf("expected error status, got level %v err %v", m.statusLevel, m.err)
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEscape})
	if m.statusLevel != StatusInfo || m.err != nil {
		t.Errorf("esc should clear the error, got level %v err %v", m.statusLevel, m.err)
	}
}

func TestUpdate_LoadingTurnsToSuccessOnResults(t *testing.T) {
	tracker := newFakeTracker()
	m := newTestModel(t, tracker)

	m, _ = update(t, m, events.QueryStartedMsg{})
	if m.statusLevel != StatusLoading {
		t.Fatalf("status level = %v, want loading", m.statusLevel)
	}

	m, _ = update(t, m, resultsMsg{snapshot: tracker.Store().Replace(sampleRows())})
	if m.statusLevel != StatusSuccess || m.statusMessage != "3 items" {
		t.Errorf("status = %v %q, want success \"3 items\"", m.statusLevel, m.statusMessage)
	}
}

func TestUpdate_FilterCycles(t *testing.T) {
	tracker := newFakeTracker()
	m := newTestModel(t, tracker)
	m, _ = update(t, m, resultsMsg{snapshot: tracker.Store().Replace(sampleRows())})

	want := []struct {
		filter string
		rows   int
	}{
		{"current", 1},
		{"downloading", 1},
		{"not-downloaded", 1},
		{"unknown", 0},
		{"", 3},
	}
	for _, w := range want {
		m, _ = update(t, m, keyMsg("f"))
		if m.statusFilter != w.filter {
			t.Fatalf("filter = %q, want %q", m.statusFilter, w.filter)
		}
		if got := len(m.VisibleRows()); got != w.rows {
			t.Errorf("filter %q: %d rows, want %d", w.filter, got, w.rows)
		}
	}
}

func TestNextStatusFilter_UnknownValueResets(t *testing.T) {
	if got := nextStatusFilter("bogus"); got != "" {
		t.Errorf("nextStatusFilter(bogus) = %q, want \"\"", got)
	}
}

func TestUpdate_LogPanelToggle(t *testing.T) {
	tracker := newFakeTracker()
	m := newTestModel(t, tracker)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})

	m, _ = update(t, m, keyMsg("l"))
	if !m.logPanelOpen || !m.logReady {
		t.Fatalf("log panel open=%v ready=%v, want both", m.logPanelOpen, m.logReady)
	}

	m, _ = update(t, m, logEntriesMsg{entries: []logging.LogEntry{
		{Timestamp: time.Now(), Level: "WARN", Scope: "fetch", Message: "download failed"},
	}})
	if len(m.logEntries) != 1 {
		t.Errorf("log entries = %d, want 1", len(m.logEntries))
	}

	m, _ = update(t, m, keyMsg("l"))
	if m.logPanelOpen {
		t.Error("second l should close the log panel")
	}
}

func TestAddLogEntry_CapsHistory(t *testing.T) {
	m := newTestModel(t, newFakeTracker())
	for i := 0; i < maxLogEntries+10; i++ {
		m.addLogEntry(logging.LogEntry{Message: "entry"})
	}
	if len(m.logEntries) != maxLogEntries {
		t.Errorf("log entries = %d, want %d", len(m.logEntries), maxLogEntries)
	}
}

func TestConsumeLogEntries_DrainsBurst(t *testing.T) {
	sink := logging.NewChannelSink(10)
	defer func() { _ = sink.Close() }()
	for _, msg := range []string{"a", "b", "c"} {
		sink.Send(logging.LogEntry{Message: msg})
	}

	msg := runCmd(t, consumeLogEntries(sink))
	entries, ok := msg.(logEntriesMsg)
	if !ok {
		t.Fatalf("expected logEntriesMsg, got %T", msg)
	}
	if len(entries.entries) != 3 {
		t.Errorf("drained %d entries, want 3", len(entries.entries))
	}
}

func TestUpdate_Quit(t *testing.T) {
	m := newTestModel(t, newFakeTracker())

	_, cmd := update(t, m, keyMsg("q"))
	if _, ok := runCmd(t, cmd).(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestUpdate_DoubleCtrlC(t *testing.T) {
	m := newTestModel(t, newFakeTracker())

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if m.statusMessage != quitHint {
		t.Errorf("first ctrl+c should show the hint, got %q", m.statusMessage)
	}
	if cmd == nil {
		t.Error("first ctrl+c should schedule clearing the hint")
	}

	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if _, ok := runCmd(t, cmd).(tea.QuitMsg); !ok {
		t.Error("second ctrl+c should quit")
	}
}

func TestUpdate_ClearStatusOnlyClearsHint(t *testing.T) {
	m := newTestModel(t, newFakeTracker())
	m.setStatus(StatusSuccess, "3 items")

	m, _ = update(t, m, clearStatusMsg{})
	if m.statusMessage != "3 items" {
		t.Errorf("clearStatusMsg clobbered %q", m.statusMessage)
	}
}

func TestUpdate_WebListenURL(t *testing.T) {
	m := newTestModel(t, newFakeTracker())
	m, _ = update(t, m, events.WebListenURLMsg{URL: "http://127.0.0.1:4242"})
	if len(m.listenURLs) != 1 || m.listenURLs[0] != "http://127.0.0.1:4242" {
		t.Errorf("listenURLs = %v", m.listenURLs)
	}
}

func TestNewModel_ShowsExistingSnapshot(t *testing.T) {
	tracker := newFakeTracker()
	tracker.Store().Replace([]store.Row{{ID: "1", Name: "a.txt", Status: "current"}})

	m := newTestModel(t, tracker)
	if len(m.VisibleRows()) != 1 {
		t.Errorf("model should start from the store's current snapshot")
	}
	if m.Init() == nil {
		t.Error("Init should return commands")
	}
}
