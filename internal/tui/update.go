// pattern: Imperative Shell

package tui

import (
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"syncwatch/internal/events"
	"syncwatch/internal/logging"
	"syncwatch/internal/reconcile"
	"syncwatch/internal/store"
)

// doubleCtrlCWindow is the maximum time between two ctrl+c presses to quit.
const doubleCtrlCWindow = 500 * time.Millisecond

const quitHint = "ctrl+c ctrl+c to quit"

// resultsMsg carries a newly published snapshot.
type resultsMsg struct {
	snapshot store.Snapshot
}

// queryStartMsg reports the outcome of a start request from the TUI.
type queryStartMsg struct {
	wasActive bool
	err       error
}

// logEntriesMsg delivers log entries from the logging channel.
type logEntriesMsg struct {
	entries []logging.LogEntry
}

// clearStatusMsg clears the quit hint after a delay.
type clearStatusMsg struct{}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.statusSpinner, cmd = m.statusSpinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)

	case resultsMsg:
		m.applySnapshot(msg.snapshot)
		return m, waitForResults(m.results, m.tracker.Store())

	case queryStartMsg:
		if msg.err != nil {
			m.logger.Error("failed to start query", "error", msg.err)
			m.setError("Failed to start query", msg.err)
			return m, nil
		}
		if msg.wasActive {
			m.setStatus(StatusInfo, "Query already active")
			return m, nil
		}
		m.logger.Info("query started")
		m.setStatus(StatusLoading, "Gathering remote index…")
		return m, nil

	case events.QueryStartedMsg:
		m.setStatus(StatusLoading, "Query started over HTTP, gathering…")
		return m, nil

	case events.WebListenURLMsg:
		m.listenURLs = append(m.listenURLs, msg.URL)
		return m, nil

	case logEntriesMsg:
		for _, entry := range msg.entries {
			m.addLogEntry(entry)
		}
		if m.logPanelOpen && m.logReady {
			m.updateLogViewportContent()
		}
		if m.logs != nil {
			return m, consumeLogEntries(m.logs)
		}
		return m, nil

	case clearStatusMsg:
		if m.statusLevel == StatusInfo && m.statusMessage == quitHint {
			m.clearStatus()
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlD:
		return m, tea.Quit
	case tea.KeyCtrlC:
		now := time.Now()
		if !m.lastCtrlCTime.IsZero() && now.Sub(m.lastCtrlCTime) <= doubleCtrlCWindow {
			m.logger.Debug("quit via double ctrl+c")
			return m, tea.Quit
		}
		m.lastCtrlCTime = now
		m.setStatus(StatusInfo, quitHint)
		return m, tea.Tick(doubleCtrlCWindow*2, func(time.Time) tea.Msg { return clearStatusMsg{} })
	case tea.KeyEscape:
		if m.statusLevel == StatusError {
			m.clearStatus()
		}
		return m, nil
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit

	case "s":
		m.setStatus(StatusLoading, "Starting query…")
		return m, m.startQuery()

	case "f":
		m.statusFilter = nextStatusFilter(m.statusFilter)
		m.rowList.SetItems(toListItems(m.snapshot.Rows(), m.statusFilter))
		label := m.statusFilter
		if label == "" {
			label = "all"
		}
		m.setStatus(StatusInfo, "Showing "+label)
		return m, nil

	case "l", "L":
		m.logPanelOpen = !m.logPanelOpen
		m.logger.Debug("toggling log panel", "visible", m.logPanelOpen)
		m.resize()
		return m, nil

	case "J", "pgdown":
		if m.logPanelOpen && m.logReady {
			m.logViewport.SetYOffset(m.logViewport.YOffset + 1)
			m.logAutoScroll = m.logViewport.AtBottom()
			return m, nil
		}

	case "K", "pgup":
		if m.logPanelOpen && m.logReady {
			m.logViewport.SetYOffset(m.logViewport.YOffset - 1)
			m.logAutoScroll = false
			return m, nil
		}

	case "G":
		if m.logPanelOpen && m.logReady {
			m.logViewport.GotoBottom()
			m.logAutoScroll = true
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.rowList, cmd = m.rowList.Update(msg)
	return m, cmd
}

// resize recomputes the layout and sizes the list and the log viewport.
func (m *Model) resize() {
	layout := ComputeLayout(m.width, m.height, m.logPanelOpen)
	m.rowList.SetSize(m.width, layout.ListHeight())

	if !m.logPanelOpen {
		return
	}
	if !m.logReady {
		m.logViewport = viewport.New(layout.Logs.Width, layout.LogViewportHeight())
		m.logReady = true
	} else {
		m.logViewport.Width = layout.Logs.Width
		m.logViewport.Height = layout.LogViewportHeight()
	}
	m.updateLogViewportContent()
}

// applySnapshot replaces the displayed rows wholesale.
func (m *Model) applySnapshot(snap store.Snapshot) {
	if snap.Generation() < m.snapshot.Generation() {
		return
	}
	m.snapshot = snap
	m.rowList.SetItems(toListItems(snap.Rows(), m.statusFilter))
	if m.statusLevel == StatusLoading {
		m.setStatus(StatusSuccess, fmt.Sprintf("%d items", snap.Len()))
	}
}

func (m *Model) addLogEntry(entry logging.LogEntry) {
	m.logEntries = append(m.logEntries, entry)
	if over := len(m.logEntries) - maxLogEntries; over > 0 {
		m.logEntries = slices.Delete(m.logEntries, 0, over)
	}
}

func (m *Model) updateLogViewportContent() {
	m.logViewport.SetContent(m.renderLogLines())
	if m.logAutoScroll {
		m.logViewport.GotoBottom()
	}
}

// nextStatusFilter cycles all → each status → all.
func nextStatusFilter(current string) string {
	statuses := reconcile.Statuses()
	if current == "" {
		return string(statuses[0])
	}
	i := slices.Index(statuses, reconcile.Status(current))
	if i < 0 || i == len(statuses)-1 {
		return ""
	}
	return string(statuses[i+1])
}

func (m Model) startQuery() tea.Cmd {
	tracker := m.tracker
	return func() tea.Msg {
		wasActive := tracker.Active()
		return queryStartMsg{wasActive: wasActive, err: tracker.Start()}
	}
}

// waitForResults blocks until the store signals a replace, then reads the
// current snapshot. Signals coalesce, so the latest snapshot always wins.
func waitForResults(ch <-chan struct{}, st *store.Store) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return resultsMsg{snapshot: st.Current()}
	}
}

// consumeLogEntries waits for one entry, then drains whatever else is
// buffered so a burst renders once.
func consumeLogEntries(logs logStream) tea.Cmd {
	return func() tea.Msg {
		entry, ok := <-logs.Entries()
		if !ok {
			return nil
		}
		entries := []logging.LogEntry{entry}
		for len(entries) < 100 {
			select {
			case e, ok := <-logs.Entries():
				if !ok {
					return logEntriesMsg{entries: entries}
				}
				entries = append(entries, e)
			default:
				return logEntriesMsg{entries: entries}
			}
		}
		return logEntriesMsg{entries: entries}
	}
}
