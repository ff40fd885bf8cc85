package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"syncwatch/internal/config"
	"syncwatch/internal/logging"
	"syncwatch/internal/store"
)

// maxLogEntries caps the log panel's in-memory history.
const maxLogEntries = 1000

// Tracker is the part of the tracker the TUI drives.
type Tracker interface {
	Start() error
	Active() bool
	Store() *store.Store
}

// logStream is implemented by logging.Manager.
type logStream interface {
	Entries() <-chan logging.LogEntry
}

// StatusLevel selects the status bar icon and color.
type StatusLevel int

const (
	StatusInfo StatusLevel = iota
	StatusLoading
	StatusSuccess
	StatusError
)

// Model represents the TUI application state.
type Model struct {
	width  int
	height int
	styles *Styles
	logger *logging.ScopedLogger

	cfg     *config.Config
	tracker Tracker
	results chan struct{}
	logs    logStream

	snapshot     store.Snapshot
	rowList      list.Model
	statusFilter string

	listenURLs []string

	statusLevel   StatusLevel
	statusMessage string
	statusSpinner spinner.Model
	err           error
	lastCtrlCTime time.Time

	logPanelOpen  bool
	logReady      bool
	logViewport   viewport.Model
	logEntries    []logging.LogEntry
	logAutoScroll bool
}

// NewModel creates the TUI model. The model subscribes to the tracker's
// store for the lifetime of the program. When logs also streams entries
// (logging.Manager does), they feed the log panel.
func NewModel(cfg *config.Config, tracker Tracker, logs logging.LoggerProvider) Model {
	styles := NewStyles(cfg.Theme)

	rowList := list.New([]list.Item{}, newRowDelegate(styles), 0, 0)
	rowList.SetShowTitle(false)
	rowList.SetShowStatusBar(false)
	rowList.SetFilteringEnabled(false)
	rowList.SetShowHelp(false)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.AccentStyle()

	m := Model{
		styles:        styles,
		logger:        logs.For("tui"),
		cfg:           cfg,
		tracker:       tracker,
		results:       tracker.Store().Subscribe(),
		snapshot:      tracker.Store().Current(),
		rowList:       rowList,
		statusSpinner: s,
		logAutoScroll: true,
	}
	if ls, ok := logs.(logStream); ok {
		m.logs = ls
	}
	m.rowList.SetItems(toListItems(m.snapshot.Rows(), m.statusFilter))

	m.logger.Debug("tui initialized", "theme", cfg.Theme, "rows", m.snapshot.Len())
	return m
}

// Init follows the store and the log stream. The query itself starts on
// request ("s").
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		waitForResults(m.results, m.tracker.Store()),
		m.statusSpinner.Tick,
	}
	if m.logs != nil {
		cmds = append(cmds, consumeLogEntries(m.logs))
	}
	return tea.Batch(cmds...)
}

// Snapshot returns the snapshot the model currently displays.
func (m Model) Snapshot() store.Snapshot {
	return m.snapshot
}

// VisibleRows returns the rows shown after the status filter.
func (m Model) VisibleRows() []store.Row {
	items := m.rowList.Items()
	rows := make([]store.Row, 0, len(items))
	for _, item := range items {
		if ri, ok := item.(rowItem); ok {
			rows = append(rows, ri.row)
		}
	}
	return rows
}

func (m *Model) setStatus(level StatusLevel, msg string) {
	m.statusLevel = level
	m.statusMessage = msg
	if level != StatusError {
		m.err = nil
	}
}

func (m *Model) setError(msg string, err error) {
	m.statusLevel = StatusError
	m.statusMessage = msg
	m.err = err
}

func (m *Model) clearStatus() {
	m.statusLevel = StatusInfo
	m.statusMessage = ""
	m.err = nil
}
