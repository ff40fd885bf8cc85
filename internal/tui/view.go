// pattern: Imperative Shell

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"syncwatch/internal/logging"
)

// View renders the TUI.
func (m Model) View() string {
	layout := ComputeLayout(m.width, m.height, m.logPanelOpen)

	parts := []string{
		m.renderHeader(layout.Header.Width),
		m.renderContent(layout),
	}

	if m.logPanelOpen {
		parts = append(parts,
			m.styles.SeparatorStyle().Render(strings.Repeat("─", max(layout.Separator.Width, 0))),
			m.renderLogPanel(layout),
		)
	}

	parts = append(parts, lipgloss.NewStyle().Width(layout.StatusBar.Width).Render(m.renderStatusBar(layout.StatusBar.Width)))

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderHeader(width int) string {
	title := m.styles.TitleStyle().Render("syncwatch")

	state := "idle"
	if m.tracker.Active() {
		state = "watching"
	}
	summary := fmt.Sprintf("%s • %d items • pass %d", state, m.snapshot.Len(), m.snapshot.Generation())
	if m.statusFilter != "" {
		summary += " • filter: " + m.statusFilter
	}
	if len(m.listenURLs) > 0 {
		summary += " • " + strings.Join(m.listenURLs, " ")
	}
	if width > 0 {
		summary = ansi.Truncate(summary, width, "…")
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, m.styles.SubtitleStyle().Render(summary))
}

func (m Model) renderContent(layout Layout) string {
	if len(m.rowList.Items()) > 0 {
		return m.rowList.View()
	}

	var msg string
	switch {
	case !m.tracker.Active():
		msg = "Query not started. Press s to start watching the remote index."
	case m.statusFilter != "" && m.snapshot.Len() > 0:
		msg = fmt.Sprintf("No %s items.", m.statusFilter)
	default:
		msg = "No items."
	}
	return lipgloss.NewStyle().
		Height(layout.ListHeight()).
		Render(m.styles.HelpStyle().Render(msg))
}

func (m Model) renderStatusBar(width int) string {
	var icon string
	messageStyle := m.styles.InfoStyle()

	switch m.statusLevel {
	case StatusLoading:
		icon = m.statusSpinner.View()
	case StatusSuccess:
		icon = m.styles.SuccessStyle().Render("✓")
		messageStyle = m.styles.SuccessStyle()
	case StatusError:
		icon = m.styles.ErrorStyle().Render("✗")
		messageStyle = m.styles.ErrorStyle()
	}

	msg := m.statusMessage
	if m.statusLevel == StatusError && m.err != nil {
		msg += ": " + m.err.Error()
	}

	var status string
	switch {
	case icon != "":
		status = icon + " " + messageStyle.Render(msg)
	case msg != "":
		status = messageStyle.Render(msg)
	}
	if m.statusLevel == StatusError {
		status += m.styles.HelpStyle().Render(" (esc to clear)")
	}

	help := m.renderHelp()
	spacer := max(width-lipgloss.Width(status)-lipgloss.Width(help)-2, 1)

	return lipgloss.JoinHorizontal(lipgloss.Bottom, status, strings.Repeat(" ", spacer), help)
}

func (m Model) renderHelp() string {
	help := "↑/↓: navigate • s: start • f: filter • l: logs • q: quit"
	if m.logPanelOpen {
		help = "↑/↓: navigate • J/K: scroll logs • G: follow • l: close logs • q: quit"
	}
	return m.styles.HelpStyle().Render(help)
}

func (m Model) renderLogPanel(layout Layout) string {
	header := m.styles.PanelHeaderStyle().
		Width(layout.Logs.Width).
		Render(fmt.Sprintf(" Logs (%d)", len(m.logEntries)))

	if m.logReady {
		return lipgloss.JoinVertical(lipgloss.Left, header, m.logViewport.View())
	}
	return lipgloss.JoinVertical(lipgloss.Left, header,
		lipgloss.NewStyle().
			Width(layout.Logs.Width).
			Height(layout.LogViewportHeight()).
			Render(m.renderLogLines()))
}

func (m Model) renderLogLines() string {
	if len(m.logEntries) == 0 {
		return m.styles.HelpStyle().Render("No log entries")
	}
	lines := make([]string, len(m.logEntries))
	for i, entry := range m.logEntries {
		lines[i] = m.renderLogEntry(entry)
	}
	return strings.Join(lines, "\n")
}

// renderLogEntry formats a single log entry on one line.
func (m Model) renderLogEntry(entry logging.LogEntry) string {
	ts := m.styles.LogTimestampStyle().Render(entry.Timestamp.Format("15:04:05"))
	level := m.styles.LogLevelStyle(entry.Level).Render(fmt.Sprintf("%-5s", entry.Level))
	scope := m.styles.LogScopeStyle().Render("[" + entry.Scope + "]")

	line := fmt.Sprintf("%s %s %s %s", ts, level, scope, entry.Message)
	if len(entry.Fields) > 0 {
		line += " " + m.styles.HelpStyle().Render(entry.FieldsString())
	}
	return line
}
