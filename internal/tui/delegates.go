// pattern: Imperative Shell

package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"syncwatch/internal/store"
)

// rowItem wraps a result row for display in a list.
type rowItem struct {
	row store.Row
}

func (i rowItem) Title() string { return i.row.Name }
func (i rowItem) Description() string { return i.row.URL }
func (i rowItem) FilterValue() string { return i.row.Name }

// rowDelegate renders a row as a status bullet and name over its URL.
type rowDelegate struct {
	styles *Styles
}

func newRowDelegate(styles *Styles) rowDelegate {
	return rowDelegate{styles: styles}
}

func (d rowDelegate) Height() int { return 2 }
func (d rowDelegate) Spacing() int { return 0 }
func (d rowDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d rowDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ri, ok := item.(rowItem)
	if !ok {
		return
	}

	selected := index == m.Index()

	titleStyle := d.styles.InfoStyle()
	descStyle := d.styles.HelpStyle()
	indicator := "  "
	if selected {
		titleStyle = d.styles.TitleStyle()
		descStyle = d.styles.SubtitleStyle()
		indicator = d.styles.TitleStyle().Render("▸ ")
	}

	bullet := lipgloss.NewStyle().
		Foreground(d.styles.StatusColor(ri.row.Status)).
		Render("●")
	status := lipgloss.NewStyle().
		Foreground(d.styles.StatusColor(ri.row.Status)).
		Render(ri.row.Status)

	// URLs are often longer than the terminal; cut them rather than wrap.
	urlWidth := max(m.Width()-4, 8)
	url := ansi.Truncate(ri.row.URL, urlWidth, "…")

	_, _ = fmt.Fprintf(w, "%s%s %s %s\n    %s",
		indicator, bullet, titleStyle.Render(ri.row.Name), status, descStyle.Render(url))
}

// toListItems converts rows to list items, keeping only rows matching
// statusFilter when it is set.
func toListItems(rows []store.Row, statusFilter string) []list.Item {
	items := make([]list.Item, 0, len(rows))
	for _, row := range rows {
		if statusFilter != "" && row.Status != statusFilter {
			continue
		}
		items = append(items, rowItem{row: row})
	}
	return items
}
