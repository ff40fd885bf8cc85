// pattern: Functional Core

package tui

// Region is a rectangular area of the terminal.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Layout holds the computed regions of the screen, top to bottom.
type Layout struct {
	Header    Region
	Content   Region
	Separator Region // zero when the log panel is closed
	Logs      Region // zero when the log panel is closed
	StatusBar Region
}

const (
	headerHeight    = 2 // title + summary line
	statusBarHeight = 1
	marginHeight    = 1
	separatorHeight = 1
	minContent      = 4
)

// ComputeLayout splits the terminal into regions. With the log panel open
// the space below the header splits 40/60 between rows and logs.
func ComputeLayout(width, height int, logPanelOpen bool) Layout {
	available := max(height-headerHeight-statusBarHeight-marginHeight, minContent)

	contentHeight := available
	logsHeight := 0
	if logPanelOpen {
		contentHeight = int(float64(available) * 0.4)
		logsHeight = available - contentHeight - separatorHeight
	}

	y := 0
	header := Region{Y: y, Width: width, Height: headerHeight}
	y += headerHeight

	content := Region{Y: y, Width: width, Height: contentHeight}
	y += contentHeight

	var separator, logs Region
	if logPanelOpen {
		separator = Region{Y: y, Width: width, Height: separatorHeight}
		y += separatorHeight
		logs = Region{Y: y, Width: width, Height: logsHeight}
		y += logsHeight
	}

	return Layout{
		Header:    header,
		Content:   content,
		Separator: separator,
		Logs:      logs,
		StatusBar: Region{Y: y, Width: width, Height: statusBarHeight},
	}
}

// ListHeight is the height left for the row list inside the content region.
func (l Layout) ListHeight() int {
	return max(l.Content.Height-1, 1)
}

// LogViewportHeight is the log region minus its header line.
func (l Layout) LogViewportHeight() int {
	return max(l.Logs.Height-1, 1)
}
