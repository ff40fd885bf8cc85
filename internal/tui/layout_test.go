package tui

import "testing"

func TestComputeLayout(t *testing.T) {
	tests := []struct {
		name    string
		width   int
		height  int
		logOpen bool
	}{
		{"logs closed", 120, 40, false},
		{"logs open", 120, 40, true},
		{"tiny terminal", 20, 5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := ComputeLayout(tt.width, tt.height, tt.logOpen)

			if l.Header.Y != 0 || l.Content.Y != headerHeight {
				t.Errorf("header/content out of place: %+v %+v", l.Header, l.Content)
			}
			if l.StatusBar.Y != l.Content.Y+l.Content.Height+l.Separator.Height+l.Logs.Height {
				t.Errorf("status bar Y = %d, regions do not stack", l.StatusBar.Y)
			}
			if !tt.logOpen && (l.Logs.Height != 0 || l.Separator.Height != 0) {
				t.Errorf("closed log panel has height: %+v", l.Logs)
			}
			if tt.logOpen && l.Logs.Height <= l.Content.Height-2 {
				t.Errorf("logs (%d) should take the larger share over content (%d)", l.Logs.Height, l.Content.Height)
			}
			if l.ListHeight() < 1 || (tt.logOpen && l.LogViewportHeight() < 1) {
				t.Errorf("heights must be positive: list %d, logs %d", l.ListHeight(), l.LogViewportHeight())
			}
		})
	}
}

func TestComputeLayout_UsesFullHeight(t *testing.T) {
	l := ComputeLayout(80, 30, false)
	if got := l.StatusBar.Y + l.StatusBar.Height + marginHeight; got != 30 {
		t.Errorf("layout covers %d lines, want 30", got)
	}
}
