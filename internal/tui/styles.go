package tui

import (
	catppuccin "github.com/catppuccin/go"
	"github.com/charmbracelet/lipgloss"

	"syncwatch/internal/reconcile"
)

type Styles struct {
	flavor catppuccin.Flavor
}

func NewStyles(themeName string) *Styles {
	return &Styles{flavor: flavorFromName(themeName)}
}

func flavorFromName(name string) catppuccin.Flavor {
	switch name {
	case "latte":
		return catppuccin.Latte
	case "frappe":
		return catppuccin.Frappe
	case "macchiato":
		return catppuccin.Macchiato
	default:
		return catppuccin.Mocha
	}
}

func (s *Styles) color(c catppuccin.Color) lipgloss.Color {
	return lipgloss.Color(c.Hex)
}

func (s *Styles) TitleStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(s.color(s.flavor.Mauve()))
}

func (s *Styles) SubtitleStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.color(s.flavor.Subtext0()))
}

func (s *Styles) HelpStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.color(s.flavor.Overlay0()))
}

func (s *Styles) InfoStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.color(s.flavor.Text()))
}

func (s *Styles) AccentStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.color(s.flavor.Teal()))
}

func (s *Styles) SuccessStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.color(s.flavor.Green()))
}

func (s *Styles) ErrorStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.color(s.flavor.Red())).
		Bold(true)
}

func (s *Styles) SeparatorStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.color(s.flavor.Surface1()))
}

func (s *Styles) PanelHeaderStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(s.color(s.flavor.Lavender()))
}

// StatusColor is the bullet color for a row status.
func (s *Styles) StatusColor(status string) lipgloss.Color {
	switch reconcile.Status(status) {
	case reconcile.StatusCurrent:
		return s.color(s.flavor.Green())
	case reconcile.StatusDownloading:
		return s.color(s.flavor.Sky())
	case reconcile.StatusNotDownloaded:
		return s.color(s.flavor.Peach())
	default:
		return s.color(s.flavor.Overlay1())
	}
}

func (s *Styles) LogTimestampStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(s.color(s.flavor.Overlay0()))
}

func (s *Styles) LogScopeStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(s.color(s.flavor.Lavender()))
}

// LogLevelStyle colors a level badge (DEBUG, INFO, WARN, ERROR).
func (s *Styles) LogLevelStyle(level string) lipgloss.Style {
	style := lipgloss.NewStyle().Bold(true)
	switch level {
	case "DEBUG":
		return style.Foreground(s.color(s.flavor.Overlay1()))
	case "WARN":
		return style.Foreground(s.color(s.flavor.Yellow()))
	case "ERROR":
		return style.Foreground(s.color(s.flavor.Red()))
	default:
		return style.Foreground(s.color(s.flavor.Blue()))
	}
}
