package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/muon-ssh/muon/internal/settings"
)

// Fallback colors used when the configured terminal colors do not parse.
const (
	fallbackForeground = "#ffffff"
	fallbackBackground = "#000000"
)

// Theme holds the window styles derived from the settings.
type Theme struct {
	Dark       bool
	Foreground lipgloss.Color
	Background lipgloss.Color

	Title    lipgloss.Style
	Selected lipgloss.Style
	Normal   lipgloss.Style
	Muted    lipgloss.Style
	Overlay  lipgloss.Style
	Error    lipgloss.Style
}

// ThemeFor picks the dark or light theme and the terminal colors from s.
func ThemeFor(s settings.Settings) Theme {
	fg, ok := settings.ParseColor(s.TerminalForeground)
	if !ok {
		fg = fallbackForeground
	}

	bg, ok := settings.ParseColor(s.TerminalBackground)
	if !ok {
		bg = fallbackBackground
	}

	t := Theme{
		Dark:       s.UseGlobalDarkTheme,
		Foreground: lipgloss.Color(fg),
		Background: lipgloss.Color(bg),
	}

	accent, muted, failure := lipgloss.Color("#1f6feb"), lipgloss.Color("#6e7781"), lipgloss.Color("#cf222e")
	if t.Dark {
		accent, muted, failure = lipgloss.Color("#58a6ff"), lipgloss.Color("#8b949e"), lipgloss.Color("#f85149")
	}

	t.Title = lipgloss.NewStyle().Bold(true).Foreground(accent)
	t.Selected = lipgloss.NewStyle().Bold(true).Foreground(t.Background).Background(accent)
	t.Normal = lipgloss.NewStyle().Foreground(t.Foreground)
	t.Muted = lipgloss.NewStyle().Foreground(muted)
	t.Overlay = lipgloss.NewStyle().Bold(true).Foreground(accent).Border(lipgloss.RoundedBorder()).BorderForeground(accent).Padding(0, 1)
	t.Error = lipgloss.NewStyle().Foreground(failure)

	return t
}
