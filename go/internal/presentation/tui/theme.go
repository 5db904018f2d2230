package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/musicmind/academy/go/internal/presentation/session"
)

var (
	Base     = lipgloss.Color("#1e1e2e")
	Surface1 = lipgloss.Color("#45475a")
	Text     = lipgloss.Color("#cdd6f4")
	Subtext0 = lipgloss.Color("#a6adc8")
	Sapphire = lipgloss.Color("#74c7ec")
	Green    = lipgloss.Color("#a6e3a1")
	Yellow   = lipgloss.Color("#f9e2af")
	Red      = lipgloss.Color("#f38ba8")

	Card = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Surface1).
		Foreground(Text).
		Padding(1, 4).
		Align(lipgloss.Center)

	Title = lipgloss.NewStyle().Foreground(Sapphire).Bold(true)
	Muted = lipgloss.NewStyle().Foreground(Subtext0)
	Code  = lipgloss.NewStyle().Foreground(Text).Bold(true).Padding(0, 1).Background(Surface1)
)

// TierColor is the clock colour for a countdown band.
func TierColor(t session.Tier) lipgloss.Color {
	switch t {
	case session.TierCalm:
		return Green
	case session.TierWarning:
		return Yellow
	case session.TierUrgent:
		return Red
	default:
		return Text
	}
}
