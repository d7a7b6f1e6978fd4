package browse

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

var (
	colorPrimary = lipgloss.Color("#2196F3")
	colorMuted   = lipgloss.Color("#8a94a6")
	colorError   = lipgloss.Color("#e53935")
	colorBorder  = lipgloss.Color("#2a3850")
)

// Styles holds the list screen styles.
type Styles struct {
	Title   lipgloss.Style
	Query   lipgloss.Style
	Status  lipgloss.Style
	Error   lipgloss.Style
	Help    lipgloss.Style
	Content lipgloss.Style
	Table   table.Styles
}

// DefaultStyles returns the default palette.
func DefaultStyles() Styles {
	ts := table.DefaultStyles()
	ts.Header = ts.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorBorder).
		BorderBottom(true).
		Bold(true)
	ts.Selected = ts.Selected.
		Foreground(lipgloss.Color("#ffffff")).
		Background(colorPrimary)

	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(colorPrimary),
		Query:   lipgloss.NewStyle().Foreground(colorMuted),
		Status:  lipgloss.NewStyle().Foreground(colorMuted),
		Error:   lipgloss.NewStyle().Foreground(colorError).Bold(true),
		Help:    lipgloss.NewStyle().Foreground(colorMuted).Italic(true),
		Content: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorBorder),
		Table:   ts,
	}
}
