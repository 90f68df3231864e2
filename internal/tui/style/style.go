// Package style defines lipgloss styles for the TUI.
package style

import "github.com/charmbracelet/lipgloss"

// Names omit a "Style" suffix since they're read as style.Title etc.
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205"))

	Subtitle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	// Recording marks live capture.
	Recording = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	Success = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	Error = lipgloss.NewStyle().
		Foreground(lipgloss.Color("196"))

	Warning = lipgloss.NewStyle().
		Foreground(lipgloss.Color("214"))

	// Progress colors the level meter bars.
	Progress = lipgloss.NewStyle().
			Foreground(lipgloss.Color("63"))

	Muted = lipgloss.NewStyle().
		Foreground(lipgloss.Color("245"))

	// Frame wraps the whole view.
	Frame = lipgloss.NewStyle().
		Padding(1, 2)
)
