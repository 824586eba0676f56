package tui

import "github.com/charmbracelet/lipgloss"

// Styles contains lipgloss styles shared by the auth and upgrade views.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Error   lipgloss.Style
	Success lipgloss.Style
	Muted   lipgloss.Style
	Help    lipgloss.Style
}

// DefaultStyles returns the default color scheme.
func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")).MarginBottom(1),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Help:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1),
	}
}
