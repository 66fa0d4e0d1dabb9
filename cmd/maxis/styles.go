package main

import "github.com/charmbracelet/lipgloss"

// Semantic colors. Output to a pipe or file renders without escapes.
var (
	Success     = lipgloss.Color("#8BC34A")
	Destructive = lipgloss.Color("#e53935")
	Muted       = lipgloss.Color("#8a94a6")

	headingStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(Muted)
)

// outcomeStyle colors a journal or job outcome.
func outcomeStyle(outcome string) lipgloss.Style {
	switch outcome {
	case "ok":
		return lipgloss.NewStyle().Foreground(Success)
	case "error":
		return lipgloss.NewStyle().Foreground(Destructive).Bold(true)
	default:
		return mutedStyle
	}
}
