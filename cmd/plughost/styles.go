package main

import (
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/felixgeelhaar/plughost/internal/domain/plugin"
)

// Theme colors (Catppuccin Mocha inspired).
var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#1e66f5", Dark: "#89b4fa"}
	colorSuccess = lipgloss.AdaptiveColor{Light: "#40a02b", Dark: "#a6e3a1"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#df8e1d", Dark: "#f9e2af"}
	colorError   = lipgloss.AdaptiveColor{Light: "#d20f39", Dark: "#f38ba8"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#6c6f85", Dark: "#6c7086"}
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	successStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	labelStyle   = lipgloss.NewStyle().Width(10)
	keyStyle     = lipgloss.NewStyle().Bold(true).Width(14)
)

var titleCaser = cases.Title(language.English)

// statusLabel renders a status as a colored, title-cased label.
func statusLabel(s plugin.Status) string {
	label := labelStyle.Render(titleCaser.String(string(s)))
	switch s {
	case plugin.StatusLoaded:
		return successStyle.Render(label)
	case plugin.StatusFailed:
		return errorStyle.Render(label)
	default:
		return warningStyle.Render(label)
	}
}
