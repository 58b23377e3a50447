package tui

import "github.com/charmbracelet/lipgloss"

// 256-color palette indexes
var (
	colorAccent = lipgloss.Color("12")
	colorTurn   = lipgloss.Color("10")
	colorCursor = lipgloss.Color("11")
	colorMuted  = lipgloss.Color("240")
	colorFrame  = lipgloss.Color("238")
)

var (
	styleQuery     = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	styleCursor    = lipgloss.NewStyle().Foreground(colorCursor).Bold(true)
	styleSessionID = lipgloss.NewStyle().Foreground(colorAccent)
	styleDate      = lipgloss.NewStyle().Foreground(colorMuted)
	styleTurn      = lipgloss.NewStyle().Foreground(colorTurn)
	styleSnippet   = lipgloss.NewStyle().Foreground(colorMuted)
	styleStatusBar = lipgloss.NewStyle().Foreground(colorMuted).Padding(0, 1)

	styleEmpty = lipgloss.NewStyle().
			Foreground(colorMuted).
			Align(lipgloss.Center, lipgloss.Center)

	// the list panel is framed dim, the preview in the accent color
	styleListFrame    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorFrame)
	stylePreviewFrame = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorAccent)
)
