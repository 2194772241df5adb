// Package replay renders stored runs as readable timelines, either to a
// writer or through an interactive pager.
package replay

import "github.com/charmbracelet/lipgloss"

var (
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")) // Gray - timestamps, metadata

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")) // White - values

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	// Prompt / response flow - default white
	flowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15"))

	// Tools - Blue
	toolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12"))

	// Row tagging - Magenta
	rowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("13"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")) // Green

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")) // Red

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")) // Yellow

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	seqStyle = lipgloss.NewStyle().
			Width(5).
			Align(lipgloss.Right).
			Foreground(lipgloss.Color("8"))
)

const divider = "────────────────────────────────────────────────────────────"
