package output

import (
	"github.com/charmbracelet/lipgloss"
)

// Colors
var (
	colorDone    = lipgloss.Color("#04B575") // green
	colorWarning = lipgloss.Color("#FFB800") // yellow
	colorFailed  = lipgloss.Color("#FF4040") // red
	colorHeading = lipgloss.Color("#00BFFF") // cyan
	colorLabel   = lipgloss.Color("#AAAAAA")
)

func box(border lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1)
}

// Boxes, one per section of the run summary.
var (
	summaryBox = box(colorHeading)
	warningBox = box(colorWarning)
	failedBox  = box(colorFailed)
	doneBox    = box(colorDone)
)

var (
	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorHeading)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorLabel).
			Width(18)

	warningText = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)

	// make-it-so is red since it writes; dry-run is green.
	makeItSoText = lipgloss.NewStyle().
			Foreground(colorFailed).
			Bold(true)
	dryRunText = lipgloss.NewStyle().
			Foreground(colorDone).
			Bold(true)
)

const (
	iconDone    = "✅"
	iconWarning = "⚠"
	iconFailed  = "❌"
)
