// Package output provides styled terminal rendering helpers for ppcwatch.
package output

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Color constants for consistent styling across the CLI.
var (
	// ColorPrimary is used for headers and emphasis.
	ColorPrimary = lipgloss.Color("#64b5f6")

	// ColorSuccess is used for good tiers and improvements.
	ColorSuccess = lipgloss.Color("#66bb6a")

	// ColorError is used for poor tiers, critical findings and regressions.
	ColorError = lipgloss.Color("#ef5350")

	// ColorWarning is used for caution indicators.
	ColorWarning = lipgloss.Color("#fff59d")

	// ColorAlert sits between warning and error.
	ColorAlert = lipgloss.Color("#ffa726")

	// ColorMuted is used for secondary text and borders.
	ColorMuted = lipgloss.Color("#888888")
)

// Styles provides reusable lipgloss styles.
var (
	// StyleHeader is used for section headers.
	StyleHeader lipgloss.Style

	// StyleSuccess is used for positive values.
	StyleSuccess lipgloss.Style

	// StyleError is used for negative values.
	StyleError lipgloss.Style

	// StyleWarning is used for cautionary values.
	StyleWarning lipgloss.Style

	// StyleAlert is used for HIGH severity findings.
	StyleAlert lipgloss.Style

	// StyleMuted is used for de-emphasized text.
	StyleMuted lipgloss.Style

	// StyleBold is used for emphasized text.
	StyleBold lipgloss.Style

	// StyleLabel is used for metric labels.
	StyleLabel lipgloss.Style

	// StyleValue is used for metric values.
	StyleValue lipgloss.Style
)

func init() {
	SetNoColor(false)
}

// noColor tracks whether color output is disabled.
var noColor bool

// SetNoColor disables or enables color output globally by reassigning every
// package-level style.
func SetNoColor(disabled bool) {
	noColor = disabled
	if disabled {
		plain := lipgloss.NewStyle()
		StyleHeader = plain
		StyleSuccess = plain
		StyleError = plain
		StyleWarning = plain
		StyleAlert = plain
		StyleMuted = plain
		StyleBold = plain
		StyleLabel = plain.Width(24)
		StyleValue = plain.Width(12)
		return
	}
	StyleHeader = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	StyleSuccess = lipgloss.NewStyle().Foreground(ColorSuccess)
	StyleError = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorWarning)
	StyleAlert = lipgloss.NewStyle().Foreground(ColorAlert)
	StyleMuted = lipgloss.NewStyle().Foreground(ColorMuted)
	StyleBold = lipgloss.NewStyle().Bold(true)
	StyleLabel = lipgloss.NewStyle().Width(24)
	StyleValue = lipgloss.NewStyle().Bold(true).Width(12)
}

// IsNoColor returns whether color output is currently disabled.
func IsNoColor() bool {
	return noColor
}

// AutoDetect disables color when forced off or when f is not a terminal.
func AutoDetect(f *os.File, forceOff bool) {
	if forceOff || os.Getenv("NO_COLOR") != "" {
		SetNoColor(true)
		return
	}
	fd := f.Fd()
	SetNoColor(!isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd))
}
