package output

import (
	"fmt"
	"strings"
)

// ScoreBar renders a visual progress bar for a 0-100 composite score.
// Example: "████████░░ 80/100"
func ScoreBar(score float64, width int) string {
	if width <= 0 {
		width = 20
	}
	filled := int((score / 100.0) * float64(width))
	filled = max(0, min(filled, width))

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	style := StyleError
	switch {
	case score >= 70:
		style = StyleSuccess
	case score >= 40:
		style = StyleWarning
	}

	return fmt.Sprintf("%s %s", style.Render(bar), StyleMuted.Render(fmt.Sprintf("%.0f/100", score)))
}

// TrendArrow returns a styled trend indicator for a delta value.
// higherIsBetter decides whether a rise renders as an improvement.
func TrendArrow(delta float64, higherIsBetter bool) string {
	if delta == 0 {
		return StyleMuted.Render("─")
	}

	var arrow string
	if delta > 0 {
		arrow = fmt.Sprintf("▲ +%.2f", delta)
	} else {
		arrow = fmt.Sprintf("▼ %.2f", delta)
	}

	if (delta > 0) == higherIsBetter {
		return StyleSuccess.Render(arrow)
	}
	return StyleError.Render(arrow)
}

// Section returns a styled section header with a horizontal rule of the
// given width.
func Section(title string, width int) string {
	if width <= 0 {
		width = 66
	}
	header := StyleHeader.Render(title)
	rule := StyleMuted.Render(strings.Repeat("─", width))
	return fmt.Sprintf("\n %s\n %s", header, rule)
}
