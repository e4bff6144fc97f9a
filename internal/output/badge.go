package output

import (
	"fmt"

	"github.com/blackwell-systems/ppcwatch/internal/analyzer"
	"github.com/blackwell-systems/ppcwatch/internal/golden"
	"github.com/blackwell-systems/ppcwatch/internal/ppc"
	"github.com/blackwell-systems/ppcwatch/internal/scoring"
)

// TierBadge renders a benchmark tier in its tier color.
func TierBadge(t analyzer.Tier) string {
	switch t {
	case analyzer.TierExcellent, analyzer.TierGood:
		return StyleSuccess.Render(string(t))
	case analyzer.TierAverage:
		return StyleWarning.Render(string(t))
	case analyzer.TierPoor:
		return StyleError.Render(string(t))
	}
	return StyleMuted.Render("n/a")
}

// SeverityBadge renders a rule severity.
func SeverityBadge(s golden.Severity) string {
	label := fmt.Sprintf("[%s]", s)
	switch s {
	case golden.SeverityCritical:
		return StyleError.Render(label)
	case golden.SeverityHigh:
		return StyleAlert.Render(label)
	case golden.SeverityMedium:
		return StyleWarning.Render(label)
	}
	return StyleMuted.Render(label)
}

// StockBadge renders an inventory level.
func StockBadge(l analyzer.StockLevel) string {
	switch l {
	case analyzer.StockCritical:
		return StyleError.Render(string(l))
	case analyzer.StockLow:
		return StyleAlert.Render(string(l))
	case analyzer.StockAdequate:
		return StyleWarning.Render(string(l))
	}
	return StyleSuccess.Render(string(l))
}

// StatusBadge renders a product scoring verdict.
func StatusBadge(s scoring.Status) string {
	switch s {
	case scoring.StatusGreen:
		return StyleSuccess.Render(string(s))
	case scoring.StatusYellow:
		return StyleWarning.Render(string(s))
	case scoring.StatusRed:
		return StyleError.Render(string(s))
	}
	return StyleMuted.Render("n/a")
}

// Value formats a derived metric with the given unit suffix ("%" or "").
// Undefined values render muted.
func Value(d ppc.Derived, unit string) string {
	if !d.Ok() {
		return StyleMuted.Render(d.String())
	}
	return d.String() + unit
}

// Money formats a currency amount.
func Money(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}
