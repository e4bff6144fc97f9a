// Package golden checks a campaign and inventory snapshot against the five
// golden operating rules and ranks the violations by severity.
package golden

import (
	"fmt"

	"github.com/blackwell-systems/ppcwatch/internal/ppc"
)

// Severity of a violation. Higher Rank is more severe.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Rank returns 4 for CRITICAL down to 1 for LOW, 0 if unknown.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// Downgrade returns the next lower severity. LOW stays LOW.
func (s Severity) Downgrade() Severity {
	switch s {
	case SeverityCritical:
		return SeverityHigh
	case SeverityHigh:
		return SeverityMedium
	}
	return SeverityLow
}

// Rule identifies one golden rule.
type Rule int

const (
	RuleStockRunway Rule = iota + 1
	RuleBudgetPacing
	RuleAlwaysAdvertise
	RuleRespectData
	RuleOrganicBalance
)

// Name returns the rule's display name.
func (r Rule) Name() string {
	switch r {
	case RuleStockRunway:
		return "NEVER RUN OUT OF STOCK"
	case RuleBudgetPacing:
		return "NEVER EXHAUST BUDGET EARLY"
	case RuleAlwaysAdvertise:
		return "ALWAYS RUN ADS"
	case RuleRespectData:
		return "RESPECT THE DATA"
	case RuleOrganicBalance:
		return "SEO AND PPC WORK TOGETHER"
	}
	return fmt.Sprintf("rule %d", int(r))
}

// evaluated lists the rules that produce violations, in evaluation order.
// RuleRespectData is applied afterwards as a modifier.
var evaluated = []Rule{RuleStockRunway, RuleBudgetPacing, RuleAlwaysAdvertise, RuleOrganicBalance}

// PacePoint caps budget spend (percent) from Hour onwards.
type PacePoint struct {
	Hour        int     `mapstructure:"hour" json:"hour"`
	MaxSpentPct float64 `mapstructure:"max_spent_pct" json:"max_spent_pct"`
}

// Config configures the Checker.
type Config struct {
	BufferWeeks float64 `mapstructure:"buffer_weeks" json:"buffer_weeks"`
	// CriticalRunwayDays is the absolute runway below which rule 1 is CRITICAL.
	CriticalRunwayDays float64 `mapstructure:"critical_runway_days" json:"critical_runway_days"`
	// PacingCurve must be ordered by hour with non-decreasing caps. A point
	// applies from its hour until the next point or the end of the day.
	PacingCurve         []PacePoint `mapstructure:"pacing_curve" json:"pacing_curve"`
	OverspendHighPoints float64     `mapstructure:"overspend_high_points" json:"overspend_high_points"`
	HealthyOrganicRatio float64     `mapstructure:"healthy_organic_ratio" json:"healthy_organic_ratio"`
	// MaxOrganicRatio flags PPC under-investment above this ratio.
	MaxOrganicRatio float64 `mapstructure:"max_organic_ratio" json:"max_organic_ratio"`
	MinClicks       float64 `mapstructure:"min_clicks" json:"min_clicks"`
}

// DefaultConfig returns the stock golden rule configuration.
func DefaultConfig() Config {
	return Config{
		BufferWeeks:        4,
		CriticalRunwayDays: 7,
		PacingCurve: []PacePoint{
			{Hour: 12, MaxSpentPct: 50},
			{Hour: 18, MaxSpentPct: 70},
		},
		OverspendHighPoints: 20,
		HealthyOrganicRatio: 2.0,
		MaxOrganicRatio:     10,
		MinClicks:           ppc.DefaultMinClicks,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	chk := ppc.NewConfigChecker("golden")
	if c.BufferWeeks < 0 {
		chk.Addf("buffer_weeks must not be negative (got %g)", c.BufferWeeks)
	}
	if c.CriticalRunwayDays < 0 {
		chk.Addf("critical_runway_days must not be negative (got %g)", c.CriticalRunwayDays)
	}
	if len(c.PacingCurve) == 0 {
		chk.Addf("pacing_curve must have at least one point")
	}
	for i, p := range c.PacingCurve {
		if p.Hour < 0 || p.Hour > 23 {
			chk.Addf("pacing_curve[%d].hour must be in [0, 23] (got %d)", i, p.Hour)
		}
		if p.MaxSpentPct < 0 || p.MaxSpentPct > 100 {
			chk.Addf("pacing_curve[%d].max_spent_pct must be in [0, 100] (got %g)", i, p.MaxSpentPct)
		}
		if i > 0 {
			prev := c.PacingCurve[i-1]
			if p.Hour <= prev.Hour {
				chk.Addf("pacing_curve[%d].hour %d must be after %d", i, p.Hour, prev.Hour)
			}
			if p.MaxSpentPct < prev.MaxSpentPct {
				chk.Addf("pacing_curve[%d].max_spent_pct %g is below the preceding %g", i, p.MaxSpentPct, prev.MaxSpentPct)
			}
		}
	}
	if !(c.OverspendHighPoints > 0) {
		chk.Addf("overspend_high_points must be positive (got %g)", c.OverspendHighPoints)
	}
	if !(c.HealthyOrganicRatio > 0) {
		chk.Addf("healthy_organic_ratio must be positive (got %g)", c.HealthyOrganicRatio)
	}
	if !(c.MaxOrganicRatio > c.HealthyOrganicRatio) {
		chk.Addf("max_organic_ratio %g must exceed healthy_organic_ratio %g", c.MaxOrganicRatio, c.HealthyOrganicRatio)
	}
	if !(c.MinClicks > 0) {
		chk.Addf("min_clicks must be positive (got %g)", c.MinClicks)
	}
	return chk.Err()
}
