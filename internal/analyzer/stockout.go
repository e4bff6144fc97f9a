package analyzer

import (
	"fmt"

	"github.com/blackwell-systems/ppcwatch/internal/ppc"
)

// StockLevel classifies inventory runway against restock lead time.
type StockLevel string

const (
	StockCritical StockLevel = "CRITICAL"
	StockLow      StockLevel = "LOW"
	StockAdequate StockLevel = "ADEQUATE"
	StockHealthy  StockLevel = "HEALTHY"
)

// Constrained reports whether the level should hold back advertising.
func (l StockLevel) Constrained() bool {
	return l == StockCritical || l == StockLow
}

// StockConfig configures the StockoutProtocol.
type StockConfig struct {
	SafetyStockDays float64 `mapstructure:"safety_stock_days" json:"safety_stock_days"`
	// LowBandDays and AdequateBandDays are measured past lead time.
	LowBandDays      float64 `mapstructure:"low_band_days" json:"low_band_days"`
	AdequateBandDays float64 `mapstructure:"adequate_band_days" json:"adequate_band_days"`
	// CriticalBudgetCut and LowBudgetCut are fractions of the PPC budget to cut.
	CriticalBudgetCut float64 `mapstructure:"critical_budget_cut" json:"critical_budget_cut"`
	LowBudgetCut      float64 `mapstructure:"low_budget_cut" json:"low_budget_cut"`
	// PauseRunwayDays is the runway below which PPC is paused outright.
	PauseRunwayDays float64 `mapstructure:"pause_runway_days" json:"pause_runway_days"`
}

// DefaultStockConfig returns the stock protocol defaults.
func DefaultStockConfig() StockConfig {
	return StockConfig{
		SafetyStockDays:   14,
		LowBandDays:       14,
		AdequateBandDays:  28,
		CriticalBudgetCut: 0.50,
		LowBudgetCut:      0.25,
		PauseRunwayDays:   7,
	}
}

// Validate checks the configuration.
func (c StockConfig) Validate() error {
	chk := ppc.NewConfigChecker("stock")
	if c.SafetyStockDays < 0 {
		chk.Addf("safety_stock_days must not be negative (got %g)", c.SafetyStockDays)
	}
	if !(c.LowBandDays > 0) {
		chk.Addf("low_band_days must be positive (got %g)", c.LowBandDays)
	}
	if !(c.AdequateBandDays > c.LowBandDays) {
		chk.Addf("adequate_band_days %g must exceed low_band_days %g", c.AdequateBandDays, c.LowBandDays)
	}
	if !(c.CriticalBudgetCut >= 0 && c.CriticalBudgetCut <= 1) {
		chk.Addf("critical_budget_cut must be in [0, 1] (got %g)", c.CriticalBudgetCut)
	}
	if !(c.LowBudgetCut >= 0 && c.LowBudgetCut <= 1) {
		chk.Addf("low_budget_cut must be in [0, 1] (got %g)", c.LowBudgetCut)
	}
	if c.LowBudgetCut > c.CriticalBudgetCut {
		chk.Addf("low_budget_cut %g must not exceed critical_budget_cut %g", c.LowBudgetCut, c.CriticalBudgetCut)
	}
	if c.PauseRunwayDays < 0 {
		chk.Addf("pause_runway_days must not be negative (got %g)", c.PauseRunwayDays)
	}
	return chk.Err()
}

// StockAction is one prioritised remediation step; priority 1 is done first.
type StockAction struct {
	Priority int    `json:"priority"`
	Action   string `json:"action"`
}

// StockSituation is the projected inventory runway and remediation plan.
type StockSituation struct {
	CurrentStock     float64       `json:"current_stock"`
	DailyVelocity    float64       `json:"daily_velocity"`
	LeadTimeDays     float64       `json:"lead_time_days"`
	SafetyStockDays  float64       `json:"safety_stock_days"`
	DaysRemaining    float64       `json:"days_remaining"`
	ReorderPoint     float64       `json:"reorder_point"`
	ReorderNow       bool          `json:"reorder_now"`
	StockLevel       StockLevel    `json:"stock_level"`
	BudgetMultiplier float64       `json:"budget_multiplier"`
	Actions          []StockAction `json:"recommended_actions"`
}

// StockoutProtocol projects runway and builds remediation plans.
type StockoutProtocol struct {
	cfg StockConfig
}

// NewStockoutProtocol returns a protocol for cfg.
func NewStockoutProtocol(cfg StockConfig) (*StockoutProtocol, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &StockoutProtocol{cfg: cfg}, nil
}

// StockOption overrides a per-call setting.
type StockOption func(*StockConfig)

// WithSafetyStockDays overrides the configured safety stock for one call.
func WithSafetyStockDays(days float64) StockOption {
	return func(c *StockConfig) { c.SafetyStockDays = days }
}

// AnalyzeStockSituation computes days remaining, reorder point, stock level
// and an ordered action plan. Zero velocity fails with InsufficientData:
// runway is undefined, not infinite.
func (p *StockoutProtocol) AnalyzeStockSituation(currentStock, dailyVelocity, leadTimeDays float64, opts ...StockOption) (StockSituation, error) {
	cfg := p.cfg
	for _, opt := range opts {
		opt(&cfg)
	}

	var v ppc.Validator
	v.NonNegative("current_stock", currentStock)
	v.NonNegative("daily_velocity", dailyVelocity)
	v.NonNegative("lead_time_days", leadTimeDays)
	v.NonNegative("safety_stock_days", cfg.SafetyStockDays)
	if err := v.Err(); err != nil {
		return StockSituation{}, err
	}
	if dailyVelocity == 0 {
		return StockSituation{}, ppc.InsufficientData("days_remaining", "daily_velocity is zero")
	}

	s := StockSituation{
		CurrentStock:    currentStock,
		DailyVelocity:   dailyVelocity,
		LeadTimeDays:    leadTimeDays,
		SafetyStockDays: cfg.SafetyStockDays,
		DaysRemaining:   currentStock / dailyVelocity,
		ReorderPoint:    dailyVelocity*leadTimeDays + cfg.SafetyStockDays*dailyVelocity,
	}
	s.ReorderNow = currentStock <= s.ReorderPoint

	switch {
	case s.DaysRemaining < leadTimeDays:
		s.StockLevel = StockCritical
	case s.DaysRemaining < leadTimeDays+cfg.LowBandDays:
		s.StockLevel = StockLow
	case s.DaysRemaining < leadTimeDays+cfg.AdequateBandDays:
		s.StockLevel = StockAdequate
	default:
		s.StockLevel = StockHealthy
	}

	s.BudgetMultiplier = budgetMultiplier(cfg, s)
	s.Actions = actionPlan(cfg, s)
	return s, nil
}

func budgetMultiplier(cfg StockConfig, s StockSituation) float64 {
	if s.CurrentStock == 0 || s.DaysRemaining < cfg.PauseRunwayDays {
		return 0
	}
	switch s.StockLevel {
	case StockCritical:
		return ppc.Round(1-cfg.CriticalBudgetCut, 4)
	case StockLow:
		return ppc.Round(1-cfg.LowBudgetCut, 4)
	}
	return 1
}

func actionPlan(cfg StockConfig, s StockSituation) []StockAction {
	switch s.StockLevel {
	case StockCritical:
		budget := fmt.Sprintf("Cut PPC budget by %s", pct(cfg.CriticalBudgetCut))
		if s.BudgetMultiplier == 0 {
			budget = "Pause all PPC campaigns"
		}
		return []StockAction{
			{1, fmt.Sprintf("Expedite restock: %.1f days of stock left against %g days lead time", s.DaysRemaining, s.LeadTimeDays)},
			{2, budget},
			{3, "Pause non-essential placements"},
		}
	case StockLow:
		return []StockAction{
			{1, fmt.Sprintf("Place restock order: reorder point is %.0f units", s.ReorderPoint)},
			{2, fmt.Sprintf("Cut PPC budget by %s", pct(cfg.LowBudgetCut))},
		}
	case StockAdequate:
		return []StockAction{
			{1, "Monitor daily sales velocity"},
		}
	}
	return []StockAction{}
}

func pct(f float64) string {
	return fmt.Sprintf("%g%%", ppc.Round(f*100, 2))
}
