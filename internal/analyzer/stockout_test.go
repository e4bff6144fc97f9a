package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/ppcwatch/internal/ppc"
)

func newStockout(t *testing.T) *StockoutProtocol {
	t.Helper()
	p, err := NewStockoutProtocol(DefaultStockConfig())
	require.NoError(t, err)
	return p
}

func TestAnalyzeStockSituation_Reference(t *testing.T) {
	s, err := newStockout(t).AnalyzeStockSituation(100, 5.0, 30)
	require.NoError(t, err)

	assert.InDelta(t, 20.0, s.DaysRemaining, 1e-9)
	assert.Contains(t, []StockLevel{StockCritical, StockLow}, s.StockLevel)
	assert.Equal(t, StockCritical, s.StockLevel)
	assert.InDelta(t, 5.0*30+14*5.0, s.ReorderPoint, 1e-9)
	assert.True(t, s.ReorderNow)
}

func TestAnalyzeStockSituation_Levels(t *testing.T) {
	p := newStockout(t)
	cases := []struct {
		stock float64
		want  StockLevel
	}{
		{0, StockCritical},
		{149, StockCritical}, // 29.8 days < 30
		{150, StockLow},      // exactly lead time
		{219, StockLow},
		{220, StockAdequate}, // lead + 14
		{289, StockAdequate},
		{290, StockHealthy}, // lead + 28
		{10000, StockHealthy},
	}
	for _, tc := range cases {
		s, err := p.AnalyzeStockSituation(tc.stock, 5, 30)
		require.NoError(t, err)
		assert.Equal(t, tc.want, s.StockLevel, "stock=%g", tc.stock)
	}
}

func TestAnalyzeStockSituation_ZeroVelocity(t *testing.T) {
	_, err := newStockout(t).AnalyzeStockSituation(100, 0, 30)
	require.Error(t, err)
	assert.ErrorIs(t, err, ppc.ErrInsufficientData)
}

func TestAnalyzeStockSituation_InvalidInput(t *testing.T) {
	_, err := newStockout(t).AnalyzeStockSituation(-1, -2, -3)
	var inv *ppc.InvalidInputError
	require.ErrorAs(t, err, &inv)
	assert.Len(t, inv.Problems, 3)
}

func TestAnalyzeStockSituation_CriticalPlan(t *testing.T) {
	s, err := newStockout(t).AnalyzeStockSituation(100, 5, 30)
	require.NoError(t, err)

	require.Len(t, s.Actions, 3)
	for i, a := range s.Actions {
		assert.Equal(t, i+1, a.Priority)
	}
	assert.Contains(t, s.Actions[0].Action, "Expedite restock")
	assert.Equal(t, "Cut PPC budget by 50%", s.Actions[1].Action)
	assert.Equal(t, "Pause non-essential placements", s.Actions[2].Action)
	assert.InDelta(t, 0.5, s.BudgetMultiplier, 1e-9)
}

func TestAnalyzeStockSituation_PauseWhenRunwayShort(t *testing.T) {
	s, err := newStockout(t).AnalyzeStockSituation(20, 5, 30)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.BudgetMultiplier)
	assert.Equal(t, "Pause all PPC campaigns", s.Actions[1].Action)
}

func TestAnalyzeStockSituation_LowPlan(t *testing.T) {
	s, err := newStockout(t).AnalyzeStockSituation(200, 5, 30)
	require.NoError(t, err)
	require.Equal(t, StockLow, s.StockLevel)
	require.Len(t, s.Actions, 2)
	assert.Contains(t, s.Actions[0].Action, "Place restock order")
	assert.Equal(t, "Cut PPC budget by 25%", s.Actions[1].Action)
	assert.InDelta(t, 0.75, s.BudgetMultiplier, 1e-9)
}

func TestAnalyzeStockSituation_AdequateAndHealthyPlans(t *testing.T) {
	p := newStockout(t)

	s, err := p.AnalyzeStockSituation(250, 5, 30)
	require.NoError(t, err)
	assert.Equal(t, []StockAction{{1, "Monitor daily sales velocity"}}, s.Actions)
	assert.Equal(t, 1.0, s.BudgetMultiplier)

	s, err = p.AnalyzeStockSituation(1000, 5, 30)
	require.NoError(t, err)
	assert.Empty(t, s.Actions)
	assert.False(t, s.ReorderNow)
}

func TestAnalyzeStockSituation_SafetyStockOverride(t *testing.T) {
	s, err := newStockout(t).AnalyzeStockSituation(500, 10, 20, WithSafetyStockDays(7))
	require.NoError(t, err)
	assert.InDelta(t, 10*20+7*10.0, s.ReorderPoint, 1e-9)
	assert.Equal(t, 7.0, s.SafetyStockDays)
}

func TestStockConfig_Validate(t *testing.T) {
	cfg := DefaultStockConfig()
	cfg.AdequateBandDays = 10
	cfg.LowBudgetCut = 0.9
	err := cfg.Validate()
	require.ErrorIs(t, err, ppc.ErrConfiguration)
	assert.Contains(t, err.Error(), "adequate_band_days")
	assert.Contains(t, err.Error(), "low_budget_cut")
}
