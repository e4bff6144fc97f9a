package golden

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/ppcwatch/internal/ppc"
)

func intp(v int) *int { return &v }
func floatp(v float64) *float64 { return &v }

func newChecker(t *testing.T) *Checker {
	t.Helper()
	c, err := NewChecker(DefaultConfig())
	require.NoError(t, err)
	return c
}

// fullSnapshot violates every rule.
func fullSnapshot() Snapshot {
	return Snapshot{
		Stock:           &StockInput{CurrentStock: 100, DailySalesVelocity: 5, LeadTimeDays: 30},
		Pacing:          &PacingInput{BudgetSpentPct: 80, CurrentHour: 13},
		CampaignsPaused: intp(2),
		Balance:         &BalanceInput{OrganicSales: 150, PPCSales: 100},
		Clicks:          floatp(250),
	}
}

func TestCheckAll_AllRulesViolated(t *testing.T) {
	rep, err := newChecker(t).CheckAll(fullSnapshot())
	require.NoError(t, err)
	require.Len(t, rep.Violations, 4)

	got := make([]Rule, len(rep.Violations))
	for i, v := range rep.Violations {
		got[i] = v.RuleNumber
	}
	// stock CRITICAL, pacing HIGH (30 over), paused HIGH, balance LOW
	assert.Equal(t, []Rule{RuleStockRunway, RuleBudgetPacing, RuleAlwaysAdvertise, RuleOrganicBalance}, got)
	assert.Equal(t, SeverityCritical, rep.Violations[0].Severity)
	assert.Equal(t, SeverityHigh, rep.Violations[1].Severity)
	assert.Equal(t, SeverityHigh, rep.Violations[2].Severity)
	assert.Equal(t, SeverityLow, rep.Violations[3].Severity)
	assert.Empty(t, rep.Undetermined)

	worst, ok := rep.Worst()
	require.True(t, ok)
	assert.Equal(t, "NEVER RUN OUT OF STOCK", worst.RuleName)
}

func TestCheckAll_OrderedAndIdempotent(t *testing.T) {
	c := newChecker(t)
	snaps := []Snapshot{
		fullSnapshot(),
		{Balance: &BalanceInput{OrganicSales: 10, PPCSales: 100}, CampaignsPaused: intp(1)},
		{Pacing: &PacingInput{BudgetSpentPct: 55, CurrentHour: 12}, Balance: &BalanceInput{OrganicSales: 80, PPCSales: 100}},
		{Stock: &StockInput{CurrentStock: 290, DailySalesVelocity: 5, LeadTimeDays: 30}, Clicks: floatp(3)},
	}
	for _, s := range snaps {
		first, err := c.CheckAll(s)
		require.NoError(t, err)
		second, err := c.CheckAll(s)
		require.NoError(t, err)
		assert.Equal(t, first, second)

		for i := 1; i < len(first.Violations); i++ {
			a, b := first.Violations[i-1], first.Violations[i]
			if a.Severity.Rank() == b.Severity.Rank() {
				assert.Less(t, a.RuleNumber, b.RuleNumber)
			} else {
				assert.Greater(t, a.Severity.Rank(), b.Severity.Rank())
			}
		}
	}
}

func TestCheckAll_NoViolations(t *testing.T) {
	rep, err := newChecker(t).CheckAll(Snapshot{
		Stock:           &StockInput{CurrentStock: 1000, DailySalesVelocity: 10, LeadTimeDays: 30},
		Pacing:          &PacingInput{BudgetSpentPct: 40, CurrentHour: 14},
		CampaignsPaused: intp(0),
		Balance:         &BalanceInput{OrganicSales: 300, PPCSales: 100},
	})
	require.NoError(t, err)
	assert.NotNil(t, rep.Violations)
	assert.Empty(t, rep.Violations)
}

func TestCheckAll_InvalidInputReportsAll(t *testing.T) {
	_, err := newChecker(t).CheckAll(Snapshot{
		Stock:           &StockInput{CurrentStock: -1, DailySalesVelocity: 1, LeadTimeDays: 1},
		Pacing:          &PacingInput{BudgetSpentPct: 120, CurrentHour: 25},
		CampaignsPaused: intp(-1),
	})
	var inv *ppc.InvalidInputError
	require.ErrorAs(t, err, &inv)
	assert.Len(t, inv.Problems, 4)
}

func TestStockRunwaySeverity(t *testing.T) {
	c := newChecker(t)
	// lead 10, buffer 4 weeks: 38 days required
	cases := []struct {
		stock float64
		want  Severity
		ok    bool
	}{
		{30, SeverityCritical, true}, // 3 days
		{90, SeverityCritical, true}, // 9 days < lead time 10
		{150, SeverityHigh, true},    // 15 days, deficit 61%
		{250, SeverityMedium, true},  // 25 days, deficit 34%
		{350, SeverityLow, true},     // 35 days, deficit 8%
		{380, "", false},             // exactly required
	}
	for _, tc := range cases {
		rep, err := c.CheckAll(Snapshot{Stock: &StockInput{CurrentStock: tc.stock, DailySalesVelocity: 10, LeadTimeDays: 10}})
		require.NoError(t, err)
		if !tc.ok {
			assert.Empty(t, rep.Violations, "stock=%g", tc.stock)
			continue
		}
		require.Len(t, rep.Violations, 1, "stock=%g", tc.stock)
		assert.Equal(t, tc.want, rep.Violations[0].Severity, "stock=%g", tc.stock)
	}
}

func TestStockRunway_ZeroVelocityUndetermined(t *testing.T) {
	rep, err := newChecker(t).CheckAll(Snapshot{
		Stock:           &StockInput{CurrentStock: 50, DailySalesVelocity: 0, LeadTimeDays: 10},
		CampaignsPaused: intp(1),
	})
	require.NoError(t, err)
	require.Len(t, rep.Undetermined, 1)
	assert.Equal(t, RuleStockRunway, rep.Undetermined[0].RuleNumber)
	assert.ErrorIs(t, rep.Undetermined[0].Err, ppc.ErrInsufficientData)
	require.Len(t, rep.Violations, 1)
	assert.Equal(t, RuleAlwaysAdvertise, rep.Violations[0].RuleNumber)
}

func TestBudgetPacing(t *testing.T) {
	c := newChecker(t)
	cases := []struct {
		name  string
		in    PacingInput
		want  Severity
		found bool
	}{
		{"too early to judge", PacingInput{BudgetSpentPct: 90, CurrentHour: 10}, "", false},
		{"noon on pace", PacingInput{BudgetSpentPct: 50, CurrentHour: 12}, "", false},
		{"noon slightly over", PacingInput{BudgetSpentPct: 65, CurrentHour: 12}, SeverityMedium, true},
		{"noon far over", PacingInput{BudgetSpentPct: 71, CurrentHour: 15}, SeverityHigh, true},
		{"evening over", PacingInput{BudgetSpentPct: 75, CurrentHour: 18}, SeverityMedium, true},
		{"evening at cap", PacingInput{BudgetSpentPct: 70, CurrentHour: 23}, "", false},
		{"last hour keeps evening cap", PacingInput{BudgetSpentPct: 85, CurrentHour: 23}, SeverityMedium, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := tc.in
			rep, err := c.CheckAll(Snapshot{Pacing: &in})
			require.NoError(t, err)
			if !tc.found {
				assert.Empty(t, rep.Violations)
				return
			}
			require.Len(t, rep.Violations, 1)
			assert.Equal(t, tc.want, rep.Violations[0].Severity)
		})
	}
}

func TestOrganicBalance(t *testing.T) {
	c := newChecker(t)
	cases := []struct {
		organic, ppcSales float64
		want              Severity
		found             bool
	}{
		{0, 100, SeverityHigh, true},
		{49, 100, SeverityHigh, true},
		{50, 100, SeverityMedium, true},
		{99, 100, SeverityMedium, true},
		{100, 100, SeverityLow, true},
		{199, 100, SeverityLow, true},
		{200, 100, "", false},
		{1000, 100, "", false},
		{1001, 100, SeverityMedium, true},
	}
	for _, tc := range cases {
		rep, err := c.CheckAll(Snapshot{Balance: &BalanceInput{OrganicSales: tc.organic, PPCSales: tc.ppcSales}})
		require.NoError(t, err)
		if !tc.found {
			assert.Empty(t, rep.Violations, "organic=%g", tc.organic)
			continue
		}
		require.Len(t, rep.Violations, 1, "organic=%g", tc.organic)
		assert.Equal(t, tc.want, rep.Violations[0].Severity, "organic=%g", tc.organic)
	}
}

func TestOrganicBalance_NoPPCSales(t *testing.T) {
	rep, err := newChecker(t).CheckAll(Snapshot{Balance: &BalanceInput{OrganicSales: 500, PPCSales: 0}})
	require.NoError(t, err)
	require.Len(t, rep.Violations, 1)
	assert.Equal(t, SeverityHigh, rep.Violations[0].Severity)
	assert.Equal(t, "insufficient organic data.", rep.Violations[0].RecommendedAction)
}

func TestDataSufficiencyDowngrade(t *testing.T) {
	s := fullSnapshot()
	s.Clicks = floatp(12)
	rep, err := newChecker(t).CheckAll(s)
	require.NoError(t, err)
	require.Len(t, rep.Violations, 4)

	bySeverity := map[Rule]Severity{}
	for _, v := range rep.Violations {
		bySeverity[v.RuleNumber] = v.Severity
		assert.True(t, v.Downgraded)
		assert.Contains(t, v.RecommendedAction, "rule 4")
	}
	assert.Equal(t, SeverityHigh, bySeverity[RuleStockRunway])
	assert.Equal(t, SeverityMedium, bySeverity[RuleBudgetPacing])
	assert.Equal(t, SeverityMedium, bySeverity[RuleAlwaysAdvertise])
	assert.Equal(t, SeverityLow, bySeverity[RuleOrganicBalance])
}

func TestPausedCampaignsNeverBelowMedium(t *testing.T) {
	c, err := NewChecker(DefaultConfig())
	require.NoError(t, err)
	rep, err := c.CheckAll(Snapshot{CampaignsPaused: intp(1), Clicks: floatp(0)})
	require.NoError(t, err)
	require.Len(t, rep.Violations, 1)
	assert.Equal(t, SeverityMedium, rep.Violations[0].Severity)
}

func TestSeverityDowngrade(t *testing.T) {
	assert.Equal(t, SeverityHigh, SeverityCritical.Downgrade())
	assert.Equal(t, SeverityMedium, SeverityHigh.Downgrade())
	assert.Equal(t, SeverityLow, SeverityMedium.Downgrade())
	assert.Equal(t, SeverityLow, SeverityLow.Downgrade())
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PacingCurve = []PacePoint{{Hour: 18, MaxSpentPct: 70}, {Hour: 12, MaxSpentPct: 50}}
	cfg.MaxOrganicRatio = 1
	err := cfg.Validate()
	require.ErrorIs(t, err, ppc.ErrConfiguration)
	assert.Contains(t, err.Error(), "golden.pacing_curve[1].hour")
	assert.Contains(t, err.Error(), "golden.max_organic_ratio")
}

func TestConfig_PacingHoursWithinDay(t *testing.T) {
	for _, p := range DefaultConfig().PacingCurve {
		assert.LessOrEqual(t, p.Hour, 23, "every default point must be reachable")
	}

	cfg := DefaultConfig()
	cfg.PacingCurve = append(cfg.PacingCurve, PacePoint{Hour: 24, MaxSpentPct: 95})
	err := cfg.Validate()
	require.ErrorIs(t, err, ppc.ErrConfiguration)
	assert.Contains(t, err.Error(), "pacing_curve[2].hour must be in [0, 23]")
}
