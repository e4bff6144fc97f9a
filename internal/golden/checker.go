package golden

import (
	"fmt"
	"math"
	"sort"

	"github.com/blackwell-systems/ppcwatch/internal/ppc"
)

// StockInput feeds rule 1.
type StockInput struct {
	CurrentStock       float64 `json:"current_stock" yaml:"current_stock"`
	DailySalesVelocity float64 `json:"daily_sales_velocity" yaml:"daily_sales_velocity"`
	LeadTimeDays       float64 `json:"lead_time_days" yaml:"lead_time_days"`
}

// PacingInput feeds rule 2.
type PacingInput struct {
	BudgetSpentPct float64 `json:"budget_spent_percentage" yaml:"budget_spent_percentage"`
	CurrentHour    int     `json:"current_hour" yaml:"current_hour"`
}

// BalanceInput feeds rule 5.
type BalanceInput struct {
	OrganicSales float64 `json:"organic_sales" yaml:"organic_sales"`
	PPCSales     float64 `json:"ppc_sales" yaml:"ppc_sales"`
}

// Snapshot is the campaign and inventory state checked by CheckAll. A rule
// whose input group is nil is not checked. Clicks is the click volume the
// other inputs were derived from; when set and below the data sufficiency
// threshold every violation is downgraded one level.
type Snapshot struct {
	Stock           *StockInput   `json:"stock,omitempty" yaml:"stock,omitempty"`
	Pacing          *PacingInput  `json:"pacing,omitempty" yaml:"pacing,omitempty"`
	CampaignsPaused *int          `json:"campaigns_paused,omitempty" yaml:"campaigns_paused,omitempty"`
	Balance         *BalanceInput `json:"balance,omitempty" yaml:"balance,omitempty"`
	Clicks          *float64      `json:"clicks,omitempty" yaml:"clicks,omitempty"`
}

// Violation is one broken rule.
type Violation struct {
	RuleNumber        Rule     `json:"rule_number"`
	RuleName          string   `json:"rule_name"`
	Severity          Severity `json:"severity"`
	Message           string   `json:"message"`
	RecommendedAction string   `json:"recommended_action"`
	Impact            string   `json:"impact,omitempty"`
	Downgraded        bool     `json:"downgraded,omitempty"`
}

// Undetermined records a rule that could not be judged from its inputs.
type Undetermined struct {
	RuleNumber Rule   `json:"rule_number"`
	RuleName   string `json:"rule_name"`
	Reason     string `json:"reason"`
	Err        error  `json:"-"`
}

// Report is the result of CheckAll. Violations are sorted by severity
// descending, then rule number ascending.
type Report struct {
	Violations   []Violation    `json:"violations"`
	Undetermined []Undetermined `json:"undetermined,omitempty"`
}

// Worst returns the most severe violation, if any.
func (r Report) Worst() (Violation, bool) {
	if len(r.Violations) == 0 {
		return Violation{}, false
	}
	return r.Violations[0], true
}

// Checker evaluates the golden rules.
type Checker struct {
	cfg Config
}

// NewChecker returns a Checker for cfg.
func NewChecker(cfg Config) (*Checker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.PacingCurve = append([]PacePoint(nil), cfg.PacingCurve...)
	return &Checker{cfg: cfg}, nil
}

// CheckAll validates s and evaluates every rule whose inputs are present.
// The same snapshot always yields the same ordered report.
func (c *Checker) CheckAll(s Snapshot) (Report, error) {
	if err := validate(s); err != nil {
		return Report{}, err
	}

	rep := Report{Violations: []Violation{}}
	for _, rule := range evaluated {
		v, err := c.check(rule, s)
		if err != nil {
			rep.Undetermined = append(rep.Undetermined, Undetermined{
				RuleNumber: rule,
				RuleName:   rule.Name(),
				Reason:     err.Error(),
				Err:        err,
			})
			continue
		}
		if v != nil {
			rep.Violations = append(rep.Violations, *v)
		}
	}

	c.applyDataSufficiency(rep.Violations, s.Clicks)

	sort.SliceStable(rep.Violations, func(i, j int) bool {
		a, b := rep.Violations[i], rep.Violations[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		return a.RuleNumber < b.RuleNumber
	})
	return rep, nil
}

func validate(s Snapshot) error {
	var v ppc.Validator
	if s.Stock != nil {
		v.NonNegative("current_stock", s.Stock.CurrentStock)
		v.NonNegative("daily_sales_velocity", s.Stock.DailySalesVelocity)
		v.NonNegative("lead_time_days", s.Stock.LeadTimeDays)
	}
	if s.Pacing != nil {
		v.Range("budget_spent_percentage", s.Pacing.BudgetSpentPct, 0, 100)
		v.Range("current_hour", float64(s.Pacing.CurrentHour), 0, 23)
	}
	if s.CampaignsPaused != nil {
		v.Check(*s.CampaignsPaused >= 0, "campaigns_paused", fmt.Sprintf("must not be negative (got %d)", *s.CampaignsPaused))
	}
	if s.Balance != nil {
		v.NonNegative("organic_sales", s.Balance.OrganicSales)
		v.NonNegative("ppc_sales", s.Balance.PPCSales)
	}
	v.OptionalNonNegative("clicks", s.Clicks)
	return v.Err()
}

// check evaluates a single rule. A nil violation means the rule passed or
// its inputs were absent.
func (c *Checker) check(rule Rule, s Snapshot) (*Violation, error) {
	switch rule {
	case RuleStockRunway:
		if s.Stock == nil {
			return nil, nil
		}
		return c.checkStock(*s.Stock)
	case RuleBudgetPacing:
		if s.Pacing == nil {
			return nil, nil
		}
		return c.checkPacing(*s.Pacing), nil
	case RuleAlwaysAdvertise:
		if s.CampaignsPaused == nil {
			return nil, nil
		}
		return checkPaused(*s.CampaignsPaused), nil
	case RuleOrganicBalance:
		if s.Balance == nil {
			return nil, nil
		}
		return c.checkBalance(*s.Balance), nil
	}
	return nil, fmt.Errorf("golden: rule %d is not independently evaluated", int(rule))
}

func (c *Checker) checkStock(in StockInput) (*Violation, error) {
	if in.DailySalesVelocity == 0 {
		return nil, ppc.InsufficientData("stock_runway", "daily_sales_velocity is zero")
	}
	runway := in.CurrentStock / in.DailySalesVelocity
	required := in.LeadTimeDays + c.cfg.BufferWeeks*7
	if runway >= required {
		return nil, nil
	}

	deficit := required - runway
	v := &Violation{
		RuleNumber: RuleStockRunway,
		RuleName:   RuleStockRunway.Name(),
		Message:    fmt.Sprintf("%.1f days of stock against %.1f required (lead time %g + %g week buffer)", runway, required, in.LeadTimeDays, c.cfg.BufferWeeks),
		Impact:     "Running out resets velocity and organic rank; recovery takes 2-4 weeks",
	}
	switch frac := deficit / required; {
	case runway < in.LeadTimeDays || runway < c.cfg.CriticalRunwayDays:
		v.Severity = SeverityCritical
		v.RecommendedAction = fmt.Sprintf("Expedite restock now and cut PPC spend; stock runs out %.1f days before replenishment can arrive", math.Max(0, in.LeadTimeDays-runway))
	case frac >= 0.5:
		v.Severity = SeverityHigh
		v.RecommendedAction = fmt.Sprintf("Place a reorder immediately to cover the %.1f day shortfall", deficit)
	case frac >= 0.25:
		v.Severity = SeverityMedium
		v.RecommendedAction = fmt.Sprintf("Reorder this week to cover the %.1f day shortfall", deficit)
	default:
		v.Severity = SeverityLow
		v.RecommendedAction = fmt.Sprintf("Schedule a reorder to restore the buffer (%.1f days short)", deficit)
	}
	return v, nil
}

// paceCap returns the spend cap in force at hour, or false before the first
// point of the curve.
func (c *Checker) paceCap(hour int) (PacePoint, bool) {
	var limit PacePoint
	found := false
	for _, p := range c.cfg.PacingCurve {
		if hour < p.Hour {
			break
		}
		limit, found = p, true
	}
	return limit, found
}

func (c *Checker) checkPacing(in PacingInput) *Violation {
	limit, ok := c.paceCap(in.CurrentHour)
	if !ok || in.BudgetSpentPct <= limit.MaxSpentPct {
		return nil
	}
	over := in.BudgetSpentPct - limit.MaxSpentPct
	sev := SeverityMedium
	if over > c.cfg.OverspendHighPoints {
		sev = SeverityHigh
	}
	return &Violation{
		RuleNumber:        RuleBudgetPacing,
		RuleName:          RuleBudgetPacing.Name(),
		Severity:          sev,
		Message:           fmt.Sprintf("%.1f%% of daily budget spent at hour %d (cap %g%% from hour %d)", in.BudgetSpentPct, in.CurrentHour, limit.MaxSpentPct, limit.Hour),
		RecommendedAction: fmt.Sprintf("Decrease bids by 15-20%% to stay visible for the rest of the day; spend is %.1f points over pace", over),
		Impact:            "Competitors take the remaining hours uncontested",
	}
}

func checkPaused(paused int) *Violation {
	if paused <= 0 {
		return nil
	}
	return &Violation{
		RuleNumber:        RuleAlwaysAdvertise,
		RuleName:          RuleAlwaysAdvertise.Name(),
		Severity:          SeverityHigh,
		Message:           fmt.Sprintf("%d campaign(s) currently paused", paused),
		RecommendedAction: fmt.Sprintf("Resume %d paused campaign(s) and reduce bids instead, unless stock is critical, the listing is suppressed, or there is a review crisis", paused),
		Impact:            "Sales velocity drops, organic rank follows, recovery takes 2-4 weeks",
	}
}

func (c *Checker) checkBalance(in BalanceInput) *Violation {
	v := &Violation{
		RuleNumber: RuleOrganicBalance,
		RuleName:   RuleOrganicBalance.Name(),
	}
	if in.PPCSales == 0 {
		v.Severity = SeverityHigh
		v.Message = "no PPC sales; organic:PPC ratio undefined"
		v.RecommendedAction = "insufficient organic data."
		return v
	}

	ratio := in.OrganicSales / in.PPCSales
	v.Message = fmt.Sprintf("organic:PPC ratio is %.2f:1 (healthy is %g:1 or better)", ratio, c.cfg.HealthyOrganicRatio)
	switch {
	case ratio < 0.5:
		v.Severity = SeverityHigh
		v.RecommendedAction = fmt.Sprintf("Cut PPC dependency: organic sales must grow %.1fx to reach %g:1; invest in listing SEO", c.cfg.HealthyOrganicRatio/ratioOrMin(ratio), c.cfg.HealthyOrganicRatio)
	case ratio < 1.0:
		v.Severity = SeverityMedium
		v.RecommendedAction = fmt.Sprintf("Focus on SEO to lift organic sales %.1fx toward %g:1", c.cfg.HealthyOrganicRatio/ratio, c.cfg.HealthyOrganicRatio)
	case ratio < c.cfg.HealthyOrganicRatio:
		v.Severity = SeverityLow
		v.RecommendedAction = fmt.Sprintf("Keep improving organic rank; ratio is %.2f short of %g:1", c.cfg.HealthyOrganicRatio-ratio, c.cfg.HealthyOrganicRatio)
	case ratio > c.cfg.MaxOrganicRatio:
		v.Severity = SeverityMedium
		v.Message = fmt.Sprintf("organic:PPC ratio is %.1f:1; PPC is under-used", ratio)
		v.RecommendedAction = "Increase PPC investment to capture more market share"
	default:
		return nil
	}
	return v
}

func ratioOrMin(r float64) float64 {
	return math.Max(r, 0.01)
}

// applyDataSufficiency downgrades every violation one level when the click
// volume behind the inputs is below the threshold.
func (c *Checker) applyDataSufficiency(vs []Violation, clicks *float64) {
	if clicks == nil || *clicks >= c.cfg.MinClicks {
		return
	}
	for i := range vs {
		vs[i].Severity = vs[i].Severity.Downgrade()
		if vs[i].RuleNumber == RuleAlwaysAdvertise && vs[i].Severity.Rank() < SeverityMedium.Rank() {
			vs[i].Severity = SeverityMedium
		}
		vs[i].Downgraded = true
		vs[i].RecommendedAction += fmt.Sprintf(" (severity lowered by rule 4: only %g clicks, need %g)", *clicks, c.cfg.MinClicks)
	}
}
