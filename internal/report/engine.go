// Package report composes every metrics, rule and decision component into a
// single per-campaign evaluation.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blackwell-systems/ppcwatch/internal/analyzer"
	"github.com/blackwell-systems/ppcwatch/internal/decision"
	"github.com/blackwell-systems/ppcwatch/internal/golden"
	"github.com/blackwell-systems/ppcwatch/internal/ppc"
	"github.com/blackwell-systems/ppcwatch/internal/scoring"
)

// StockInputs describe the inventory position of a campaign's product.
type StockInputs struct {
	CurrentStock    float64  `json:"current_stock" yaml:"current_stock"`
	DailyVelocity   float64  `json:"daily_velocity" yaml:"daily_velocity"`
	LeadTimeDays    float64  `json:"lead_time_days" yaml:"lead_time_days"`
	SafetyStockDays *float64 `json:"safety_stock_days,omitempty" yaml:"safety_stock_days,omitempty"`
}

// RankInputs describe the best seller rank movement over a window.
type RankInputs struct {
	Previous        float64 `json:"previous" yaml:"previous"`
	Current         float64 `json:"current" yaml:"current"`
	ObservationDays float64 `json:"observation_days" yaml:"observation_days"`
}

// Campaign is everything known about one campaign at evaluation time.
// Optional groups that are nil skip the sections that need them.
type Campaign struct {
	Name              string `json:"name" yaml:"name"`
	analyzer.Counters `yaml:",inline"`

	// TargetACoS is a percentage, e.g. 25 for 25%. Without it the bid
	// and ACoS decision sections are skipped.
	TargetACoS       *float64            `json:"target_acos,omitempty" yaml:"target_acos,omitempty"`
	CurrentBid       *float64            `json:"current_bid,omitempty" yaml:"current_bid,omitempty"`
	TargetCTR        *float64            `json:"target_ctr,omitempty" yaml:"target_ctr,omitempty"`
	PriceCompetitive *bool               `json:"price_competitive,omitempty" yaml:"price_competitive,omitempty"`
	OrganicSales     *float64            `json:"organic_sales,omitempty" yaml:"organic_sales,omitempty"`
	CampaignsPaused  *int                `json:"campaigns_paused,omitempty" yaml:"campaigns_paused,omitempty"`
	Pacing           *golden.PacingInput `json:"pacing,omitempty" yaml:"pacing,omitempty"`
	Stock            *StockInputs        `json:"stock,omitempty" yaml:"stock,omitempty"`
	Rank             *RankInputs         `json:"rank,omitempty" yaml:"rank,omitempty"`
}

// Report is the full evaluation of one campaign.
type Report struct {
	EvalID      string    `json:"eval_id"`
	Campaign    string    `json:"campaign"`
	GeneratedAt time.Time `json:"generated_at"`

	Metrics      analyzer.MetricSet               `json:"metrics"`
	Benchmarks   analyzer.Evaluation              `json:"benchmarks"`
	TACoS        *analyzer.TACoSAssessment        `json:"tacos_strategy,omitempty"`
	OrganicRatio *analyzer.OrganicRatioAssessment `json:"organic_ratio,omitempty"`
	Bid          *analyzer.BidRecommendation      `json:"bid,omitempty"`
	Pacing       *analyzer.PacingAdjustment       `json:"pacing,omitempty"`
	Stock        *analyzer.StockSituation         `json:"stock,omitempty"`
	Rules        golden.Report                    `json:"golden_rules"`
	Decisions    []decision.Result                `json:"decisions"`

	// Notes explain every section that was skipped or left undefined.
	Notes []string `json:"notes,omitempty"`

	// Undefined holds the cause of every null derived value, keyed by JSON
	// path, so a stored report reloads with the same errors.
	Undefined map[string]*ppc.FieldError `json:"undefined,omitempty"`
}

// derived returns every derived value of r keyed by its JSON path.
func (r *Report) derived() map[string]*ppc.Derived {
	d := map[string]*ppc.Derived{
		"metrics." + analyzer.MetricACoS:  &r.Metrics.ACoS,
		"metrics." + analyzer.MetricTACoS: &r.Metrics.TACoS,
		"metrics." + analyzer.MetricCTR:   &r.Metrics.CTR,
		"metrics." + analyzer.MetricCVR:   &r.Metrics.CVR,
		"metrics." + analyzer.MetricRPC:   &r.Metrics.RPC,
		"metrics." + analyzer.MetricROAS:  &r.Metrics.ROAS,
		"metrics." + analyzer.MetricCPC:   &r.Metrics.CPC,
		"benchmarks.composite":            &r.Benchmarks.Composite,
		"benchmarks.score":                &r.Benchmarks.Score,
	}
	if r.OrganicRatio != nil {
		d["organic_ratio.ratio"] = &r.OrganicRatio.Ratio
	}
	return d
}

func (r *Report) recordUndefined() {
	r.Undefined = nil
	for path, d := range r.derived() {
		cause := d.Cause()
		if cause == nil {
			continue
		}
		if r.Undefined == nil {
			r.Undefined = make(map[string]*ppc.FieldError)
		}
		r.Undefined[path] = cause
	}
}

// UnmarshalJSON decodes a report and gives every null derived value back the
// cause recorded in Undefined.
func (r *Report) UnmarshalJSON(b []byte) error {
	type plain Report
	if err := json.Unmarshal(b, (*plain)(r)); err != nil {
		return err
	}
	for path, d := range r.derived() {
		d.Restore(path, r.Undefined[path])
	}
	return nil
}

// Config holds the configuration of every component.
type Config struct {
	Metrics    analyzer.CalculatorConfig
	Benchmarks analyzer.BenchmarkConfig
	Bid        analyzer.BidConfig
	Stock      analyzer.StockConfig
	Golden     golden.Config
	Decision   decision.Config
	Scoring    scoring.Config
}

// DefaultConfig returns the stock configuration of every component.
func DefaultConfig() Config {
	return Config{
		Metrics:    analyzer.DefaultCalculatorConfig(),
		Benchmarks: analyzer.DefaultBenchmarkConfig(),
		Bid:        analyzer.DefaultBidConfig(),
		Stock:      analyzer.DefaultStockConfig(),
		Golden:     golden.DefaultConfig(),
		Decision:   decision.DefaultConfig(),
		Scoring:    scoring.DefaultConfig(),
	}
}

// Engine evaluates campaigns. It holds only read-only components and is safe
// for concurrent use.
type Engine struct {
	calc    *analyzer.Calculator
	bench   *analyzer.BenchmarkEvaluator
	bid     *analyzer.BidOptimizer
	stock   *analyzer.StockoutProtocol
	rules   *golden.Checker
	trees   *decision.Trees
	scorer  *scoring.Scorer
	now     func() time.Time
	newUUID func() string
}

// New builds every component from cfg. All configuration problems are
// reported together.
func New(cfg Config) (*Engine, error) {
	chk := ppc.NewConfigChecker("")
	e := &Engine{now: time.Now, newUUID: uuid.NewString}
	var err error
	e.calc, err = analyzer.NewCalculator(cfg.Metrics)
	chk.Merge(err)
	e.bench, err = analyzer.NewBenchmarkEvaluator(cfg.Benchmarks)
	chk.Merge(err)
	e.bid, err = analyzer.NewBidOptimizer(cfg.Bid)
	chk.Merge(err)
	e.stock, err = analyzer.NewStockoutProtocol(cfg.Stock)
	chk.Merge(err)
	e.rules, err = golden.NewChecker(cfg.Golden)
	chk.Merge(err)
	e.trees, err = decision.New(cfg.Decision)
	chk.Merge(err)
	e.scorer, err = scoring.New(cfg.Scoring)
	chk.Merge(err)
	if err := chk.Err(); err != nil {
		return nil, err
	}
	return e, nil
}

// Calculator returns the engine's metrics calculator.
func (e *Engine) Calculator() *analyzer.Calculator { return e.calc }

// Benchmarks returns the engine's benchmark evaluator.
func (e *Engine) Benchmarks() *analyzer.BenchmarkEvaluator { return e.bench }

// BidOptimizer returns the engine's bid optimizer.
func (e *Engine) BidOptimizer() *analyzer.BidOptimizer { return e.bid }

// Stockout returns the engine's stockout protocol.
func (e *Engine) Stockout() *analyzer.StockoutProtocol { return e.stock }

// Rules returns the engine's golden rule checker.
func (e *Engine) Rules() *golden.Checker { return e.rules }

// Trees returns the engine's decision trees.
func (e *Engine) Trees() *decision.Trees { return e.trees }

// Scorer returns the engine's product opportunity scorer.
func (e *Engine) Scorer() *scoring.Scorer { return e.scorer }

// Evaluate runs every applicable component over c. Invalid input aborts the
// evaluation; a section that cannot be computed from the data is skipped and
// explained in Report.Notes.
func (e *Engine) Evaluate(c Campaign) (Report, error) {
	var v ppc.Validator
	v.OptionalNonNegative("target_acos", c.TargetACoS)
	if c.CurrentBid != nil {
		v.Positive("current_bid", *c.CurrentBid)
	}
	v.OptionalNonNegative("organic_sales", c.OrganicSales)
	if err := v.Err(); err != nil {
		return Report{}, fmt.Errorf("campaign %q: %w", c.Name, err)
	}

	m, err := e.calc.Calculate(c.Counters)
	if err != nil {
		return Report{}, fmt.Errorf("campaign %q: %w", c.Name, err)
	}

	r := Report{
		EvalID:      e.newUUID(),
		Campaign:    c.Name,
		GeneratedAt: e.now().UTC(),
		Metrics:     m,
		Decisions:   []decision.Result{},
	}
	for _, undefined := range m.Undefined() {
		r.note("metrics", undefined)
	}

	steps := []func(*Report, Campaign) error{
		e.benchmarkSection,
		e.bidSection,
		e.pacingSection,
		e.stockSection,
		e.rulesSection,
		e.decisionSection,
	}
	for _, step := range steps {
		if err := step(&r, c); err != nil {
			return Report{}, fmt.Errorf("campaign %q: %w", c.Name, err)
		}
	}
	r.recordUndefined()
	return r, nil
}

func (r *Report) note(section string, err error) {
	r.Notes = append(r.Notes, section+": "+err.Error())
}

func (r *Report) skip(section, reason string) {
	r.Notes = append(r.Notes, section+": skipped, "+reason)
}

// tolerate records an InsufficientData failure as a note and passes every
// other error through.
func (r *Report) tolerate(section string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ppc.ErrInsufficientData) {
		r.note(section, err)
		return nil
	}
	return err
}

// organicSales returns the explicit organic sales or total minus ad sales.
func organicSales(c Campaign) (float64, bool) {
	if c.OrganicSales != nil {
		return *c.OrganicSales, true
	}
	if c.TotalSales >= c.AdSales {
		return c.TotalSales - c.AdSales, true
	}
	return 0, false
}

func (e *Engine) benchmarkSection(r *Report, c Campaign) error {
	ev, err := e.bench.EvaluateMetricSet(r.Metrics)
	if err != nil {
		return err
	}
	r.Benchmarks = ev
	if !ev.Composite.Ok() {
		r.note("benchmarks", ev.Composite.Err)
	}

	if r.Metrics.TACoS.Ok() {
		a, err := e.bench.AssessTACoS(r.Metrics.TACoS.Value)
		if err != nil {
			return err
		}
		r.TACoS = &a
	}

	if organic, ok := organicSales(c); ok {
		a, err := e.bench.AssessOrganicRatio(organic, c.AdSales)
		if err != nil {
			return err
		}
		r.OrganicRatio = &a
	} else {
		r.skip("organic_ratio", "ad_sales exceeds total_sales and organic_sales was not provided")
	}
	return nil
}

func (e *Engine) bidSection(r *Report, c Campaign) error {
	switch {
	case c.CurrentBid == nil:
		return nil
	case c.TargetACoS == nil:
		r.skip("bid", "target_acos not provided")
		return nil
	case c.Clicks == nil:
		r.skip("bid", "clicks not provided")
		return nil
	case !r.Metrics.ACoS.Ok():
		r.skip("bid", "acos is undefined")
		return nil
	}
	rec, err := e.bid.RecommendBidAdjustment(*c.CurrentBid, c.TotalSales, *c.Clicks, *c.TargetACoS/100, r.Metrics.ACoS.Value/100)
	if err != nil {
		return r.tolerate("bid", err)
	}
	r.Bid = &rec
	return nil
}

func (e *Engine) pacingSection(r *Report, c Campaign) error {
	if c.Pacing == nil {
		return nil
	}
	p, err := e.bid.PacingMultiplier(c.Pacing.CurrentHour, c.Pacing.BudgetSpentPct)
	if err != nil {
		return err
	}
	r.Pacing = &p
	return nil
}

func (e *Engine) stockSection(r *Report, c Campaign) error {
	if c.Stock == nil {
		return nil
	}
	var opts []analyzer.StockOption
	if c.Stock.SafetyStockDays != nil {
		opts = append(opts, analyzer.WithSafetyStockDays(*c.Stock.SafetyStockDays))
	}
	s, err := e.stock.AnalyzeStockSituation(c.Stock.CurrentStock, c.Stock.DailyVelocity, c.Stock.LeadTimeDays, opts...)
	if err != nil {
		return r.tolerate("stock", err)
	}
	r.Stock = &s
	return nil
}

func (e *Engine) rulesSection(r *Report, c Campaign) error {
	snap := golden.Snapshot{
		Pacing:          c.Pacing,
		CampaignsPaused: c.CampaignsPaused,
		Clicks:          c.Clicks,
	}
	if c.Stock != nil {
		snap.Stock = &golden.StockInput{
			CurrentStock:       c.Stock.CurrentStock,
			DailySalesVelocity: c.Stock.DailyVelocity,
			LeadTimeDays:       c.Stock.LeadTimeDays,
		}
	}
	if organic, ok := organicSales(c); ok {
		snap.Balance = &golden.BalanceInput{OrganicSales: organic, PPCSales: c.AdSales}
	}
	rep, err := e.rules.CheckAll(snap)
	if err != nil {
		return err
	}
	for _, u := range rep.Undetermined {
		r.note(fmt.Sprintf("golden rule %d", u.RuleNumber), u.Err)
	}
	r.Rules = rep
	return nil
}

func (e *Engine) decisionSection(r *Report, c Campaign) error {
	m := r.Metrics

	switch {
	case c.TargetACoS == nil:
		r.skip("decision.acos", "target_acos not provided")
	case !m.ACoS.Ok() || !m.CVR.Ok():
		r.skip("decision.acos", "acos or cvr is undefined")
	default:
		res, err := e.trees.ACoS(decision.ACoSInput{
			ACoS:       m.ACoS.Value,
			TargetACoS: *c.TargetACoS,
			Clicks:     m.ClickCount(),
			CVR:        m.CVR.Value,
		})
		if err != nil {
			return err
		}
		r.Decisions = append(r.Decisions, res)
	}

	switch {
	case !m.CTR.Ok():
		r.skip("decision.ctr", "ctr is undefined")
	case c.PriceCompetitive == nil:
		r.skip("decision.ctr", "price_competitive not provided")
	default:
		res, err := e.trees.CTR(decision.CTRInput{
			CTR:              m.CTR.Value,
			Impressions:      *m.Impressions,
			PriceCompetitive: *c.PriceCompetitive,
			TargetCTR:        c.TargetCTR,
		})
		if err != nil {
			return err
		}
		r.Decisions = append(r.Decisions, res)
	}

	if c.Rank != nil {
		switch {
		case r.Stock == nil:
			r.skip("decision.bsr", "inventory status unknown")
		default:
			drop, err := decision.ComputeRankDrop(c.Rank.Previous, c.Rank.Current)
			if err != nil {
				return r.tolerate("decision.bsr", err)
			}
			res, err := e.trees.BSR(decision.BSRInput{
				RankDropPct:     drop,
				ObservationDays: c.Rank.ObservationDays,
				Inventory:       r.Stock.StockLevel,
			})
			if err != nil {
				return err
			}
			r.Decisions = append(r.Decisions, res)
		}
	}
	return nil
}
