package mcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/blackwell-systems/ppcwatch/internal/analyzer"
	"github.com/blackwell-systems/ppcwatch/internal/decision"
	"github.com/blackwell-systems/ppcwatch/internal/golden"
	"github.com/blackwell-systems/ppcwatch/internal/ppc"
	"github.com/blackwell-systems/ppcwatch/internal/report"
	"github.com/blackwell-systems/ppcwatch/internal/scoring"
	"github.com/blackwell-systems/ppcwatch/internal/store"
)

// BenchmarkArgs are the arguments of evaluate_benchmarks. Percentages are
// percentage points.
type BenchmarkArgs struct {
	Metrics      map[string]float64 `json:"metrics"`
	TACoS        *float64           `json:"tacos,omitempty"`
	OrganicSales *float64           `json:"organic_sales,omitempty"`
	PPCSales     *float64           `json:"ppc_sales,omitempty"`
}

// BenchmarkResult is the result of evaluate_benchmarks.
type BenchmarkResult struct {
	analyzer.Evaluation
	TACoS        *analyzer.TACoSAssessment        `json:"tacos_strategy,omitempty"`
	OrganicRatio *analyzer.OrganicRatioAssessment `json:"organic_ratio,omitempty"`
}

// BidArgs are the arguments of recommend_bid. ACoS values are fractions.
type BidArgs struct {
	CurrentBid  float64 `json:"current_bid"`
	TotalSales  float64 `json:"total_sales"`
	TotalClicks float64 `json:"total_clicks"`
	TargetACoS  float64 `json:"target_acos"`
	CurrentACoS float64 `json:"current_acos"`
}

// PacingArgs are the arguments of budget_pacing.
type PacingArgs struct {
	Hour     int     `json:"hour"`
	SpentPct float64 `json:"spent_pct"`
}

// StockArgs are the arguments of analyze_stock.
type StockArgs struct {
	CurrentStock    float64  `json:"current_stock"`
	DailyVelocity   float64  `json:"daily_velocity"`
	LeadTimeDays    float64  `json:"lead_time_days"`
	SafetyStockDays *float64 `json:"safety_stock_days,omitempty"`
}

// EvaluateArgs are the arguments of evaluate_campaign.
type EvaluateArgs struct {
	report.Campaign
	// Track stores the report in the history database when one is
	// configured.
	Track bool `json:"track,omitempty"`
}

// HistoryArgs are the arguments of campaign_history.
type HistoryArgs struct {
	Campaign string `json:"campaign"`
}

var (
	countersSchema = json.RawMessage(`{"type":"object","properties":{
		"ad_spend":{"type":"number","description":"Advertising spend"},
		"ad_sales":{"type":"number","description":"Sales attributed to advertising"},
		"total_sales":{"type":"number","description":"All sales, organic and advertised"},
		"impressions":{"type":"number"},
		"clicks":{"type":"number"},
		"orders":{"type":"number"}},
		"required":["ad_spend","ad_sales","total_sales"],"additionalProperties":false}`)

	benchmarkSchema = json.RawMessage(`{"type":"object","properties":{
		"metrics":{"type":"object","description":"Metric name to value in percentage points, e.g. {\"acos\":18.5,\"ctr\":0.42}","additionalProperties":{"type":"number"}},
		"tacos":{"type":"number","description":"TACoS in percentage points, classified into a growth strategy"},
		"organic_sales":{"type":"number"},
		"ppc_sales":{"type":"number"}},
		"required":["metrics"],"additionalProperties":false}`)

	bidSchema = json.RawMessage(`{"type":"object","properties":{
		"current_bid":{"type":"number"},
		"total_sales":{"type":"number"},
		"total_clicks":{"type":"number"},
		"target_acos":{"type":"number","description":"Target ACoS as a fraction, e.g. 0.25"},
		"current_acos":{"type":"number","description":"Current ACoS as a fraction"}},
		"required":["current_bid","total_sales","total_clicks","target_acos","current_acos"],"additionalProperties":false}`)

	pacingSchema = json.RawMessage(`{"type":"object","properties":{
		"hour":{"type":"integer","description":"Hour of day, 0-23"},
		"spent_pct":{"type":"number","description":"Percent of daily budget spent so far"}},
		"required":["hour","spent_pct"],"additionalProperties":false}`)

	rulesSchema = json.RawMessage(`{"type":"object","properties":{
		"stock":{"type":"object","properties":{"current_stock":{"type":"number"},"daily_sales_velocity":{"type":"number"},"lead_time_days":{"type":"number"}},
			"required":["current_stock","daily_sales_velocity","lead_time_days"]},
		"pacing":{"type":"object","properties":{"budget_spent_percentage":{"type":"number"},"current_hour":{"type":"integer"}},
			"required":["budget_spent_percentage","current_hour"]},
		"campaigns_paused":{"type":"integer"},
		"balance":{"type":"object","properties":{"organic_sales":{"type":"number"},"ppc_sales":{"type":"number"}},
			"required":["organic_sales","ppc_sales"]},
		"clicks":{"type":"number"}},
		"additionalProperties":false}`)

	acosSchema = json.RawMessage(`{"type":"object","properties":{
		"acos":{"type":"number","description":"Current ACoS in percentage points"},
		"target_acos":{"type":"number","description":"Target ACoS in percentage points"},
		"clicks":{"type":"number"},
		"cvr":{"type":"number","description":"Conversion rate in percentage points"}},
		"required":["acos","target_acos","clicks","cvr"],"additionalProperties":false}`)

	ctrSchema = json.RawMessage(`{"type":"object","properties":{
		"ctr":{"type":"number","description":"Click-through rate in percentage points"},
		"impressions":{"type":"number"},
		"price_competitive":{"type":"boolean"},
		"target_ctr":{"type":"number"}},
		"required":["ctr","impressions","price_competitive"],"additionalProperties":false}`)

	bsrSchema = json.RawMessage(`{"type":"object","properties":{
		"rank_drop_pct":{"type":"number","description":"Percent the best seller rank worsened over the window"},
		"observation_days":{"type":"number"},
		"inventory_status":{"type":"string","enum":["CRITICAL","LOW","ADEQUATE","HEALTHY"]}},
		"required":["rank_drop_pct","observation_days","inventory_status"],"additionalProperties":false}`)

	stockSchema = json.RawMessage(`{"type":"object","properties":{
		"current_stock":{"type":"number"},
		"daily_velocity":{"type":"number","description":"Units sold per day"},
		"lead_time_days":{"type":"number"},
		"safety_stock_days":{"type":"number"}},
		"required":["current_stock","daily_velocity","lead_time_days"],"additionalProperties":false}`)

	campaignSchema = json.RawMessage(`{"type":"object","properties":{
		"name":{"type":"string"},
		"ad_spend":{"type":"number"},"ad_sales":{"type":"number"},"total_sales":{"type":"number"},
		"impressions":{"type":"number"},"clicks":{"type":"number"},"orders":{"type":"number"},
		"target_acos":{"type":"number","description":"Target ACoS in percentage points; without it the bid and ACoS decision are skipped"},
		"current_bid":{"type":"number"},
		"target_ctr":{"type":"number"},
		"price_competitive":{"type":"boolean"},
		"organic_sales":{"type":"number"},
		"campaigns_paused":{"type":"integer"},
		"pacing":{"type":"object","properties":{"budget_spent_percentage":{"type":"number"},"current_hour":{"type":"integer"}},
			"required":["budget_spent_percentage","current_hour"]},
		"stock":{"type":"object","properties":{"current_stock":{"type":"number"},"daily_velocity":{"type":"number"},"lead_time_days":{"type":"number"},"safety_stock_days":{"type":"number"}},
			"required":["current_stock","daily_velocity","lead_time_days"]},
		"rank":{"type":"object","properties":{"previous":{"type":"number"},"current":{"type":"number"},"observation_days":{"type":"number"}},
			"required":["previous","current","observation_days"]},
		"track":{"type":"boolean","description":"Store the report in evaluation history"}},
		"required":["name","ad_spend","ad_sales","total_sales"],"additionalProperties":false}`)

	productSchema = json.RawMessage(`{"type":"object","properties":{
		"asin":{"type":"string"},
		"title":{"type":"string"},
		"price":{"type":"number","description":"Selling price in the marketplace currency"},
		"marketplace":{"type":"string","enum":["US","UK","DE","FR","IT","ES","CA","JP"],"description":"Defaults to US"},
		"keyword":{"type":"string"},
		"search_volume":{"type":"number","description":"Monthly searches for the main keyword"},
		"click_concentration":{"type":"number","description":"Share of clicks taken by the top three products, as a fraction"},
		"top_brands":{"type":"array","items":{"type":"string"},"description":"Brands of the top search results, best ranked first"},
		"title_density":{"type":"number","description":"Top results carrying the exact keyword in their title"},
		"monthly_revenue":{"type":"number"},
		"monthly_units":{"type":"number"},
		"sales_estimates":{"type":"object","additionalProperties":{"type":"number"},"description":"Monthly sales estimate per research source"},
		"volume_estimates":{"type":"object","additionalProperties":{"type":"number"},"description":"Keyword volume estimate per research source"}},
		"required":["asin","price","search_volume"],"additionalProperties":false}`)

	historySchema = json.RawMessage(`{"type":"object","properties":{"campaign":{"type":"string"}},"required":["campaign"],"additionalProperties":false}`)
)

// addTools registers every tool handler on s. The history tool is only
// registered when a history database is configured.
func addTools(s *Server) {
	s.registerTool(toolDef{
		Name:        "calculate_metrics",
		Description: "Derive ACoS, TACoS, CTR, CVR, RPC, ROAS and CPC from raw advertising counters.",
		InputSchema: countersSchema,
		Handler:     s.handleCalculateMetrics,
	})
	s.registerTool(toolDef{
		Name:        "evaluate_benchmarks",
		Description: "Classify metrics into performance tiers and compute the weighted composite score.",
		InputSchema: benchmarkSchema,
		Handler:     s.handleEvaluateBenchmarks,
	})
	s.registerTool(toolDef{
		Name:        "recommend_bid",
		Description: "Recommend a bid adjustment using the revenue-per-click method.",
		InputSchema: bidSchema,
		Handler:     s.handleRecommendBid,
	})
	s.registerTool(toolDef{
		Name:        "budget_pacing",
		Description: "Bid multiplier that keeps daily spend on pace.",
		InputSchema: pacingSchema,
		Handler:     s.handleBudgetPacing,
	})
	s.registerTool(toolDef{
		Name:        "check_golden_rules",
		Description: "Check a campaign snapshot against the five golden rules; violations ordered by severity.",
		InputSchema: rulesSchema,
		Handler:     s.handleCheckGoldenRules,
	})
	s.registerTool(toolDef{
		Name:        "decide_acos",
		Description: "Walk the ACoS decision tree.",
		InputSchema: acosSchema,
		Handler:     s.handleDecideACoS,
	})
	s.registerTool(toolDef{
		Name:        "decide_ctr",
		Description: "Walk the CTR decision tree.",
		InputSchema: ctrSchema,
		Handler:     s.handleDecideCTR,
	})
	s.registerTool(toolDef{
		Name:        "decide_bsr",
		Description: "Walk the best seller rank decision tree.",
		InputSchema: bsrSchema,
		Handler:     s.handleDecideBSR,
	})
	s.registerTool(toolDef{
		Name:        "analyze_stock",
		Description: "Inventory runway, stock level, reorder point and PPC budget multiplier.",
		InputSchema: stockSchema,
		Handler:     s.handleAnalyzeStock,
	})
	s.registerTool(toolDef{
		Name:        "evaluate_campaign",
		Description: "Full campaign evaluation: metrics, benchmarks, bid, stock, golden rules and decisions.",
		InputSchema: campaignSchema,
		Handler:     s.handleEvaluateCampaign,
	})
	s.registerTool(toolDef{
		Name:        "score_product",
		Description: "Grade a product opportunity RED, YELLOW or GREEN from price, brand dominance, keyword volume and research agreement.",
		InputSchema: productSchema,
		Handler:     s.handleScoreProduct,
	})
	if s.history != nil {
		s.registerTool(toolDef{
			Name:        "campaign_history",
			Description: "Compare the two most recent stored evaluations of a campaign.",
			InputSchema: historySchema,
			Handler:     s.handleCampaignHistory,
		})
	}
}

// objectSchema is the part of a tool's JSON schema used to check arguments.
type objectSchema struct {
	Required   []string                   `json:"required"`
	Properties map[string]json.RawMessage `json:"properties"`
}

// decodeArgs strictly decodes tool arguments into v, then checks them
// against schema's required fields. Every missing or null required field is
// reported in one *ppc.InvalidInputError, so an omitted number is never
// taken as zero.
func decodeArgs(args, schema json.RawMessage, v any) error {
	if len(bytes.TrimSpace(args)) == 0 {
		args = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}

	var val ppc.Validator
	if err := requireFields(&val, schema, args, ""); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return val.Err()
}

// requireFields records a problem for every required field of schema that
// args lacks, descending into nested objects that are present.
func requireFields(val *ppc.Validator, schema, args json.RawMessage, prefix string) error {
	var sch objectSchema
	if err := json.Unmarshal(schema, &sch); err != nil {
		return err
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(args, &obj); err != nil {
		return err
	}

	for _, name := range sch.Required {
		raw, ok := obj[name]
		if !ok || isNull(raw) {
			val.Check(false, prefix+name, "is required")
		}
	}

	names := make([]string, 0, len(sch.Properties))
	for name := range sch.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		raw, ok := obj[name]
		if !ok || isNull(raw) || bytes.TrimSpace(raw)[0] != '{' {
			continue
		}
		if err := requireFields(val, sch.Properties[name], raw, prefix+name+"."); err != nil {
			return err
		}
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

func (s *Server) handleCalculateMetrics(args json.RawMessage) (any, error) {
	var in analyzer.Counters
	if err := decodeArgs(args, countersSchema, &in); err != nil {
		return nil, err
	}
	return s.engine.Calculator().Calculate(in)
}

func (s *Server) handleEvaluateBenchmarks(args json.RawMessage) (any, error) {
	var in BenchmarkArgs
	if err := decodeArgs(args, benchmarkSchema, &in); err != nil {
		return nil, err
	}
	bench := s.engine.Benchmarks()

	ev, err := bench.EvaluateAll(in.Metrics)
	if err != nil {
		return nil, err
	}
	out := BenchmarkResult{Evaluation: ev}
	if in.TACoS != nil {
		a, err := bench.AssessTACoS(*in.TACoS)
		if err != nil {
			return nil, err
		}
		out.TACoS = &a
	}
	if in.OrganicSales != nil || in.PPCSales != nil {
		if in.OrganicSales == nil || in.PPCSales == nil {
			return nil, errors.New("organic_sales and ppc_sales must be given together")
		}
		a, err := bench.AssessOrganicRatio(*in.OrganicSales, *in.PPCSales)
		if err != nil {
			return nil, err
		}
		out.OrganicRatio = &a
	}
	return out, nil
}

func (s *Server) handleRecommendBid(args json.RawMessage) (any, error) {
	var in BidArgs
	if err := decodeArgs(args, bidSchema, &in); err != nil {
		return nil, err
	}
	return s.engine.BidOptimizer().RecommendBidAdjustment(in.CurrentBid, in.TotalSales, in.TotalClicks, in.TargetACoS, in.CurrentACoS)
}

func (s *Server) handleBudgetPacing(args json.RawMessage) (any, error) {
	var in PacingArgs
	if err := decodeArgs(args, pacingSchema, &in); err != nil {
		return nil, err
	}
	return s.engine.BidOptimizer().PacingMultiplier(in.Hour, in.SpentPct)
}

func (s *Server) handleCheckGoldenRules(args json.RawMessage) (any, error) {
	var in golden.Snapshot
	if err := decodeArgs(args, rulesSchema, &in); err != nil {
		return nil, err
	}
	return s.engine.Rules().CheckAll(in)
}

func (s *Server) handleDecideACoS(args json.RawMessage) (any, error) {
	var in decision.ACoSInput
	if err := decodeArgs(args, acosSchema, &in); err != nil {
		return nil, err
	}
	return s.engine.Trees().ACoS(in)
}

func (s *Server) handleDecideCTR(args json.RawMessage) (any, error) {
	var in decision.CTRInput
	if err := decodeArgs(args, ctrSchema, &in); err != nil {
		return nil, err
	}
	return s.engine.Trees().CTR(in)
}

func (s *Server) handleDecideBSR(args json.RawMessage) (any, error) {
	var in decision.BSRInput
	if err := decodeArgs(args, bsrSchema, &in); err != nil {
		return nil, err
	}
	return s.engine.Trees().BSR(in)
}

func (s *Server) handleAnalyzeStock(args json.RawMessage) (any, error) {
	var in StockArgs
	if err := decodeArgs(args, stockSchema, &in); err != nil {
		return nil, err
	}
	var opts []analyzer.StockOption
	if in.SafetyStockDays != nil {
		opts = append(opts, analyzer.WithSafetyStockDays(*in.SafetyStockDays))
	}
	return s.engine.Stockout().AnalyzeStockSituation(in.CurrentStock, in.DailyVelocity, in.LeadTimeDays, opts...)
}

func (s *Server) handleEvaluateCampaign(args json.RawMessage) (any, error) {
	var in EvaluateArgs
	if err := decodeArgs(args, campaignSchema, &in); err != nil {
		return nil, err
	}
	if in.Name == "" {
		return nil, &ppc.InvalidInputError{Problems: []ppc.Problem{{Field: "name", Reason: "must not be empty"}}}
	}
	r, err := s.engine.Evaluate(in.Campaign)
	if err != nil {
		return nil, err
	}
	if in.Track {
		if s.history == nil {
			return nil, errors.New("track requested but no history database is configured")
		}
		if _, err := s.history.SaveReport(r, "mcp", s.version); err != nil {
			return nil, fmt.Errorf("storing evaluation: %w", err)
		}
	}
	return r, nil
}

func (s *Server) handleScoreProduct(args json.RawMessage) (any, error) {
	var in scoring.Product
	if err := decodeArgs(args, productSchema, &in); err != nil {
		return nil, err
	}
	return s.engine.Scorer().Score(in)
}

func (s *Server) handleCampaignHistory(args json.RawMessage) (any, error) {
	var in HistoryArgs
	if err := decodeArgs(args, historySchema, &in); err != nil {
		return nil, err
	}
	d, err := s.history.Diff(in.Campaign)
	if errors.Is(err, store.ErrNotEnoughHistory) {
		evals, lerr := s.history.LatestEvaluations(in.Campaign, 1)
		if lerr != nil {
			return nil, lerr
		}
		return map[string]any{"campaign": in.Campaign, "evaluations": len(evals), "message": err.Error()}, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}
