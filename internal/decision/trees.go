package decision

import (
	"fmt"
	"math"

	"github.com/blackwell-systems/ppcwatch/internal/analyzer"
	"github.com/blackwell-systems/ppcwatch/internal/ppc"
)

// ACoSInput feeds the ACoS tree. ACoS, TargetACoS and CVR are percentages.
type ACoSInput struct {
	ACoS       float64 `json:"acos"`
	TargetACoS float64 `json:"target_acos"`
	Clicks     float64 `json:"clicks"`
	CVR        float64 `json:"cvr"`
}

// ACoS decides how to react to the advertising cost of sale.
func (t *Trees) ACoS(in ACoSInput) (Result, error) {
	var v ppc.Validator
	v.NonNegative("acos", in.ACoS)
	v.NonNegative("target_acos", in.TargetACoS)
	v.NonNegative("clicks", in.Clicks)
	v.NonNegative("cvr", in.CVR)
	if err := v.Err(); err != nil {
		return Result{}, err
	}

	cfg := t.cfg.ACoS
	evidence := map[string]float64{
		"acos":        in.ACoS,
		"target_acos": in.TargetACoS,
		"clicks":      in.Clicks,
		"cvr":         in.CVR,
	}

	var r Result
	switch {
	case in.Clicks < cfg.MinClicks:
		r = wait(TreeACoS, fmt.Sprintf("%g clicks is below the %g click threshold; wait for more data", in.Clicks, cfg.MinClicks), in.Clicks, cfg.MinClicks, "clicks")
	case in.ACoS <= in.TargetACoS:
		r = Result{
			Branch:     BranchOnTarget,
			Action:     ActionHold,
			Reason:     fmt.Sprintf("ACoS %.1f%% is at or below target %.1f%%", in.ACoS, in.TargetACoS),
			Confidence: ConfidenceHigh,
		}
	case in.CVR >= cfg.HealthyCVR:
		change := math.Min((in.ACoS-in.TargetACoS)/in.ACoS, cfg.MaxBidReduction)
		r = Result{
			Branch:     BranchBidTooHigh,
			Action:     ActionReduceBid,
			Reason:     "bid too high for converting traffic",
			Confidence: ConfidenceHigh,
			BidChange:  -ppc.Round(change, 4),
		}
	default:
		r = Result{
			Branch:     BranchTrafficMismatch,
			Action:     ActionNegativeKeywords,
			Reason:     "traffic mismatch, not a bid problem",
			Confidence: ConfidenceHigh,
		}
	}
	r.Tree = TreeACoS
	r.Evidence = evidence
	return r, nil
}

// CTRInput feeds the CTR tree. CTR is a percentage. TargetCTR overrides the
// configured target when set.
type CTRInput struct {
	CTR              float64  `json:"ctr"`
	Impressions      float64  `json:"impressions"`
	PriceCompetitive bool     `json:"price_competitive"`
	TargetCTR        *float64 `json:"target_ctr,omitempty"`
}

// CTR decides how to react to the click-through rate.
func (t *Trees) CTR(in CTRInput) (Result, error) {
	var v ppc.Validator
	v.Range("ctr", in.CTR, 0, 100)
	v.NonNegative("impressions", in.Impressions)
	if in.TargetCTR != nil {
		v.Range("target_ctr", *in.TargetCTR, 0, 100)
	}
	if err := v.Err(); err != nil {
		return Result{}, err
	}

	cfg := t.cfg.CTR
	target := cfg.TargetCTR
	if in.TargetCTR != nil {
		target = *in.TargetCTR
	}
	competitive := 0.0
	if in.PriceCompetitive {
		competitive = 1
	}

	var r Result
	switch {
	case in.Impressions < cfg.MinImpressions:
		r = wait(TreeCTR, fmt.Sprintf("%g impressions is below the %g impression threshold; wait for more data", in.Impressions, cfg.MinImpressions), in.Impressions, cfg.MinImpressions, "impressions")
	case in.CTR >= target:
		r = Result{
			Branch:     BranchOnTarget,
			Action:     ActionHold,
			Reason:     fmt.Sprintf("CTR %.2f%% meets target %.2f%%", in.CTR, target),
			Confidence: ConfidenceHigh,
		}
	case in.PriceCompetitive:
		r = Result{
			Branch:     BranchWeakCreative,
			Action:     ActionOptimizeListing,
			Reason:     "price is competitive, so the main image and title are not earning the click",
			Confidence: ConfidenceMedium,
		}
	default:
		r = Result{
			Branch:     BranchUncompetitive,
			Action:     ActionReviewPricing,
			Reason:     "shoppers see the ad but the price is not competitive",
			Confidence: ConfidenceMedium,
		}
	}
	r.Tree = TreeCTR
	r.Evidence = map[string]float64{
		"ctr":               in.CTR,
		"target_ctr":        target,
		"impressions":       in.Impressions,
		"price_competitive": competitive,
	}
	return r, nil
}

// BSRInput feeds the BSR-drop tree. RankDropPct is the percentage by which
// the rank number worsened over the observation window.
type BSRInput struct {
	RankDropPct     float64             `json:"rank_drop_pct"`
	ObservationDays float64             `json:"observation_days"`
	Inventory       analyzer.StockLevel `json:"inventory_status"`
}

// BSR decides how to react to a best seller rank drop.
func (t *Trees) BSR(in BSRInput) (Result, error) {
	var v ppc.Validator
	v.Finite("rank_drop_pct", in.RankDropPct)
	v.NonNegative("observation_days", in.ObservationDays)
	switch in.Inventory {
	case analyzer.StockCritical, analyzer.StockLow, analyzer.StockAdequate, analyzer.StockHealthy:
	default:
		v.Check(false, "inventory_status", fmt.Sprintf("unknown stock level %q", in.Inventory))
	}
	if err := v.Err(); err != nil {
		return Result{}, err
	}

	cfg := t.cfg.BSR
	var r Result
	switch {
	case in.ObservationDays < cfg.MinObservationDays:
		r = wait(TreeBSR, fmt.Sprintf("%g days of rank history is below the %g day threshold; wait for a trend", in.ObservationDays, cfg.MinObservationDays), in.ObservationDays, cfg.MinObservationDays, "days")
	case in.RankDropPct <= cfg.MaxRankDropPct:
		r = Result{
			Branch:     BranchOnTarget,
			Action:     ActionHold,
			Reason:     fmt.Sprintf("rank moved %.1f%%, within the %g%% tolerance", in.RankDropPct, cfg.MaxRankDropPct),
			Confidence: ConfidenceHigh,
		}
	case in.Inventory.Constrained():
		r = Result{
			Branch:     BranchStockConstrained,
			Action:     ActionRestock,
			Reason:     fmt.Sprintf("rank dropped %.1f%% with %s inventory; advertising cannot recover rank without stock", in.RankDropPct, in.Inventory),
			Confidence: ConfidenceHigh,
		}
	default:
		r = Result{
			Branch:     BranchLostVisibility,
			Action:     ActionIncreaseVisibility,
			Reason:     fmt.Sprintf("rank dropped %.1f%% with %s inventory; raise bids on ranking keywords to recover velocity", in.RankDropPct, in.Inventory),
			Confidence: ConfidenceMedium,
		}
	}
	r.Tree = TreeBSR
	r.Evidence = map[string]float64{
		"rank_drop_pct":    in.RankDropPct,
		"observation_days": in.ObservationDays,
	}
	return r, nil
}

// ComputeRankDrop returns how much worse current is than previous, in
// percent. A larger rank number is worse, so a positive result is a drop.
func ComputeRankDrop(previous, current float64) (float64, error) {
	var v ppc.Validator
	v.NonNegative("previous_rank", previous)
	v.NonNegative("current_rank", current)
	if err := v.Err(); err != nil {
		return 0, err
	}
	if previous == 0 {
		return 0, ppc.InsufficientData("rank_drop_pct", "previous_rank is zero")
	}
	return (current - previous) / previous * 100, nil
}
