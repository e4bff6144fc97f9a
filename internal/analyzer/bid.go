package analyzer

import (
	"fmt"
	"math"

	"github.com/blackwell-systems/ppcwatch/internal/ppc"
)

// Bid reasons.
const (
	ReasonIncrease = "increase — below target ACoS"
	ReasonDecrease = "decrease — above target ACoS"
	ReasonHold     = "hold — within tolerance band"
	ReasonConflict = "hold — RPC bid conflicts with ACoS signal"
)

// BidConfig configures the BidOptimizer. ACoS values handled by the
// optimizer are fractions (0.25 for 25%).
type BidConfig struct {
	// MaxChangeLimit bounds |change_pct| of a recommendation.
	MaxChangeLimit float64 `mapstructure:"max_change_limit" json:"max_change_limit"`
	// ToleranceBand is the +/- band around target ACoS treated as on-target.
	ToleranceBand float64 `mapstructure:"tolerance_band" json:"tolerance_band"`
	// ConfidenceFloor is the confidence reported at zero clicks.
	ConfidenceFloor float64 `mapstructure:"confidence_floor" json:"confidence_floor"`
	MinClicks       float64 `mapstructure:"min_clicks" json:"min_clicks"`
	// PacingTarget is the share of daily budget (percent) that should be
	// spent by the end of the day.
	PacingTarget float64 `mapstructure:"pacing_target" json:"pacing_target"`
}

// DefaultBidConfig returns the stock bid configuration.
func DefaultBidConfig() BidConfig {
	return BidConfig{
		MaxChangeLimit:  0.50,
		ToleranceBand:   0.02,
		ConfidenceFloor: 0.20,
		MinClicks:       ppc.DefaultMinClicks,
		PacingTarget:    95,
	}
}

// Validate checks the configuration.
func (c BidConfig) Validate() error {
	chk := ppc.NewConfigChecker("bid")
	if !(c.MaxChangeLimit > 0 && c.MaxChangeLimit <= 1) {
		chk.Addf("max_change_limit must be in (0, 1] (got %g)", c.MaxChangeLimit)
	}
	if !(c.ToleranceBand >= 0 && c.ToleranceBand < 1) {
		chk.Addf("tolerance_band must be in [0, 1) (got %g)", c.ToleranceBand)
	}
	if !(c.ConfidenceFloor >= 0 && c.ConfidenceFloor <= 1) {
		chk.Addf("confidence_floor must be in [0, 1] (got %g)", c.ConfidenceFloor)
	}
	if !(c.MinClicks > 0) {
		chk.Addf("min_clicks must be positive (got %g)", c.MinClicks)
	}
	if !(c.PacingTarget > 0 && c.PacingTarget <= 100) {
		chk.Addf("pacing_target must be in (0, 100] (got %g)", c.PacingTarget)
	}
	return chk.Err()
}

// BidRecommendation is a bounded bid adjustment.
type BidRecommendation struct {
	CurrentBid     float64        `json:"current_bid"`
	OptimalBid     float64        `json:"optimal_bid"`
	RecommendedBid float64        `json:"recommended_bid"`
	ChangePct      float64        `json:"change_pct"`
	Clamped        bool           `json:"clamped"`
	RPC            float64        `json:"rpc"`
	Confidence     float64        `json:"confidence"`
	Reason         string         `json:"reason"`
	Advisories     []ppc.Advisory `json:"advisories,omitempty"`
}

// BidOptimizer computes bids from revenue per click.
type BidOptimizer struct {
	cfg BidConfig
}

// NewBidOptimizer returns an optimizer for cfg.
func NewBidOptimizer(cfg BidConfig) (*BidOptimizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &BidOptimizer{cfg: cfg}, nil
}

// CalculateRPC returns totalSales/totalClicks.
func (o *BidOptimizer) CalculateRPC(totalSales, totalClicks float64) (float64, error) {
	var v ppc.Validator
	v.NonNegative("total_sales", totalSales)
	v.NonNegative("total_clicks", totalClicks)
	if err := v.Err(); err != nil {
		return 0, err
	}
	return rpc(totalSales, totalClicks)
}

func rpc(totalSales, totalClicks float64) (float64, error) {
	if totalClicks == 0 {
		return 0, ppc.InsufficientData(MetricRPC, "total_clicks is zero")
	}
	return totalSales / totalClicks, nil
}

// CalculateOptimalBid returns RPC * targetACoS, rounded to cents.
func (o *BidOptimizer) CalculateOptimalBid(totalSales, totalClicks, targetACoS float64) (float64, error) {
	var v ppc.Validator
	v.NonNegative("total_sales", totalSales)
	v.NonNegative("total_clicks", totalClicks)
	v.Fraction("target_acos", targetACoS)
	if err := v.Err(); err != nil {
		return 0, err
	}
	r, err := rpc(totalSales, totalClicks)
	if err != nil {
		return 0, err
	}
	return ppc.Round(r*targetACoS, 2), nil
}

// RecommendBidAdjustment moves currentBid toward the RPC-optimal bid. The
// direction comes from comparing currentACoS with targetACoS: within the
// tolerance band the bid is held; when the RPC bid points the other way
// from the ACoS signal the bid is also held. The change is clamped to
// MaxChangeLimit.
func (o *BidOptimizer) RecommendBidAdjustment(currentBid, totalSales, totalClicks, targetACoS, currentACoS float64) (BidRecommendation, error) {
	var v ppc.Validator
	v.Positive("current_bid", currentBid)
	v.NonNegative("total_sales", totalSales)
	v.NonNegative("total_clicks", totalClicks)
	v.Fraction("target_acos", targetACoS)
	v.NonNegative("current_acos", currentACoS)
	if err := v.Err(); err != nil {
		return BidRecommendation{}, err
	}

	r, err := rpc(totalSales, totalClicks)
	if err != nil {
		return BidRecommendation{}, err
	}
	optimal := r * targetACoS

	rec := BidRecommendation{
		CurrentBid:     currentBid,
		OptimalBid:     ppc.Round(optimal, 2),
		RecommendedBid: currentBid,
		RPC:            ppc.Round(r, 2),
	}

	switch {
	case currentACoS > targetACoS+o.cfg.ToleranceBand:
		rec.Reason = ReasonDecrease
		if optimal >= currentBid {
			rec.Reason = ReasonConflict
		}
	case currentACoS < targetACoS-o.cfg.ToleranceBand:
		rec.Reason = ReasonIncrease
		if optimal <= currentBid {
			rec.Reason = ReasonConflict
		}
	default:
		rec.Reason = ReasonHold
	}

	if rec.Reason == ReasonIncrease || rec.Reason == ReasonDecrease {
		change := (optimal - currentBid) / currentBid
		if math.Abs(change) > o.cfg.MaxChangeLimit {
			change = math.Copysign(o.cfg.MaxChangeLimit, change)
			rec.Clamped = true
		}
		rec.RecommendedBid = math.Max(0, ppc.Round(currentBid*(1+change), 2))
		rec.ChangePct = ppc.Round((rec.RecommendedBid-currentBid)/currentBid, 4)
		// Cent rounding can push a clamped bid just past the limit.
		if math.Abs(rec.ChangePct) > o.cfg.MaxChangeLimit {
			rec.ChangePct = math.Copysign(o.cfg.MaxChangeLimit, rec.ChangePct)
		}
	}

	rec.Confidence = o.confidence(totalClicks)
	if totalClicks < o.cfg.MinClicks {
		rec.Reason += fmt.Sprintf("; insufficient data volume (%g of %g clicks) for full confidence", totalClicks, o.cfg.MinClicks)
		rec.Advisories = append(rec.Advisories, ppc.SampleSizeAdvisory(totalClicks, o.cfg.MinClicks, "clicks"))
	}
	return rec, nil
}

// confidence is 1.0 at or above MinClicks and decays linearly to
// ConfidenceFloor at zero clicks.
func (o *BidOptimizer) confidence(clicks float64) float64 {
	if clicks >= o.cfg.MinClicks {
		return 1.0
	}
	floor := o.cfg.ConfidenceFloor
	return floor + (1-floor)*clicks/o.cfg.MinClicks
}

// PacingAdjustment is a budget pacing recommendation for the rest of the day.
type PacingAdjustment struct {
	Hour          int     `json:"hour"`
	SpentPct      float64 `json:"spent_pct"`
	ExpectedPct   float64 `json:"expected_pct"`
	PaceRatio     float64 `json:"pace_ratio"`
	BidMultiplier float64 `json:"bid_multiplier"`
	Status        string  `json:"status"`
}

// PacingMultiplier compares spentPct (percent of daily budget) with linear
// pacing toward PacingTarget by the end of the day and returns a bid
// multiplier that brings spend back on pace.
func (o *BidOptimizer) PacingMultiplier(hour int, spentPct float64) (PacingAdjustment, error) {
	var v ppc.Validator
	v.Range("hour", float64(hour), 0, 23)
	v.NonNegative("spent_pct", spentPct)
	if err := v.Err(); err != nil {
		return PacingAdjustment{}, err
	}

	p := PacingAdjustment{
		Hour:          hour,
		SpentPct:      spentPct,
		ExpectedPct:   ppc.Round(float64(hour)/24*o.cfg.PacingTarget, 2),
		BidMultiplier: 1.0,
		Status:        "on_pace",
	}
	if hour == 0 {
		return p, nil
	}
	ratio := spentPct / (float64(hour) / 24 * o.cfg.PacingTarget)
	p.PaceRatio = ppc.Round(ratio, 3)

	switch {
	case ratio > 1.2:
		p.BidMultiplier, p.Status = 0.80, "overspending"
	case ratio > 1.1:
		p.BidMultiplier, p.Status = 0.85, "slightly_overspending"
	case ratio < 0.7:
		p.BidMultiplier, p.Status = 1.20, "underspending"
	case ratio < 0.8:
		p.BidMultiplier, p.Status = 1.15, "slightly_underspending"
	}
	return p, nil
}
