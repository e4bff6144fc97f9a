// Package decision classifies a metric and its supporting signals into one
// discrete action. Each tree checks data sufficiency first, then walks its
// branches in a fixed order; the first matching branch wins.
package decision

import (
	"github.com/blackwell-systems/ppcwatch/internal/ppc"
)

// Tree names.
const (
	TreeACoS = "acos"
	TreeCTR  = "ctr"
	TreeBSR  = "bsr"
)

// Action is a terminal decision.
type Action string

const (
	ActionWait               Action = "wait — insufficient data"
	ActionHold               Action = "hold"
	ActionReduceBid          Action = "reduce bid"
	ActionNegativeKeywords   Action = "add negative keywords / pause term"
	ActionOptimizeListing    Action = "optimize listing creative"
	ActionReviewPricing      Action = "review pricing"
	ActionRestock            Action = "restock before advertising"
	ActionIncreaseVisibility Action = "increase visibility"
)

// Branch identifies the terminal branch reached, for auditing.
type Branch string

const (
	BranchInsufficientData Branch = "insufficient_data"
	BranchOnTarget         Branch = "on_target"
	BranchBidTooHigh       Branch = "bid_too_high"
	BranchTrafficMismatch  Branch = "traffic_mismatch"
	BranchWeakCreative     Branch = "weak_creative"
	BranchUncompetitive    Branch = "uncompetitive_price"
	BranchStockConstrained Branch = "stock_constrained"
	BranchLostVisibility   Branch = "lost_visibility"
)

// Confidence levels reported by the trees.
const (
	ConfidenceLow    = 0.3
	ConfidenceMedium = 0.6
	ConfidenceHigh   = 0.9
)

// Result is the uniform output of every tree.
type Result struct {
	Tree       string  `json:"tree"`
	Branch     Branch  `json:"branch"`
	Action     Action  `json:"action"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
	// BidChange is the recommended fractional bid change, negative for a
	// reduction. Zero when the action is not a bid change.
	BidChange  float64            `json:"bid_change,omitempty"`
	Evidence   map[string]float64 `json:"evidence,omitempty"`
	Advisories []ppc.Advisory     `json:"advisories,omitempty"`
}

// ACoSConfig configures the ACoS tree.
type ACoSConfig struct {
	MinClicks float64 `mapstructure:"min_clicks" json:"min_clicks"`
	// HealthyCVR is the conversion rate (percent) at which traffic is
	// considered to convert.
	HealthyCVR      float64 `mapstructure:"healthy_cvr" json:"healthy_cvr"`
	MaxBidReduction float64 `mapstructure:"max_bid_reduction" json:"max_bid_reduction"`
}

// CTRConfig configures the CTR tree.
type CTRConfig struct {
	MinImpressions float64 `mapstructure:"min_impressions" json:"min_impressions"`
	// TargetCTR is used when a request does not carry its own target.
	TargetCTR float64 `mapstructure:"target_ctr" json:"target_ctr"`
}

// BSRConfig configures the BSR-drop tree.
type BSRConfig struct {
	MinObservationDays float64 `mapstructure:"min_observation_days" json:"min_observation_days"`
	// MaxRankDropPct is the tolerated rank deterioration in percent.
	MaxRankDropPct float64 `mapstructure:"max_rank_drop_pct" json:"max_rank_drop_pct"`
}

// Config groups the three tree configurations.
type Config struct {
	ACoS ACoSConfig `mapstructure:"acos" json:"acos"`
	CTR  CTRConfig  `mapstructure:"ctr" json:"ctr"`
	BSR  BSRConfig  `mapstructure:"bsr" json:"bsr"`
}

// DefaultConfig returns the stock tree thresholds.
func DefaultConfig() Config {
	return Config{
		ACoS: ACoSConfig{MinClicks: ppc.DefaultMinClicks, HealthyCVR: 10, MaxBidReduction: 0.40},
		CTR:  CTRConfig{MinImpressions: 1000, TargetCTR: 0.5},
		BSR:  BSRConfig{MinObservationDays: 7, MaxRankDropPct: 20},
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	chk := ppc.NewConfigChecker("decision")
	if !(c.ACoS.MinClicks > 0) {
		chk.Addf("acos.min_clicks must be positive (got %g)", c.ACoS.MinClicks)
	}
	if !(c.ACoS.HealthyCVR > 0 && c.ACoS.HealthyCVR <= 100) {
		chk.Addf("acos.healthy_cvr must be in (0, 100] (got %g)", c.ACoS.HealthyCVR)
	}
	if !(c.ACoS.MaxBidReduction > 0 && c.ACoS.MaxBidReduction <= 1) {
		chk.Addf("acos.max_bid_reduction must be in (0, 1] (got %g)", c.ACoS.MaxBidReduction)
	}
	if !(c.CTR.MinImpressions > 0) {
		chk.Addf("ctr.min_impressions must be positive (got %g)", c.CTR.MinImpressions)
	}
	if !(c.CTR.TargetCTR > 0 && c.CTR.TargetCTR <= 100) {
		chk.Addf("ctr.target_ctr must be in (0, 100] (got %g)", c.CTR.TargetCTR)
	}
	if !(c.BSR.MinObservationDays > 0) {
		chk.Addf("bsr.min_observation_days must be positive (got %g)", c.BSR.MinObservationDays)
	}
	if !(c.BSR.MaxRankDropPct >= 0 && c.BSR.MaxRankDropPct < 100) {
		chk.Addf("bsr.max_rank_drop_pct must be in [0, 100) (got %g)", c.BSR.MaxRankDropPct)
	}
	return chk.Err()
}

// Trees evaluates the ACoS, CTR and BSR decision trees.
type Trees struct {
	cfg Config
}

// New returns Trees for cfg.
func New(cfg Config) (*Trees, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Trees{cfg: cfg}, nil
}

func wait(tree, reason string, have, need float64, unit string) Result {
	return Result{
		Tree:       tree,
		Branch:     BranchInsufficientData,
		Action:     ActionWait,
		Reason:     reason,
		Confidence: ConfidenceLow,
		Advisories: []ppc.Advisory{ppc.SampleSizeAdvisory(have, need, unit)},
	}
}
