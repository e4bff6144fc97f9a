// Package scoring grades a product opportunity before any advertising is
// spent on it. Weighted analyzers score price, brand dominance, keyword
// demand, title density and data consistency; the weighted sum and a set of
// kill switches produce a RED, YELLOW or GREEN decision.
package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/blackwell-systems/ppcwatch/internal/ppc"
)

// Status is the verdict of one check or of the whole product.
type Status string

const (
	StatusRed    Status = "RED"
	StatusYellow Status = "YELLOW"
	StatusGreen  Status = "GREEN"
)

// Marketplace is an Amazon storefront.
type Marketplace string

const (
	MarketplaceUS Marketplace = "US"
	MarketplaceUK Marketplace = "UK"
	MarketplaceDE Marketplace = "DE"
	MarketplaceFR Marketplace = "FR"
	MarketplaceIT Marketplace = "IT"
	MarketplaceES Marketplace = "ES"
	MarketplaceCA Marketplace = "CA"
	MarketplaceJP Marketplace = "JP"
)

var marketplaces = map[Marketplace]bool{
	MarketplaceUS: true, MarketplaceUK: true, MarketplaceDE: true, MarketplaceFR: true,
	MarketplaceIT: true, MarketplaceES: true, MarketplaceCA: true, MarketplaceJP: true,
}

// dollarMarket reports whether the USD price barrier applies.
func (m Marketplace) dollarMarket() bool {
	return m == MarketplaceUS || m == MarketplaceCA
}

// Rule names.
const (
	RulePriceBarrier   = "price_barrier"
	RuleBrandDominance = "brand_dominance"
	RuleKeywordVolume  = "keyword_volume"
	RuleTitleDensity   = "title_density"
	RuleTriangulation  = "triangulation"
)

// Product is the market research collected for one product candidate.
// Estimates are keyed by the source that produced them.
type Product struct {
	ASIN        string      `json:"asin" yaml:"asin"`
	Title       string      `json:"title,omitempty" yaml:"title,omitempty"`
	Price       float64     `json:"price" yaml:"price"`
	Marketplace Marketplace `json:"marketplace,omitempty" yaml:"marketplace,omitempty"`
	Keyword     string      `json:"keyword,omitempty" yaml:"keyword,omitempty"`

	// SearchVolume is the monthly exact-match search volume of Keyword.
	SearchVolume float64 `json:"search_volume" yaml:"search_volume"`
	// ClickConcentration is the click share (0-1) of the top three results.
	ClickConcentration *float64 `json:"click_concentration,omitempty" yaml:"click_concentration,omitempty"`
	// TopBrands lists the brands of the top search results, best ranked first.
	TopBrands    []string `json:"top_brands,omitempty" yaml:"top_brands,omitempty"`
	TitleDensity *float64 `json:"title_density,omitempty" yaml:"title_density,omitempty"`

	MonthlyRevenue  *float64           `json:"monthly_revenue,omitempty" yaml:"monthly_revenue,omitempty"`
	MonthlyUnits    *float64           `json:"monthly_units,omitempty" yaml:"monthly_units,omitempty"`
	SalesEstimates  map[string]float64 `json:"sales_estimates,omitempty" yaml:"sales_estimates,omitempty"`
	VolumeEstimates map[string]float64 `json:"volume_estimates,omitempty" yaml:"volume_estimates,omitempty"`
}

func (p Product) validate() error {
	var v ppc.Validator
	v.Check(strings.TrimSpace(p.ASIN) != "", "asin", "must not be empty")
	v.Positive("price", p.Price)
	v.Check(p.Marketplace == "" || marketplaces[p.Marketplace], "marketplace", fmt.Sprintf("unknown marketplace %q", p.Marketplace))
	v.NonNegative("search_volume", p.SearchVolume)
	if p.ClickConcentration != nil {
		v.Fraction("click_concentration", *p.ClickConcentration)
	}
	v.OptionalNonNegative("title_density", p.TitleDensity)
	v.OptionalNonNegative("monthly_revenue", p.MonthlyRevenue)
	v.OptionalNonNegative("monthly_units", p.MonthlyUnits)
	for _, src := range sortedKeys(p.SalesEstimates) {
		v.NonNegative("sales_estimates."+src, p.SalesEstimates[src])
	}
	for _, src := range sortedKeys(p.VolumeEstimates) {
		v.NonNegative("volume_estimates."+src, p.VolumeEstimates[src])
	}
	return v.Err()
}

// Check is the outcome of one analyzer. Score is in [0, 100].
type Check struct {
	Rule      string             `json:"rule"`
	Status    Status             `json:"status"`
	Score     float64            `json:"score"`
	Reason    string             `json:"reason"`
	Threshold float64            `json:"threshold"`
	Actual    float64            `json:"actual"`
	Evidence  map[string]float64 `json:"evidence,omitempty"`
}

func (c Check) factor() string {
	return c.Rule + ": " + c.Reason
}

// Competition levels derived from title density and click concentration.
const (
	CompetitionUnknown = "unknown"
	CompetitionLow     = "low"
	CompetitionMedium  = "medium"
	CompetitionHigh    = "high"
)

// Result is the graded product.
type Result struct {
	ASIN        string      `json:"asin"`
	Keyword     string      `json:"keyword,omitempty"`
	Marketplace Marketplace `json:"marketplace"`
	Decision    Status      `json:"decision"`
	Score       float64     `json:"score"`
	// KillSwitch names the failed check that forced a RED decision
	// regardless of the score.
	KillSwitch string `json:"kill_switch,omitempty"`

	PriceBarrier   Check  `json:"price_barrier"`
	BrandDominance Check  `json:"brand_dominance"`
	KeywordVolume  Check  `json:"keyword_volume"`
	TitleDensity   *Check `json:"title_density,omitempty"`
	Triangulation  Check  `json:"triangulation"`
	Competition    string `json:"competition_level"`

	Risks          []string `json:"risk_factors"`
	Opportunities  []string `json:"opportunity_factors"`
	Recommendation string   `json:"recommendation"`
	NextSteps      []string `json:"next_steps"`

	EstimatedMonthlyRevenue *float64 `json:"estimated_monthly_revenue,omitempty"`
	EstimatedMonthlyUnits   *float64 `json:"estimated_monthly_units,omitempty"`
	EstimatedMarginPct      float64  `json:"estimated_margin_pct"`
}

// Checks returns the checks that ran, in scoring order.
func (r Result) Checks() []Check {
	checks := []Check{r.PriceBarrier, r.BrandDominance, r.KeywordVolume}
	if r.TitleDensity != nil {
		checks = append(checks, *r.TitleDensity)
	}
	return append(checks, r.Triangulation)
}

// Weights are the relative share of each check in the overall score. The
// score is normalized over the checks that ran, so a product without title
// density data is graded on the other four.
type Weights struct {
	PriceBarrier   float64 `mapstructure:"price_barrier" json:"price_barrier"`
	BrandDominance float64 `mapstructure:"brand_dominance" json:"brand_dominance"`
	KeywordVolume  float64 `mapstructure:"keyword_volume" json:"keyword_volume"`
	TitleDensity   float64 `mapstructure:"title_density" json:"title_density"`
	Triangulation  float64 `mapstructure:"triangulation" json:"triangulation"`
}

func (w Weights) sum() float64 {
	return w.PriceBarrier + w.BrandDominance + w.KeywordVolume + w.TitleDensity + w.Triangulation
}

// Config holds every scoring threshold.
type Config struct {
	PriceBarrierUSD float64 `mapstructure:"price_barrier_usd" json:"price_barrier_usd"`
	PriceBarrierEUR float64 `mapstructure:"price_barrier_eur" json:"price_barrier_eur"`

	// Brand shares are fractions of clicks or of the top ten results.
	ConcentratedShare float64 `mapstructure:"concentrated_share" json:"concentrated_share"`
	DominanceShare    float64 `mapstructure:"dominance_share" json:"dominance_share"`
	MonopolyShare     float64 `mapstructure:"monopoly_share" json:"monopoly_share"`

	MinKeywordVolume float64 `mapstructure:"min_keyword_volume" json:"min_keyword_volume"`

	// TitleDensityIdeal and TitleDensityHigh bound the medium band.
	TitleDensityIdeal float64 `mapstructure:"title_density_ideal" json:"title_density_ideal"`
	TitleDensityHigh  float64 `mapstructure:"title_density_high" json:"title_density_high"`

	// VarianceThreshold is the tolerated spread between sources, relative to
	// their mean.
	VarianceThreshold float64 `mapstructure:"variance_threshold" json:"variance_threshold"`

	GreenThreshold  float64 `mapstructure:"green_threshold" json:"green_threshold"`
	YellowThreshold float64 `mapstructure:"yellow_threshold" json:"yellow_threshold"`
	Weights         Weights `mapstructure:"weights" json:"weights"`
}

// DefaultConfig returns the stock scoring thresholds.
func DefaultConfig() Config {
	return Config{
		PriceBarrierUSD:   39,
		PriceBarrierEUR:   39,
		DominanceShare:    0.50,
		MonopolyShare:     0.70,
		ConcentratedShare: 0.40,
		MinKeywordVolume:  3000,
		TitleDensityIdeal: 5,
		TitleDensityHigh:  7,
		VarianceThreshold: 0.30,
		GreenThreshold:    70,
		YellowThreshold:   40,
		Weights: Weights{
			PriceBarrier:   0.25,
			BrandDominance: 0.25,
			KeywordVolume:  0.20,
			TitleDensity:   0.10,
			Triangulation:  0.10,
		},
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	chk := ppc.NewConfigChecker("scoring")
	if !(c.PriceBarrierUSD > 0) {
		chk.Addf("price_barrier_usd must be positive (got %g)", c.PriceBarrierUSD)
	}
	if !(c.PriceBarrierEUR > 0) {
		chk.Addf("price_barrier_eur must be positive (got %g)", c.PriceBarrierEUR)
	}
	if !(c.ConcentratedShare > 0 && c.ConcentratedShare <= c.DominanceShare && c.DominanceShare <= c.MonopolyShare && c.MonopolyShare <= 1) {
		chk.Addf("brand shares must satisfy 0 < concentrated_share <= dominance_share <= monopoly_share <= 1 (got %g, %g, %g)",
			c.ConcentratedShare, c.DominanceShare, c.MonopolyShare)
	}
	if !(c.MinKeywordVolume > 0) {
		chk.Addf("min_keyword_volume must be positive (got %g)", c.MinKeywordVolume)
	}
	if !(c.TitleDensityIdeal > 0 && c.TitleDensityHigh > c.TitleDensityIdeal) {
		chk.Addf("title_density_high %g must exceed title_density_ideal %g > 0", c.TitleDensityHigh, c.TitleDensityIdeal)
	}
	if !(c.VarianceThreshold > 0) {
		chk.Addf("variance_threshold must be positive (got %g)", c.VarianceThreshold)
	}
	if !(c.YellowThreshold > 0 && c.GreenThreshold > c.YellowThreshold && c.GreenThreshold <= 100) {
		chk.Addf("thresholds must satisfy 0 < yellow_threshold < green_threshold <= 100 (got %g, %g)", c.YellowThreshold, c.GreenThreshold)
	}
	w := c.Weights
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"price_barrier", w.PriceBarrier},
		{"brand_dominance", w.BrandDominance},
		{"keyword_volume", w.KeywordVolume},
		{"title_density", w.TitleDensity},
		{"triangulation", w.Triangulation},
	} {
		if !(f.v >= 0 && f.v <= 1) {
			chk.Addf("weights.%s must be in [0, 1] (got %g)", f.name, f.v)
		}
	}
	if !(w.sum() > 0) {
		chk.Addf("weights must not all be zero")
	}
	return chk.Err()
}

// Scorer grades products. It is safe for concurrent use.
type Scorer struct {
	cfg Config
}

// New returns a Scorer for cfg.
func New(cfg Config) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{cfg: cfg}, nil
}

// Score runs every analyzer over p and combines them into a decision. A
// product without a marketplace is graded for the US.
func (s *Scorer) Score(p Product) (Result, error) {
	if err := p.validate(); err != nil {
		return Result{}, err
	}
	if p.Marketplace == "" {
		p.Marketplace = MarketplaceUS
	}

	r := Result{
		ASIN:                    p.ASIN,
		Keyword:                 p.Keyword,
		Marketplace:             p.Marketplace,
		PriceBarrier:            s.priceBarrier(p),
		BrandDominance:          s.brandDominance(p),
		KeywordVolume:           s.keywordVolume(p),
		TitleDensity:            s.titleDensity(p),
		Triangulation:           s.triangulation(p),
		Competition:             s.competition(p),
		EstimatedMonthlyRevenue: p.MonthlyRevenue,
		EstimatedMonthlyUnits:   p.MonthlyUnits,
		EstimatedMarginPct:      estimateMargin(p.Price),
	}
	r.Score = s.weightedScore(r)
	r.Decision, r.KillSwitch = s.decide(r)

	r.Risks, r.Opportunities = []string{}, []string{}
	for _, c := range r.Checks() {
		switch {
		case c.Status != StatusGreen:
			r.Risks = append(r.Risks, c.factor())
		case c.Score >= 80:
			r.Opportunities = append(r.Opportunities, c.factor())
		}
	}
	r.Recommendation = recommendation(r)
	r.NextSteps = nextSteps(r)
	return r, nil
}

func (s *Scorer) weightedScore(r Result) float64 {
	w := s.cfg.Weights
	score := r.PriceBarrier.Score*w.PriceBarrier +
		r.BrandDominance.Score*w.BrandDominance +
		r.KeywordVolume.Score*w.KeywordVolume +
		r.Triangulation.Score*w.Triangulation
	total := w.sum()
	if r.TitleDensity != nil {
		score += r.TitleDensity.Score * w.TitleDensity
	} else {
		total -= w.TitleDensity
	}
	if total <= 0 {
		return 0
	}
	return ppc.Round(math.Min(100, math.Max(0, score/total)), 2)
}

// decide applies the kill switches before the score bands.
func (s *Scorer) decide(r Result) (Status, string) {
	for _, c := range []Check{r.PriceBarrier, r.BrandDominance, r.KeywordVolume} {
		if c.Status == StatusRed {
			return StatusRed, c.Rule
		}
	}
	switch {
	case r.Score >= s.cfg.GreenThreshold:
		return StatusGreen, ""
	case r.Score >= s.cfg.YellowThreshold:
		return StatusYellow, ""
	default:
		return StatusRed, ""
	}
}

// Rule of three: fees take about 35% of the price and goods about 33%.
const (
	feeShare   = 0.35
	goodsShare = 0.33
)

func estimateMargin(price float64) float64 {
	if price <= 0 {
		return 0
	}
	margin := (price - price*feeShare - price*goodsShare) / price * 100
	return ppc.Round(math.Min(100, math.Max(0, margin)), 2)
}

func recommendation(r Result) string {
	switch r.Decision {
	case StatusRed:
		return fmt.Sprintf("REJECT - overall score %.1f/100. The product fails critical criteria and should not be pursued; %d risk factor(s) identified. Look for an alternative product.",
			r.Score, len(r.Risks))
	case StatusYellow:
		return fmt.Sprintf("CAUTION - overall score %.1f/100. The product shows potential but has %d concern(s). Validate manually and plan a differentiation strategy before proceeding.",
			r.Score, len(r.Risks))
	default:
		return fmt.Sprintf("APPROVE - overall score %.1f/100. The product meets the criteria with %d strong factor(s). Proceed with sourcing and product development.",
			r.Score, len(r.Opportunities))
	}
}

func nextSteps(r Result) []string {
	switch r.Decision {
	case StatusRed:
		return []string{
			"Abandon this product opportunity",
			"Search for alternative products in the niche",
			"Review the failed criteria before the next candidate",
		}
	case StatusYellow:
		steps := []string{
			"Review competitor listings manually",
			"Analyze negative reviews for differentiation opportunities",
			"Calculate detailed financial projections",
			"Develop a unique value proposition",
		}
		if r.BrandDominance.Status != StatusGreen {
			steps = append(steps, "Verify Amazon private label presence manually")
		}
		return steps
	default:
		return []string{
			"Source suppliers",
			"Request product samples",
			"Calculate landed costs and margins",
			"Design packaging and branding",
			"Plan the product launch",
			"Prepare the PPC launch campaign",
		}
	}
}
