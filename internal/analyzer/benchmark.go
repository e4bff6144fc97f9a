package analyzer

import (
	"math"
	"sort"

	"github.com/blackwell-systems/ppcwatch/internal/ppc"
)

// Tier is an ordered performance tier.
type Tier string

const (
	TierPoor      Tier = "poor"
	TierAverage   Tier = "average"
	TierGood      Tier = "good"
	TierExcellent Tier = "excellent"
)

// Rank returns 0 for Poor through 3 for Excellent, or -1 for an unknown tier.
func (t Tier) Rank() int {
	switch t {
	case TierPoor:
		return 0
	case TierAverage:
		return 1
	case TierGood:
		return 2
	case TierExcellent:
		return 3
	}
	return -1
}

// maxTierRank is the rank of TierExcellent.
const maxTierRank = 3

// Direction states whether larger metric values are better.
type Direction string

const (
	HigherIsBetter Direction = "higher_is_better"
	LowerIsBetter  Direction = "lower_is_better"
)

// Band assigns Tier to every value from Lower (inclusive) up to the next
// band's Lower (exclusive). The last band is open-ended.
type Band struct {
	Lower float64 `mapstructure:"lower" json:"lower" yaml:"lower"`
	Tier  Tier    `mapstructure:"tier" json:"tier" yaml:"tier"`
}

// Table is a per-metric threshold table. Because each band only declares a
// lower bound, a table is contiguous by construction: any sub-range not
// named explicitly inherits the tier of the preceding boundary.
type Table struct {
	Direction Direction `mapstructure:"direction" json:"direction" yaml:"direction"`
	Bands     []Band    `mapstructure:"bands" json:"bands" yaml:"bands"`
}

// NamedBand labels every value from Lower up to the next band's Lower.
type NamedBand struct {
	Lower float64 `mapstructure:"lower" json:"lower" yaml:"lower"`
	Name  string  `mapstructure:"name" json:"name" yaml:"name"`
}

// BenchmarkConfig holds the static benchmark tables and composite weights.
type BenchmarkConfig struct {
	Tables  map[string]Table   `mapstructure:"tables" json:"tables"`
	Weights map[string]float64 `mapstructure:"weights" json:"weights"`

	// TACoSStrategies classifies TACoS into an advertising strategy.
	TACoSStrategies []NamedBand `mapstructure:"tacos_strategies" json:"tacos_strategies"`
	// HealthyTACoS is the inclusive [min, max] healthy TACoS range.
	HealthyTACoS [2]float64 `mapstructure:"healthy_tacos" json:"healthy_tacos"`
	// OrganicRatioHealth classifies the organic:PPC sales ratio.
	OrganicRatioHealth []NamedBand `mapstructure:"organic_ratio_health" json:"organic_ratio_health"`
}

// weightTolerance is how far the composite weights may drift from 1.0.
const weightTolerance = 1e-6

// DefaultBenchmarkConfig returns the stock benchmark tables. A published
// "very good" tier folds into good, and gaps between published bands take
// the preceding tier.
func DefaultBenchmarkConfig() BenchmarkConfig {
	return BenchmarkConfig{
		Tables: map[string]Table{
			MetricACoS: {Direction: LowerIsBetter, Bands: []Band{
				{0, TierExcellent}, {15, TierGood}, {20, TierAverage}, {35, TierPoor},
			}},
			MetricCTR: {Direction: HigherIsBetter, Bands: []Band{
				{0, TierPoor}, {0.3, TierAverage}, {0.5, TierGood}, {1.0, TierExcellent},
			}},
			MetricCTROrganic: {Direction: HigherIsBetter, Bands: []Band{
				{0, TierPoor}, {1.5, TierAverage}, {2.5, TierGood}, {6.0, TierExcellent},
			}},
			MetricCVR: {Direction: HigherIsBetter, Bands: []Band{
				{0, TierPoor}, {5, TierAverage}, {10, TierGood}, {20, TierExcellent},
			}},
		},
		Weights: map[string]float64{
			MetricACoS: 0.40,
			MetricCTR:  0.25,
			MetricCVR:  0.35,
		},
		TACoSStrategies: []NamedBand{
			{0, "insufficient"}, {5, "conservative"}, {8, "standard"}, {12, "aggressive"}, {20, "ultra_aggressive"},
		},
		HealthyTACoS: [2]float64{8, 12},
		OrganicRatioHealth: []NamedBand{
			{0, "very_aggressive"}, {0.5, "aggressive"}, {1, "normal"}, {2, "healthy"}, {3, "excellent"}, {10, "insufficient_ppc"},
		},
	}
}

// Validate reports overlapping, out-of-order, or non-monotonic bands and
// weights that do not sum to 1.0.
func (c BenchmarkConfig) Validate() error {
	chk := ppc.NewConfigChecker("benchmarks")

	if len(c.Tables) == 0 {
		chk.Addf("tables must define at least one metric")
	}
	for _, name := range sortedKeys(c.Tables) {
		validateTable(chk, name, c.Tables[name])
	}

	var sum float64
	for _, name := range sortedKeys(c.Weights) {
		w := c.Weights[name]
		if _, ok := c.Tables[name]; !ok {
			chk.Addf("weights.%s has no benchmark table", name)
		}
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			chk.Addf("weights.%s must be a non-negative number (got %g)", name, w)
			continue
		}
		sum += w
	}
	if len(c.Weights) == 0 {
		chk.Addf("weights must name at least one metric")
	} else if math.Abs(sum-1.0) > weightTolerance {
		chk.Addf("weights must sum to 1.0 (got %g)", sum)
	}

	validateNamedBands(chk, "tacos_strategies", c.TACoSStrategies)
	validateNamedBands(chk, "organic_ratio_health", c.OrganicRatioHealth)
	if c.HealthyTACoS[0] > c.HealthyTACoS[1] {
		chk.Addf("healthy_tacos min %g exceeds max %g", c.HealthyTACoS[0], c.HealthyTACoS[1])
	}

	return chk.Err()
}

func validateTable(chk *ppc.ConfigChecker, name string, t Table) {
	if t.Direction != HigherIsBetter && t.Direction != LowerIsBetter {
		chk.Addf("tables.%s.direction %q must be %q or %q", name, t.Direction, HigherIsBetter, LowerIsBetter)
	}
	if len(t.Bands) == 0 {
		chk.Addf("tables.%s has no bands", name)
		return
	}
	if t.Bands[0].Lower != 0 {
		chk.Addf("tables.%s first band must start at 0 (got %g)", name, t.Bands[0].Lower)
	}
	for i, b := range t.Bands {
		if b.Tier.Rank() < 0 {
			chk.Addf("tables.%s.bands[%d] has unknown tier %q", name, i, b.Tier)
		}
		if i == 0 {
			continue
		}
		prev := t.Bands[i-1]
		if b.Lower <= prev.Lower {
			chk.Addf("tables.%s.bands[%d] lower bound %g overlaps or precedes %g", name, i, b.Lower, prev.Lower)
		}
		if prev.Tier.Rank() < 0 || b.Tier.Rank() < 0 {
			continue
		}
		switch t.Direction {
		case HigherIsBetter:
			if b.Tier.Rank() < prev.Tier.Rank() {
				chk.Addf("tables.%s.bands[%d] tier %q is worse than preceding %q for a higher-is-better metric", name, i, b.Tier, prev.Tier)
			}
		case LowerIsBetter:
			if b.Tier.Rank() > prev.Tier.Rank() {
				chk.Addf("tables.%s.bands[%d] tier %q is better than preceding %q for a lower-is-better metric", name, i, b.Tier, prev.Tier)
			}
		}
	}
}

func validateNamedBands(chk *ppc.ConfigChecker, name string, bands []NamedBand) {
	if len(bands) == 0 {
		chk.Addf("%s has no bands", name)
		return
	}
	if bands[0].Lower != 0 {
		chk.Addf("%s first band must start at 0 (got %g)", name, bands[0].Lower)
	}
	for i := 1; i < len(bands); i++ {
		if bands[i].Lower <= bands[i-1].Lower {
			chk.Addf("%s[%d] lower bound %g overlaps or precedes %g", name, i, bands[i].Lower, bands[i-1].Lower)
		}
	}
}

// BenchmarkEvaluator classifies metric values into performance tiers.
type BenchmarkEvaluator struct {
	cfg BenchmarkConfig
}

// NewBenchmarkEvaluator validates cfg and returns an evaluator that owns a
// private copy of it.
func NewBenchmarkEvaluator(cfg BenchmarkConfig) (*BenchmarkEvaluator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &BenchmarkEvaluator{cfg: cloneBenchmarkConfig(cfg)}, nil
}

// Evaluate returns the tier of value for metric.
func (e *BenchmarkEvaluator) Evaluate(metric string, value float64) (Tier, error) {
	var v ppc.Validator
	e.validateMetric(&v, metric, value)
	if err := v.Err(); err != nil {
		return "", err
	}
	return lookupTier(e.cfg.Tables[metric], value), nil
}

func (e *BenchmarkEvaluator) validateMetric(v *ppc.Validator, metric string, value float64) {
	_, ok := e.cfg.Tables[metric]
	v.Check(ok, metric, "no benchmark table for this metric")
	v.NonNegative(metric, value)
}

// lookupTier returns the tier of the last band whose lower bound is <= value.
func lookupTier(t Table, value float64) Tier {
	tier := t.Bands[0].Tier
	for _, b := range t.Bands {
		if value < b.Lower {
			break
		}
		tier = b.Tier
	}
	return tier
}

// Evaluation is the result of evaluating several metrics at once.
type Evaluation struct {
	Tiers map[string]Tier `json:"tiers"`
	// Composite is the weighted average tier rank (0 = Poor, 3 = Excellent)
	// over the weighted metrics that were supplied.
	Composite ppc.Derived `json:"composite"`
	// Score is Composite rescaled to 0-100.
	Score ppc.Derived `json:"score"`
}

// EvaluateAll classifies every metric and computes the composite score.
// Weights are renormalised over the weighted metrics present in metrics; the
// composite is undefined when none of them is present.
func (e *BenchmarkEvaluator) EvaluateAll(metrics map[string]float64) (Evaluation, error) {
	var v ppc.Validator
	names := sortedKeys(metrics)
	for _, name := range names {
		e.validateMetric(&v, name, metrics[name])
	}
	if err := v.Err(); err != nil {
		return Evaluation{}, err
	}

	ev := Evaluation{Tiers: make(map[string]Tier, len(metrics))}
	var weighted, weightSum float64
	for _, name := range names {
		tier := lookupTier(e.cfg.Tables[name], metrics[name])
		ev.Tiers[name] = tier
		if w, ok := e.cfg.Weights[name]; ok {
			weighted += w * float64(tier.Rank())
			weightSum += w
		}
	}

	if weightSum == 0 {
		ev.Composite = ppc.Undefined("composite", "no weighted metric supplied")
		ev.Score = ev.Composite
		return ev, nil
	}
	composite := weighted / weightSum
	ev.Composite = ppc.Defined(composite)
	ev.Score = ppc.Defined(composite / maxTierRank * 100)
	return ev, nil
}

// EvaluateMetricSet evaluates every defined metric of m that has a table.
func (e *BenchmarkEvaluator) EvaluateMetricSet(m MetricSet) (Evaluation, error) {
	metrics := make(map[string]float64)
	for name, value := range m.Values() {
		if _, ok := e.cfg.Tables[name]; ok {
			metrics[name] = value
		}
	}
	return e.EvaluateAll(metrics)
}

// EvaluateAll validates cfg and evaluates metrics in one step. It fails with
// a configuration error when the weights do not sum to 1.0.
func EvaluateAll(cfg BenchmarkConfig, metrics map[string]float64) (Evaluation, error) {
	e, err := NewBenchmarkEvaluator(cfg)
	if err != nil {
		return Evaluation{}, err
	}
	return e.EvaluateAll(metrics)
}

// TACoSAssessment classifies advertising dependency from TACoS.
type TACoSAssessment struct {
	TACoS    float64 `json:"tacos"`
	Strategy string  `json:"strategy"`
	Healthy  bool    `json:"healthy"`
}

// AssessTACoS classifies a TACoS percentage into a strategy band.
func (e *BenchmarkEvaluator) AssessTACoS(tacos float64) (TACoSAssessment, error) {
	var v ppc.Validator
	v.NonNegative(MetricTACoS, tacos)
	if err := v.Err(); err != nil {
		return TACoSAssessment{}, err
	}
	return TACoSAssessment{
		TACoS:    tacos,
		Strategy: lookupName(e.cfg.TACoSStrategies, tacos),
		Healthy:  tacos >= e.cfg.HealthyTACoS[0] && tacos <= e.cfg.HealthyTACoS[1],
	}, nil
}

// OrganicRatioAssessment classifies the organic:PPC sales balance.
type OrganicRatioAssessment struct {
	Ratio  ppc.Derived `json:"ratio"`
	Health string      `json:"health"`
}

// AssessOrganicRatio classifies organicSales/ppcSales. The ratio is undefined
// when ppcSales is zero.
func (e *BenchmarkEvaluator) AssessOrganicRatio(organicSales, ppcSales float64) (OrganicRatioAssessment, error) {
	var v ppc.Validator
	v.NonNegative("organic_sales", organicSales)
	v.NonNegative("ppc_sales", ppcSales)
	if err := v.Err(); err != nil {
		return OrganicRatioAssessment{}, err
	}
	if ppcSales == 0 {
		return OrganicRatioAssessment{
			Ratio:  ppc.Undefined("organic_ppc_ratio", "ppc_sales is zero"),
			Health: "undefined",
		}, nil
	}
	r := organicSales / ppcSales
	return OrganicRatioAssessment{
		Ratio:  ppc.Defined(r),
		Health: lookupName(e.cfg.OrganicRatioHealth, r),
	}, nil
}

func lookupName(bands []NamedBand, value float64) string {
	name := bands[0].Name
	for _, b := range bands {
		if value < b.Lower {
			break
		}
		name = b.Name
	}
	return name
}

// Metrics returns the names of all metrics with a benchmark table.
func (e *BenchmarkEvaluator) Metrics() []string {
	return sortedKeys(e.cfg.Tables)
}

func cloneBenchmarkConfig(c BenchmarkConfig) BenchmarkConfig {
	out := c
	out.Tables = make(map[string]Table, len(c.Tables))
	for k, t := range c.Tables {
		t.Bands = append([]Band(nil), t.Bands...)
		out.Tables[k] = t
	}
	out.Weights = make(map[string]float64, len(c.Weights))
	for k, w := range c.Weights {
		out.Weights[k] = w
	}
	out.TACoSStrategies = append([]NamedBand(nil), c.TACoSStrategies...)
	out.OrganicRatioHealth = append([]NamedBand(nil), c.OrganicRatioHealth...)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders a tier for display.
func (t Tier) String() string {
	if t == "" {
		return "n/a"
	}
	return string(t)
}
