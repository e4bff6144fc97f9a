// Package analyzer turns raw advertising and inventory counters into
// performance metrics, benchmark tiers, bid recommendations, and stock
// situations. Every function is pure; components hold only read-only
// configuration and are safe for concurrent use.
package analyzer

import (
	"fmt"

	"github.com/blackwell-systems/ppcwatch/internal/ppc"
)

// Metric names used as keys throughout the engine.
const (
	MetricACoS       = "acos"
	MetricTACoS      = "tacos"
	MetricCTR        = "ctr"
	MetricCTROrganic = "ctr_organic"
	MetricCVR        = "cvr"
	MetricRPC        = "rpc"
	MetricROAS       = "roas"
	MetricCPC        = "cpc"
)

// Counters are the raw advertising counters for one evaluation. Impressions,
// Clicks and Orders are optional; a nil counter leaves the metrics that
// depend on it undefined.
type Counters struct {
	AdSpend     float64  `json:"ad_spend" yaml:"ad_spend"`
	AdSales     float64  `json:"ad_sales" yaml:"ad_sales"`
	TotalSales  float64  `json:"total_sales" yaml:"total_sales"`
	Impressions *float64 `json:"impressions,omitempty" yaml:"impressions,omitempty"`
	Clicks      *float64 `json:"clicks,omitempty" yaml:"clicks,omitempty"`
	Orders      *float64 `json:"orders,omitempty" yaml:"orders,omitempty"`
}

// Count returns a pointer to v, for populating optional counters.
func Count(v float64) *float64 {
	return &v
}

// MetricSet holds the raw counters and every metric derived from them.
// Percentages (ACoS, TACoS, CTR, CVR) are expressed as percentage points,
// e.g. 25.0 for 25%. RPC and CPC are currency amounts; ROAS is a ratio.
type MetricSet struct {
	AdSpend     float64  `json:"ad_spend"`
	AdSales     float64  `json:"ad_sales"`
	TotalSales  float64  `json:"total_sales"`
	Impressions *float64 `json:"impressions,omitempty"`
	Clicks      *float64 `json:"clicks,omitempty"`
	Orders      *float64 `json:"orders,omitempty"`

	ACoS  ppc.Derived `json:"acos"`
	TACoS ppc.Derived `json:"tacos"`
	CTR   ppc.Derived `json:"ctr"`
	CVR   ppc.Derived `json:"cvr"`
	RPC   ppc.Derived `json:"rpc"`
	ROAS  ppc.Derived `json:"roas"`
	CPC   ppc.Derived `json:"cpc"`

	Advisories []ppc.Advisory `json:"advisories,omitempty"`
}

// Fields returns the derived metrics keyed by name, in presentation order.
func (m MetricSet) Fields() []NamedMetric {
	return []NamedMetric{
		{MetricACoS, m.ACoS},
		{MetricTACoS, m.TACoS},
		{MetricCTR, m.CTR},
		{MetricCVR, m.CVR},
		{MetricRPC, m.RPC},
		{MetricROAS, m.ROAS},
		{MetricCPC, m.CPC},
	}
}

// NamedMetric pairs a metric name with its derived value.
type NamedMetric struct {
	Name  string
	Value ppc.Derived
}

// Values returns the defined metrics as a name to value map.
func (m MetricSet) Values() map[string]float64 {
	out := make(map[string]float64)
	for _, f := range m.Fields() {
		if f.Value.Ok() {
			out[f.Name] = f.Value.Value
		}
	}
	return out
}

// Undefined returns the InsufficientData error of every metric that could
// not be computed.
func (m MetricSet) Undefined() []error {
	var errs []error
	for _, f := range m.Fields() {
		if !f.Value.Ok() {
			errs = append(errs, f.Value.Err)
		}
	}
	return errs
}

// ClickCount returns the click counter, or 0 when it was not provided.
func (m MetricSet) ClickCount() float64 {
	if m.Clicks == nil {
		return 0
	}
	return *m.Clicks
}

// CalculatorConfig configures the MetricsCalculator.
type CalculatorConfig struct {
	// MinClicks is the data sufficiency threshold below which an
	// insufficient-sample advisory is attached.
	MinClicks float64 `mapstructure:"min_clicks" json:"min_clicks"`
}

// DefaultCalculatorConfig returns the stock calculator configuration.
func DefaultCalculatorConfig() CalculatorConfig {
	return CalculatorConfig{MinClicks: ppc.DefaultMinClicks}
}

// Validate checks the configuration.
func (c CalculatorConfig) Validate() error {
	chk := ppc.NewConfigChecker("metrics")
	if !(c.MinClicks > 0) {
		chk.Addf("min_clicks must be positive (got %g)", c.MinClicks)
	}
	return chk.Err()
}

// Calculator derives performance metrics from raw counters.
type Calculator struct {
	cfg CalculatorConfig
}

// NewCalculator returns a Calculator for cfg.
func NewCalculator(cfg CalculatorConfig) (*Calculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{cfg: cfg}, nil
}

// Calculate validates every counter and derives ACoS, TACoS, CTR, CVR, RPC,
// ROAS and CPC. A metric whose denominator is zero or missing is left
// undefined; the other metrics are still computed. Negative or non-finite
// counters fail the whole call with an *ppc.InvalidInputError listing every
// problem.
func (c *Calculator) Calculate(in Counters) (MetricSet, error) {
	var v ppc.Validator
	v.NonNegative("ad_spend", in.AdSpend)
	v.NonNegative("ad_sales", in.AdSales)
	v.NonNegative("total_sales", in.TotalSales)
	v.OptionalNonNegative("impressions", in.Impressions)
	v.OptionalNonNegative("clicks", in.Clicks)
	v.OptionalNonNegative("orders", in.Orders)
	if err := v.Err(); err != nil {
		return MetricSet{}, err
	}

	m := MetricSet{
		AdSpend:     in.AdSpend,
		AdSales:     in.AdSales,
		TotalSales:  in.TotalSales,
		Impressions: in.Impressions,
		Clicks:      in.Clicks,
		Orders:      in.Orders,
	}

	m.ACoS = percent(MetricACoS, in.AdSpend, in.AdSales, "ad_sales")
	m.TACoS = percent(MetricTACoS, in.AdSpend, in.TotalSales, "total_sales")
	m.ROAS = ratio(MetricROAS, in.AdSales, in.AdSpend, "ad_spend")

	switch {
	case in.Impressions == nil:
		m.CTR = ppc.Undefined(MetricCTR, "impressions not provided")
	case in.Clicks == nil:
		m.CTR = ppc.Undefined(MetricCTR, "clicks not provided")
	default:
		m.CTR = percent(MetricCTR, *in.Clicks, *in.Impressions, "impressions")
	}

	if in.Clicks == nil {
		m.CVR = ppc.Undefined(MetricCVR, "clicks not provided")
		m.RPC = ppc.Undefined(MetricRPC, "clicks not provided")
		m.CPC = ppc.Undefined(MetricCPC, "clicks not provided")
	} else {
		if in.Orders == nil {
			m.CVR = ppc.Undefined(MetricCVR, "orders not provided")
		} else {
			m.CVR = percent(MetricCVR, *in.Orders, *in.Clicks, "clicks")
		}
		m.RPC = ratio(MetricRPC, in.TotalSales, *in.Clicks, "clicks")
		m.CPC = ratio(MetricCPC, in.AdSpend, *in.Clicks, "clicks")
	}

	if clicks := m.ClickCount(); in.Clicks != nil && clicks < c.cfg.MinClicks {
		m.Advisories = append(m.Advisories, ppc.SampleSizeAdvisory(clicks, c.cfg.MinClicks, "clicks"))
	}

	return m, nil
}

// percent returns num/den*100, undefined when den is zero.
func percent(field string, num, den float64, denName string) ppc.Derived {
	if den == 0 {
		return ppc.Undefined(field, fmt.Sprintf("%s is zero", denName))
	}
	return ppc.Defined(num * 100 / den)
}

// ratio returns num/den, undefined when den is zero.
func ratio(field string, num, den float64, denName string) ppc.Derived {
	if den == 0 {
		return ppc.Undefined(field, fmt.Sprintf("%s is zero", denName))
	}
	return ppc.Defined(num / den)
}
