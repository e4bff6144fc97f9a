package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

func (s *Scorer) priceBarrier(p Product) Check {
	threshold, currency := s.cfg.PriceBarrierEUR, "EUR"
	if p.Marketplace.dollarMarket() {
		threshold, currency = s.cfg.PriceBarrierUSD, "USD"
	}
	c := Check{
		Rule:      RulePriceBarrier,
		Threshold: threshold,
		Actual:    p.Price,
		Evidence:  map[string]float64{"price_to_threshold_ratio": p.Price / threshold},
	}
	price := fmt.Sprintf("%.2f %s", p.Price, currency)
	switch {
	case p.Price < threshold*0.7:
		c.Status, c.Score = StatusRed, 0
		c.Reason = fmt.Sprintf("price %s is far below the %g %s barrier; fees leave no sustainable margin", price, threshold, currency)
	case p.Price < threshold:
		c.Status, c.Score = StatusYellow, p.Price/threshold*50
		c.Reason = fmt.Sprintf("price %s is below the %g %s barrier; margins are tight unless fulfilment fees are low", price, threshold, currency)
	case p.Price < threshold*1.5:
		c.Status, c.Score = StatusGreen, 50+(p.Price-threshold)/(threshold*0.5)*30
		c.Reason = fmt.Sprintf("price %s meets the barrier with room for a 20-30%% margin after fees", price)
	default:
		c.Status, c.Score = StatusGreen, math.Min(100, 80+(p.Price-threshold*1.5)/threshold*20)
		c.Reason = fmt.Sprintf("price %s is well above the barrier with 30%%+ margin potential", price)
	}
	return c
}

// Private label brands that count as Amazon when ranked in the top three.
var amazonBrands = []string{"basics", "essentials", "solimo"}

func isAmazonBrand(brand string) bool {
	b := strings.ToLower(strings.TrimSpace(brand))
	if strings.Contains(b, "amazon") {
		return true
	}
	for _, a := range amazonBrands {
		if b == a {
			return true
		}
	}
	return false
}

// topBrandShare is the share of the top ten results held by the leading
// brand.
func topBrandShare(brands []string) (float64, bool) {
	if len(brands) == 0 {
		return 0, false
	}
	top := brands
	if len(top) > 10 {
		top = top[:10]
	}
	n := 0
	for _, b := range top {
		if strings.EqualFold(b, top[0]) {
			n++
		}
	}
	return float64(n) / float64(len(top)), true
}

func (s *Scorer) brandDominance(p Product) Check {
	amazon := false
	for i, b := range p.TopBrands {
		if i == 3 {
			break
		}
		if isAmazonBrand(b) {
			amazon = true
			break
		}
	}

	c := Check{Rule: RuleBrandDominance, Threshold: s.cfg.DominanceShare, Evidence: map[string]float64{}}
	share, hasShare := topBrandShare(p.TopBrands)
	if hasShare {
		c.Evidence["top_brand_share"] = share
	}
	switch {
	case p.ClickConcentration != nil:
		c.Actual = *p.ClickConcentration
		c.Evidence["click_concentration"] = c.Actual
	case hasShare:
		c.Actual = share
	}
	if amazon {
		c.Evidence["amazon_detected"] = 1
	}

	d := c.Actual
	switch {
	case amazon:
		c.Status, c.Score = StatusRed, 0
		c.Reason = "Amazon private label ranks in the top three; expect direct competition from Amazon"
	case d >= s.cfg.MonopolyShare:
		c.Status, c.Score = StatusRed, 10
		c.Reason = fmt.Sprintf("market is monopolized (%.1f%% concentration); breaking in will be slow and PPC expensive", d*100)
	case d >= s.cfg.DominanceShare:
		c.Status, c.Score = StatusYellow, 30
		c.Reason = fmt.Sprintf("established brands dominate (%.1f%% concentration); enter only with strong differentiation", d*100)
	case d >= s.cfg.ConcentratedShare:
		c.Status, c.Score = StatusYellow, 60
		c.Reason = fmt.Sprintf("market is somewhat concentrated (%.1f%%); penetrable with a differentiated product", d*100)
	default:
		c.Status, c.Score = StatusGreen, 90
		c.Reason = fmt.Sprintf("fragmented market (%.1f%% concentration) with no dominant player", d*100)
	}
	return c
}

func (s *Scorer) keywordVolume(p Product) Check {
	v, floor := p.SearchVolume, s.cfg.MinKeywordVolume
	c := Check{
		Rule:      RuleKeywordVolume,
		Threshold: floor,
		Actual:    v,
		Evidence:  map[string]float64{"volume_ratio": v / floor},
	}
	switch {
	case v < floor*0.3:
		c.Status, c.Score = StatusRed, 0
		c.Reason = fmt.Sprintf("search volume %.0f/month is under 30%% of the %.0f minimum; demand is insufficient", v, floor)
	case v < floor:
		c.Status, c.Score = StatusYellow, v/floor*50
		c.Reason = fmt.Sprintf("search volume %.0f/month is below the %.0f minimum; viable only as a long-tail niche", v, floor)
	case v < floor*2:
		c.Status, c.Score = StatusGreen, 50+(v-floor)/floor*30
		c.Reason = fmt.Sprintf("search volume %.0f/month meets the minimum with adequate demand", v)
	case v < floor*5:
		c.Status, c.Score = StatusGreen, 80+math.Min(15, (v-floor*2)/(floor*3)*15)
		c.Reason = fmt.Sprintf("high search volume %.0f/month; verify competition levels", v)
	default:
		c.Status, c.Score = StatusGreen, 90
		c.Reason = fmt.Sprintf("very high search volume %.0f/month; established players likely hold the top clicks", v)
	}
	return c
}

// titleDensity returns nil when the product carries no title density.
func (s *Scorer) titleDensity(p Product) *Check {
	if p.TitleDensity == nil {
		return nil
	}
	d := *p.TitleDensity
	c := Check{Rule: RuleTitleDensity, Threshold: s.cfg.TitleDensityIdeal, Actual: d}
	switch {
	case d < s.cfg.TitleDensityIdeal:
		c.Status, c.Score = StatusGreen, 100
		c.Reason = fmt.Sprintf("low title density (%g); strong organic ranking opportunity", d)
	case d < s.cfg.TitleDensityHigh:
		c.Status, c.Score = StatusYellow, 60
		c.Reason = fmt.Sprintf("medium title density (%g); competitive but manageable", d)
	default:
		c.Status, c.Score = StatusRed, 20
		c.Reason = fmt.Sprintf("high title density (%g); very competitive keyword", d)
	}
	return &c
}

// spread is the distance between the largest and smallest estimate relative
// to their mean.
func spread(estimates map[string]float64) float64 {
	lo, hi, sum := math.Inf(1), math.Inf(-1), 0.0
	for _, v := range estimates {
		lo, hi, sum = math.Min(lo, v), math.Max(hi, v), sum+v
	}
	mean := sum / float64(len(estimates))
	if mean <= 0 {
		return 0
	}
	return (hi - lo) / mean
}

// confidence grades one estimate family; ok is false without any source.
func (s *Scorer) confidence(label string, estimates map[string]float64) (score float64, issue string, ok bool) {
	thr := s.cfg.VarianceThreshold
	switch len(estimates) {
	case 0:
		return 0, "", false
	case 1:
		return 50, "only one data source for " + label, true
	}
	v := spread(estimates)
	switch {
	case v <= thr:
		return 100, "", true
	case v <= thr*2:
		return 70, fmt.Sprintf("moderate %s variance %.1f%%", label, v*100), true
	default:
		return 30, fmt.Sprintf("high %s variance %.1f%%", label, v*100), true
	}
}

func (s *Scorer) triangulation(p Product) Check {
	c := Check{
		Rule:      RuleTriangulation,
		Threshold: s.cfg.VarianceThreshold,
		Evidence: map[string]float64{
			"sales_sources":  float64(len(p.SalesEstimates)),
			"volume_sources": float64(len(p.VolumeEstimates)),
		},
	}
	var scores []float64
	var issues []string
	for _, fam := range []struct {
		label     string
		estimates map[string]float64
	}{
		{"sales estimate", p.SalesEstimates},
		{"keyword volume", p.VolumeEstimates},
	} {
		score, issue, ok := s.confidence(fam.label, fam.estimates)
		if !ok {
			issues = append(issues, "no data source for "+fam.label)
			continue
		}
		scores = append(scores, score)
		if issue != "" {
			issues = append(issues, issue)
		}
	}
	for _, sc := range scores {
		c.Score += sc
	}
	if len(scores) > 0 {
		c.Score /= float64(len(scores))
	}
	c.Actual = c.Score / 100

	switch {
	case c.Score >= 80:
		c.Status = StatusGreen
		c.Reason = fmt.Sprintf("sources agree (%.0f%% confidence across %d sales and %d volume sources)",
			c.Score, len(p.SalesEstimates), len(p.VolumeEstimates))
	case c.Score >= 60:
		c.Status = StatusYellow
		c.Reason = fmt.Sprintf("moderate data confidence (%.0f%%): %s", c.Score, strings.Join(issues, ", "))
	default:
		c.Status = StatusRed
		c.Reason = fmt.Sprintf("low data confidence (%.0f%%): %s", c.Score, strings.Join(issues, ", "))
	}
	return c
}

// competition combines title density and click concentration into one level.
func (s *Scorer) competition(p Product) string {
	var levels []int
	if p.TitleDensity != nil {
		switch d := *p.TitleDensity; {
		case d < s.cfg.TitleDensityIdeal:
			levels = append(levels, 1)
		case d < s.cfg.TitleDensityHigh:
			levels = append(levels, 2)
		default:
			levels = append(levels, 3)
		}
	}
	if p.ClickConcentration != nil {
		switch cc := *p.ClickConcentration; {
		case cc < 0.4:
			levels = append(levels, 1)
		case cc < 0.6:
			levels = append(levels, 2)
		default:
			levels = append(levels, 3)
		}
	}
	if len(levels) == 0 {
		return CompetitionUnknown
	}
	sum := 0
	for _, l := range levels {
		sum += l
	}
	switch avg := float64(sum) / float64(len(levels)); {
	case avg < 1.5:
		return CompetitionLow
	case avg < 2.5:
		return CompetitionMedium
	default:
		return CompetitionHigh
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
