package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/ppcwatch/internal/ppc"
)

func f(v float64) *float64 { return &v }

func newScorer(t *testing.T) *Scorer {
	t.Helper()
	s, err := New(DefaultConfig())
	require.NoError(t, err)
	return s
}

func strongProduct() Product {
	return Product{
		ASIN:               "B0TEST0001",
		Title:              "Garlic press",
		Price:              49,
		Marketplace:        MarketplaceUS,
		Keyword:            "garlic press",
		SearchVolume:       5000,
		ClickConcentration: f(0.2),
		TopBrands:          []string{"Acme", "Zyliss", "OXO", "Kuhn"},
		TitleDensity:       f(3),
		MonthlyRevenue:     f(14700),
		MonthlyUnits:       f(300),
		SalesEstimates:     map[string]float64{"helium10": 300, "keepa": 320},
		VolumeEstimates:    map[string]float64{"helium10": 5000, "sellersprite": 5200},
	}
}

func TestScore_StrongProductIsGreen(t *testing.T) {
	r, err := newScorer(t).Score(strongProduct())
	require.NoError(t, err)

	assert.Equal(t, StatusGreen, r.Decision)
	assert.Empty(t, r.KillSwitch)
	assert.InDelta(t, 80.94, r.Score, 1e-9)

	assert.InDelta(t, 65.38, r.PriceBarrier.Score, 0.01)
	assert.Equal(t, 90.0, r.BrandDominance.Score)
	assert.InDelta(t, 70.0, r.KeywordVolume.Score, 1e-9)
	require.NotNil(t, r.TitleDensity)
	assert.Equal(t, 100.0, r.TitleDensity.Score)
	assert.Equal(t, 100.0, r.Triangulation.Score)
	assert.Equal(t, CompetitionLow, r.Competition)

	assert.Empty(t, r.Risks)
	assert.Len(t, r.Opportunities, 3)
	assert.Contains(t, r.Recommendation, "APPROVE")
	assert.Len(t, r.NextSteps, 6)
	assert.InDelta(t, 32.0, r.EstimatedMarginPct, 1e-9)
	assert.Equal(t, 14700.0, *r.EstimatedMonthlyRevenue)
	assert.Len(t, r.Checks(), 5)
}

func TestScore_KillSwitches(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Product)
		want   string
	}{
		{"price far below barrier", func(p *Product) { p.Price = 20 }, RulePriceBarrier},
		{"amazon in top three", func(p *Product) { p.TopBrands = []string{"Acme", "Amazon Basics", "OXO"} }, RuleBrandDominance},
		{"private label alias", func(p *Product) { p.TopBrands = []string{"Solimo"} }, RuleBrandDominance},
		{"monopolized clicks", func(p *Product) { p.ClickConcentration = f(0.75) }, RuleBrandDominance},
		{"search volume too low", func(p *Product) { p.SearchVolume = 500 }, RuleKeywordVolume},
	}
	s := newScorer(t)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := strongProduct()
			tc.mutate(&p)
			r, err := s.Score(p)
			require.NoError(t, err)
			assert.Equal(t, StatusRed, r.Decision)
			assert.Equal(t, tc.want, r.KillSwitch)
			assert.Contains(t, r.Recommendation, "REJECT")
			assert.NotEmpty(t, r.Risks)
		})
	}
}

func TestScore_AmazonBelowTopThreeIsIgnored(t *testing.T) {
	p := strongProduct()
	p.TopBrands = []string{"Acme", "OXO", "Zyliss", "Amazon Basics"}
	r, err := newScorer(t).Score(p)
	require.NoError(t, err)
	assert.Equal(t, StatusGreen, r.BrandDominance.Status)
	assert.NotContains(t, r.BrandDominance.Evidence, "amazon_detected")
}

func TestScore_MissingResearchIsYellow(t *testing.T) {
	r, err := newScorer(t).Score(Product{ASIN: "B0TEST0002", Price: 49, SearchVolume: 5000})
	require.NoError(t, err)

	assert.Equal(t, MarketplaceUS, r.Marketplace)
	assert.Nil(t, r.TitleDensity)
	assert.Equal(t, StatusRed, r.Triangulation.Status)
	assert.Equal(t, 0.0, r.Triangulation.Score)
	assert.Contains(t, r.Triangulation.Reason, "no data source for sales estimate")
	// Normalized over the four checks that ran.
	assert.InDelta(t, 66.06, r.Score, 0.01)
	assert.Equal(t, StatusYellow, r.Decision)
	assert.Empty(t, r.KillSwitch)
	assert.Equal(t, CompetitionUnknown, r.Competition)
	require.Len(t, r.Risks, 1)
	assert.Contains(t, r.Risks[0], RuleTriangulation)
	assert.Len(t, r.NextSteps, 4)
}

func TestScore_YellowWithDominantBrandsAddsPrivateLabelStep(t *testing.T) {
	p := strongProduct()
	p.ClickConcentration = f(0.55)
	r, err := newScorer(t).Score(p)
	require.NoError(t, err)

	assert.Equal(t, StatusYellow, r.BrandDominance.Status)
	assert.Equal(t, 30.0, r.BrandDominance.Score)
	assert.Equal(t, StatusYellow, r.Decision)
	assert.Contains(t, r.NextSteps, "Verify Amazon private label presence manually")
}

func TestPriceBarrier(t *testing.T) {
	s := newScorer(t)
	cases := []struct {
		name        string
		price       float64
		marketplace Marketplace
		status      Status
		score       float64
	}{
		{"severely under", 27, MarketplaceUS, StatusRed, 0},
		{"just under", 35, MarketplaceDE, StatusYellow, 35.0 / 39 * 50},
		{"at barrier", 39, MarketplaceCA, StatusGreen, 50},
		{"good range", 48.75, MarketplaceUS, StatusGreen, 65},
		{"well above", 78, MarketplaceUK, StatusGreen, 90},
		{"capped", 500, MarketplaceUS, StatusGreen, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := s.priceBarrier(Product{Price: tc.price, Marketplace: tc.marketplace})
			assert.Equal(t, tc.status, c.Status)
			assert.InDelta(t, tc.score, c.Score, 1e-9)
		})
	}
}

func TestPriceBarrier_CurrencyByMarketplace(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PriceBarrierEUR = 30
	s, err := New(cfg)
	require.NoError(t, err)

	assert.Equal(t, 30.0, s.priceBarrier(Product{Price: 35, Marketplace: MarketplaceDE}).Threshold)
	assert.Equal(t, 39.0, s.priceBarrier(Product{Price: 35, Marketplace: MarketplaceUS}).Threshold)
	assert.Contains(t, s.priceBarrier(Product{Price: 35, Marketplace: MarketplaceFR}).Reason, "EUR")
}

func TestKeywordVolume(t *testing.T) {
	s := newScorer(t)
	cases := []struct {
		volume float64
		status Status
		score  float64
	}{
		{0, StatusRed, 0},
		{899, StatusRed, 0},
		{1500, StatusYellow, 25},
		{3000, StatusGreen, 50},
		{4500, StatusGreen, 65},
		{6000, StatusGreen, 80},
		{10500, StatusGreen, 87.5},
		{15000, StatusGreen, 90},
	}
	for _, tc := range cases {
		c := s.keywordVolume(Product{SearchVolume: tc.volume})
		assert.Equal(t, tc.status, c.Status, "volume %g", tc.volume)
		assert.InDelta(t, tc.score, c.Score, 1e-9, "volume %g", tc.volume)
	}
}

func TestBrandDominance_TopBrandShareFallback(t *testing.T) {
	s := newScorer(t)
	brands := []string{"Acme", "Acme", "OXO", "Acme", "acme", "Zyliss", "Kuhn", "Acme", "OXO", "Joseph", "Acme", "Acme"}
	c := s.brandDominance(Product{TopBrands: brands})
	// Five of the top ten results belong to the leading brand.
	assert.InDelta(t, 0.5, c.Actual, 1e-9)
	assert.Equal(t, StatusYellow, c.Status)
	assert.Equal(t, 30.0, c.Score)

	c = s.brandDominance(Product{TopBrands: brands, ClickConcentration: f(0.1)})
	assert.InDelta(t, 0.1, c.Actual, 1e-9, "click concentration wins over brand share")
	assert.Equal(t, StatusGreen, c.Status)
}

func TestTitleDensity(t *testing.T) {
	s := newScorer(t)
	assert.Nil(t, s.titleDensity(Product{}))
	for _, tc := range []struct {
		density float64
		status  Status
		score   float64
	}{
		{4.9, StatusGreen, 100},
		{5, StatusYellow, 60},
		{7, StatusRed, 20},
	} {
		c := s.titleDensity(Product{TitleDensity: f(tc.density)})
		require.NotNil(t, c)
		assert.Equal(t, tc.status, c.Status, "density %g", tc.density)
		assert.Equal(t, tc.score, c.Score, "density %g", tc.density)
	}
}

func TestTriangulation(t *testing.T) {
	s := newScorer(t)
	cases := []struct {
		name   string
		sales  map[string]float64
		volume map[string]float64
		score  float64
		status Status
	}{
		{"no sources", nil, nil, 0, StatusRed},
		{"single sources", map[string]float64{"keepa": 300}, map[string]float64{"helium10": 5000}, 50, StatusRed},
		{"moderate variance", map[string]float64{"a": 100, "b": 150}, map[string]float64{"a": 100, "b": 150}, 70, StatusYellow},
		{"agree and disagree", map[string]float64{"a": 100, "b": 110}, map[string]float64{"a": 100, "b": 200}, 65, StatusYellow},
		{"agreement", map[string]float64{"a": 300, "b": 320}, map[string]float64{"a": 5000, "b": 5200}, 100, StatusGreen},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := s.triangulation(Product{SalesEstimates: tc.sales, VolumeEstimates: tc.volume})
			assert.InDelta(t, tc.score, c.Score, 1e-9)
			assert.Equal(t, tc.status, c.Status)
		})
	}
}

func TestCompetition(t *testing.T) {
	s := newScorer(t)
	assert.Equal(t, CompetitionUnknown, s.competition(Product{}))
	assert.Equal(t, CompetitionLow, s.competition(Product{TitleDensity: f(3), ClickConcentration: f(0.2)}))
	assert.Equal(t, CompetitionMedium, s.competition(Product{TitleDensity: f(3), ClickConcentration: f(0.5)}))
	assert.Equal(t, CompetitionHigh, s.competition(Product{TitleDensity: f(6), ClickConcentration: f(0.7)}))
}

func TestScore_InvalidProduct(t *testing.T) {
	_, err := newScorer(t).Score(Product{
		ASIN:               " ",
		Price:              -1,
		Marketplace:        "XX",
		SearchVolume:       100,
		ClickConcentration: f(1.5),
		SalesEstimates:     map[string]float64{"keepa": -3},
	})
	require.ErrorIs(t, err, ppc.ErrInvalidInput)
	var inv *ppc.InvalidInputError
	require.ErrorAs(t, err, &inv)
	var fields []string
	for _, p := range inv.Problems {
		fields = append(fields, p.Field)
	}
	assert.ElementsMatch(t, []string{"asin", "price", "marketplace", "click_concentration", "sales_estimates.keepa"}, fields)
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Weights = Weights{}
	cfg.YellowThreshold = 80
	cfg.MonopolyShare = 0.3
	err := cfg.Validate()
	require.ErrorIs(t, err, ppc.ErrConfiguration)
	assert.Contains(t, err.Error(), "scoring.weights must not all be zero")
	assert.Contains(t, err.Error(), "yellow_threshold < green_threshold")
	assert.Contains(t, err.Error(), "monopoly_share")

	_, err = New(cfg)
	require.ErrorIs(t, err, ppc.ErrConfiguration)
}
