package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/ppcwatch/internal/analyzer"
	"github.com/blackwell-systems/ppcwatch/internal/ppc"
	"github.com/blackwell-systems/ppcwatch/internal/report"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 20.0, cfg.DataSufficiency.MinClicks)
	assert.Equal(t, 0.5, cfg.Bid.MaxChangeLimit)
	assert.Equal(t, 20.0, cfg.Bid.MinClicks)
	assert.Equal(t, 20.0, cfg.Golden.MinClicks)
	assert.Equal(t, 20.0, cfg.Decision.ACoS.MinClicks)
	assert.Equal(t, 4.0, cfg.Golden.BufferWeeks)
	assert.Len(t, cfg.Golden.PacingCurve, 3)
	assert.Len(t, cfg.Benchmarks.Tables, 4)
	assert.InDelta(t, 1.0, cfg.Benchmarks.Weights["acos"]+cfg.Benchmarks.Weights["ctr"]+cfg.Benchmarks.Weights["cvr"], 1e-9)
	assert.True(t, cfg.Output.Color)
	assert.Equal(t, 8, cfg.Batch.Workers)
	assert.True(t, filepath.IsAbs(cfg.DBPath))

	_, err = report.New(cfg.Engine())
	assert.NoError(t, err)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 0.02, cfg.Bid.ToleranceBand)
}

func TestLoad_FileOverrides(t *testing.T) {
	path := writeConfig(t, `
data_sufficiency:
  min_clicks: 30
bid:
  max_change_limit: 0.3
golden:
  min_clicks: 50
  pacing_curve:
    - {hour: 10, max_spent_pct: 40}
    - {hour: 20, max_spent_pct: 80}
benchmarks:
  tables:
    ctr:
      direction: higher_is_better
      bands:
        - {lower: 0, tier: poor}
        - {lower: 0.4, tier: good}
output:
  color: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.3, cfg.Bid.MaxChangeLimit)
	assert.Equal(t, 30.0, cfg.Bid.MinClicks, "shared threshold propagates")
	assert.Equal(t, 30.0, cfg.Decision.ACoS.MinClicks)
	assert.Equal(t, 50.0, cfg.Golden.MinClicks, "explicit per-component value wins")
	assert.Equal(t, []int{10, 20}, []int{cfg.Golden.PacingCurve[0].Hour, cfg.Golden.PacingCurve[1].Hour})
	assert.False(t, cfg.Output.Color)

	ctr := cfg.Benchmarks.Tables["ctr"]
	require.Len(t, ctr.Bands, 2)
	assert.Equal(t, analyzer.TierGood, ctr.Bands[1].Tier)
	assert.Contains(t, cfg.Benchmarks.Tables, "acos", "missing tables are back-filled")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("PPCWATCH_BID_TOLERANCE_BAND", "0.05")
	t.Setenv("PPCWATCH_DATA_SUFFICIENCY_MIN_CLICKS", "40")

	cfg, err := Load(writeConfig(t, "output:\n  width: 100\n"))
	require.NoError(t, err)
	assert.Equal(t, 0.05, cfg.Bid.ToleranceBand)
	assert.Equal(t, 40.0, cfg.Bid.MinClicks)
	assert.Equal(t, 100, cfg.Output.Width)
}

func TestLoad_ScoringSection(t *testing.T) {
	t.Setenv("PPCWATCH_SCORING_GREEN_THRESHOLD", "75")

	cfg, err := Load(writeConfig(t, `
scoring:
  price_barrier_eur: 30
  weights:
    title_density: 0
`))
	require.NoError(t, err)
	assert.Equal(t, 30.0, cfg.Scoring.PriceBarrierEUR)
	assert.Equal(t, 39.0, cfg.Scoring.PriceBarrierUSD)
	assert.Equal(t, 75.0, cfg.Scoring.GreenThreshold)
	assert.Equal(t, 0.0, cfg.Scoring.Weights.TitleDensity)
	assert.Equal(t, 0.25, cfg.Scoring.Weights.PriceBarrier)

	_, err = Load(writeConfig(t, "scoring:\n  yellow_threshold: 90\n"))
	require.ErrorIs(t, err, ppc.ErrConfiguration)
	assert.Contains(t, err.Error(), "scoring.thresholds")
}

func TestLoad_InvalidConfigReportsAllProblems(t *testing.T) {
	path := writeConfig(t, `
benchmarks:
  weights:
    acos: 0.5
    ctr: 0.1
bid:
  max_change_limit: 2
stock:
  adequate_band_days: 5
batch:
  workers: 0
`)
	_, err := Load(path)
	require.ErrorIs(t, err, ppc.ErrConfiguration)

	var ce *ppc.ConfigurationError
	require.ErrorAs(t, err, &ce)
	msg := err.Error()
	assert.Contains(t, msg, "benchmarks.weights must sum to 1.0")
	assert.Contains(t, msg, "bid.max_change_limit")
	assert.Contains(t, msg, "stock.adequate_band_days")
	assert.Contains(t, msg, "batch.workers")
	assert.GreaterOrEqual(t, len(ce.Problems), 4)
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "bid: [\n"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ppc.ErrConfiguration)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x/y"), expandPath("~/x/y"))
	assert.Equal(t, "/abs", expandPath("/abs"))
}
