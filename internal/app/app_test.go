package app

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/ppcwatch/internal/report"
)

const testCampaigns = `
campaigns:
  - name: garlic-press
    ad_spend: 500
    ad_sales: 2000
    total_sales: 5000
    impressions: 10000
    clicks: 100
    orders: 10
    target_acos: 20
    current_bid: 1.5
    price_competitive: true
    campaigns_paused: 1
    stock:
      current_stock: 100
      daily_velocity: 5
      lead_time_days: 30
  - name: peeler
    ad_spend: 10
    ad_sales: 40
    total_sales: 100
`

const testProducts = `
products:
  - asin: B0GREEN001
    keyword: garlic press
    price: 49
    search_volume: 5000
    click_concentration: 0.2
    title_density: 3
    sales_estimates: {helium10: 300, keepa: 320}
    volume_estimates: {helium10: 5000, sellersprite: 5200}
  - asin: B0CHEAP001
    price: 19.99
    search_volume: 5000
`

const brokenCampaigns = `
campaigns:
  - name: ok
    ad_spend: 10
    ad_sales: 40
    total_sales: 100
  - name: broken
    ad_spend: -1
    ad_sales: 40
    total_sales: 100
`

// resetFlags restores every flag of c and its subcommands to its default so
// package-level flag variables do not leak between executions.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// testEnv writes a config file whose history database lives in a temp dir.
func testEnv(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	content := "db_path: " + filepath.Join(dir, "history.db") + "\n" + extra
	require.NoError(t, os.WriteFile(cfg, []byte(content), 0o600))
	return cfg
}

func writeCampaigns(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "campaigns.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, cfg string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append(args, "--config", cfg, "--no-color"))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func decodeJSON(t *testing.T, s string, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(s), v), "output: %s", s)
}

func TestRoot_ListsSubcommands(t *testing.T) {
	out, err := execute(t, testEnv(t, ""))
	require.NoError(t, err)
	for _, name := range []string{"metrics", "benchmark", "bid", "rules", "decide", "stock", "score", "evaluate", "batch", "track", "history", "mcp"} {
		assert.Contains(t, out, name)
	}
}

func TestSetup_InvalidConfig(t *testing.T) {
	_, err := execute(t, testEnv(t, "batch:\n  workers: 0\n"), "metrics", "--ad-spend", "1", "--ad-sales", "1", "--total-sales", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")
	assert.Contains(t, err.Error(), "batch.workers")
}

func TestMetricsCmd(t *testing.T) {
	cfg := testEnv(t, "")
	args := []string{"metrics", "--ad-spend", "500", "--ad-sales", "2000", "--total-sales", "5000", "--clicks", "100", "--orders", "10"}

	t.Run("json", func(t *testing.T) {
		out, err := execute(t, cfg, append(args, "--json")...)
		require.NoError(t, err)
		var got map[string]any
		decodeJSON(t, out, &got)
		assert.Equal(t, 25.0, got["acos"])
		assert.Equal(t, 10.0, got["tacos"])
		assert.Equal(t, 10.0, got["cvr"])
		assert.Nil(t, got["ctr"], "ctr needs impressions")
		assert.Contains(t, got, "benchmarks")
	})

	t.Run("text", func(t *testing.T) {
		out, err := execute(t, cfg, args...)
		require.NoError(t, err)
		assert.Contains(t, out, "METRICS")
		assert.Contains(t, out, "ACOS")
		assert.Contains(t, out, "25.00%")
		assert.Contains(t, out, "n/a")
	})

	t.Run("missing required", func(t *testing.T) {
		_, err := execute(t, cfg, "metrics", "--ad-sales", "1", "--total-sales", "1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ad-spend")
	})

	t.Run("negative input", func(t *testing.T) {
		_, err := execute(t, cfg, "metrics", "--ad-spend", "-5", "--ad-sales", "1", "--total-sales", "1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ad_spend")
	})
}

func TestBenchmarkCmd(t *testing.T) {
	cfg := testEnv(t, "")

	out, err := execute(t, cfg, "benchmark", "acos=18.5", "CTR=0.42%", "--tacos", "10", "--json")
	require.NoError(t, err)
	var got map[string]any
	decodeJSON(t, out, &got)
	tiers, ok := got["tiers"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, tiers, "acos")
	assert.Contains(t, tiers, "ctr")
	assert.Contains(t, got, "tacos_strategy")
	assert.NotContains(t, got, "organic_ratio")

	_, err = execute(t, cfg, "benchmark")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to evaluate")

	_, err = execute(t, cfg, "benchmark", "acos")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected METRIC=VALUE")

	_, err = execute(t, cfg, "benchmark", "acos=abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a number")
}

func TestParseMetricArgs(t *testing.T) {
	got, err := parseMetricArgs([]string{"ACOS=18.5%", "ctr=0.4"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"acos": 18.5, "ctr": 0.4}, got)

	_, err = parseMetricArgs([]string{"=3"})
	assert.Error(t, err)
}

func TestBidCmds(t *testing.T) {
	cfg := testEnv(t, "")

	out, err := execute(t, cfg, "bid", "optimal", "--total-sales", "1000", "--total-clicks", "200", "--target-acos", "25", "--json")
	require.NoError(t, err)
	var opt map[string]float64
	decodeJSON(t, out, &opt)
	assert.Equal(t, 5.0, opt["rpc"])
	assert.Equal(t, 0.25, opt["target_acos"])
	assert.InDelta(t, 1.25, opt["optimal_bid"], 1e-9)

	out, err = execute(t, cfg, "bid", "optimal", "--total-sales", "1000", "--total-clicks", "200", "--target-acos", "25")
	require.NoError(t, err)
	assert.Contains(t, out, "Optimal bid at 25% ACoS: $1.25")

	out, err = execute(t, cfg, "bid", "adjust", "--current-bid", "7.50", "--total-sales", "3500", "--total-clicks", "180",
		"--target-acos", "25", "--current-acos", "35.7")
	require.NoError(t, err)
	assert.Contains(t, out, "Recommended bid")

	_, err = execute(t, cfg, "bid", "optimal", "--total-sales", "1000", "--total-clicks", "0", "--target-acos", "25")
	assert.Error(t, err)

	out, err = execute(t, cfg, "bid", "pacing", "--hour", "12", "--spent", "80")
	require.NoError(t, err)
	assert.Contains(t, out, "BUDGET PACING")
	assert.Contains(t, out, "12:00")
}

func TestRulesCmd(t *testing.T) {
	cfg := testEnv(t, "")

	out, err := execute(t, cfg, "rules", "--paused", "2", "--json")
	require.NoError(t, err)
	var rep struct {
		Violations []struct {
			RuleNumber int    `json:"rule_number"`
			Severity   string `json:"severity"`
		} `json:"violations"`
	}
	decodeJSON(t, out, &rep)
	require.Len(t, rep.Violations, 1)
	assert.Equal(t, 3, rep.Violations[0].RuleNumber)

	out, err = execute(t, cfg, "rules", "--paused", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "No violations")

	_, err = execute(t, cfg, "rules", "--stock", "100")
	require.Error(t, err, "stock inputs are required together")
}

func TestDecideCmds(t *testing.T) {
	cfg := testEnv(t, "")

	out, err := execute(t, cfg, "decide", "acos", "--acos", "40", "--target-acos", "25", "--clicks", "5", "--cvr", "12", "--json")
	require.NoError(t, err)
	var r map[string]any
	decodeJSON(t, out, &r)
	assert.Equal(t, "wait — insufficient data", r["action"])

	out, err = execute(t, cfg, "decide", "acos", "--acos", "20", "--target-acos", "25", "--clicks", "120", "--cvr", "12")
	require.NoError(t, err)
	assert.Contains(t, out, "DECISIONS")
	assert.Contains(t, out, "hold")

	_, err = execute(t, cfg, "decide", "bsr", "--rank-drop", "10", "--previous-rank", "100", "--current-rank", "120", "--days", "14", "--inventory", "HEALTHY")
	assert.Error(t, err, "rank-drop and previous-rank are exclusive")

	_, err = execute(t, cfg, "decide", "bsr", "--days", "14", "--inventory", "HEALTHY")
	assert.Error(t, err, "one rank input is required")

	out, err = execute(t, cfg, "decide", "bsr", "--previous-rank", "1000", "--current-rank", "1600", "--days", "14", "--inventory", "healthy", "--json")
	require.NoError(t, err)
	decodeJSON(t, out, &r)
	assert.Equal(t, "bsr", r["tree"])
}

func TestStockCmd(t *testing.T) {
	cfg := testEnv(t, "")

	out, err := execute(t, cfg, "stock", "--stock", "100", "--velocity", "5", "--lead-time", "30", "--json")
	require.NoError(t, err)
	var s map[string]any
	decodeJSON(t, out, &s)
	assert.Equal(t, 20.0, s["days_remaining"])
	assert.Equal(t, "CRITICAL", s["stock_level"])
	assert.Equal(t, true, s["reorder_now"])

	out, err = execute(t, cfg, "stock", "--stock", "100", "--velocity", "5", "--lead-time", "30")
	require.NoError(t, err)
	assert.Contains(t, out, "INVENTORY")
	assert.Contains(t, out, "reorder now")

	_, err = execute(t, cfg, "stock", "--stock", "100", "--velocity", "0", "--lead-time", "30")
	assert.Error(t, err)
}

func TestScoreCmd(t *testing.T) {
	cfg := testEnv(t, "")
	file := writeCampaigns(t, testProducts)

	out, err := execute(t, cfg, "score", file, "--json")
	require.NoError(t, err)
	var results []struct {
		ASIN       string  `json:"asin"`
		Decision   string  `json:"decision"`
		Score      float64 `json:"score"`
		KillSwitch string  `json:"kill_switch"`
	}
	decodeJSON(t, out, &results)
	require.Len(t, results, 2)
	assert.Equal(t, "GREEN", results[0].Decision)
	assert.InDelta(t, 80.94, results[0].Score, 1e-9)
	assert.Equal(t, "RED", results[1].Decision)
	assert.Equal(t, "price_barrier", results[1].KillSwitch)

	out, err = execute(t, cfg, "score", file, "--asin", "B0CHEAP001")
	require.NoError(t, err)
	assert.Contains(t, out, "B0CHEAP001")
	assert.NotContains(t, out, "B0GREEN001")
	assert.Contains(t, out, "Kill switch")
	assert.Contains(t, out, "REJECT")

	_, err = execute(t, cfg, "score", file, "--asin", "B0MISSING")
	assert.ErrorContains(t, err, "not found")

	_, err = execute(t, cfg, "score", writeCampaigns(t, "products:\n  - asin: B0BAD\n    price: -2\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scoring B0BAD")
	assert.Contains(t, err.Error(), "price")
}

func TestEvaluateCmd(t *testing.T) {
	cfg := testEnv(t, "")
	file := writeCampaigns(t, testCampaigns)

	out, err := execute(t, cfg, "evaluate", file, "--json")
	require.NoError(t, err)
	var r report.Report
	decodeJSON(t, out, &r)
	assert.Equal(t, "garlic-press", r.Campaign)
	assert.NotEmpty(t, r.EvalID)
	require.NotNil(t, r.Stock)
	assert.Equal(t, 25.0, r.Metrics.ACoS.Value)

	out, err = execute(t, cfg, "evaluate", file, "--campaign", "peeler")
	require.NoError(t, err)
	assert.Contains(t, out, "peeler")
	assert.Contains(t, out, "GOLDEN RULES")
	assert.Contains(t, out, "NOTES")

	_, err = execute(t, cfg, "evaluate", file, "--campaign", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"nope" not found`)

	_, err = execute(t, cfg, "evaluate")
	assert.Error(t, err, "file argument is required")
}

func TestBatchCmd(t *testing.T) {
	cfg := testEnv(t, "")

	out, err := execute(t, cfg, "batch", writeCampaigns(t, testCampaigns), "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "BATCH (2 campaigns)")
	assert.Contains(t, out, "garlic-press")
	assert.Contains(t, out, "peeler")

	out, err = execute(t, cfg, "batch", writeCampaigns(t, brokenCampaigns), "--json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 campaigns failed")
	var results []map[string]any
	decodeJSON(t, out, &results)
	require.Len(t, results, 2)
	assert.Equal(t, "broken", results[1]["campaign"])
	assert.NotEmpty(t, results[1]["error"])
}

func TestTrackAndHistory(t *testing.T) {
	cfg := testEnv(t, "")
	file := writeCampaigns(t, testCampaigns)

	out, err := execute(t, cfg, "track", file)
	require.NoError(t, err)
	assert.Contains(t, out, "First evaluation stored")

	out, err = execute(t, cfg, "track", file, "--json")
	require.NoError(t, err)
	var tracked []struct {
		Campaign string `json:"campaign"`
		Diff     *struct {
			Metrics []struct {
				Name  string `json:"name"`
				Trend string `json:"trend"`
			} `json:"metrics"`
		} `json:"diff"`
	}
	decodeJSON(t, out, &tracked)
	require.Len(t, tracked, 2)
	require.NotNil(t, tracked[0].Diff)
	require.NotEmpty(t, tracked[0].Diff.Metrics)
	for _, m := range tracked[0].Diff.Metrics {
		assert.Equal(t, "unchanged", m.Trend, m.Name)
	}

	out, err = execute(t, cfg, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "CAMPAIGNS")
	assert.Contains(t, out, "garlic-press")
	assert.Contains(t, out, "peeler")

	out, err = execute(t, cfg, "history", "garlic-press", "-n", "1", "--json")
	require.NoError(t, err)
	var h struct {
		Evaluations []map[string]any `json:"evaluations"`
		Diff        map[string]any   `json:"diff"`
	}
	decodeJSON(t, out, &h)
	assert.Len(t, h.Evaluations, 1)
	assert.NotNil(t, h.Diff)

	_, err = execute(t, cfg, "history", "unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no stored evaluations")
}

func TestEvaluateCmd_Track(t *testing.T) {
	cfg := testEnv(t, "")
	file := writeCampaigns(t, testCampaigns)

	_, err := execute(t, cfg, "evaluate", file, "--track")
	require.NoError(t, err)

	out, err := execute(t, cfg, "history", "--json")
	require.NoError(t, err)
	var summaries []map[string]any
	decodeJSON(t, out, &summaries)
	require.Len(t, summaries, 1)
	assert.Equal(t, "garlic-press", summaries[0]["campaign"])
}

func TestHistoryCmd_Empty(t *testing.T) {
	out, err := execute(t, testEnv(t, ""), "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No stored evaluations")
}
