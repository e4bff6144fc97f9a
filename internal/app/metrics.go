package app

import (
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/ppcwatch/internal/analyzer"
)

var (
	metricsAdSpend     float64
	metricsAdSales     float64
	metricsTotalSales  float64
	metricsImpressions float64
	metricsClicks      float64
	metricsOrders      float64
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Derive ACoS, TACoS, CTR, CVR, RPC, ROAS and CPC from raw counters",
	Long: `Compute every performance metric from raw advertising counters and show
the benchmark tier of each metric that has a benchmark table.

Impressions, clicks and orders are optional. A metric whose denominator is
zero or missing is shown as n/a; the others are still computed.`,
	Example: `  ppcwatch metrics --ad-spend 500 --ad-sales 2000 --total-sales 5000 \
    --impressions 10000 --clicks 100 --orders 10`,
	RunE: runMetrics,
}

func init() {
	f := metricsCmd.Flags()
	f.Float64Var(&metricsAdSpend, "ad-spend", 0, "Advertising spend")
	f.Float64Var(&metricsAdSales, "ad-sales", 0, "Sales attributed to advertising")
	f.Float64Var(&metricsTotalSales, "total-sales", 0, "All sales, organic and advertised")
	f.Float64Var(&metricsImpressions, "impressions", 0, "Ad impressions")
	f.Float64Var(&metricsClicks, "clicks", 0, "Ad clicks")
	f.Float64Var(&metricsOrders, "orders", 0, "Orders attributed to advertising")
	_ = metricsCmd.MarkFlagRequired("ad-spend")
	_ = metricsCmd.MarkFlagRequired("ad-sales")
	_ = metricsCmd.MarkFlagRequired("total-sales")
	rootCmd.AddCommand(metricsCmd)
}

// optionalFloat returns a pointer to v when the flag was set.
func optionalFloat(cmd *cobra.Command, name string, v float64) *float64 {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &v
}

func runMetrics(cmd *cobra.Command, args []string) error {
	counters := analyzer.Counters{
		AdSpend:     metricsAdSpend,
		AdSales:     metricsAdSales,
		TotalSales:  metricsTotalSales,
		Impressions: optionalFloat(cmd, "impressions", metricsImpressions),
		Clicks:      optionalFloat(cmd, "clicks", metricsClicks),
		Orders:      optionalFloat(cmd, "orders", metricsOrders),
	}

	m, err := appEngine.Calculator().Calculate(counters)
	if err != nil {
		return err
	}
	ev, err := appEngine.Benchmarks().EvaluateMetricSet(m)
	if err != nil {
		return err
	}
	logger.Debug("metrics computed", "defined", len(m.Values()), "undefined", len(m.Undefined()))

	if flagJSON {
		return writeJSON(cmd.OutOrStdout(), struct {
			analyzer.MetricSet
			Benchmarks analyzer.Evaluation `json:"benchmarks"`
		}{m, ev})
	}
	renderMetrics(cmd.OutOrStdout(), m, ev)
	return nil
}
