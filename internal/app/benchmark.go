package app

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/ppcwatch/internal/analyzer"
)

var (
	benchTACoS        float64
	benchOrganicSales float64
	benchPPCSales     float64
)

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark METRIC=VALUE...",
	Short: "Classify metrics into performance tiers and compute the composite score",
	Long: `Classify each metric into poor, average, good or excellent using the
configured benchmark tables, and combine the weighted metrics into a 0-100
composite score. Values are percentage points.

Optionally classify a TACoS value into a growth strategy, and an
organic:PPC sales balance into a health band.`,
	Example: `  ppcwatch benchmark acos=18.5 ctr=0.42 cvr=12 --tacos 10
  ppcwatch benchmark ctr_organic=3.1 --organic-sales 6000 --ppc-sales 2000`,
	RunE: runBenchmark,
}

func init() {
	f := benchmarkCmd.Flags()
	f.Float64Var(&benchTACoS, "tacos", 0, "TACoS percentage to classify into a strategy")
	f.Float64Var(&benchOrganicSales, "organic-sales", 0, "Organic sales for the organic:PPC balance")
	f.Float64Var(&benchPPCSales, "ppc-sales", 0, "PPC sales for the organic:PPC balance")
	benchmarkCmd.MarkFlagsRequiredTogether("organic-sales", "ppc-sales")
	rootCmd.AddCommand(benchmarkCmd)
}

// parseMetricArgs parses METRIC=VALUE arguments.
func parseMetricArgs(args []string) (map[string]float64, error) {
	metrics := make(map[string]float64, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("expected METRIC=VALUE, got %q", arg)
		}
		v, err := strconv.ParseFloat(strings.TrimSuffix(raw, "%"), 64)
		if err != nil {
			return nil, fmt.Errorf("metric %s: %q is not a number", name, raw)
		}
		metrics[strings.ToLower(name)] = v
	}
	return metrics, nil
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	metrics, err := parseMetricArgs(args)
	if err != nil {
		return err
	}
	bench := appEngine.Benchmarks()

	ev, err := bench.EvaluateAll(metrics)
	if err != nil {
		return err
	}

	var tacos *analyzer.TACoSAssessment
	if cmd.Flags().Changed("tacos") {
		a, err := bench.AssessTACoS(benchTACoS)
		if err != nil {
			return err
		}
		tacos = &a
	}

	var ratio *analyzer.OrganicRatioAssessment
	if cmd.Flags().Changed("organic-sales") {
		a, err := bench.AssessOrganicRatio(benchOrganicSales, benchPPCSales)
		if err != nil {
			return err
		}
		ratio = &a
	}

	if len(metrics) == 0 && tacos == nil && ratio == nil {
		return fmt.Errorf("nothing to evaluate: pass METRIC=VALUE arguments (known metrics: %s)", strings.Join(bench.Metrics(), ", "))
	}

	if flagJSON {
		return writeJSON(cmd.OutOrStdout(), struct {
			analyzer.Evaluation
			TACoS        *analyzer.TACoSAssessment        `json:"tacos_strategy,omitempty"`
			OrganicRatio *analyzer.OrganicRatioAssessment `json:"organic_ratio,omitempty"`
		}{ev, tacos, ratio})
	}
	renderEvaluation(cmd.OutOrStdout(), ev, tacos, ratio)
	return nil
}
