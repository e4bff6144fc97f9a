package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/ppcwatch/internal/ppc"
)

var (
	bidTotalSales  float64
	bidTotalClicks float64
	bidTargetACoS  float64
	bidCurrentACoS float64
	bidCurrentBid  float64
	bidHour        int
	bidSpentPct    float64
)

var bidCmd = &cobra.Command{
	Use:   "bid",
	Short: "Bid optimization using the revenue-per-click method",
}

var bidOptimalCmd = &cobra.Command{
	Use:   "optimal",
	Short: "Optimal bid: revenue per click times target ACoS",
	Example: `  ppcwatch bid optimal --total-sales 1000 --total-clicks 200 --target-acos 25`,
	RunE:    runBidOptimal,
}

var bidAdjustCmd = &cobra.Command{
	Use:   "adjust",
	Short: "Recommend a bounded bid adjustment toward the optimal bid",
	Long: `Recommend a new bid. The change is limited to the configured maximum
fraction of the current bid, no change is made while current ACoS is within
the tolerance band of the target, and confidence is reduced below the data
sufficiency click threshold.`,
	Example: `  ppcwatch bid adjust --current-bid 7.50 --total-sales 3500 --total-clicks 180 \
    --target-acos 25 --current-acos 35.7`,
	RunE: runBidAdjust,
}

var bidPacingCmd = &cobra.Command{
	Use:   "pacing",
	Short: "Bid multiplier that keeps daily budget spend on pace",
	Example: `  ppcwatch bid pacing --hour 12 --spent 80`,
	RunE:    runBidPacing,
}

func init() {
	for _, c := range []*cobra.Command{bidOptimalCmd, bidAdjustCmd} {
		f := c.Flags()
		f.Float64Var(&bidTotalSales, "total-sales", 0, "Sales over the lookback window")
		f.Float64Var(&bidTotalClicks, "total-clicks", 0, "Clicks over the lookback window")
		f.Float64Var(&bidTargetACoS, "target-acos", 0, "Target ACoS percentage, e.g. 25")
		_ = c.MarkFlagRequired("total-sales")
		_ = c.MarkFlagRequired("total-clicks")
		_ = c.MarkFlagRequired("target-acos")
	}
	bidAdjustCmd.Flags().Float64Var(&bidCurrentBid, "current-bid", 0, "Current bid")
	bidAdjustCmd.Flags().Float64Var(&bidCurrentACoS, "current-acos", 0, "Current ACoS percentage")
	_ = bidAdjustCmd.MarkFlagRequired("current-bid")
	_ = bidAdjustCmd.MarkFlagRequired("current-acos")

	bidPacingCmd.Flags().IntVar(&bidHour, "hour", 0, "Hour of day, 0-23")
	bidPacingCmd.Flags().Float64Var(&bidSpentPct, "spent", 0, "Percent of daily budget spent so far")
	_ = bidPacingCmd.MarkFlagRequired("hour")
	_ = bidPacingCmd.MarkFlagRequired("spent")

	bidCmd.AddCommand(bidOptimalCmd, bidAdjustCmd, bidPacingCmd)
	rootCmd.AddCommand(bidCmd)
}

func runBidOptimal(cmd *cobra.Command, args []string) error {
	opt := appEngine.BidOptimizer()
	rpc, err := opt.CalculateRPC(bidTotalSales, bidTotalClicks)
	if err != nil {
		return err
	}
	bid, err := opt.CalculateOptimalBid(bidTotalSales, bidTotalClicks, bidTargetACoS/100)
	if err != nil {
		return err
	}

	if flagJSON {
		return writeJSON(cmd.OutOrStdout(), map[string]float64{
			"rpc":         ppc.Round(rpc, 2),
			"target_acos": bidTargetACoS / 100,
			"optimal_bid": bid,
		})
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Revenue per click: $%.2f\n", rpc)
	fmt.Fprintf(w, "Optimal bid at %g%% ACoS: $%.2f\n", bidTargetACoS, bid)
	return nil
}

func runBidAdjust(cmd *cobra.Command, args []string) error {
	rec, err := appEngine.BidOptimizer().RecommendBidAdjustment(
		bidCurrentBid, bidTotalSales, bidTotalClicks, bidTargetACoS/100, bidCurrentACoS/100)
	if err != nil {
		return err
	}
	logger.Debug("bid recommendation", "optimal", rec.OptimalBid, "clamped", rec.Clamped, "confidence", rec.Confidence)

	if flagJSON {
		return writeJSON(cmd.OutOrStdout(), rec)
	}
	renderBid(cmd.OutOrStdout(), rec)
	return nil
}

func runBidPacing(cmd *cobra.Command, args []string) error {
	p, err := appEngine.BidOptimizer().PacingMultiplier(bidHour, bidSpentPct)
	if err != nil {
		return err
	}
	if flagJSON {
		return writeJSON(cmd.OutOrStdout(), p)
	}
	renderPacing(cmd.OutOrStdout(), p)
	return nil
}
