package app

import (
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/ppcwatch/internal/analyzer"
)

var (
	stockUnits      float64
	stockVelocity   float64
	stockLeadTime   float64
	stockSafetyDays float64
)

var stockCmd = &cobra.Command{
	Use:   "stock",
	Short: "Inventory runway, stock level and PPC budget multiplier",
	Long: `Project how many days the current stock lasts at the current sales
velocity, classify the stock level against the restock lead time, and build
a prioritised remediation plan including the PPC budget multiplier.`,
	Example: `  ppcwatch stock --stock 100 --velocity 5 --lead-time 30`,
	RunE:    runStock,
}

func init() {
	f := stockCmd.Flags()
	f.Float64Var(&stockUnits, "stock", 0, "Units in stock")
	f.Float64Var(&stockVelocity, "velocity", 0, "Units sold per day")
	f.Float64Var(&stockLeadTime, "lead-time", 0, "Restock lead time in days")
	f.Float64Var(&stockSafetyDays, "safety-days", 0, "Safety stock in days (default from config)")
	_ = stockCmd.MarkFlagRequired("stock")
	_ = stockCmd.MarkFlagRequired("velocity")
	_ = stockCmd.MarkFlagRequired("lead-time")
	rootCmd.AddCommand(stockCmd)
}

func runStock(cmd *cobra.Command, args []string) error {
	var opts []analyzer.StockOption
	if cmd.Flags().Changed("safety-days") {
		opts = append(opts, analyzer.WithSafetyStockDays(stockSafetyDays))
	}
	s, err := appEngine.Stockout().AnalyzeStockSituation(stockUnits, stockVelocity, stockLeadTime, opts...)
	if err != nil {
		return err
	}
	if flagJSON {
		return writeJSON(cmd.OutOrStdout(), s)
	}
	renderStock(cmd.OutOrStdout(), s)
	return nil
}
