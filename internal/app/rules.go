package app

import (
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/ppcwatch/internal/golden"
)

var (
	rulesStock        float64
	rulesVelocity     float64
	rulesLeadTime     float64
	rulesSpent        float64
	rulesHour         int
	rulesPaused       int
	rulesOrganicSales float64
	rulesPPCSales     float64
	rulesClicks       float64
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Check the five golden rules",
	Long: `Check a campaign and inventory snapshot against the golden rules:

  1. NEVER RUN OUT OF STOCK        --stock --velocity --lead-time
  2. NEVER EXHAUST BUDGET EARLY    --spent --hour
  3. ALWAYS RUN ADS                --paused
  4. RESPECT THE DATA              --clicks (lowers severity below threshold)
  5. SEO AND PPC WORK TOGETHER     --organic-sales --ppc-sales

A rule is only checked when its inputs are given. Violations are listed by
severity, most severe first.`,
	Example: `  ppcwatch rules --stock 100 --velocity 5 --lead-time 30 --spent 80 --hour 14 --paused 0`,
	RunE:    runRules,
}

func init() {
	f := rulesCmd.Flags()
	f.Float64Var(&rulesStock, "stock", 0, "Units in stock")
	f.Float64Var(&rulesVelocity, "velocity", 0, "Units sold per day")
	f.Float64Var(&rulesLeadTime, "lead-time", 0, "Restock lead time in days")
	f.Float64Var(&rulesSpent, "spent", 0, "Percent of daily budget spent")
	f.IntVar(&rulesHour, "hour", 0, "Current hour, 0-23")
	f.IntVar(&rulesPaused, "paused", 0, "Number of paused campaigns")
	f.Float64Var(&rulesOrganicSales, "organic-sales", 0, "Organic sales")
	f.Float64Var(&rulesPPCSales, "ppc-sales", 0, "PPC sales")
	f.Float64Var(&rulesClicks, "clicks", 0, "Clicks behind the snapshot")
	rulesCmd.MarkFlagsRequiredTogether("stock", "velocity", "lead-time")
	rulesCmd.MarkFlagsRequiredTogether("spent", "hour")
	rulesCmd.MarkFlagsRequiredTogether("organic-sales", "ppc-sales")
	rootCmd.AddCommand(rulesCmd)
}

func rulesSnapshot(cmd *cobra.Command) golden.Snapshot {
	var s golden.Snapshot
	changed := cmd.Flags().Changed
	if changed("stock") {
		s.Stock = &golden.StockInput{CurrentStock: rulesStock, DailySalesVelocity: rulesVelocity, LeadTimeDays: rulesLeadTime}
	}
	if changed("spent") {
		s.Pacing = &golden.PacingInput{BudgetSpentPct: rulesSpent, CurrentHour: rulesHour}
	}
	if changed("paused") {
		paused := rulesPaused
		s.CampaignsPaused = &paused
	}
	if changed("organic-sales") {
		s.Balance = &golden.BalanceInput{OrganicSales: rulesOrganicSales, PPCSales: rulesPPCSales}
	}
	s.Clicks = optionalFloat(cmd, "clicks", rulesClicks)
	return s
}

func runRules(cmd *cobra.Command, args []string) error {
	rep, err := appEngine.Rules().CheckAll(rulesSnapshot(cmd))
	if err != nil {
		return err
	}
	logger.Debug("golden rules checked", "violations", len(rep.Violations), "undetermined", len(rep.Undetermined))

	if flagJSON {
		return writeJSON(cmd.OutOrStdout(), rep)
	}
	renderRules(cmd.OutOrStdout(), rep)
	return nil
}
