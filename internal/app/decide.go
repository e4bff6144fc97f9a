package app

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/ppcwatch/internal/analyzer"
	"github.com/blackwell-systems/ppcwatch/internal/decision"
)

var (
	decideACoS       float64
	decideTargetACoS float64
	decideClicks     float64
	decideCVR        float64

	decideCTR         float64
	decideImpressions float64
	decideCompetitive bool
	decideTargetCTR   float64

	decideRankDrop  float64
	decidePrevRank  float64
	decideCurrRank  float64
	decideDays      float64
	decideInventory string
)

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Walk the ACoS, CTR or BSR decision tree",
	Long: `Classify a metric and its supporting signals into one action. Every tree
checks data sufficiency first; with too little data the action is always
"wait".`,
}

var decideACoSCmd = &cobra.Command{
	Use:     "acos",
	Short:   "React to advertising cost of sale",
	Example: `  ppcwatch decide acos --acos 40 --target-acos 25 --clicks 120 --cvr 12`,
	RunE:    runDecideACoS,
}

var decideCTRCmd = &cobra.Command{
	Use:     "ctr",
	Short:   "React to click-through rate",
	Example: `  ppcwatch decide ctr --ctr 0.2 --impressions 5000 --price-competitive=false`,
	RunE:    runDecideCTR,
}

var decideBSRCmd = &cobra.Command{
	Use:   "bsr",
	Short: "React to a best seller rank drop",
	Example: `  ppcwatch decide bsr --previous-rank 1000 --current-rank 1600 --days 14 --inventory HEALTHY
  ppcwatch decide bsr --rank-drop 45 --days 14 --inventory LOW`,
	RunE: runDecideBSR,
}

func init() {
	f := decideACoSCmd.Flags()
	f.Float64Var(&decideACoS, "acos", 0, "Current ACoS percentage")
	f.Float64Var(&decideTargetACoS, "target-acos", 0, "Target ACoS percentage")
	f.Float64Var(&decideClicks, "clicks", 0, "Clicks behind the ACoS")
	f.Float64Var(&decideCVR, "cvr", 0, "Conversion rate percentage")
	for _, name := range []string{"acos", "target-acos", "clicks", "cvr"} {
		_ = decideACoSCmd.MarkFlagRequired(name)
	}

	f = decideCTRCmd.Flags()
	f.Float64Var(&decideCTR, "ctr", 0, "Click-through rate percentage")
	f.Float64Var(&decideImpressions, "impressions", 0, "Impressions behind the CTR")
	f.BoolVar(&decideCompetitive, "price-competitive", false, "Whether the price is competitive")
	f.Float64Var(&decideTargetCTR, "target-ctr", 0, "Target CTR percentage (default from config)")
	for _, name := range []string{"ctr", "impressions", "price-competitive"} {
		_ = decideCTRCmd.MarkFlagRequired(name)
	}

	f = decideBSRCmd.Flags()
	f.Float64Var(&decideRankDrop, "rank-drop", 0, "Percent the rank number worsened")
	f.Float64Var(&decidePrevRank, "previous-rank", 0, "Rank at the start of the window")
	f.Float64Var(&decideCurrRank, "current-rank", 0, "Rank now")
	f.Float64Var(&decideDays, "days", 0, "Observation window in days")
	f.StringVar(&decideInventory, "inventory", "", "Inventory status: CRITICAL, LOW, ADEQUATE or HEALTHY")
	decideBSRCmd.MarkFlagsRequiredTogether("previous-rank", "current-rank")
	decideBSRCmd.MarkFlagsMutuallyExclusive("rank-drop", "previous-rank")
	decideBSRCmd.MarkFlagsOneRequired("rank-drop", "previous-rank")
	_ = decideBSRCmd.MarkFlagRequired("days")
	_ = decideBSRCmd.MarkFlagRequired("inventory")

	decideCmd.AddCommand(decideACoSCmd, decideCTRCmd, decideBSRCmd)
	rootCmd.AddCommand(decideCmd)
}

func renderResult(cmd *cobra.Command, r decision.Result) error {
	if flagJSON {
		return writeJSON(cmd.OutOrStdout(), r)
	}
	renderDecisions(cmd.OutOrStdout(), []decision.Result{r})
	return nil
}

func runDecideACoS(cmd *cobra.Command, args []string) error {
	r, err := appEngine.Trees().ACoS(decision.ACoSInput{
		ACoS:       decideACoS,
		TargetACoS: decideTargetACoS,
		Clicks:     decideClicks,
		CVR:        decideCVR,
	})
	if err != nil {
		return err
	}
	return renderResult(cmd, r)
}

func runDecideCTR(cmd *cobra.Command, args []string) error {
	r, err := appEngine.Trees().CTR(decision.CTRInput{
		CTR:              decideCTR,
		Impressions:      decideImpressions,
		PriceCompetitive: decideCompetitive,
		TargetCTR:        optionalFloat(cmd, "target-ctr", decideTargetCTR),
	})
	if err != nil {
		return err
	}
	return renderResult(cmd, r)
}

func runDecideBSR(cmd *cobra.Command, args []string) error {
	drop := decideRankDrop
	if cmd.Flags().Changed("previous-rank") {
		var err error
		drop, err = decision.ComputeRankDrop(decidePrevRank, decideCurrRank)
		if err != nil {
			return err
		}
	}
	inventory := analyzer.StockLevel(strings.ToUpper(decideInventory))

	r, err := appEngine.Trees().BSR(decision.BSRInput{
		RankDropPct:     drop,
		ObservationDays: decideDays,
		Inventory:       inventory,
	})
	if err != nil {
		return fmt.Errorf("bsr decision: %w", err)
	}
	return renderResult(cmd, r)
}
