package app

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/ppcwatch/internal/batch"
	"github.com/blackwell-systems/ppcwatch/internal/output"
	"github.com/blackwell-systems/ppcwatch/internal/scoring"
)

var scoreASIN string

var scoreCmd = &cobra.Command{
	Use:   "score FILE",
	Short: "Grade product opportunities RED, YELLOW or GREEN",
	Long: `Score every product in a product research file (YAML or JSON with a
"products" list) before advertising it. Price barrier, brand dominance,
keyword volume, title density and source triangulation are weighted into a
0-100 score:

  >= 70  GREEN   approve
  >= 40  YELLOW  caution
  <  40  RED     reject

A RED price barrier, brand dominance or keyword volume check rejects the
product regardless of the score.`,
	Example: `  ppcwatch score products.yaml
  ppcwatch score products.yaml --asin B0TEST0001 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runScore,
}

func init() {
	scoreCmd.Flags().StringVar(&scoreASIN, "asin", "", "Score only the product with this ASIN")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	products, err := batch.LoadProducts(args[0])
	if err != nil {
		return err
	}
	if scoreASIN != "" {
		var picked []scoring.Product
		for _, p := range products {
			if p.ASIN == scoreASIN {
				picked = append(picked, p)
			}
		}
		if len(picked) == 0 {
			return fmt.Errorf("product %q not found", scoreASIN)
		}
		products = picked
	}

	results := make([]scoring.Result, 0, len(products))
	for _, p := range products {
		r, err := appEngine.Scorer().Score(p)
		if err != nil {
			return fmt.Errorf("scoring %s: %w", p.ASIN, err)
		}
		logger.Debug("product scored", "asin", r.ASIN, "decision", r.Decision, "score", r.Score, "kill_switch", r.KillSwitch)
		results = append(results, r)
	}

	if flagJSON {
		return writeJSON(cmd.OutOrStdout(), results)
	}
	w := cmd.OutOrStdout()
	for _, r := range results {
		renderScore(w, r)
	}
	return nil
}

func renderScore(w io.Writer, r scoring.Result) {
	title := r.ASIN
	if r.Keyword != "" {
		title += " / " + r.Keyword
	}
	section(w, title)

	label := output.StyleLabel.Render
	fmt.Fprintf(w, " %s %s %s\n", label("Decision"), output.StatusBadge(r.Decision), output.ScoreBar(r.Score, 20))
	if r.KillSwitch != "" {
		fmt.Fprintf(w, " %s %s\n", label("Kill switch"), output.StyleError.Render(r.KillSwitch))
	}
	fmt.Fprintf(w, " %s %s\n", label("Competition"), r.Competition)
	fmt.Fprintf(w, " %s %.1f%%\n", label("Estimated margin"), r.EstimatedMarginPct)

	tbl := output.NewTable("Check", "Status", "Score", "Reason")
	for _, c := range r.Checks() {
		tbl.AddRow(c.Rule, output.StatusBadge(c.Status), fmt.Sprintf("%.1f", c.Score), c.Reason)
	}
	tbl.Fprint(w)

	fmt.Fprintf(w, " %s\n", r.Recommendation)
	for i, step := range r.NextSteps {
		fmt.Fprintf(w, " %d. %s\n", i+1, step)
	}
}
