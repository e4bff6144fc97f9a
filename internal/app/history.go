package app

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/ppcwatch/internal/output"
	"github.com/blackwell-systems/ppcwatch/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [CAMPAIGN]",
	Short: "Show stored evaluations and trends",
	Long: `Without arguments, list every campaign with stored history and its latest
composite score. With a campaign name, list its most recent evaluations and
the change between the last two.`,
	Example: `  ppcwatch history
  ppcwatch history "Brand - Exact" -n 5`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of evaluations to show")
	rootCmd.AddCommand(historyCmd)
}

type campaignSummary struct {
	Campaign string            `json:"campaign"`
	Latest   *store.Evaluation `json:"latest,omitempty"`
}

type campaignHistory struct {
	Campaign    string             `json:"campaign"`
	Evaluations []store.Evaluation `json:"evaluations"`
	Diff        *store.Diff        `json:"diff,omitempty"`
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyLimit < 1 {
		return fmt.Errorf("--limit must be at least 1 (got %d)", historyLimit)
	}
	db, err := openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if len(args) == 0 {
		return listCampaigns(cmd, db)
	}

	campaign := args[0]
	evals, err := db.LatestEvaluations(campaign, historyLimit)
	if err != nil {
		return err
	}
	if len(evals) == 0 {
		return fmt.Errorf("no stored evaluations for campaign %q", campaign)
	}
	h := campaignHistory{Campaign: campaign, Evaluations: evals}
	diff, err := db.Diff(campaign)
	switch {
	case errors.Is(err, store.ErrNotEnoughHistory):
	case err != nil:
		return err
	default:
		h.Diff = diff
	}

	if flagJSON {
		return writeJSON(cmd.OutOrStdout(), h)
	}
	w := cmd.OutOrStdout()
	renderEvaluations(w, h)
	if h.Diff != nil {
		renderDiff(w, h.Diff)
	}
	return nil
}

func listCampaigns(cmd *cobra.Command, db *store.DB) error {
	names, err := db.Campaigns()
	if err != nil {
		return err
	}
	summaries := make([]campaignSummary, 0, len(names))
	for _, name := range names {
		evals, err := db.LatestEvaluations(name, 1)
		if err != nil {
			return err
		}
		s := campaignSummary{Campaign: name}
		if len(evals) > 0 {
			s.Latest = &evals[0]
		}
		summaries = append(summaries, s)
	}

	if flagJSON {
		return writeJSON(cmd.OutOrStdout(), summaries)
	}
	w := cmd.OutOrStdout()
	if len(summaries) == 0 {
		fmt.Fprintln(w, output.StyleMuted.Render("No stored evaluations. Use evaluate --track, batch --track or track."))
		return nil
	}
	section(w, "CAMPAIGNS")
	tbl := output.NewTable("Campaign", "Last evaluated", "Score")
	for _, s := range summaries {
		when, score := "-", "-"
		if s.Latest != nil {
			when = s.Latest.TakenAt.Local().Format("2006-01-02 15:04")
			score = formatScore(s.Latest.Score)
		}
		tbl.AddRow(s.Campaign, when, score)
	}
	tbl.Fprint(w)
	return nil
}

func formatScore(score *float64) string {
	if score == nil {
		return output.StyleMuted.Render("n/a")
	}
	return fmt.Sprintf("%.1f", *score)
}

func renderEvaluations(w io.Writer, h campaignHistory) {
	section(w, fmt.Sprintf("HISTORY %s (%d)", h.Campaign, len(h.Evaluations)))
	tbl := output.NewTable("When", "Command", "Score", "Evaluation")
	for _, e := range h.Evaluations {
		tbl.AddRow(e.TakenAt.Local().Format("2006-01-02 15:04"), e.Command, formatScore(e.Score), e.EvalID)
	}
	tbl.Fprint(w)
}
