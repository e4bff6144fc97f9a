package app

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/ppcwatch/internal/batch"
	"github.com/blackwell-systems/ppcwatch/internal/output"
	"github.com/blackwell-systems/ppcwatch/internal/store"
)

var trackCmd = &cobra.Command{
	Use:   "track FILE",
	Short: "Evaluate, store and compare against the previous evaluation",
	Long: `Evaluate every campaign in a campaign file, store each evaluation in the
history database, and compare it against the campaign's previous stored
evaluation: metric deltas with trend arrows, newly violated golden rules and
resolved ones.`,
	Example: `  ppcwatch track campaigns.yaml`,
	Args:    cobra.ExactArgs(1),
	RunE:    runTrack,
}

func init() {
	rootCmd.AddCommand(trackCmd)
}

// trackResult is the JSON shape of one tracked campaign. Diff is nil on the
// first stored evaluation.
type trackResult struct {
	Campaign     string      `json:"campaign"`
	EvaluationID int64       `json:"evaluation_id"`
	Diff         *store.Diff `json:"diff,omitempty"`
	Error        string      `json:"error,omitempty"`
}

func runTrack(cmd *cobra.Command, args []string) error {
	campaigns, err := batch.Load(args[0])
	if err != nil {
		return err
	}
	db, err := openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	results, err := batch.Run(cmd.Context(), appEngine, campaigns, appCfg.Batch.Workers)
	if err != nil {
		return err
	}

	tracked := make([]trackResult, 0, len(results))
	for _, res := range results {
		tr := trackResult{Campaign: res.Campaign, Error: res.Error}
		if res.Report == nil {
			tracked = append(tracked, tr)
			continue
		}
		// Saved sequentially so the newest row is this run's.
		id, err := db.SaveReport(*res.Report, "track", appVersion)
		if err != nil {
			return fmt.Errorf("saving %s: %w", res.Campaign, err)
		}
		tr.EvaluationID = id

		diff, err := db.Diff(res.Campaign)
		switch {
		case errors.Is(err, store.ErrNotEnoughHistory):
		case err != nil:
			return fmt.Errorf("comparing %s: %w", res.Campaign, err)
		default:
			tr.Diff = diff
		}
		tracked = append(tracked, tr)
	}

	if flagJSON {
		if err := writeJSON(cmd.OutOrStdout(), tracked); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		for _, tr := range tracked {
			renderTracked(w, tr)
		}
	}

	if failed := batch.Failed(results); len(failed) > 0 {
		return fmt.Errorf("%d of %d campaigns failed", len(failed), len(results))
	}
	return nil
}

func renderTracked(w io.Writer, tr trackResult) {
	switch {
	case tr.Error != "":
		section(w, tr.Campaign)
		fmt.Fprintf(w, " %s\n", output.StyleError.Render("error: "+tr.Error))
	case tr.Diff == nil:
		section(w, tr.Campaign)
		fmt.Fprintf(w, " %s\n", output.StyleMuted.Render("First evaluation stored. Run track again later to see trends."))
	default:
		renderDiff(w, tr.Diff)
	}
}

func renderDiff(w io.Writer, d *store.Diff) {
	section(w, d.Campaign)
	fmt.Fprintf(w, " %s\n", output.StyleMuted.Render(fmt.Sprintf("%s → %s",
		d.Previous.TakenAt.Local().Format("2006-01-02 15:04"), d.Current.TakenAt.Local().Format("2006-01-02 15:04"))))

	if d.Previous.Score != nil && d.Current.Score != nil {
		fmt.Fprintf(w, " %s %s  %s\n",
			output.StyleLabel.Render("Score"),
			output.ScoreBar(*d.Current.Score, 20),
			output.TrendArrow(*d.Current.Score-*d.Previous.Score, true))
	}

	if len(d.Metrics) > 0 {
		tbl := output.NewTable("Metric", "Previous", "Current", "Change")
		for _, m := range d.Metrics {
			tbl.AddRow(m.Name, fmt.Sprintf("%.2f", m.Previous), fmt.Sprintf("%.2f", m.Current), output.TrendArrow(m.Delta, m.HigherIsBetter))
		}
		tbl.Fprint(w)
	}

	for _, v := range d.NewViolations {
		fmt.Fprintf(w, " %s %s rule %d %s: %s\n", output.StyleError.Render("+"), output.StyleBold.Render("NEW"), v.RuleNumber, v.RuleName, v.Message)
	}
	for _, v := range d.Resolved {
		fmt.Fprintf(w, " %s %s rule %d %s\n", output.StyleSuccess.Render("-"), output.StyleBold.Render("RESOLVED"), v.RuleNumber, v.RuleName)
	}
}
