package app

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/ppcwatch/internal/batch"
	"github.com/blackwell-systems/ppcwatch/internal/output"
	"github.com/blackwell-systems/ppcwatch/internal/report"
	"github.com/blackwell-systems/ppcwatch/internal/store"
)

var (
	evalCampaign string
	evalTrack    bool

	batchWorkers int
	batchTrack   bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate FILE",
	Short: "Full report for one campaign from a YAML or JSON file",
	Long: `Evaluate one campaign from a campaign file: metrics, benchmark tiers,
TACoS strategy, bid recommendation, budget pacing, stock situation, golden
rules and decision-tree actions. Sections whose inputs are missing are
skipped and listed under NOTES.

The file holds a "campaigns" list; --campaign picks one by name, otherwise
the first is used.`,
	Example: `  ppcwatch evaluate campaigns.yaml --campaign "Brand - Exact"
  ppcwatch evaluate campaigns.yaml --track --json`,
	Args: cobra.ExactArgs(1),
	RunE: runEvaluate,
}

var batchCmd = &cobra.Command{
	Use:   "batch FILE",
	Short: "Evaluate every campaign in a file concurrently",
	Long: `Evaluate all campaigns in a campaign file with a bounded worker pool and
print a summary. A campaign that fails to evaluate does not stop the others;
the command exits non-zero when any campaign failed.`,
	Example: `  ppcwatch batch campaigns.yaml --workers 8 --track`,
	Args:    cobra.ExactArgs(1),
	RunE:    runBatch,
}

func init() {
	evaluateCmd.Flags().StringVar(&evalCampaign, "campaign", "", "Campaign name to evaluate (default: first in file)")
	evaluateCmd.Flags().BoolVar(&evalTrack, "track", false, "Store the evaluation in the history database")
	rootCmd.AddCommand(evaluateCmd)

	batchCmd.Flags().IntVar(&batchWorkers, "workers", 0, "Concurrent evaluations (default from config)")
	batchCmd.Flags().BoolVar(&batchTrack, "track", false, "Store every successful evaluation in the history database")
	rootCmd.AddCommand(batchCmd)
}

// pickCampaign returns the named campaign, or the first when name is empty.
func pickCampaign(campaigns []report.Campaign, name string) (report.Campaign, error) {
	if name == "" {
		return campaigns[0], nil
	}
	for _, c := range campaigns {
		if c.Name == name {
			return c, nil
		}
	}
	return report.Campaign{}, fmt.Errorf("campaign %q not found", name)
}

func openHistory() (*store.DB, error) {
	db, err := store.Open(appCfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	campaigns, err := batch.Load(args[0])
	if err != nil {
		return err
	}
	c, err := pickCampaign(campaigns, evalCampaign)
	if err != nil {
		return err
	}

	r, err := appEngine.Evaluate(c)
	if err != nil {
		return fmt.Errorf("evaluating %s: %w", c.Name, err)
	}
	logger.Debug("campaign evaluated", "campaign", r.Campaign, "eval_id", r.EvalID, "notes", len(r.Notes))

	if evalTrack {
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		if _, err := db.SaveReport(r, "evaluate", appVersion); err != nil {
			return fmt.Errorf("saving evaluation: %w", err)
		}
	}

	if flagJSON {
		return writeJSON(cmd.OutOrStdout(), r)
	}
	renderReport(cmd.OutOrStdout(), r)
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	campaigns, err := batch.Load(args[0])
	if err != nil {
		return err
	}
	workers := appCfg.Batch.Workers
	if cmd.Flags().Changed("workers") {
		workers = batchWorkers
	}
	logger.Debug("batch started", "campaigns", len(campaigns), "workers", workers)

	results, err := batch.Run(cmd.Context(), appEngine, campaigns, workers)
	if err != nil {
		return err
	}

	if batchTrack {
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		for _, res := range results {
			if res.Report == nil {
				continue
			}
			if _, err := db.SaveReport(*res.Report, "batch", appVersion); err != nil {
				logger.Warn("saving evaluation failed", "campaign", res.Campaign, "err", err)
			}
		}
	}

	if flagJSON {
		if err := writeJSON(cmd.OutOrStdout(), results); err != nil {
			return err
		}
	} else {
		renderBatch(cmd.OutOrStdout(), results)
	}

	if failed := batch.Failed(results); len(failed) > 0 {
		return fmt.Errorf("%d of %d campaigns failed", len(failed), len(results))
	}
	return nil
}

func renderBatch(w io.Writer, results []batch.Result) {
	section(w, fmt.Sprintf("BATCH (%d campaigns)", len(results)))
	tbl := output.NewTable("Campaign", "ACoS", "Score", "Worst violation")
	for _, res := range results {
		if res.Report == nil {
			tbl.AddRow(res.Campaign, "-", "-", output.StyleError.Render("error: "+res.Error))
			continue
		}
		r := res.Report
		worst := output.StyleSuccess.Render("none")
		if v, ok := r.Rules.Worst(); ok {
			worst = fmt.Sprintf("%s %s", output.SeverityBadge(v.Severity), v.RuleName)
		}
		tbl.AddRow(r.Campaign, output.Value(r.Metrics.ACoS, "%"), output.Value(r.Benchmarks.Score, ""), worst)
	}
	tbl.Fprint(w)
}
