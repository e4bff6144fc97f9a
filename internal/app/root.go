// Package app contains the Cobra command tree for ppcwatch.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/ppcwatch/internal/config"
	"github.com/blackwell-systems/ppcwatch/internal/output"
	"github.com/blackwell-systems/ppcwatch/internal/report"
)

var appVersion = "dev"

// SetVersion sets the application version (called from main with ldflags value).
func SetVersion(v string) {
	appVersion = v
	rootCmd.Version = v
}

var (
	flagNoColor bool
	flagJSON    bool
	flagVerbose bool
	flagConfig  string
)

// Loaded by the root pre-run hook for every subcommand.
var (
	appCfg    *config.Config
	appEngine *report.Engine
	logger    = slog.New(slog.NewTextHandler(io.Discard, nil))
)

var rootCmd = &cobra.Command{
	Use:   "ppcwatch",
	Short: "PPC metrics and decision engine for marketplace sellers",
	Long: `ppcwatch turns raw advertising and inventory counters into performance
metrics, benchmark tiers, bid recommendations, golden-rule violations and
decision-tree actions, and tracks campaign evaluations over time.

Percentages on the command line are percentage points (25 means 25%).`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		fmt.Fprintln(w, "ppcwatch", appVersion)
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Use a subcommand:")
		fmt.Fprintln(w, "  metrics    Derive ACoS, TACoS, CTR, CVR, RPC, ROAS and CPC")
		fmt.Fprintln(w, "  benchmark  Classify metrics into performance tiers")
		fmt.Fprintln(w, "  bid        Optimal bid, bid adjustment and budget pacing")
		fmt.Fprintln(w, "  rules      Check the five golden rules")
		fmt.Fprintln(w, "  decide     Walk the ACoS, CTR or BSR decision tree")
		fmt.Fprintln(w, "  stock      Inventory runway and PPC budget multiplier")
		fmt.Fprintln(w, "  score      Grade product opportunities RED, YELLOW or GREEN")
		fmt.Fprintln(w, "  evaluate   Full report for one campaign from a file")
		fmt.Fprintln(w, "  batch      Evaluate every campaign in a file concurrently")
		fmt.Fprintln(w, "  track      Evaluate, store and compare against history")
		fmt.Fprintln(w, "  history    Show stored evaluations and trends")
		fmt.Fprintln(w, "  mcp        Serve the engine over MCP stdio")
		return nil
	},
}

// setup loads configuration, builds the evaluation engine and configures
// color and logging. A configuration that fails validation stops every
// command before any evaluation runs.
func setup(cmd *cobra.Command, args []string) error {
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	engine, err := report.New(cfg.Engine())
	if err != nil {
		return err
	}
	appCfg, appEngine = cfg, engine

	output.AutoDetect(os.Stdout, flagNoColor || !cfg.Output.Color)
	logger.Debug("configuration loaded", "config", flagConfig, "db_path", cfg.DBPath, "min_clicks", cfg.DataSufficiency.MinClicks)
	return nil
}

// Execute is the entry point called from main.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default: ~/.config/ppcwatch/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable verbose output")
}
