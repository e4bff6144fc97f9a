package app

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/ppcwatch/internal/mcp"
)

var mcpHistory bool

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the evaluation engine as an MCP stdio server",
	Long: `Start a Model Context Protocol stdio server exposing the engine as tools:

  calculate_metrics    Derived metrics from raw counters
  evaluate_benchmarks  Tiers, composite score, TACoS strategy, organic ratio
  recommend_bid        Bounded bid adjustment
  budget_pacing        Hourly bid multiplier
  check_golden_rules   Golden rule violations
  decide_acos          ACoS decision tree
  decide_ctr           CTR decision tree
  decide_bsr           BSR decision tree
  analyze_stock        Stock runway and budget multiplier
  evaluate_campaign    Full campaign report
  score_product        Product opportunity RED/YELLOW/GREEN

With --history the server also opens the history database, enables
"track" on evaluate_campaign and adds the campaign_history tool.

Example MCP client configuration:
  {"mcpServers":{"ppcwatch":{"command":"ppcwatch","args":["mcp","--history"]}}}`,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().BoolVar(&mcpHistory, "history", false, "Open the history database and expose campaign_history")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	opts := []mcp.Option{mcp.WithLogger(logger)}
	if mcpHistory {
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		opts = append(opts, mcp.WithHistory(db))
	}
	srv := mcp.NewServer(appEngine, appVersion, opts...)
	return srv.Run(cmd.Context(), os.Stdin, os.Stdout)
}
