package app

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/blackwell-systems/ppcwatch/internal/analyzer"
	"github.com/blackwell-systems/ppcwatch/internal/decision"
	"github.com/blackwell-systems/ppcwatch/internal/golden"
	"github.com/blackwell-systems/ppcwatch/internal/output"
	"github.com/blackwell-systems/ppcwatch/internal/ppc"
	"github.com/blackwell-systems/ppcwatch/internal/report"
)

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func section(w io.Writer, title string) {
	width := 66
	if appCfg != nil {
		width = appCfg.Output.Width - 2
	}
	fmt.Fprintln(w, output.Section(title, width))
	fmt.Fprintln(w)
}

// metricUnits gives the display suffix of each metric.
var metricUnits = map[string]string{
	analyzer.MetricACoS:  "%",
	analyzer.MetricTACoS: "%",
	analyzer.MetricCTR:   "%",
	analyzer.MetricCVR:   "%",
	analyzer.MetricROAS:  "x",
}

func formatMetric(name string, d ppc.Derived) string {
	if d.Ok() && (name == analyzer.MetricRPC || name == analyzer.MetricCPC) {
		return output.Money(d.Value)
	}
	return output.Value(d, metricUnits[name])
}

func renderAdvisories(w io.Writer, advisories []ppc.Advisory) {
	for _, a := range advisories {
		fmt.Fprintf(w, " %s %s\n", output.StyleWarning.Render("!"), a.Message)
	}
}

func renderMetrics(w io.Writer, m analyzer.MetricSet, ev analyzer.Evaluation) {
	section(w, "METRICS")

	tbl := output.NewTable("Metric", "Value", "Tier")
	for _, f := range m.Fields() {
		tier := "-"
		if t, ok := ev.Tiers[f.Name]; ok {
			tier = output.TierBadge(t)
		}
		tbl.AddRow(strings.ToUpper(f.Name), formatMetric(f.Name, f.Value), tier)
	}
	tbl.Fprint(w)

	if ev.Score.Ok() {
		fmt.Fprintf(w, "\n %s %s\n", output.StyleLabel.Render("Benchmark score"), output.ScoreBar(ev.Score.Value, 20))
	}
	renderAdvisories(w, m.Advisories)
}

func renderEvaluation(w io.Writer, ev analyzer.Evaluation, tacos *analyzer.TACoSAssessment, ratio *analyzer.OrganicRatioAssessment) {
	section(w, "BENCHMARKS")

	tbl := output.NewTable("Metric", "Tier")
	for _, name := range sortedTierNames(ev.Tiers) {
		tbl.AddRow(strings.ToUpper(name), output.TierBadge(ev.Tiers[name]))
	}
	tbl.Fprint(w)
	fmt.Fprintln(w)

	if ev.Score.Ok() {
		fmt.Fprintf(w, " %s %s\n", output.StyleLabel.Render("Composite score"), output.ScoreBar(ev.Score.Value, 20))
	} else {
		fmt.Fprintf(w, " %s %s\n", output.StyleLabel.Render("Composite score"), output.StyleMuted.Render("n/a (no weighted metric)"))
	}
	if tacos != nil {
		healthy := output.StyleWarning.Render("outside healthy range")
		if tacos.Healthy {
			healthy = output.StyleSuccess.Render("healthy")
		}
		fmt.Fprintf(w, " %s %s (%.2f%%, %s)\n", output.StyleLabel.Render("TACoS strategy"), tacos.Strategy, tacos.TACoS, healthy)
	}
	if ratio != nil {
		fmt.Fprintf(w, " %s %s (%s)\n", output.StyleLabel.Render("Organic:PPC ratio"), output.Value(ratio.Ratio, ""), ratio.Health)
	}
}

func sortedTierNames(tiers map[string]analyzer.Tier) []string {
	names := make([]string, 0, len(tiers))
	for name := range tiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func renderBid(w io.Writer, r analyzer.BidRecommendation) {
	section(w, "BID")

	label := output.StyleLabel.Render
	fmt.Fprintf(w, " %s %s\n", label("Revenue per click"), output.Money(r.RPC))
	fmt.Fprintf(w, " %s %s\n", label("Optimal bid"), output.Money(r.OptimalBid))
	fmt.Fprintf(w, " %s %s\n", label("Current bid"), output.Money(r.CurrentBid))

	change := output.TrendArrow(r.ChangePct*100, true)
	if r.Clamped {
		change += output.StyleMuted.Render(" (limited)")
	}
	fmt.Fprintf(w, " %s %s  %s\n", label("Recommended bid"), output.StyleBold.Render(output.Money(r.RecommendedBid)), change)
	fmt.Fprintf(w, " %s %s\n", label("Reason"), r.Reason)
	fmt.Fprintf(w, " %s %.0f%%\n", label("Confidence"), r.Confidence*100)
	renderAdvisories(w, r.Advisories)
}

func renderPacing(w io.Writer, p analyzer.PacingAdjustment) {
	section(w, "BUDGET PACING")

	label := output.StyleLabel.Render
	fmt.Fprintf(w, " %s %d:00\n", label("Hour"), p.Hour)
	fmt.Fprintf(w, " %s %.1f%% (expected %.1f%%)\n", label("Budget spent"), p.SpentPct, p.ExpectedPct)
	fmt.Fprintf(w, " %s %s\n", label("Status"), p.Status)
	fmt.Fprintf(w, " %s x%.2f\n", label("Bid multiplier"), p.BidMultiplier)
}

func renderStock(w io.Writer, s analyzer.StockSituation) {
	section(w, "INVENTORY")

	label := output.StyleLabel.Render
	fmt.Fprintf(w, " %s %s\n", label("Stock level"), output.StockBadge(s.StockLevel))
	fmt.Fprintf(w, " %s %.1f days (lead time %g days)\n", label("Runway"), s.DaysRemaining, s.LeadTimeDays)
	reorder := fmt.Sprintf("%.0f units", s.ReorderPoint)
	if s.ReorderNow {
		reorder += " " + output.StyleError.Render("reorder now")
	}
	fmt.Fprintf(w, " %s %s\n", label("Reorder point"), reorder)
	fmt.Fprintf(w, " %s x%.2f\n", label("PPC budget multiplier"), s.BudgetMultiplier)

	if len(s.Actions) > 0 {
		fmt.Fprintln(w)
		for _, a := range s.Actions {
			fmt.Fprintf(w, " %d. %s\n", a.Priority, a.Action)
		}
	}
}

func renderRules(w io.Writer, r golden.Report) {
	section(w, "GOLDEN RULES")

	if len(r.Violations) == 0 {
		fmt.Fprintf(w, " %s\n", output.StyleSuccess.Render("No violations"))
	}
	for _, v := range r.Violations {
		fmt.Fprintf(w, " %s Rule %d: %s\n", output.SeverityBadge(v.Severity), v.RuleNumber, v.RuleName)
		fmt.Fprintf(w, "   %s\n", v.Message)
		fmt.Fprintf(w, "   %s %s\n", output.StyleMuted.Render("->"), v.RecommendedAction)
	}
	for _, u := range r.Undetermined {
		fmt.Fprintf(w, " %s Rule %d: %s\n", output.StyleMuted.Render("[?]"), u.RuleNumber, u.Reason)
	}
}

func renderDecisions(w io.Writer, results []decision.Result) {
	section(w, "DECISIONS")

	tbl := output.NewTable("Tree", "Action", "Confidence", "Reason")
	for _, r := range results {
		tbl.AddRow(strings.ToUpper(r.Tree), output.StyleBold.Render(string(r.Action)), fmt.Sprintf("%.0f%%", r.Confidence*100), r.Reason)
	}
	tbl.Fprint(w)
	for _, r := range results {
		renderAdvisories(w, r.Advisories)
	}
}

func renderReport(w io.Writer, r report.Report) {
	fmt.Fprintf(w, "%s %s\n", output.StyleHeader.Render("Campaign"), output.StyleBold.Render(r.Campaign))
	fmt.Fprintf(w, "%s\n", output.StyleMuted.Render(fmt.Sprintf("evaluation %s at %s", r.EvalID, r.GeneratedAt.Format("2006-01-02 15:04 MST"))))

	renderMetrics(w, r.Metrics, r.Benchmarks)
	if r.TACoS != nil || r.OrganicRatio != nil {
		renderEvaluation(w, r.Benchmarks, r.TACoS, r.OrganicRatio)
	}
	if r.Bid != nil {
		renderBid(w, *r.Bid)
	}
	if r.Pacing != nil {
		renderPacing(w, *r.Pacing)
	}
	if r.Stock != nil {
		renderStock(w, *r.Stock)
	}
	renderRules(w, r.Rules)
	if len(r.Decisions) > 0 {
		renderDecisions(w, r.Decisions)
	}
	if len(r.Notes) > 0 {
		section(w, "NOTES")
		for _, n := range r.Notes {
			fmt.Fprintf(w, " %s\n", output.StyleMuted.Render(n))
		}
	}
}
