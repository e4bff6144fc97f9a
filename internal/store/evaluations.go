package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/blackwell-systems/ppcwatch/internal/analyzer"
	"github.com/blackwell-systems/ppcwatch/internal/report"
)

// ErrNotEnoughHistory is returned by Diff when a campaign has fewer than two
// stored evaluations.
var ErrNotEnoughHistory = errors.New("need at least two stored evaluations to compare")

// lowerIsBetter lists the metrics for which a decrease is an improvement.
var lowerIsBetter = map[string]bool{
	analyzer.MetricACoS:  true,
	analyzer.MetricTACoS: true,
	analyzer.MetricCPC:   true,
}

// SaveReport stores a full campaign evaluation with its metrics, violations
// and decisions in one transaction and returns the evaluation's row ID.
func (db *DB) SaveReport(r report.Report, command, version string) (int64, error) {
	blob, err := json.Marshal(r)
	if err != nil {
		return 0, fmt.Errorf("encoding report: %w", err)
	}

	var score sql.NullFloat64
	if r.Benchmarks.Score.Ok() {
		score = sql.NullFloat64{Float64: r.Benchmarks.Score.Value, Valid: true}
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO evaluations (eval_id, taken_at, campaign, command, version, score, report_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.EvalID, r.GeneratedAt.UTC().Format(time.RFC3339Nano), r.Campaign, command, version, score, string(blob),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting evaluation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	values := r.Metrics.Values()
	for _, name := range sortedNames(values) {
		var tier sql.NullString
		if t, ok := r.Benchmarks.Tiers[name]; ok {
			tier = sql.NullString{String: string(t), Valid: true}
		}
		if _, err := tx.Exec(
			"INSERT INTO metric_values (evaluation_id, metric_name, metric_value, tier) VALUES (?, ?, ?, ?)",
			id, name, values[name], tier,
		); err != nil {
			return 0, fmt.Errorf("inserting metric %s: %w", name, err)
		}
	}

	for _, v := range r.Rules.Violations {
		if _, err := tx.Exec(
			`INSERT INTO violations
			(evaluation_id, rule_number, rule_name, severity, message, recommended_action, downgraded)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, int(v.RuleNumber), v.RuleName, string(v.Severity), v.Message, v.RecommendedAction, v.Downgraded,
		); err != nil {
			return 0, fmt.Errorf("inserting violation of rule %d: %w", v.RuleNumber, err)
		}
	}

	for _, d := range r.Decisions {
		if _, err := tx.Exec(
			`INSERT INTO decisions (evaluation_id, tree, branch, action, reason, confidence)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, d.Tree, string(d.Branch), string(d.Action), d.Reason, d.Confidence,
		); err != nil {
			return 0, fmt.Errorf("inserting %s decision: %w", d.Tree, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

const evaluationColumns = "id, eval_id, taken_at, campaign, command, version, score"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvaluation(row rowScanner) (Evaluation, error) {
	var e Evaluation
	var takenAt string
	var score sql.NullFloat64
	if err := row.Scan(&e.ID, &e.EvalID, &takenAt, &e.Campaign, &e.Command, &e.Version, &score); err != nil {
		return Evaluation{}, err
	}
	e.TakenAt, _ = time.Parse(time.RFC3339Nano, takenAt)
	if score.Valid {
		s := score.Float64
		e.Score = &s
	}
	return e, nil
}

// LatestEvaluations returns up to n evaluations of campaign, newest first.
func (db *DB) LatestEvaluations(campaign string, n int) ([]Evaluation, error) {
	rows, err := db.conn.Query(
		"SELECT "+evaluationColumns+" FROM evaluations WHERE campaign = ? ORDER BY id DESC LIMIT ?",
		campaign, n,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var evals []Evaluation
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		evals = append(evals, e)
	}
	return evals, rows.Err()
}

// Campaigns returns every campaign name with stored history, sorted.
func (db *DB) Campaigns() ([]string, error) {
	rows, err := db.conn.Query("SELECT DISTINCT campaign FROM evaluations ORDER BY campaign")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// LoadReport returns the full stored report of an evaluation, or nil if the
// ID is unknown.
func (db *DB) LoadReport(evaluationID int64) (*report.Report, error) {
	var blob string
	err := db.conn.QueryRow("SELECT report_json FROM evaluations WHERE id = ?", evaluationID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var r report.Report
	if err := json.Unmarshal([]byte(blob), &r); err != nil {
		return nil, fmt.Errorf("decoding stored report %d: %w", evaluationID, err)
	}
	return &r, nil
}

// MetricValues returns the stored metrics of an evaluation, ordered by name.
func (db *DB) MetricValues(evaluationID int64) ([]MetricValue, error) {
	rows, err := db.conn.Query(
		`SELECT id, evaluation_id, metric_name, metric_value, tier
		 FROM metric_values WHERE evaluation_id = ? ORDER BY metric_name`,
		evaluationID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var values []MetricValue
	for rows.Next() {
		var m MetricValue
		var tier sql.NullString
		if err := rows.Scan(&m.ID, &m.EvaluationID, &m.Name, &m.Value, &tier); err != nil {
			return nil, err
		}
		m.Tier = tier.String
		values = append(values, m)
	}
	return values, rows.Err()
}

// Violations returns the stored violations of an evaluation in their
// checker order, most severe first.
func (db *DB) Violations(evaluationID int64) ([]Violation, error) {
	rows, err := db.conn.Query(
		`SELECT id, evaluation_id, rule_number, rule_name, severity, message, recommended_action, downgraded
		 FROM violations WHERE evaluation_id = ? ORDER BY id`,
		evaluationID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Violation
	for rows.Next() {
		var v Violation
		if err := rows.Scan(&v.ID, &v.EvaluationID, &v.RuleNumber, &v.RuleName,
			&v.Severity, &v.Message, &v.RecommendedAction, &v.Downgraded); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Decisions returns the stored decision tree results of an evaluation.
func (db *DB) Decisions(evaluationID int64) ([]Decision, error) {
	rows, err := db.conn.Query(
		`SELECT id, evaluation_id, tree, branch, action, reason, confidence
		 FROM decisions WHERE evaluation_id = ? ORDER BY id`,
		evaluationID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Decision
	for rows.Next() {
		var d Decision
		if err := rows.Scan(&d.ID, &d.EvaluationID, &d.Tree, &d.Branch, &d.Action, &d.Reason, &d.Confidence); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Diff compares the two most recent evaluations of campaign. Only metrics
// defined in both evaluations are compared.
func (db *DB) Diff(campaign string) (*Diff, error) {
	evals, err := db.LatestEvaluations(campaign, 2)
	if err != nil {
		return nil, err
	}
	if len(evals) < 2 {
		return nil, fmt.Errorf("campaign %q: %w", campaign, ErrNotEnoughHistory)
	}
	cur, prev := evals[0], evals[1]

	d := &Diff{Campaign: campaign, Previous: prev, Current: cur}

	prevVals, err := db.MetricValues(prev.ID)
	if err != nil {
		return nil, err
	}
	curVals, err := db.MetricValues(cur.ID)
	if err != nil {
		return nil, err
	}
	before := make(map[string]float64, len(prevVals))
	for _, m := range prevVals {
		before[m.Name] = m.Value
	}
	for _, m := range curVals {
		p, ok := before[m.Name]
		if !ok {
			continue
		}
		d.Metrics = append(d.Metrics, compare(m.Name, p, m.Value))
	}

	prevViol, err := db.Violations(prev.ID)
	if err != nil {
		return nil, err
	}
	curViol, err := db.Violations(cur.ID)
	if err != nil {
		return nil, err
	}
	d.NewViolations = missingRules(curViol, prevViol)
	d.Resolved = missingRules(prevViol, curViol)

	return d, nil
}

func compare(name string, prev, cur float64) MetricDelta {
	md := MetricDelta{
		Name:           name,
		Previous:       prev,
		Current:        cur,
		Delta:          cur - prev,
		HigherIsBetter: !lowerIsBetter[name],
		Trend:          TrendUnchanged,
	}
	switch {
	case md.Delta == 0:
	case (md.Delta > 0) == md.HigherIsBetter:
		md.Trend = TrendImproved
	default:
		md.Trend = TrendRegressed
	}
	return md
}

// missingRules returns the violations in a whose rule is absent from b.
func missingRules(a, b []Violation) []Violation {
	seen := make(map[int]bool, len(b))
	for _, v := range b {
		seen[v.RuleNumber] = true
	}
	out := []Violation{}
	for _, v := range a {
		if !seen[v.RuleNumber] {
			out = append(out, v)
		}
	}
	return out
}

func sortedNames(m map[string]float64) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
