// Package store provides SQLite persistence for ppcwatch evaluation history.
package store

import "time"

// Evaluation is one stored campaign evaluation.
type Evaluation struct {
	ID       int64     `json:"id"`
	EvalID   string    `json:"eval_id"`
	TakenAt  time.Time `json:"taken_at"`
	Campaign string    `json:"campaign"`
	Command  string    `json:"command"`
	Version  string    `json:"version"`
	// Score is the 0-100 composite benchmark score, nil when undefined.
	Score *float64 `json:"score,omitempty"`
}

// MetricValue is a defined metric of an evaluation and its benchmark tier,
// if the metric has a benchmark table.
type MetricValue struct {
	ID           int64   `json:"id"`
	EvaluationID int64   `json:"evaluation_id"`
	Name         string  `json:"name"`
	Value        float64 `json:"value"`
	Tier         string  `json:"tier,omitempty"`
}

// Violation is a stored golden-rule violation.
type Violation struct {
	ID                int64  `json:"id"`
	EvaluationID      int64  `json:"evaluation_id"`
	RuleNumber        int    `json:"rule_number"`
	RuleName          string `json:"rule_name"`
	Severity          string `json:"severity"`
	Message           string `json:"message"`
	RecommendedAction string `json:"recommended_action"`
	Downgraded        bool   `json:"downgraded"`
}

// Decision is a stored decision tree result.
type Decision struct {
	ID           int64   `json:"id"`
	EvaluationID int64   `json:"evaluation_id"`
	Tree         string  `json:"tree"`
	Branch       string  `json:"branch"`
	Action       string  `json:"action"`
	Reason       string  `json:"reason"`
	Confidence   float64 `json:"confidence"`
}

// Trend classifies a metric movement between two evaluations.
type Trend string

const (
	TrendImproved  Trend = "improved"
	TrendRegressed Trend = "regressed"
	TrendUnchanged Trend = "unchanged"
)

// MetricDelta compares one metric across the two latest evaluations.
type MetricDelta struct {
	Name           string  `json:"name"`
	Previous       float64 `json:"previous"`
	Current        float64 `json:"current"`
	Delta          float64 `json:"delta"`
	HigherIsBetter bool    `json:"higher_is_better"`
	Trend          Trend   `json:"trend"`
}

// Diff compares the latest evaluation of a campaign with the one before it.
type Diff struct {
	Campaign string        `json:"campaign"`
	Previous Evaluation    `json:"previous"`
	Current  Evaluation    `json:"current"`
	Metrics  []MetricDelta `json:"metrics"`
	// NewViolations are rules violated now but not before; Resolved the
	// reverse.
	NewViolations []Violation `json:"new_violations"`
	Resolved      []Violation `json:"resolved"`
}
