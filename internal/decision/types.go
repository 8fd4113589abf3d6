// Package decision judges whether following after losses improves on the baseline.
package decision

import "modquant-lab/internal/domain"

// Verdict is the outcome of the decision gate.
type Verdict string

const (
	VerdictImproves         Verdict = "IMPROVES"
	VerdictNoImprovement    Verdict = "NO_IMPROVEMENT"
	VerdictInsufficientData Verdict = "INSUFFICIENT_DATA"
)

// DefaultMinSelected is the smallest selection judged at all.
const DefaultMinSelected = 5

// Input is the pair of summaries being compared.
type Input struct {
	Selected domain.StatSummary
	Baseline domain.StatSummary
}

// InputFromRun takes the summaries of a stored run.
// Label runs never carry P&L, whatever the store returned.
func InputFromRun(run *domain.BacktestRun) Input {
	in := Input{Selected: run.Selected, Baseline: run.Baseline}
	if run.Segmentation == domain.SegmentationLabels {
		in.Selected.NoPnL = true
		in.Baseline.NoPnL = true
	}
	return in
}

// CriterionResult represents pass/fail for one criterion.
// A NotApplicable criterion is reported but takes no part in the verdict.
type CriterionResult struct {
	Name          string
	Threshold     string
	Actual        string
	Pass          bool
	NotApplicable bool
}

// Result contains the verdict with its checklist.
type Result struct {
	Verdict  Verdict
	Criteria []CriterionResult
}

// Passed counts passing criteria.
func (r *Result) Passed() int {
	n := 0
	for _, c := range r.Criteria {
		if c.Pass {
			n++
		}
	}
	return n
}

// Applicable counts criteria that take part in the verdict.
func (r *Result) Applicable() int {
	n := 0
	for _, c := range r.Criteria {
		if !c.NotApplicable {
			n++
		}
	}
	return n
}
