// Package verification re-runs stored backtests and checks they reproduce exactly.
package verification

import (
	"context"
	"strconv"

	"github.com/shopspring/decimal"

	"modquant-lab/internal/domain"
)

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string      // dotted field path, e.g. Selected.TotalPnL
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

// VerificationResult contains the result of verifying a single run.
type VerificationResult struct {
	RunID       string
	Match       bool // true if all fields match
	Divergences []FieldDivergence
}

// VerificationReport contains results for batch verification.
type VerificationReport struct {
	TotalRuns     int
	MatchedRuns   int
	DivergentRuns int
	Results       []VerificationResult
}

// Verifier checks that stored backtests are reproducible.
type Verifier interface {
	// VerifyRun loads the stored run, re-runs the trigger and statistics
	// over its stored input and compares every result field.
	VerifyRun(ctx context.Context, runID string) (*VerificationResult, error)

	// VerifyLedger verifies every run stored for a ledger.
	VerifyLedger(ctx context.Context, ledgerID string) (*VerificationReport, error)
}

// CompareRuns compares two runs and returns divergences.
// Comparison is exact: decimals by value, optionals by definedness and value.
// CreatedAt is not compared.
func CompareRuns(stored, replayed *domain.BacktestRun) []FieldDivergence {
	var d diff

	d.check("RunID", stored.RunID, replayed.RunID)
	d.check("LedgerID", stored.LedgerID, replayed.LedgerID)
	d.check("Segmentation", stored.Segmentation, replayed.Segmentation)
	d.check("ReversalRun", stored.ReversalRun, replayed.ReversalRun)
	d.check("LossThreshold", stored.Config.LossThreshold, replayed.Config.LossThreshold)
	d.check("StopPolicy", stored.Config.StopPolicy, replayed.Config.StopPolicy)
	d.optional("TargetWinRate", domain.FromPtr(stored.Config.TargetWinRate), domain.FromPtr(replayed.Config.TargetWinRate))
	d.check("Labels", stored.Labels, replayed.Labels)
	d.check("SegmentCount", stored.SegmentCount, replayed.SegmentCount)

	d.summary("Selected", &stored.Selected, &replayed.Selected)
	d.summary("Baseline", &stored.Baseline, &replayed.Baseline)

	if len(stored.Streaks) != len(replayed.Streaks) {
		d.add("Streaks", len(stored.Streaks), len(replayed.Streaks))
		return d.out
	}
	for i := range stored.Streaks {
		d.streak(i, &stored.Streaks[i], &replayed.Streaks[i])
	}
	return d.out
}

type diff struct {
	out []FieldDivergence
}

func (d *diff) add(field string, expected, actual interface{}) {
	d.out = append(d.out, FieldDivergence{Field: field, Expected: expected, Actual: actual})
}

func (d *diff) check(field string, expected, actual interface{}) {
	if expected != actual {
		d.add(field, expected, actual)
	}
}

func (d *diff) decimal(field string, expected, actual decimal.Decimal) {
	if !expected.Equal(actual) {
		d.add(field, expected.String(), actual.String())
	}
}

func (d *diff) optional(field string, expected, actual domain.Optional[float64]) {
	e, eOK := expected.Get()
	a, aOK := actual.Get()
	if eOK != aOK || e != a {
		d.add(field, expected.Ptr(), actual.Ptr())
	}
}

func (d *diff) optionalDecimal(field string, expected, actual domain.Optional[decimal.Decimal]) {
	e, eOK := expected.Get()
	a, aOK := actual.Get()
	if eOK != aOK || (eOK && !e.Equal(a)) {
		d.add(field, optionalString(expected), optionalString(actual))
	}
}

func optionalString(o domain.Optional[decimal.Decimal]) string {
	if v, ok := o.Get(); ok {
		return v.String()
	}
	return "n/a"
}

func (d *diff) summary(prefix string, stored, replayed *domain.StatSummary) {
	d.check(prefix+".Count", stored.Count, replayed.Count)
	d.check(prefix+".Wins", stored.Wins, replayed.Wins)
	d.check(prefix+".Losses", stored.Losses, replayed.Losses)
	d.check(prefix+".WinRate", stored.WinRate, replayed.WinRate)
	d.decimal(prefix+".WinPnL", stored.WinPnL, replayed.WinPnL)
	d.decimal(prefix+".LossPnL", stored.LossPnL, replayed.LossPnL)
	d.decimal(prefix+".TotalPnL", stored.TotalPnL, replayed.TotalPnL)
	d.optional(prefix+".PayoutRatio", stored.PayoutRatio, replayed.PayoutRatio)
	d.optionalDecimal(prefix+".MedianWin", stored.MedianWin, replayed.MedianWin)
	d.optionalDecimal(prefix+".MedianLoss", stored.MedianLoss, replayed.MedianLoss)
	d.check(prefix+".MaxConsecutiveLosses", stored.MaxConsecutiveLosses, replayed.MaxConsecutiveLosses)
}

func (d *diff) streak(i int, stored, replayed *domain.Streak) {
	prefix := "Streaks[" + strconv.Itoa(i) + "]"
	d.check(prefix+".Number", stored.Number, replayed.Number)
	d.check(prefix+".Wins", stored.Wins, replayed.Wins)
	d.check(prefix+".Losses", stored.Losses, replayed.Losses)
	d.check(prefix+".Labels", stored.Labels, replayed.Labels)
	d.check(prefix+".WinRate", stored.WinRate, replayed.WinRate)
	d.check(prefix+".Completed", stored.Completed, replayed.Completed)
	if len(stored.Members) != len(replayed.Members) ||
		(len(stored.Members) > 0 && (stored.Start() != replayed.Start() || stored.End() != replayed.End())) {
		d.add(prefix+".Members", stored.Members, replayed.Members)
	}
}
