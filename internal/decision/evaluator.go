package decision

import (
	"fmt"

	"github.com/shopspring/decimal"

	"modquant-lab/internal/domain"
)

const notAvailable = "n/a"

// Evaluator evaluates decision criteria.
type Evaluator struct {
	minSelected int
}

// NewEvaluator creates a new decision evaluator.
// minSelected < 1 uses DefaultMinSelected.
func NewEvaluator(minSelected int) *Evaluator {
	if minSelected < 1 {
		minSelected = DefaultMinSelected
	}
	return &Evaluator{minSelected: minSelected}
}

// Evaluate produces a Result from the two summaries.
// INSUFFICIENT_DATA if the selection is smaller than the minimum,
// IMPROVES if every applicable criterion passes, NO_IMPROVEMENT otherwise.
// Without P&L the total and payout criteria are not applicable.
// The full checklist is returned in every case.
func (e *Evaluator) Evaluate(in Input) *Result {
	criteria := []CriterionResult{
		e.enoughSelected(in.Selected),
		winRateAbove(in.Selected, in.Baseline),
		totalPositive(in.Selected),
		payoutNotBelow(in.Selected, in.Baseline),
		streakNotWorse(in.Selected, in.Baseline),
	}

	verdict := VerdictImproves
	switch {
	case !criteria[0].Pass:
		verdict = VerdictInsufficientData
	default:
		for _, c := range criteria[1:] {
			if !c.Pass && !c.NotApplicable {
				verdict = VerdictNoImprovement
				break
			}
		}
	}

	return &Result{Verdict: verdict, Criteria: criteria}
}

func (e *Evaluator) enoughSelected(sel domain.StatSummary) CriterionResult {
	return CriterionResult{
		Name:      "Selected segments",
		Threshold: fmt.Sprintf(">= %d", e.minSelected),
		Actual:    fmt.Sprintf("%d", sel.Count),
		Pass:      sel.Count >= e.minSelected,
	}
}

func winRateAbove(sel, base domain.StatSummary) CriterionResult {
	return CriterionResult{
		Name:      "Win rate above baseline",
		Threshold: fmt.Sprintf("> %.2f%%", base.WinRate*100),
		Actual:    fmt.Sprintf("%.2f%%", sel.WinRate*100),
		Pass:      sel.WinRate > base.WinRate,
	}
}

func totalPositive(sel domain.StatSummary) CriterionResult {
	c := CriterionResult{
		Name:      "Selected total P&L",
		Threshold: "> 0",
	}
	if !sel.PnLDefined() {
		c.Actual = notAvailable
		c.NotApplicable = true
		return c
	}
	c.Actual = sel.TotalPnL.String()
	c.Pass = sel.TotalPnL.GreaterThan(decimal.Zero)
	return c
}

// payoutNotBelow compares payout ratios. An undefined selected payout means
// the selection had no losing P&L and passes; an undefined baseline with a
// defined selection fails since the baseline never lost.
func payoutNotBelow(sel, base domain.StatSummary) CriterionResult {
	s, sOK := sel.PayoutRatio.Get()
	b, bOK := base.PayoutRatio.Get()

	c := CriterionResult{
		Name:      "Payout ratio not below baseline",
		Threshold: ">= " + formatRatio(base.PayoutRatio),
		Actual:    formatRatio(sel.PayoutRatio),
	}
	switch {
	case !sel.PnLDefined() || !base.PnLDefined():
		c.NotApplicable = true
	case !sOK:
		c.Pass = true
	case !bOK:
		c.Pass = false
	default:
		c.Pass = s >= b
	}
	return c
}

func streakNotWorse(sel, base domain.StatSummary) CriterionResult {
	return CriterionResult{
		Name:      "Max consecutive losses",
		Threshold: fmt.Sprintf("<= %d", base.MaxConsecutiveLosses),
		Actual:    fmt.Sprintf("%d", sel.MaxConsecutiveLosses),
		Pass:      sel.MaxConsecutiveLosses <= base.MaxConsecutiveLosses,
	}
}

func formatRatio(o domain.Optional[float64]) string {
	if v, ok := o.Get(); ok {
		return fmt.Sprintf("%.4f", v)
	}
	return notAvailable
}
