package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"modquant-lab/internal/decision"
	"modquant-lab/internal/domain"
)

const notAvailable = "n/a"

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	title := r.LedgerName
	if title == "" {
		title = shortID(r.LedgerID)
	}
	sb.WriteString(fmt.Sprintf("# Follow-After-Losses Report: %s\n\n", title))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: `%s`\n\n", r.RunID))

	// Parameters
	p := r.Parameters
	sb.WriteString("## Parameters\n\n")
	sb.WriteString("| Parameter | Value |\n")
	sb.WriteString("|-----------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Input | %s |\n", p.Input))
	if p.Format != "" {
		sb.WriteString(fmt.Sprintf("| Format | %s |\n", p.Format))
	}
	sb.WriteString(fmt.Sprintf("| Segmentation | %s |\n", p.SegmentationID))
	sb.WriteString(fmt.Sprintf("| Loss Threshold | %d |\n", p.LossThreshold))
	sb.WriteString(fmt.Sprintf("| Stop Policy | %s |\n", p.StopPolicy))
	if v, ok := p.TargetWinRate.Get(); ok {
		sb.WriteString(fmt.Sprintf("| Target Win Rate | %g%% |\n", v))
	}
	sb.WriteString("\n")

	// Data Summary
	d := r.DataSummary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	if d.Trades > 0 {
		sb.WriteString(fmt.Sprintf("| Trades | %d |\n", d.Trades))
	}
	sb.WriteString(fmt.Sprintf("| Segments | %d |\n", d.Segments))
	sb.WriteString(fmt.Sprintf("| Skipped Records | %d |\n", d.Skipped))
	sb.WriteString(fmt.Sprintf("| Overall Win Rate | %s |\n", percent(d.OverallWinRate)))
	sb.WriteString(fmt.Sprintf("| Follow Streaks | %d |\n", d.Streaks))
	sb.WriteString(fmt.Sprintf("| Unfinished Streaks | %d |\n", d.Unfinished))
	sb.WriteString("\n")

	if r.Labels != "" {
		sb.WriteString("### Label Sequence\n\n")
		sb.WriteString(fmt.Sprintf("```\n%s\n```\n\n", r.Labels))
	}

	// Statistics
	sb.WriteString("## Statistics\n\n")
	sb.WriteString("| Metric | Selected | Baseline | Delta |\n")
	sb.WriteString("|--------|----------|----------|-------|\n")
	sel, base, cmp := r.Selected, r.Baseline, r.Comparison
	sb.WriteString(fmt.Sprintf("| Segments | %d | %d | |\n", sel.Count, base.Count))
	sb.WriteString(fmt.Sprintf("| Wins | %d | %d | |\n", sel.Wins, base.Wins))
	sb.WriteString(fmt.Sprintf("| Losses | %d | %d | |\n", sel.Losses, base.Losses))
	sb.WriteString(fmt.Sprintf("| Win Rate | %s | %s | %s |\n",
		percent(sel.WinRate), percent(base.WinRate), signedPercent(cmp.WinRateDelta)))
	sb.WriteString(fmt.Sprintf("| Total P&L | %s | %s | %s |\n",
		pnlValue(sel, sel.TotalPnL), pnlValue(base, base.TotalPnL),
		pnlDelta(sel.PnLDefined() && base.PnLDefined(), cmp.TotalPnLDelta)))
	sb.WriteString(fmt.Sprintf("| Winning P&L | %s | %s | |\n", pnlValue(sel, sel.WinPnL), pnlValue(base, base.WinPnL)))
	sb.WriteString(fmt.Sprintf("| Losing P&L | %s | %s | |\n", pnlValue(sel, sel.LossPnL), pnlValue(base, base.LossPnL)))
	sb.WriteString(fmt.Sprintf("| Payout Ratio | %s | %s | %s |\n",
		optionalFloat(sel.PayoutRatio), optionalFloat(base.PayoutRatio), optionalSigned(cmp.PayoutDelta)))
	sb.WriteString(fmt.Sprintf("| Median Win | %s | %s | |\n",
		optionalDecimal(sel.MedianWin), optionalDecimal(base.MedianWin)))
	sb.WriteString(fmt.Sprintf("| Median Loss | %s | %s | |\n",
		optionalDecimal(sel.MedianLoss), optionalDecimal(base.MedianLoss)))
	sb.WriteString(fmt.Sprintf("| Max Consecutive Losses | %d | %d | |\n",
		sel.MaxConsecutiveLosses, base.MaxConsecutiveLosses))
	sb.WriteString("\n")

	// Directions
	if len(r.Directions) > 0 {
		sb.WriteString("## Direction Breakdown\n\n")
		sb.WriteString("| Direction | Segments | Wins | Win Rate | Total P&L |\n")
		sb.WriteString("|-----------|----------|------|----------|-----------|\n")
		for _, ds := range r.Directions {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %s | %s |\n",
				ds.Direction, ds.Segments, ds.Wins, percent(ds.WinRate), ds.TotalPnL.String()))
		}
		sb.WriteString("\n")
	}

	// Streaks
	sb.WriteString("## Follow Streaks\n\n")
	if len(r.Streaks) > 0 {
		sb.WriteString("| # | Start | End | Length | Wins | Losses | Labels | Win Rate | Completed |\n")
		sb.WriteString("|---|-------|-----|--------|------|--------|--------|----------|-----------|\n")
		for _, s := range r.Streaks {
			completed := "yes"
			if !s.Completed {
				completed = "no"
			}
			sb.WriteString(fmt.Sprintf("| %d | %d | %d | %d | %d | %d | %s | %.2f%% | %s |\n",
				s.Number, s.Start, s.End, s.Members, s.Wins, s.Losses, s.Labels, s.WinRate, completed))
		}
	} else {
		sb.WriteString("No follow streaks.\n")
	}
	sb.WriteString("\n")

	// Data Quality
	if dq := r.DataQuality; dq != nil {
		sb.WriteString("## Data Quality\n\n")
		sb.WriteString("| Check | Threshold | Actual | Status |\n")
		sb.WriteString("|-------|-----------|--------|--------|\n")
		for _, check := range dq.Checks {
			status := "FAIL"
			if check.Pass {
				status = "PASS"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				check.Name, check.Threshold, check.Actual, status))
		}
		sb.WriteString("\n")
		if dq.AllPassed {
			sb.WriteString("**All checks passed.**\n\n")
		} else {
			sb.WriteString("**Some checks failed.** Decision: INSUFFICIENT_DATA\n\n")
		}
		for _, e := range dq.Errors {
			sb.WriteString(fmt.Sprintf("- %s\n", e))
		}
		if len(dq.Errors) > 0 {
			sb.WriteString("\n")
		}
	}

	// Decision
	if r.Decision != nil {
		sb.WriteString(decision.RenderMarkdown(r.Decision))
		sb.WriteString("\n")
	}

	if len(r.Warnings) > 0 {
		sb.WriteString("## Skipped Records\n\n")
		for _, w := range r.Warnings {
			sb.WriteString(fmt.Sprintf("- %s\n", w))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// percent formats a fraction as a percentage.
func percent(f float64) string {
	return fmt.Sprintf("%.2f%%", f*100)
}

func signedPercent(f float64) string {
	return fmt.Sprintf("%+.2f pp", f*100)
}

func signedDecimal(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + d.String()
	}
	return d.String()
}

// pnlValue renders one of the P&L sums of s.
func pnlValue(s domain.StatSummary, d decimal.Decimal) string {
	if !s.PnLDefined() {
		return notAvailable
	}
	return d.String()
}

func pnlDelta(defined bool, d decimal.Decimal) string {
	if !defined {
		return notAvailable
	}
	return signedDecimal(d)
}

func optionalFloat(o domain.Optional[float64]) string {
	if v, ok := o.Get(); ok {
		return fmt.Sprintf("%.4f", v)
	}
	return notAvailable
}

func optionalSigned(o domain.Optional[float64]) string {
	if v, ok := o.Get(); ok {
		return fmt.Sprintf("%+.4f", v)
	}
	return notAvailable
}

func optionalDecimal(o domain.Optional[decimal.Decimal]) string {
	if v, ok := o.Get(); ok {
		return v.String()
	}
	return notAvailable
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
