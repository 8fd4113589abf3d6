package reporting

import (
	"fmt"
	"strings"

	"modquant-lab/internal/metrics"
)

// RenderSensitivityMarkdown renders every stored run of a ledger as one table,
// one row per parameter set, in the order the aggregator returns them.
func RenderSensitivityMarkdown(ledgerID string, rows []metrics.SensitivityRow) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Parameter Sensitivity: %s\n\n", shortID(ledgerID)))
	if len(rows) == 0 {
		sb.WriteString("No stored runs.\n")
		return sb.String()
	}

	sb.WriteString("| Segmentation | Run | Threshold | Stop | Target | Selected | Win Rate | Δ Win Rate | Total P&L | Δ P&L | Payout | Run ID |\n")
	sb.WriteString("|--------------|-----|-----------|------|--------|----------|----------|------------|-----------|-------|--------|--------|\n")
	for _, r := range rows {
		target := notAvailable
		if v, ok := r.TargetWinRate.Get(); ok {
			target = fmt.Sprintf("%g%%", v)
		}
		sb.WriteString(fmt.Sprintf("| %s | %d | %d | %s | %s | %d | %s | %s | %s | %s | %s | %s |\n",
			r.Segmentation, r.ReversalRun, r.LossThreshold, r.StopPolicy, target,
			r.Selected.Count,
			percent(r.Selected.WinRate),
			signedPercent(r.Comparison.WinRateDelta),
			pnlValue(r.Selected, r.Selected.TotalPnL),
			pnlDelta(r.Selected.PnLDefined(), r.Comparison.TotalPnLDelta),
			optionalFloat(r.Selected.PayoutRatio),
			shortID(r.RunID),
		))
	}
	return sb.String()
}
