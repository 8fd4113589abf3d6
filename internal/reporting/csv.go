package reporting

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"modquant-lab/internal/domain"
)

// RenderSummaryCSV renders the selected and baseline statistics as CSV string.
// Undefined values are empty cells.
func RenderSummaryCSV(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("run_id,scope,count,wins,losses,win_rate,total_pnl,win_pnl,loss_pnl,")
	sb.WriteString("payout_ratio,median_win,median_loss,max_consecutive_losses\n")

	// Rows
	writeSummaryRow(&sb, r.RunID, "selected", &r.Selected)
	writeSummaryRow(&sb, r.RunID, "baseline", &r.Baseline)

	return sb.String()
}

func writeSummaryRow(sb *strings.Builder, runID, scope string, s *domain.StatSummary) {
	sb.WriteString(fmt.Sprintf("%s,%s,%d,%d,%d,%.6f,%s,%s,%s,%s,%s,%s,%d\n",
		runID,
		scope,
		s.Count,
		s.Wins,
		s.Losses,
		s.WinRate,
		csvPnL(s, s.TotalPnL),
		csvPnL(s, s.WinPnL),
		csvPnL(s, s.LossPnL),
		csvFloat(s.PayoutRatio),
		csvDecimal(s.MedianWin),
		csvDecimal(s.MedianLoss),
		s.MaxConsecutiveLosses,
	))
}

// RenderStreaksCSV renders follow streaks as CSV string.
func RenderStreaksCSV(streaks []StreakRow) string {
	var sb strings.Builder

	sb.WriteString("number,start_index,end_index,length,wins,losses,labels,win_rate,completed\n")
	for _, s := range streaks {
		sb.WriteString(fmt.Sprintf("%d,%d,%d,%d,%d,%d,%s,%.2f,%t\n",
			s.Number,
			s.Start,
			s.End,
			s.Members,
			s.Wins,
			s.Losses,
			s.Labels,
			s.WinRate,
			s.Completed,
		))
	}

	return sb.String()
}

func csvPnL(s *domain.StatSummary, d decimal.Decimal) string {
	if !s.PnLDefined() {
		return ""
	}
	return d.String()
}

func csvFloat(o domain.Optional[float64]) string {
	if v, ok := o.Get(); ok {
		return fmt.Sprintf("%.6f", v)
	}
	return ""
}

func csvDecimal(o domain.Optional[decimal.Decimal]) string {
	if v, ok := o.Get(); ok {
		return v.String()
	}
	return ""
}
