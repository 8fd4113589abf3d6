// Package metrics computes strategy statistics over labelled P&L sequences.
package metrics

import (
	"sort"

	"github.com/shopspring/decimal"

	"modquant-lab/internal/domain"
)

var half = decimal.New(5, -1)

// Summarize computes the StatSummary of items in the given order.
// Order matters only for MaxConsecutiveLosses.
func Summarize(items []domain.LabeledPnL) domain.StatSummary {
	s := domain.StatSummary{
		Count:    len(items),
		WinPnL:   decimal.Zero,
		LossPnL:  decimal.Zero,
		TotalPnL: decimal.Zero,
	}

	var winPnLs, lossPnLs []decimal.Decimal
	outcomes := make([]domain.Outcome, len(items))
	for i, it := range items {
		outcomes[i] = it.Outcome
		s.TotalPnL = s.TotalPnL.Add(it.PnL)
		if it.Outcome == domain.OutcomeWin {
			s.Wins++
			s.WinPnL = s.WinPnL.Add(it.PnL)
			winPnLs = append(winPnLs, it.PnL)
		} else {
			s.Losses++
			s.LossPnL = s.LossPnL.Add(it.PnL)
			lossPnLs = append(lossPnLs, it.PnL)
		}
	}

	s.WinRate = computeWinRate(s.Wins, s.Count)
	s.PayoutRatio = computePayoutRatio(s.WinPnL, s.LossPnL)
	s.MedianWin = computeMedian(winPnLs)
	s.MedianLoss = computeMedian(lossPnLs)
	s.MaxConsecutiveLosses = computeMaxConsecutiveLosses(outcomes)
	return s
}

// SummarizeSegments computes the StatSummary of a full segment sequence.
func SummarizeSegments(segments []*domain.Segment) domain.StatSummary {
	items := make([]domain.LabeledPnL, len(segments))
	for i, seg := range segments {
		items[i] = seg.Labeled()
	}
	return Summarize(items)
}

// SummarizeSelection computes the StatSummary of the selected segments,
// in chronological order.
func SummarizeSelection(segments []*domain.Segment, sel *domain.Selection) domain.StatSummary {
	items := make([]domain.LabeledPnL, 0, len(sel.Indices))
	for _, idx := range sel.Indices {
		if idx >= 0 && idx < len(segments) {
			items = append(items, segments[idx].Labeled())
		}
	}
	return Summarize(items)
}

// SummarizeOutcomes computes the StatSummary of a bare label sequence.
// P&L is unknown, so the summary is marked NoPnL and every P&L statistic
// is undefined.
func SummarizeOutcomes(outcomes []domain.Outcome) domain.StatSummary {
	s := domain.StatSummary{
		Count:    len(outcomes),
		WinPnL:   decimal.Zero,
		LossPnL:  decimal.Zero,
		TotalPnL: decimal.Zero,
		NoPnL:    true,
	}
	for _, o := range outcomes {
		if o == domain.OutcomeWin {
			s.Wins++
		} else {
			s.Losses++
		}
	}
	s.WinRate = computeWinRate(s.Wins, s.Count)
	s.MaxConsecutiveLosses = computeMaxConsecutiveLosses(outcomes)
	return s
}

// SelectOutcomes returns the selected outcomes in chronological order.
func SelectOutcomes(outcomes []domain.Outcome, sel *domain.Selection) []domain.Outcome {
	out := make([]domain.Outcome, 0, len(sel.Indices))
	for _, idx := range sel.Indices {
		if idx >= 0 && idx < len(outcomes) {
			out = append(out, outcomes[idx])
		}
	}
	return out
}

// DirectionBreakdown groups segments by direction.
// Only directions present are returned, LONG before SHORT.
func DirectionBreakdown(segments []*domain.Segment) []domain.DirectionSummary {
	byDir := make(map[domain.Direction]*domain.DirectionSummary)
	for _, seg := range segments {
		ds, ok := byDir[seg.Direction]
		if !ok {
			ds = &domain.DirectionSummary{Direction: seg.Direction, TotalPnL: decimal.Zero}
			byDir[seg.Direction] = ds
		}
		ds.Segments++
		if seg.Outcome == domain.OutcomeWin {
			ds.Wins++
		}
		ds.TotalPnL = ds.TotalPnL.Add(seg.TotalPnL)
	}

	out := make([]domain.DirectionSummary, 0, len(byDir))
	for _, dir := range []domain.Direction{domain.DirectionLong, domain.DirectionShort} {
		if ds, ok := byDir[dir]; ok {
			ds.WinRate = computeWinRate(ds.Wins, ds.Segments)
			out = append(out, *ds)
		}
	}
	return out
}

// Compare returns selected-minus-baseline deltas.
func Compare(selected, baseline domain.StatSummary) domain.Comparison {
	c := domain.Comparison{
		WinRateDelta:  selected.WinRate - baseline.WinRate,
		TotalPnLDelta: selected.TotalPnL.Sub(baseline.TotalPnL),
	}
	sp, okS := selected.PayoutRatio.Get()
	bp, okB := baseline.PayoutRatio.Get()
	if okS && okB {
		c.PayoutDelta = domain.Some(sp - bp)
	}
	return c
}

// computeWinRate calculates win rate as wins / total.
func computeWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

// computePayoutRatio calculates winPnL / |lossPnL|.
// Undefined when the loss sum is exactly zero, whatever the win sum.
func computePayoutRatio(winPnL, lossPnL decimal.Decimal) domain.Optional[float64] {
	if lossPnL.IsZero() {
		return domain.None[float64]()
	}
	return domain.Some(winPnL.Div(lossPnL.Abs()).InexactFloat64())
}

// computeMedian returns the median, averaging the two middle values for an
// even count. Undefined for an empty slice.
func computeMedian(values []decimal.Decimal) domain.Optional[decimal.Decimal] {
	n := len(values)
	if n == 0 {
		return domain.None[decimal.Decimal]()
	}

	sorted := make([]decimal.Decimal, n)
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].LessThan(sorted[j])
	})

	if n%2 == 1 {
		return domain.Some(sorted[n/2])
	}
	return domain.Some(sorted[n/2-1].Add(sorted[n/2]).Mul(half))
}

// computeMaxConsecutiveLosses finds the longest run of LOSS outcomes.
// Outcomes must be in chronological order.
func computeMaxConsecutiveLosses(outcomes []domain.Outcome) int {
	maxStreak := 0
	currentStreak := 0

	for _, o := range outcomes {
		if o == domain.OutcomeWin {
			currentStreak = 0
			continue
		}
		currentStreak++
		if currentStreak > maxStreak {
			maxStreak = currentStreak
		}
	}
	return maxStreak
}
