package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Outcome is the win/loss label of a segment.
type Outcome string

// Outcome constants
const (
	OutcomeWin  Outcome = "WIN"
	OutcomeLoss Outcome = "LOSS"
)

// Label runes used in label strings.
const (
	LabelWin  = 'W'
	LabelLoss = 'L'
)

// OutcomeFromPnL classifies an aggregate P&L.
// Only a strictly positive P&L is a win; zero is a loss.
func OutcomeFromPnL(pnl decimal.Decimal) Outcome {
	if pnl.IsPositive() {
		return OutcomeWin
	}
	return OutcomeLoss
}

// Rune returns the single-rune label (W or L).
func (o Outcome) Rune() rune {
	if o == OutcomeWin {
		return LabelWin
	}
	return LabelLoss
}

// ParseOutcome maps a label to an Outcome.
// Accepts WIN/LOSS, W/L (case-insensitive) and the 胜/负 labels of legacy label files.
func ParseOutcome(label string) (Outcome, bool) {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "WIN", "W", "胜":
		return OutcomeWin, true
	case "LOSS", "L", "负":
		return OutcomeLoss, true
	default:
		return "", false
	}
}

// Segment is a maximal run of trades assigned one direction.
// Produced once by segmentation and immutable afterwards.
type Segment struct {
	LedgerID     string
	Segmentation string // id of the policy that built it, e.g. OSCILLATION_run3
	Index        int    // 0-based, contiguous
	Direction    Direction
	StartTime    string // first trade entry
	EndTime      string // last trade exit
	FirstTrade   int    // Seq of the first member trade; 0 when read from a segment ledger

	TradeCount int
	WinTrades  int // trades with P&L > 0
	LossTrades int // trades with P&L < 0

	TotalPnL decimal.Decimal
	Outcome  Outcome
}

// LabeledPnL is an outcome label paired with the P&L it stands for.
// It is the unit StrategyStatistics aggregates over.
type LabeledPnL struct {
	Outcome Outcome
	PnL     decimal.Decimal
}

// Labeled returns the segment as a labelled P&L item.
func (s *Segment) Labeled() LabeledPnL {
	return LabeledPnL{Outcome: s.Outcome, PnL: s.TotalPnL}
}

// Outcomes extracts the outcome sequence of segments in order.
func Outcomes(segments []*Segment) []Outcome {
	out := make([]Outcome, len(segments))
	for i, s := range segments {
		out[i] = s.Outcome
	}
	return out
}

// LabelString concatenates outcome labels into a W/L string.
func LabelString(outcomes []Outcome) string {
	var sb strings.Builder
	sb.Grow(len(outcomes))
	for _, o := range outcomes {
		sb.WriteRune(o.Rune())
	}
	return sb.String()
}
