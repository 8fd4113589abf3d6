package domain

import "github.com/shopspring/decimal"

// StatSummary holds the aggregate statistics of a set of labelled P&L items.
// Computed for the followed selection and for the full sequence.
type StatSummary struct {
	// Counts
	Count   int
	Wins    int
	Losses  int
	WinRate float64 // wins / count (fraction); 0 when count is 0

	// P&L; all three are undefined when NoPnL is set
	WinPnL   decimal.Decimal // sum of winning P&L
	LossPnL  decimal.Decimal // sum of losing P&L (<= 0 for ledger data)
	TotalPnL decimal.Decimal
	NoPnL    bool // label input carries outcomes only

	// Undefined when there is nothing to divide by or take the median of
	PayoutRatio Optional[float64]         // WinPnL / |LossPnL|
	MedianWin   Optional[decimal.Decimal] // over WIN items only
	MedianLoss  Optional[decimal.Decimal] // over LOSS items only

	// Drawdown
	MaxConsecutiveLosses int
}

// PnLDefined reports whether the P&L sums mean anything.
func (s StatSummary) PnLDefined() bool {
	return !s.NoPnL
}

// DirectionSummary is the per-direction breakdown of a segment sequence.
type DirectionSummary struct {
	Direction Direction
	Segments  int
	Wins      int
	WinRate   float64 // fraction
	TotalPnL  decimal.Decimal
}

// Comparison holds selected-minus-baseline deltas.
type Comparison struct {
	WinRateDelta  float64
	TotalPnLDelta decimal.Decimal
	// Undefined when either payout ratio is undefined
	PayoutDelta Optional[float64]
}
