package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Direction is the trading direction of a trade or segment.
type Direction string

// Direction constants
const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// ParseDirection maps a direction tag to a Direction.
// Accepts LONG/SHORT, BUY/SELL (case-insensitive) and the 多/空 tags of exported broker ledgers.
func ParseDirection(tag string) (Direction, bool) {
	switch strings.ToUpper(strings.TrimSpace(tag)) {
	case "LONG", "BUY", "多":
		return DirectionLong, true
	case "SHORT", "SELL", "空":
		return DirectionShort, true
	default:
		return "", false
	}
}

// DirectionFromPrice derives direction from a signed entry price.
// Positive price => LONG; zero, negative or absent => SHORT.
func DirectionFromPrice(price *decimal.Decimal) Direction {
	if price != nil && price.IsPositive() {
		return DirectionLong
	}
	return DirectionShort
}

// Trade is one closed trade of a recorded ledger.
// Trades are read-only input; Seq is the 0-based position among the valid records.
type Trade struct {
	LedgerID string // ledger content hash
	Seq      int    // position in ledger (0-based, after skipping malformed records)

	// Entry / exit as recorded (timestamps are opaque strings)
	EntryTime  string
	ExitTime   string
	EntryPrice decimal.Decimal
	ExitPrice  decimal.Decimal

	Direction Direction
	PnL       decimal.Decimal // per-trade profit and loss
}

// IsWin reports whether the trade made money (P&L > 0).
func (t *Trade) IsWin() bool {
	return t.PnL.IsPositive()
}

// IsLoss reports whether the trade lost money (P&L < 0).
// A flat trade is neither a win nor a loss.
func (t *Trade) IsLoss() bool {
	return t.PnL.IsNegative()
}
