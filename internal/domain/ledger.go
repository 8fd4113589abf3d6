package domain

import (
	"path/filepath"
	"strings"
)

// LedgerKind is the kind of input a ledger holds.
type LedgerKind string

// Ledger kind constants
const (
	LedgerKindTrades   LedgerKind = "TRADES"
	LedgerKindSegments LedgerKind = "SEGMENTS"
	LedgerKindLabels   LedgerKind = "LABELS"
)

// ParseLedgerKind maps trades/segments/labels (any case) to a LedgerKind.
func ParseLedgerKind(s string) (LedgerKind, bool) {
	switch LedgerKind(strings.ToUpper(strings.TrimSpace(s))) {
	case LedgerKindTrades:
		return LedgerKindTrades, true
	case LedgerKindSegments:
		return LedgerKindSegments, true
	case LedgerKindLabels:
		return LedgerKindLabels, true
	default:
		return "", false
	}
}

// GuessLedgerKind infers the kind from a file name: label files end in .txt,
// segment ledgers in _analysis.csv or segments.csv. Anything else is a trade ledger.
func GuessLedgerKind(name string) LedgerKind {
	base := strings.ToLower(filepath.Base(name))
	switch {
	case strings.HasSuffix(base, ".txt"):
		return LedgerKindLabels
	case strings.HasSuffix(base, "_analysis.csv"), base == "segments.csv":
		return LedgerKindSegments
	default:
		return LedgerKindTrades
	}
}

// Ledger is an ingested input file.
// LedgerID is the content hash, so re-ingesting the same bytes is a no-op.
type Ledger struct {
	LedgerID    string
	Name        string // file name or caller-supplied label
	Kind        LedgerKind
	Format      string // resolved record format (price-sign | directional), empty for other kinds
	RecordCount int    // usable records
	Skipped     int    // malformed records
	IngestedAt  int64  // Unix milliseconds
}
