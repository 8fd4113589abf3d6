package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"modquant-lab/internal/domain"
)

// Format is the record layout of a trade ledger.
type Format string

// Format constants
const (
	// FormatAuto picks price-sign or directional from the first data record.
	FormatAuto Format = "auto"
	// FormatPriceSign: entry_time, exit_time, entry_price, exit_price, pnl, cum_gross, cum_net.
	// The sign of entry_price encodes direction.
	FormatPriceSign Format = "price-sign"
	// FormatDirectional: entry_time, exit_time, direction, exit_price, pnl.
	FormatDirectional Format = "directional"
)

const (
	priceSignColumns   = 7
	directionalColumns = 5
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatAuto, FormatPriceSign, FormatDirectional:
		return f, nil
	case "":
		return FormatAuto, nil
	default:
		return "", fmt.Errorf("unknown ledger format %q", s)
	}
}

// Options configures ledger parsing.
type Options struct {
	Format    Format
	Delimiter rune   // defaults to tab for trade ledgers, comma for segment ledgers
	LedgerID  string // stamped onto parsed trades and segments

	// OnWarning is called for every skipped record, in input order.
	OnWarning func(*InputParseError)
}

// TradeResult is the outcome of reading a trade ledger.
type TradeResult struct {
	Trades   []*domain.Trade
	Warnings []*InputParseError
	Format   Format // resolved format (never auto)
}

// ReadTrades parses a trade ledger.
// Malformed records are skipped with a warning; zero usable records is ErrEmptyInput.
func ReadTrades(r io.Reader, opts Options) (*TradeResult, error) {
	delim := opts.Delimiter
	if delim == 0 {
		delim = '\t'
	}
	format := opts.Format
	if format == "" {
		format = FormatAuto
	}

	cr := newCSVReader(r, delim)
	result := &TradeResult{Format: format}
	warn := func(line int, reason string) {
		w := &InputParseError{Line: line, Reason: reason}
		result.Warnings = append(result.Warnings, w)
		if opts.OnWarning != nil {
			opts.OnWarning(w)
		}
	}

	first := true
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				warn(perr.Line, perr.Err.Error())
				continue
			}
			return nil, fmt.Errorf("read ledger: %w", err)
		}
		line, _ := cr.FieldPos(0)
		record = trimRecord(record)
		if blankRecord(record) {
			continue
		}

		if first {
			first = false
			if isTradeHeader(record) {
				continue
			}
			if result.Format == FormatAuto {
				result.Format = detectFormat(record)
			}
		}

		trade, reason := parseTrade(record, result.Format)
		if trade == nil {
			warn(line, reason)
			continue
		}
		trade.LedgerID = opts.LedgerID
		trade.Seq = len(result.Trades)
		result.Trades = append(result.Trades, trade)
	}

	if result.Format == FormatAuto {
		result.Format = FormatPriceSign
	}
	if len(result.Trades) == 0 {
		return nil, emptyInput("trade ledger", len(result.Warnings))
	}
	return result, nil
}

func parseTrade(record []string, format Format) (*domain.Trade, string) {
	switch format {
	case FormatDirectional:
		return parseDirectional(record)
	default:
		return parsePriceSign(record)
	}
}

func parsePriceSign(record []string) (*domain.Trade, string) {
	if len(record) != priceSignColumns {
		return nil, fmt.Sprintf("expected %d columns, got %d", priceSignColumns, len(record))
	}

	var entryPrice *decimal.Decimal
	if record[2] != "" {
		p, err := parseDecimal(record[2])
		if err != nil {
			return nil, fmt.Sprintf("entry price %q is not numeric", record[2])
		}
		entryPrice = &p
	}
	exitPrice, err := parseOptionalDecimal(record[3])
	if err != nil {
		return nil, fmt.Sprintf("exit price %q is not numeric", record[3])
	}
	pnl, err := parseDecimal(record[4])
	if err != nil {
		return nil, fmt.Sprintf("pnl %q is not numeric", record[4])
	}

	t := &domain.Trade{
		EntryTime: record[0],
		ExitTime:  record[1],
		ExitPrice: exitPrice,
		Direction: domain.DirectionFromPrice(entryPrice),
		PnL:       pnl,
	}
	if entryPrice != nil {
		t.EntryPrice = *entryPrice
	}
	return t, ""
}

func parseDirectional(record []string) (*domain.Trade, string) {
	if len(record) != directionalColumns {
		return nil, fmt.Sprintf("expected %d columns, got %d", directionalColumns, len(record))
	}

	dir, ok := domain.ParseDirection(record[2])
	if !ok {
		return nil, fmt.Sprintf("unknown direction %q", record[2])
	}
	exitPrice, err := parseOptionalDecimal(record[3])
	if err != nil {
		return nil, fmt.Sprintf("exit price %q is not numeric", record[3])
	}
	pnl, err := parseDecimal(record[4])
	if err != nil {
		return nil, fmt.Sprintf("pnl %q is not numeric", record[4])
	}

	return &domain.Trade{
		EntryTime: record[0],
		ExitTime:  record[1],
		ExitPrice: exitPrice,
		Direction: dir,
		PnL:       pnl,
	}, ""
}

// detectFormat inspects the third column of the first data record.
func detectFormat(record []string) Format {
	if len(record) < 3 || record[2] == "" {
		return FormatPriceSign
	}
	if _, err := parseDecimal(record[2]); err == nil {
		return FormatPriceSign
	}
	return FormatDirectional
}

func isTradeHeader(record []string) bool {
	joined := strings.ToLower(strings.Join(record, " "))
	if strings.Contains(joined, "进场日期") && strings.Contains(joined, "出场日期") {
		return true
	}
	return strings.Contains(joined, "entry_time") || strings.Contains(joined, "entry_date")
}

func newCSVReader(r io.Reader, delim rune) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false
	return cr
}

// trimRecord strips surrounding whitespace and a leading byte order mark.
func trimRecord(record []string) []string {
	for i := range record {
		record[i] = strings.TrimSpace(strings.TrimPrefix(record[i], "\ufeff"))
	}
	return record
}

func blankRecord(record []string) bool {
	for _, f := range record {
		if f != "" {
			return false
		}
	}
	return true
}

func parseDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
}

func parseOptionalDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return parseDecimal(s)
}
