package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"modquant-lab/internal/domain"
)

// SegmentColumns is the header of a segment ledger.
var SegmentColumns = []string{
	"segment_id", "direction", "start_time", "end_time",
	"trade_count", "win_trades", "loss_trades", "total_pnl", "outcome",
}

// SegmentResult is the outcome of reading a segment ledger.
type SegmentResult struct {
	Segments []*domain.Segment
	Warnings []*InputParseError
}

// ReadSegments parses a pre-aggregated segment ledger.
// Segment indices follow record order; the segment_id column is validated but not used.
// An empty outcome column falls back to the sign of total_pnl.
func ReadSegments(r io.Reader, opts Options) (*SegmentResult, error) {
	delim := opts.Delimiter
	if delim == 0 {
		delim = ','
	}

	cr := newCSVReader(r, delim)
	result := &SegmentResult{}
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
			return nil, fmt.Errorf("read segment ledger: %w", err)
		}
		line, _ := cr.FieldPos(0)
		record = trimRecord(record)
		if blankRecord(record) {
			continue
		}
		if first {
			first = false
			if isSegmentHeader(record) {
				continue
			}
		}

		seg, reason := parseSegment(record)
		if seg == nil {
			warn(line, reason)
			continue
		}
		seg.LedgerID = opts.LedgerID
		seg.Segmentation = string(domain.SegmentationLedger)
		seg.Index = len(result.Segments)
		result.Segments = append(result.Segments, seg)
	}

	if len(result.Segments) == 0 {
		return nil, emptyInput("segment ledger", len(result.Warnings))
	}
	return result, nil
}

// isSegmentHeader matches the English or Chinese segment_id column name.
// Any other first row is data and is parsed like the rest.
func isSegmentHeader(record []string) bool {
	return strings.EqualFold(record[0], SegmentColumns[0]) || record[0] == "段号"
}

func parseSegment(record []string) (*domain.Segment, string) {
	if len(record) != len(SegmentColumns) {
		return nil, fmt.Sprintf("expected %d columns, got %d", len(SegmentColumns), len(record))
	}
	if _, err := strconv.Atoi(record[0]); err != nil {
		return nil, fmt.Sprintf("segment id %q is not an integer", record[0])
	}
	dir, ok := domain.ParseDirection(record[1])
	if !ok {
		return nil, fmt.Sprintf("unknown direction %q", record[1])
	}

	var counts [3]int
	for i, col := range []int{4, 5, 6} {
		n, err := strconv.Atoi(record[col])
		if err != nil || n < 0 {
			return nil, fmt.Sprintf("%s %q is not a non-negative integer", SegmentColumns[col], record[col])
		}
		counts[i] = n
	}
	if counts[1]+counts[2] > counts[0] {
		return nil, fmt.Sprintf("win_trades + loss_trades exceeds trade_count %d", counts[0])
	}

	pnl, err := parseDecimal(record[7])
	if err != nil {
		return nil, fmt.Sprintf("total pnl %q is not numeric", record[7])
	}

	outcome := domain.OutcomeFromPnL(pnl)
	if record[8] != "" {
		if outcome, ok = domain.ParseOutcome(record[8]); !ok {
			return nil, fmt.Sprintf("unknown outcome %q", record[8])
		}
	}

	return &domain.Segment{
		Direction:  dir,
		StartTime:  record[2],
		EndTime:    record[3],
		TradeCount: counts[0],
		WinTrades:  counts[1],
		LossTrades: counts[2],
		TotalPnL:   pnl,
		Outcome:    outcome,
	}, ""
}

// WriteSegments writes segments as a comma-separated segment ledger with header.
// segment_id is 1-based. The output can be read back with ReadSegments.
func WriteSegments(w io.Writer, segments []*domain.Segment) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SegmentColumns); err != nil {
		return err
	}
	for _, s := range segments {
		row := []string{
			strconv.Itoa(s.Index + 1),
			string(s.Direction),
			s.StartTime,
			s.EndTime,
			strconv.Itoa(s.TradeCount),
			strconv.Itoa(s.WinTrades),
			strconv.Itoa(s.LossTrades),
			s.TotalPnL.String(),
			string(s.Outcome),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
