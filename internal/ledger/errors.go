// Package ledger reads and writes the text formats the backtest consumes:
// trade ledgers, segment ledgers and W/L label sequences.
package ledger

import (
	"errors"
	"fmt"
)

// ErrEmptyInput is returned when a source has no usable records.
var ErrEmptyInput = errors.New("no usable records")

// InputParseError describes one malformed record. Malformed records are
// skipped; the error is reported through Options.OnWarning and the result.
type InputParseError struct {
	Line   int
	Reason string
}

func (e *InputParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// emptyInput wraps ErrEmptyInput with the number of rejected records.
func emptyInput(what string, rejected int) error {
	if rejected == 0 {
		return fmt.Errorf("%s: %w", what, ErrEmptyInput)
	}
	return fmt.Errorf("%s: %w (%d malformed records skipped)", what, ErrEmptyInput, rejected)
}
