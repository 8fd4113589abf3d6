package ledger

import (
	"bufio"
	"fmt"
	"io"
	"unicode"

	"modquant-lab/internal/domain"
)

// LabelResult is the outcome of reading a label sequence.
type LabelResult struct {
	Outcomes []domain.Outcome
	Warnings []*InputParseError
}

// ReadLabels parses a W/L (or 胜/负) label sequence.
// Whitespace is ignored; any other rune is skipped with a warning.
func ReadLabels(r io.Reader, opts Options) (*LabelResult, error) {
	br := bufio.NewReader(r)
	result := &LabelResult{}
	line := 1

	for {
		ch, _, err := br.ReadRune()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read labels: %w", err)
		}

		switch {
		case ch == '\n':
			line++
			continue
		case ch == '\ufeff' || unicode.IsSpace(ch):
			continue
		}

		o, ok := labelOutcome(ch)
		if !ok {
			w := &InputParseError{Line: line, Reason: fmt.Sprintf("unexpected label %q", ch)}
			result.Warnings = append(result.Warnings, w)
			if opts.OnWarning != nil {
				opts.OnWarning(w)
			}
			continue
		}
		result.Outcomes = append(result.Outcomes, o)
	}

	if len(result.Outcomes) == 0 {
		return nil, emptyInput("label sequence", len(result.Warnings))
	}
	return result, nil
}

func labelOutcome(ch rune) (domain.Outcome, bool) {
	switch ch {
	case 'W', 'w', '胜':
		return domain.OutcomeWin, true
	case 'L', 'l', '负':
		return domain.OutcomeLoss, true
	default:
		return "", false
	}
}

// WriteLabels writes the W/L string of a segment sequence followed by a newline.
func WriteLabels(w io.Writer, outcomes []domain.Outcome) error {
	_, err := fmt.Fprintln(w, domain.LabelString(outcomes))
	return err
}
