package ledger

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"modquant-lab/internal/domain"
)

func TestReadLabels(t *testing.T) {
	var warned int
	res, err := ReadLabels(strings.NewReader("WL l\n胜负x\n w"), Options{
		OnWarning: func(*InputParseError) { warned++ },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := domain.LabelString(res.Outcomes)
	if got != "WLLWLW" {
		t.Errorf("expected WLLWLW, got %s", got)
	}
	if len(res.Warnings) != 1 || warned != 1 {
		t.Fatalf("expected 1 warning, got %d", len(res.Warnings))
	}
	if res.Warnings[0].Line != 2 {
		t.Errorf("expected warning on line 2, got %d", res.Warnings[0].Line)
	}
}

func TestReadLabels_Empty(t *testing.T) {
	for _, input := range []string{"", "  \n\t", "xyz"} {
		if _, err := ReadLabels(strings.NewReader(input), Options{}); !errors.Is(err, ErrEmptyInput) {
			t.Errorf("ReadLabels(%q): expected ErrEmptyInput, got %v", input, err)
		}
	}
}

func TestWriteLabels(t *testing.T) {
	var buf bytes.Buffer
	outcomes := []domain.Outcome{domain.OutcomeLoss, domain.OutcomeLoss, domain.OutcomeWin}
	if err := WriteLabels(&buf, outcomes); err != nil {
		t.Fatalf("write: %v", err)
	}
	if buf.String() != "LLW\n" {
		t.Errorf("expected LLW, got %q", buf.String())
	}

	res, err := ReadLabels(&buf, Options{})
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if domain.LabelString(res.Outcomes) != "LLW" {
		t.Errorf("read back mismatch: %s", domain.LabelString(res.Outcomes))
	}
}
