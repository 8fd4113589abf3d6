package idhash

import (
	"testing"

	"modquant-lab/internal/domain"
)

func TestComputeLedgerID(t *testing.T) {
	content := []byte("2024-01-02,2024-01-03,3500,3550,50\n")

	got := ComputeLedgerID(domain.LedgerKindTrades, content)
	if len(got) != 64 {
		t.Fatalf("ComputeLedgerID() length = %d, want 64", len(got))
	}
	if again := ComputeLedgerID(domain.LedgerKindTrades, content); again != got {
		t.Errorf("ComputeLedgerID() not deterministic: %s != %s", got, again)
	}
	if other := ComputeLedgerID(domain.LedgerKindSegments, content); other == got {
		t.Error("ComputeLedgerID() should differ by kind")
	}
	if other := ComputeLedgerID(domain.LedgerKindTrades, append(content, '\n')); other == got {
		t.Error("ComputeLedgerID() should differ by content")
	}
}

func TestComputeRunID(t *testing.T) {
	tests := []struct {
		name         string
		ledgerID     string
		segmentation string
		threshold    int
		policy       string
	}{
		{"strict single win", "ledger-a", "STRICT", 2, "SINGLE_WIN"},
		{"oscillation win rate", "ledger-a", "OSCILLATION_run3", 2, "WIN_RATE_50"},
		{"higher threshold", "ledger-a", "STRICT", 3, "SINGLE_WIN"},
		{"other ledger", "ledger-b", "STRICT", 2, "SINGLE_WIN"},
	}

	seen := make(map[string]string)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeRunID(tt.ledgerID, tt.segmentation, tt.threshold, tt.policy)
			if len(got) != 64 {
				t.Errorf("ComputeRunID() length = %d, want 64", len(got))
			}
			if got2 := ComputeRunID(tt.ledgerID, tt.segmentation, tt.threshold, tt.policy); got != got2 {
				t.Errorf("ComputeRunID() not deterministic: %s != %s", got, got2)
			}
			if prev, dup := seen[got]; dup {
				t.Errorf("ComputeRunID() collides with %q", prev)
			}
			seen[got] = tt.name
		})
	}
}
