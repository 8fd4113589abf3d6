package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"modquant-lab/internal/backtest"
	"modquant-lab/internal/decision"
	"modquant-lab/internal/domain"
	"modquant-lab/internal/ledger"
	"modquant-lab/internal/verification"
)

const directionalLedger = "2025-04-01 09:00\t2025-04-01 09:30\tLONG\t100\t10\n" +
	"2025-04-01 09:31\t2025-04-01 10:00\tLONG\t99\t-5\n" +
	"2025-04-01 10:01\t2025-04-01 10:20\tSHORT\t101\t-3\n" +
	"2025-04-01 10:21\t2025-04-01 10:50\tLONG\t100\t-2\n" +
	"2025-04-01 10:51\t2025-04-01 11:10\tbuy\t98\t-1\n" +
	"2025-04-01 11:11\t2025-04-01 11:40\tsell\t96\t4\n"

var fixedTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func strictConfig() backtest.Config {
	cfg := backtest.DefaultConfig()
	cfg.Segmentation = domain.SegmentationStrict
	return cfg
}

func newPipeline(cfg backtest.Config, stores Stores, dir string) *Pipeline {
	return New(cfg, stores, dir, nil).WithClock(func() time.Time { return fixedTime })
}

func TestRun_Trades(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	stores := MemoryStores()

	out, err := newPipeline(strictConfig(), stores, dir).
		Run(ctx, "data/demo.tsv", domain.LedgerKindTrades, strings.NewReader(directionalLedger))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if out.Reused || !out.RunStored {
		t.Errorf("expected fresh ledger and stored run, got reused=%v stored=%v", out.Reused, out.RunStored)
	}
	if out.Ledger.Name != "data/demo.tsv" || out.Ledger.RecordCount != 6 || out.Ledger.Format != "directional" {
		t.Errorf("unexpected ledger %+v", out.Ledger)
	}
	if out.Ledger.IngestedAt != fixedTime.UnixMilli() {
		t.Errorf("expected ingested_at from clock, got %d", out.Ledger.IngestedAt)
	}

	trades, err := stores.Trades.GetByLedger(ctx, out.Ledger.LedgerID)
	if err != nil || len(trades) != 6 {
		t.Errorf("expected 6 stored trades, got %d (%v)", len(trades), err)
	}
	segments, err := stores.Segments.GetByLedger(ctx, out.Ledger.LedgerID, "STRICT")
	if err != nil || len(segments) != 4 {
		t.Errorf("expected 4 stored segments, got %d (%v)", len(segments), err)
	}
	if _, err := stores.Runs.GetByID(ctx, out.Run.RunID); err != nil {
		t.Errorf("run not stored: %v", err)
	}

	wantFiles := []string{ReportFile, SegmentsFile, StreaksFile, SummaryFile, "demo_win_lose_seq.txt"}
	if len(out.Files) != len(wantFiles) {
		t.Fatalf("expected %d files, got %v", len(wantFiles), out.Files)
	}
	for i, name := range wantFiles {
		if out.Files[i] != filepath.Join(dir, name) {
			t.Errorf("file %d: expected %s, got %s", i, name, out.Files[i])
		}
	}

	labels, err := os.ReadFile(filepath.Join(dir, "demo_win_lose_seq.txt"))
	if err != nil {
		t.Fatalf("read labels: %v", err)
	}
	if string(labels) != "WLLW\n" {
		t.Errorf("expected WLLW, got %q", labels)
	}

	report, err := os.ReadFile(filepath.Join(dir, ReportFile))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(report), "Generated: 2026-01-02T03:04:05Z") {
		t.Error("report should use the injected clock")
	}
}

func TestRun_SegmentsFileReadsBack(t *testing.T) {
	dir := t.TempDir()
	out, err := newPipeline(strictConfig(), MemoryStores(), dir).
		Run(context.Background(), "demo.tsv", domain.LedgerKindTrades, strings.NewReader(directionalLedger))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, SegmentsFile))
	if err != nil {
		t.Fatalf("open segments: %v", err)
	}
	defer f.Close()

	parsed, err := ledger.ReadSegments(f, ledger.Options{})
	if err != nil {
		t.Fatalf("ReadSegments failed: %v", err)
	}
	if got := domain.LabelString(domain.Outcomes(parsed.Segments)); got != out.Results.Labels {
		t.Errorf("expected labels %s from segments.csv, got %s", out.Results.Labels, got)
	}
}

func TestRun_Idempotent(t *testing.T) {
	ctx := context.Background()
	stores := MemoryStores()
	p := newPipeline(strictConfig(), stores, "")

	first, err := p.Run(ctx, "demo.tsv", domain.LedgerKindTrades, strings.NewReader(directionalLedger))
	if err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	second, err := p.Run(ctx, "other-name.tsv", domain.LedgerKindTrades, strings.NewReader(directionalLedger))
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}

	if !second.Reused || second.RunStored {
		t.Errorf("expected reused ledger and existing run, got reused=%v stored=%v", second.Reused, second.RunStored)
	}
	if second.Run.RunID != first.Run.RunID {
		t.Error("identical input should produce the same run ID")
	}
	if second.Ledger.Name != "demo.tsv" {
		t.Errorf("reused ledger should keep its first name, got %s", second.Ledger.Name)
	}
	if len(second.Files) != 0 {
		t.Errorf("no output dir, expected no files, got %v", second.Files)
	}

	runs, err := stores.Runs.GetByLedger(ctx, first.Ledger.LedgerID)
	if err != nil || len(runs) != 1 {
		t.Errorf("expected 1 stored run, got %d (%v)", len(runs), err)
	}
}

func TestRun_ReusedLedgerNewPolicy(t *testing.T) {
	ctx := context.Background()
	stores := MemoryStores()

	first, err := newPipeline(strictConfig(), stores, "").
		Run(ctx, "demo.tsv", domain.LedgerKindTrades, strings.NewReader(directionalLedger))
	if err != nil {
		t.Fatalf("strict Run failed: %v", err)
	}
	second, err := newPipeline(backtest.DefaultConfig(), stores, "").
		Run(ctx, "demo.tsv", domain.LedgerKindTrades, strings.NewReader(directionalLedger))
	if err != nil {
		t.Fatalf("oscillation Run failed: %v", err)
	}

	if !second.Reused || !second.RunStored {
		t.Errorf("expected reused ledger and a new run, got reused=%v stored=%v", second.Reused, second.RunStored)
	}
	if second.Run.RunID == first.Run.RunID {
		t.Error("different segmentation should produce a different run ID")
	}
	segments, err := stores.Segments.GetByLedger(ctx, first.Ledger.LedgerID, "OSCILLATION_run3")
	if err != nil || len(segments) == 0 {
		t.Errorf("expected oscillation segments stored, got %d (%v)", len(segments), err)
	}
}

func TestRun_Labels(t *testing.T) {
	dir := t.TempDir()
	out, err := newPipeline(backtest.DefaultConfig(), MemoryStores(), dir).
		Run(context.Background(), "seq.txt", domain.LedgerKindLabels, strings.NewReader("LLWLLLW"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if out.Run.Segmentation != domain.SegmentationLabels {
		t.Errorf("expected LABELS segmentation, got %s", out.Run.Segmentation)
	}
	if _, err := os.Stat(filepath.Join(dir, SegmentsFile)); !os.IsNotExist(err) {
		t.Error("label input should not write segments.csv")
	}
	if len(out.Files) != 4 {
		t.Errorf("expected 4 files, got %v", out.Files)
	}
}

func TestRun_EmptyInput(t *testing.T) {
	ctx := context.Background()
	stores := MemoryStores()

	_, err := newPipeline(strictConfig(), stores, "").
		Run(ctx, "empty.tsv", domain.LedgerKindTrades, strings.NewReader("\n\n"))
	if !errors.Is(err, ledger.ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}

	ledgers, err := stores.Ledgers.List(ctx)
	if err != nil || len(ledgers) != 0 {
		t.Errorf("nothing should be stored, got %d ledgers (%v)", len(ledgers), err)
	}
}

func TestRun_UnknownKind(t *testing.T) {
	_, err := newPipeline(strictConfig(), MemoryStores(), "").
		Run(context.Background(), "x", domain.LedgerKind("CANDLES"), strings.NewReader("x"))
	if err == nil {
		t.Error("expected error for unknown ledger kind")
	}
}

func TestRun_Sufficiency(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		minSegments int
		wantPass    bool
		wantVerdict decision.Verdict
	}{
		{"too few segments", DefaultMinSegments, false, decision.VerdictInsufficientData},
		{"relaxed", 1, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stores := MemoryStores()
			checker := NewSufficiencyChecker(verification.NewReplayVerifier(stores.Runs, stores.Segments, nil)).
				WithThresholds(tt.minSegments, DefaultMaxSkippedRatio)

			out, err := newPipeline(strictConfig(), stores, "").
				WithSufficiencyChecker(checker).
				Run(ctx, "demo.tsv", domain.LedgerKindTrades, strings.NewReader(directionalLedger))
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}

			if out.Sufficiency.AllPass != tt.wantPass {
				t.Errorf("expected AllPass=%v, got %+v", tt.wantPass, out.Sufficiency.Checks)
			}
			if len(out.Sufficiency.Checks) != 3 {
				t.Fatalf("expected 3 checks, got %d", len(out.Sufficiency.Checks))
			}
			if replay := out.Sufficiency.Checks[2]; replay.Name != "Replayable" || !replay.Pass {
				t.Errorf("stored run should replay exactly, got %+v", replay)
			}
			if out.Report.DataQuality == nil || out.Report.DataQuality.AllPassed != tt.wantPass {
				t.Error("report should carry the data quality section")
			}

			want := tt.wantVerdict
			if want == "" {
				want = out.Results.Decision.Verdict
			}
			if out.Report.Decision.Verdict != want {
				t.Errorf("expected report verdict %s, got %s", want, out.Report.Decision.Verdict)
			}
		})
	}
}

func TestLabelsFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"trades.tsv", "trades_win_lose_seq.txt"},
		{"/data/2025/trades.csv", "trades_win_lose_seq.txt"},
		{"noext", "noext_win_lose_seq.txt"},
		{"", "ledger_win_lose_seq.txt"},
	}
	for _, tt := range tests {
		if got := LabelsFileName(tt.in); got != tt.want {
			t.Errorf("LabelsFileName(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
