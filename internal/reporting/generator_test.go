package reporting

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"modquant-lab/internal/backtest"
	"modquant-lab/internal/decision"
	"modquant-lab/internal/domain"
	"modquant-lab/internal/storage"
	"modquant-lab/internal/storage/memory"
)

const directionalLedger = "2025-04-01 09:00\t2025-04-01 09:30\tLONG\t100\t10\n" +
	"2025-04-01 09:31\t2025-04-01 10:00\tLONG\t99\t-5\n" +
	"2025-04-01 10:01\t2025-04-01 10:20\tSHORT\t101\t-3\n" +
	"2025-04-01 10:21\t2025-04-01 10:50\tLONG\t100\t-2\n" +
	"2025-04-01 10:51\t2025-04-01 11:10\tbuy\t98\t-1\n" +
	"2025-04-01 11:11\t2025-04-01 11:40\tsell\t96\t4\n"

var fixedTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }

func strictResults(t *testing.T) *backtest.Results {
	t.Helper()
	cfg := backtest.DefaultConfig()
	cfg.Segmentation = domain.SegmentationStrict
	runner, err := backtest.NewRunner(cfg, nil)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	res, err := runner.RunTrades(context.Background(), []byte(directionalLedger))
	if err != nil {
		t.Fatalf("RunTrades failed: %v", err)
	}
	return res
}

func TestFromResults(t *testing.T) {
	res := strictResults(t)
	r := NewGenerator(nil, nil).WithClock(fixedClock).FromResults(res, "demo.tsv")

	if r.RunID != res.RunID() {
		t.Errorf("expected run ID %s, got %s", res.RunID(), r.RunID)
	}
	if r.Parameters.SegmentationID != "STRICT" || r.Parameters.StopPolicyID != "SINGLE_WIN" {
		t.Errorf("unexpected parameters %+v", r.Parameters)
	}
	if r.DataSummary.Trades != 6 || r.DataSummary.Segments != 4 {
		t.Errorf("unexpected data summary %+v", r.DataSummary)
	}
	if r.DataSummary.Streaks != 1 || r.DataSummary.Unfinished != 0 {
		t.Errorf("unexpected streak counts %+v", r.DataSummary)
	}
	if len(r.Streaks) != 1 || r.Streaks[0].Start != 2 || r.Streaks[0].End != 3 {
		t.Errorf("unexpected streaks %+v", r.Streaks)
	}
	if len(r.Directions) != 2 {
		t.Errorf("expected 2 direction rows, got %d", len(r.Directions))
	}
}

func TestRenderMarkdown(t *testing.T) {
	r := NewGenerator(nil, nil).WithClock(fixedClock).FromResults(strictResults(t), "demo.tsv")
	md := RenderMarkdown(r)

	for _, want := range []string{
		"# Follow-After-Losses Report: demo.tsv",
		"Generated: 2026-01-02T03:04:05Z",
		"| Segmentation | STRICT |",
		"| Win Rate | 50.00% | 50.00% | +0.00 pp |",
		"## Direction Breakdown",
		"| 1 | 2 | 3 | 2 | 1 | 1 | LW | 50.00% | yes |",
		"## Verdict:",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}

	// Deterministic with a fixed clock
	if again := RenderMarkdown(r); again != md {
		t.Error("rendering is not deterministic")
	}
}

func TestRenderMarkdown_LabelsUndefined(t *testing.T) {
	runner, err := backtest.NewRunner(backtest.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	res, err := runner.RunLabels(context.Background(), []byte("LLWLLLW"))
	if err != nil {
		t.Fatalf("RunLabels failed: %v", err)
	}
	md := RenderMarkdown(NewGenerator(nil, nil).WithClock(fixedClock).FromResults(res, ""))

	if !strings.Contains(md, "| Payout Ratio | n/a | n/a | n/a |") {
		t.Error("undefined payout should render as n/a")
	}
	if !strings.Contains(md, "| Median Win | n/a | n/a | |") {
		t.Error("undefined median should render as n/a")
	}
	for _, want := range []string{
		"| Total P&L | n/a | n/a | n/a |",
		"| Winning P&L | n/a | n/a | |",
		"| Losing P&L | n/a | n/a | |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("label input has no P&L, missing %q", want)
		}
	}
	if strings.Contains(md, "## Direction Breakdown") {
		t.Error("label input should have no direction breakdown")
	}
	if !strings.Contains(md, "LLWLLLW") {
		t.Error("label sequence missing")
	}
}

func TestRenderCSV_LabelsEmptyPnL(t *testing.T) {
	runner, err := backtest.NewRunner(backtest.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	res, err := runner.RunLabels(context.Background(), []byte("LLWLLLW"))
	if err != nil {
		t.Fatalf("RunLabels failed: %v", err)
	}
	r := NewGenerator(nil, nil).WithClock(fixedClock).FromResults(res, "")

	lines := strings.Split(strings.TrimSpace(RenderSummaryCSV(r)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if want := r.RunID + ",selected,5,2,3,0.400000,,,,,,,2"; lines[1] != want {
		t.Errorf("expected %q, got %q", want, lines[1])
	}
	if want := r.RunID + ",baseline,7,2,5,0.285714,,,,,,,3"; lines[2] != want {
		t.Errorf("expected %q, got %q", want, lines[2])
	}
}

func TestGenerate_StoredLabelRun(t *testing.T) {
	ctx := context.Background()
	cfg := backtest.DefaultConfig()
	cfg.MinSelected = 1
	runner, err := backtest.NewRunner(cfg, nil)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	res, err := runner.RunLabels(ctx, []byte("LLWLLWLLWLLWLLWLLWLLW"))
	if err != nil {
		t.Fatalf("RunLabels failed: %v", err)
	}

	runs := memory.NewBacktestRunStore()
	if err := runs.Insert(ctx, res.Run(1000)); err != nil {
		t.Fatalf("Insert run failed: %v", err)
	}
	r, err := NewGenerator(runs, nil).WithMinSelected(1).WithClock(fixedClock).Generate(ctx, res.RunID())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if r.Parameters.Input != domain.LedgerKindLabels {
		t.Errorf("expected labels input, got %s", r.Parameters.Input)
	}
	if r.Decision.Verdict != decision.VerdictImproves {
		t.Errorf("expected IMPROVES, got %s", r.Decision.Verdict)
	}
	if md := RenderMarkdown(r); !strings.Contains(md, "| Total P&L | n/a | n/a | n/a |") {
		t.Errorf("stored label run should render P&L as n/a:\n%s", md)
	}
}

func TestGenerate_StoredRun(t *testing.T) {
	ctx := context.Background()
	res := strictResults(t)

	runs := memory.NewBacktestRunStore()
	ledgers := memory.NewLedgerStore()
	if err := runs.Insert(ctx, res.Run(1000)); err != nil {
		t.Fatalf("Insert run failed: %v", err)
	}
	if err := ledgers.Insert(ctx, &domain.Ledger{
		LedgerID:    res.LedgerID,
		Name:        "demo.tsv",
		Kind:        domain.LedgerKindTrades,
		RecordCount: 6,
	}); err != nil {
		t.Fatalf("Insert ledger failed: %v", err)
	}

	g := NewGenerator(runs, ledgers).WithClock(fixedClock)
	r, err := g.Generate(ctx, res.RunID())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if r.LedgerName != "demo.tsv" || r.Parameters.Input != domain.LedgerKindTrades {
		t.Errorf("unexpected ledger fields %s/%s", r.LedgerName, r.Parameters.Input)
	}
	if r.Parameters.SegmentationID != res.SegmentationID || r.Parameters.StopPolicyID != res.StopPolicyID {
		t.Errorf("unexpected parameters %+v", r.Parameters)
	}
	if r.Selected.Count != res.Selected.Count || !r.Selected.TotalPnL.Equal(res.Selected.TotalPnL) {
		t.Errorf("selected summary mismatch: %+v", r.Selected)
	}
	if r.Decision.Verdict != res.Decision.Verdict {
		t.Errorf("expected verdict %s, got %s", res.Decision.Verdict, r.Decision.Verdict)
	}
	if len(r.Streaks) != 1 {
		t.Errorf("expected 1 streak, got %d", len(r.Streaks))
	}
}

func TestGenerate_NotFound(t *testing.T) {
	g := NewGenerator(memory.NewBacktestRunStore(), nil)
	_, err := g.Generate(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRenderCSV(t *testing.T) {
	r := NewGenerator(nil, nil).WithClock(fixedClock).FromResults(strictResults(t), "demo.tsv")

	lines := strings.Split(strings.TrimSpace(RenderSummaryCSV(r)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[1], r.RunID+",selected,2,1,1,0.500000,1,4,-3,") {
		t.Errorf("unexpected selected row %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], r.RunID+",baseline,4,2,2,0.500000,") {
		t.Errorf("unexpected baseline row %q", lines[2])
	}

	streaks := strings.Split(strings.TrimSpace(RenderStreaksCSV(r.Streaks)), "\n")
	if len(streaks) != 2 || streaks[1] != "1,2,3,2,1,1,LW,50.00,true" {
		t.Errorf("unexpected streaks csv %q", streaks)
	}
}

func TestAnalysisFileName(t *testing.T) {
	target := 60.0
	tests := []struct {
		params Parameters
		want   string
	}{
		{Parameters{LossThreshold: 2, StopPolicy: domain.StopPolicySingleWin}, "trades_follow_n2_analysis.md"},
		{Parameters{LossThreshold: 3, StopPolicy: domain.StopPolicyWinRate, TargetWinRate: domain.FromPtr(&target)}, "trades_winrate60_n3_analysis.md"},
	}
	for _, tt := range tests {
		if got := AnalysisFileName("trades", tt.params); got != tt.want {
			t.Errorf("AnalysisFileName = %s, want %s", got, tt.want)
		}
	}
}
