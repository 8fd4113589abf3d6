package reporting

import (
	"fmt"
	"time"

	"modquant-lab/internal/decision"
	"modquant-lab/internal/domain"
)

// Report represents one backtest report.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	RunID       string
	LedgerID    string
	LedgerName  string

	Parameters  Parameters
	DataSummary DataSummary

	// Label string of the whole sequence
	Labels string

	// Statistics
	Selected   domain.StatSummary
	Baseline   domain.StatSummary
	Comparison domain.Comparison
	Directions []domain.DirectionSummary // empty for label input

	Streaks     []StreakRow
	DataQuality *DataQuality // nil when no sufficiency checks ran
	Decision    *decision.Result

	// Skipped input records, one line each
	Warnings []string
}

// Parameters are the inputs that determine a run.
type Parameters struct {
	Input          domain.LedgerKind
	Format         string // resolved trade ledger format, empty otherwise
	SegmentationID string
	LossThreshold  int
	StopPolicyID   string
	StopPolicy     domain.StopPolicy
	TargetWinRate  domain.Optional[float64]
}

// DataSummary contains data description.
type DataSummary struct {
	Trades         int // 0 unless the input was a trade ledger
	Segments       int // labels for label input
	Skipped        int
	Streaks        int
	Unfinished     int
	OverallWinRate float64 // baseline win rate as a fraction
}

// DataQuality holds the sufficiency checks of the input.
type DataQuality struct {
	Checks    []QualityCheckRow
	AllPassed bool
	Errors    []string
}

// QualityCheckRow represents one sufficiency check.
type QualityCheckRow struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// StreakRow represents one follow streak.
type StreakRow struct {
	Number    int
	Start     int // first segment index
	End       int // last segment index
	Members   int
	Wins      int
	Losses    int
	Labels    string
	WinRate   float64 // percentage
	Completed bool
}

func streakRows(streaks []domain.Streak) []StreakRow {
	rows := make([]StreakRow, 0, len(streaks))
	for i := range streaks {
		s := &streaks[i]
		if len(s.Members) == 0 {
			continue
		}
		rows = append(rows, StreakRow{
			Number:    s.Number,
			Start:     s.Start(),
			End:       s.End(),
			Members:   len(s.Members),
			Wins:      s.Wins,
			Losses:    s.Losses,
			Labels:    s.Labels,
			WinRate:   s.WinRate,
			Completed: s.Completed,
		})
	}
	return rows
}

func unfinished(rows []StreakRow) int {
	n := 0
	for _, r := range rows {
		if !r.Completed {
			n++
		}
	}
	return n
}

// AnalysisFileName names the per-run analysis file written next to a ledger,
// e.g. trades_follow_n2_analysis.md or trades_winrate60_n3_analysis.md.
func AnalysisFileName(base string, p Parameters) string {
	if v, ok := p.TargetWinRate.Get(); ok && p.StopPolicy == domain.StopPolicyWinRate {
		return fmt.Sprintf("%s_winrate%g_n%d_analysis.md", base, v, p.LossThreshold)
	}
	return fmt.Sprintf("%s_follow_n%d_analysis.md", base, p.LossThreshold)
}
