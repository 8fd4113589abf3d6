package domain

// SegmentationPolicy selects how trades are grouped into segments.
type SegmentationPolicy string

// Segmentation policy constants
const (
	SegmentationStrict      SegmentationPolicy = "STRICT"
	SegmentationOscillation SegmentationPolicy = "OSCILLATION"

	// SegmentationLedger marks segments read from a pre-aggregated segment ledger.
	SegmentationLedger SegmentationPolicy = "LEDGER"
	// SegmentationLabels marks runs over a bare label sequence; there are no segments.
	SegmentationLabels SegmentationPolicy = "LABELS"
)

// DefaultReversalRun is the number of consecutive counter-direction trades
// that confirm a regime change under the oscillation policy.
const DefaultReversalRun = 3

// BacktestRun is one persisted follow-after-losses backtest.
// RunID is deterministic over the ledger and parameters.
type BacktestRun struct {
	RunID    string
	LedgerID string

	// Parameters
	Segmentation SegmentationPolicy
	ReversalRun  int
	Config       FollowConfig

	// Inputs seen by the trigger
	Labels       string // W/L string of all segments
	SegmentCount int

	// Results
	Selected StatSummary
	Baseline StatSummary
	Streaks  []Streak

	CreatedAt int64 // Unix milliseconds
}
