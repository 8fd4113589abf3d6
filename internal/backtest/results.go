package backtest

import (
	"modquant-lab/internal/decision"
	"modquant-lab/internal/domain"
	"modquant-lab/internal/idhash"
	"modquant-lab/internal/ledger"
)

// Results holds the output of one backtest.
type Results struct {
	LedgerID       string            `json:"ledger_id"`
	Input          domain.LedgerKind `json:"input"`
	Format         ledger.Format     `json:"format,omitempty"`
	SegmentationID string            `json:"segmentation"`
	StopPolicyID   string            `json:"stop_policy"`

	// Trades is nil unless the input was a trade ledger.
	Trades []*domain.Trade `json:"-"`
	// Segments is nil for label input.
	Segments []*domain.Segment `json:"segments,omitempty"`
	Outcomes []domain.Outcome  `json:"-"`
	Labels   string            `json:"labels"`

	Selection  *domain.Selection         `json:"selection"`
	Selected   domain.StatSummary        `json:"selected"`
	Baseline   domain.StatSummary        `json:"baseline"`
	Comparison domain.Comparison         `json:"comparison"`
	Directions []domain.DirectionSummary `json:"directions,omitempty"`
	Decision   *decision.Result          `json:"decision"`

	Warnings []*ledger.InputParseError `json:"warnings,omitempty"`

	cfg Config
}

// Config returns the parameters the results were produced with.
func (r *Results) Config() Config {
	return r.cfg
}

// RunID is the deterministic identifier of this backtest.
func (r *Results) RunID() string {
	return idhash.ComputeRunID(r.LedgerID, r.SegmentationID, r.cfg.Follow.LossThreshold, r.StopPolicyID)
}

// Run converts the results into a persistable BacktestRun.
func (r *Results) Run(createdAt int64) *domain.BacktestRun {
	run := &domain.BacktestRun{
		RunID:        r.RunID(),
		LedgerID:     r.LedgerID,
		Segmentation: r.segmentationPolicy(),
		Config:       r.cfg.Follow,
		Labels:       r.Labels,
		SegmentCount: len(r.Outcomes),
		Selected:     r.Selected,
		Baseline:     r.Baseline,
		Streaks:      r.Selection.Streaks,
		CreatedAt:    createdAt,
	}
	if run.Segmentation == domain.SegmentationOscillation {
		run.ReversalRun = r.cfg.ReversalRun
	}
	return run
}

func (r *Results) segmentationPolicy() domain.SegmentationPolicy {
	switch r.Input {
	case domain.LedgerKindSegments:
		return domain.SegmentationLedger
	case domain.LedgerKindLabels:
		return domain.SegmentationLabels
	default:
		return r.cfg.Segmentation
	}
}
