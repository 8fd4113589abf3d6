// Package backtest runs the follow-after-losses pipeline over one input:
// trades -> segments -> labels -> trigger -> statistics -> verdict.
package backtest

import (
	"fmt"

	"modquant-lab/internal/decision"
	"modquant-lab/internal/domain"
	"modquant-lab/internal/follow"
	"modquant-lab/internal/ledger"
	"modquant-lab/internal/segmentation"
)

// Config is the parameter set of a Runner. It is copied on construction and
// never changes afterwards.
type Config struct {
	Segmentation domain.SegmentationPolicy
	ReversalRun  int
	Follow       domain.FollowConfig

	// Trade ledger parsing
	Format    ledger.Format
	Delimiter rune

	// Minimum selected segments for a verdict other than INSUFFICIENT_DATA
	MinSelected int
}

// DefaultConfig returns the canonical parameters: oscillation segmentation with
// a reversal run of 3, follow after 2 losses until the first win.
func DefaultConfig() Config {
	return Config{
		Segmentation: domain.SegmentationOscillation,
		ReversalRun:  domain.DefaultReversalRun,
		Follow: domain.FollowConfig{
			LossThreshold: 2,
			StopPolicy:    domain.StopPolicySingleWin,
		},
		Format:      ledger.FormatAuto,
		Delimiter:   '\t',
		MinSelected: decision.DefaultMinSelected,
	}
}

// ConfigFromRun rebuilds the parameters a stored run was produced with.
func ConfigFromRun(run *domain.BacktestRun) Config {
	cfg := DefaultConfig()
	if run.Segmentation == domain.SegmentationStrict || run.Segmentation == domain.SegmentationOscillation {
		cfg.Segmentation = run.Segmentation
	}
	if run.ReversalRun > 0 {
		cfg.ReversalRun = run.ReversalRun
	}
	cfg.Follow = run.Config
	if run.Config.TargetWinRate != nil {
		v := *run.Config.TargetWinRate
		cfg.Follow.TargetWinRate = &v
	}
	return cfg
}

// validate resolves the policies, failing before any input is read.
func (c Config) validate() (segmentation.Policy, follow.StopPolicy, error) {
	seg, err := segmentation.FromConfig(c.Segmentation, c.ReversalRun)
	if err != nil {
		return nil, nil, fmt.Errorf("segmentation: %w", err)
	}
	stop, err := follow.PolicyFromConfig(c.Follow)
	if err != nil {
		return nil, nil, err
	}
	if _, err := ledger.ParseFormat(string(c.Format)); err != nil {
		return nil, nil, err
	}
	return seg, stop, nil
}
