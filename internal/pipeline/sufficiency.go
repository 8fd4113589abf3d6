package pipeline

import (
	"context"
	"fmt"

	"modquant-lab/internal/verification"
)

// Default sufficiency thresholds
const (
	DefaultMinSegments     = 20
	DefaultMaxSkippedRatio = 0.05
)

// SufficiencyCheck represents one data sufficiency criterion.
type SufficiencyCheck struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// SufficiencyResult contains all checks.
type SufficiencyResult struct {
	Checks  []SufficiencyCheck
	AllPass bool
	Errors  []string // data integrity errors
}

// SufficiencyChecker validates that a ledger supports a verdict at all.
type SufficiencyChecker struct {
	verifier        verification.Verifier // optional, for the replay check
	minSegments     int
	maxSkippedRatio float64
}

// NewSufficiencyChecker creates a checker with the default thresholds.
func NewSufficiencyChecker(verifier verification.Verifier) *SufficiencyChecker {
	return &SufficiencyChecker{
		verifier:        verifier,
		minSegments:     DefaultMinSegments,
		maxSkippedRatio: DefaultMaxSkippedRatio,
	}
}

// WithThresholds overrides the segment and skipped-record thresholds.
func (c *SufficiencyChecker) WithThresholds(minSegments int, maxSkippedRatio float64) *SufficiencyChecker {
	c.minSegments = minSegments
	c.maxSkippedRatio = maxSkippedRatio
	return c
}

// Check performs the sufficiency checks on a finished pipeline run:
//  1. segments in the baseline >= minSegments
//  2. skipped records / all records <= maxSkippedRatio
//  3. the stored run replays exactly (when a verifier is set)
func (c *SufficiencyChecker) Check(ctx context.Context, out *Output) (*SufficiencyResult, error) {
	result := &SufficiencyResult{
		Checks:  make([]SufficiencyCheck, 0, 3),
		AllPass: true,
		Errors:  []string{},
	}
	add := func(check SufficiencyCheck) {
		result.Checks = append(result.Checks, check)
		if !check.Pass {
			result.AllPass = false
		}
	}

	// Check 1: enough segments
	segments := out.Results.Baseline.Count
	add(SufficiencyCheck{
		Name:      "Segments",
		Threshold: fmt.Sprintf(">= %d", c.minSegments),
		Actual:    fmt.Sprintf("%d", segments),
		Pass:      segments >= c.minSegments,
	})

	// Check 2: skipped records
	skipped := len(out.Results.Warnings)
	total := recordCount(out.Results) + skipped
	ratio := 0.0
	if total > 0 {
		ratio = float64(skipped) / float64(total)
	}
	add(SufficiencyCheck{
		Name:      "Skipped records",
		Threshold: fmt.Sprintf("<= %.1f%%", c.maxSkippedRatio*100),
		Actual:    fmt.Sprintf("%.1f%% (%d/%d)", ratio*100, skipped, total),
		Pass:      ratio <= c.maxSkippedRatio,
	})

	// Check 3: replay
	if c.verifier != nil {
		vr, err := c.verifier.VerifyRun(ctx, out.Run.RunID)
		if err != nil {
			return nil, fmt.Errorf("verify run: %w", err)
		}
		actual := "match"
		if !vr.Match {
			actual = fmt.Sprintf("%d divergences", len(vr.Divergences))
			for _, d := range vr.Divergences {
				result.Errors = append(result.Errors,
					fmt.Sprintf("replay divergence in %s: stored %v, replayed %v", d.Field, d.Expected, d.Actual))
			}
		}
		add(SufficiencyCheck{
			Name:      "Replayable",
			Threshold: "exact match",
			Actual:    actual,
			Pass:      vr.Match,
		})
	}

	return result, nil
}
