// Package segmentation groups an ordered trade ledger into directional segments.
package segmentation

import (
	"errors"
	"fmt"

	"modquant-lab/internal/domain"
)

// Policy errors
var (
	ErrUnknownPolicy      = errors.New("unknown segmentation policy")
	ErrInvalidReversalRun = errors.New("reversal run must be >= 1")
)

// Policy decides where segments start.
type Policy interface {
	// Boundaries returns the start index of every segment in ascending order.
	// The first element is always 0 for non-empty input.
	Boundaries(dirs []domain.Direction) []int

	// ID returns the policy identifier (includes parameters).
	ID() string

	// Name returns the canonical policy name.
	Name() domain.SegmentationPolicy
}

// FromConfig creates a Policy from its name and reversal run length.
// reversalRun is ignored by the strict policy.
func FromConfig(policy domain.SegmentationPolicy, reversalRun int) (Policy, error) {
	switch policy {
	case domain.SegmentationStrict:
		return StrictPolicy{}, nil
	case domain.SegmentationOscillation:
		if reversalRun < 1 {
			return nil, fmt.Errorf("%w: got %d", ErrInvalidReversalRun, reversalRun)
		}
		return OscillationPolicy{ReversalRun: reversalRun}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
}

// StrictPolicy starts a new segment at every direction change.
type StrictPolicy struct{}

// ID returns the policy identifier.
func (StrictPolicy) ID() string { return "STRICT" }

// Name returns SegmentationStrict.
func (StrictPolicy) Name() domain.SegmentationPolicy { return domain.SegmentationStrict }

// Boundaries splits wherever dirs[i] != dirs[i-1].
func (StrictPolicy) Boundaries(dirs []domain.Direction) []int {
	if len(dirs) == 0 {
		return nil
	}
	starts := []int{0}
	for i := 1; i < len(dirs); i++ {
		if dirs[i] != dirs[i-1] {
			starts = append(starts, i)
		}
	}
	return starts
}

// OscillationPolicy keeps a main direction per segment and only starts a new
// segment once ReversalRun consecutive trades run against it.
type OscillationPolicy struct {
	ReversalRun int
}

// ID returns the policy identifier including the reversal run.
func (p OscillationPolicy) ID() string {
	return fmt.Sprintf("OSCILLATION_run%d", p.ReversalRun)
}

// Name returns SegmentationOscillation.
func (OscillationPolicy) Name() domain.SegmentationPolicy { return domain.SegmentationOscillation }

// Boundaries scans once, tracking the pending counter-direction run.
//   - a trade matching the main direction clears the pending run
//   - a counter trade extends it; at ReversalRun the new segment starts at the
//     first pending trade and takes its direction
//   - a pending run still open at the end stays in the current segment
func (p OscillationPolicy) Boundaries(dirs []domain.Direction) []int {
	if len(dirs) == 0 {
		return nil
	}
	run := p.ReversalRun
	if run < 1 {
		run = domain.DefaultReversalRun
	}

	starts := []int{0}
	main := dirs[0]
	pending := 0
	pendingStart := 0

	for i := 1; i < len(dirs); i++ {
		if dirs[i] == main {
			pending = 0
			continue
		}
		if pending == 0 {
			pendingStart = i
		}
		pending++
		if pending >= run {
			starts = append(starts, pendingStart)
			main = dirs[pendingStart]
			pending = 0
		}
	}
	return starts
}
