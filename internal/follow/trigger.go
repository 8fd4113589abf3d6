package follow

import (
	"modquant-lab/internal/domain"
)

// Select runs the trigger over an outcome sequence.
// The configuration is validated before the scan; empty input yields an
// empty selection.
func Select(outcomes []domain.Outcome, cfg domain.FollowConfig) (*domain.Selection, error) {
	m, err := NewMachine(cfg)
	if err != nil {
		return nil, err
	}
	for _, o := range outcomes {
		m.Step(o)
	}
	return m.Finish(), nil
}

// SelectSegments runs the trigger over segment outcomes.
func SelectSegments(segments []*domain.Segment, cfg domain.FollowConfig) (*domain.Selection, error) {
	return Select(domain.Outcomes(segments), cfg)
}
