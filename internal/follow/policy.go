// Package follow implements the follow-after-losses trigger: watch for a run of
// consecutive losses, then follow every segment until a stop policy is met.
package follow

import (
	"fmt"
	"math"

	"modquant-lab/internal/domain"
)

// ConfigError is a rejected follow configuration.
// It is returned before any input is scanned.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid follow config: %s: %s", e.Field, e.Reason)
}

// StopPolicy decides when a following streak ends.
type StopPolicy interface {
	// ShouldStop is evaluated after an item is appended to the streak.
	// last is the appended outcome; wins and n describe the streak so far.
	ShouldStop(last domain.Outcome, wins, n int) bool

	// ID returns the policy identifier (includes parameters).
	ID() string

	// Name returns the canonical policy name.
	Name() domain.StopPolicy
}

// SingleWin stops on the first WIN.
type SingleWin struct{}

// ShouldStop reports whether the appended item is a win.
func (SingleWin) ShouldStop(last domain.Outcome, _, _ int) bool {
	return last == domain.OutcomeWin
}

// ID returns the policy identifier.
func (SingleWin) ID() string { return "SINGLE_WIN" }

// Name returns StopPolicySingleWin.
func (SingleWin) Name() domain.StopPolicy { return domain.StopPolicySingleWin }

// WinRate stops once the streak's win rate reaches Target percent.
type WinRate struct {
	Target float64 // percentage in [0,100]
}

// ShouldStop reports wins/n*100 >= Target, compared without division.
func (p WinRate) ShouldStop(_ domain.Outcome, wins, n int) bool {
	if n == 0 {
		return false
	}
	return float64(wins)*100 >= p.Target*float64(n)
}

// ID returns the policy identifier including the target.
func (p WinRate) ID() string {
	return fmt.Sprintf("WIN_RATE_%g", p.Target)
}

// Name returns StopPolicyWinRate.
func (WinRate) Name() domain.StopPolicy { return domain.StopPolicyWinRate }

// Validate checks a follow configuration.
func Validate(cfg domain.FollowConfig) error {
	if cfg.LossThreshold < 1 {
		return &ConfigError{Field: "loss_threshold", Reason: fmt.Sprintf("must be >= 1, got %d", cfg.LossThreshold)}
	}

	switch cfg.StopPolicy {
	case "":
		return &ConfigError{Field: "stop_policy", Reason: "no stop policy selected"}
	case domain.StopPolicySingleWin:
		if cfg.TargetWinRate != nil {
			return &ConfigError{Field: "target_win_rate", Reason: "set together with SINGLE_WIN; select one stop policy"}
		}
	case domain.StopPolicyWinRate:
		if cfg.TargetWinRate == nil {
			return &ConfigError{Field: "target_win_rate", Reason: "required by WIN_RATE"}
		}
		t := *cfg.TargetWinRate
		if math.IsNaN(t) || t < 0 || t > 100 {
			return &ConfigError{Field: "target_win_rate", Reason: fmt.Sprintf("must be within [0,100], got %g", t)}
		}
	default:
		return &ConfigError{Field: "stop_policy", Reason: fmt.Sprintf("unknown policy %q", cfg.StopPolicy)}
	}
	return nil
}

// PolicyFromConfig validates cfg and returns its stop policy.
func PolicyFromConfig(cfg domain.FollowConfig) (StopPolicy, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	if cfg.StopPolicy == domain.StopPolicyWinRate {
		return WinRate{Target: *cfg.TargetWinRate}, nil
	}
	return SingleWin{}, nil
}
