package domain

import "sort"

// StopPolicy selects how a follow streak ends.
type StopPolicy string

// Stop policy constants
const (
	StopPolicySingleWin StopPolicy = "SINGLE_WIN"
	StopPolicyWinRate   StopPolicy = "WIN_RATE"
)

// FollowConfig parameterises the follow trigger.
type FollowConfig struct {
	LossThreshold int        // consecutive losses required to start following
	StopPolicy    StopPolicy // SINGLE_WIN | WIN_RATE

	// WIN_RATE parameters
	TargetWinRate *float64 // percentage in [0,100]
}

// Streak is one run of segments selected while following.
type Streak struct {
	Number    int     // 1-based
	Members   []int   // segment indices, contiguous and ascending
	Wins      int
	Losses    int
	Labels    string  // concatenated W/L of members
	WinRate   float64 // wins / len(Members) * 100
	Completed bool    // false when flushed at end of input before the stop condition held
}

// Start returns the first member index.
func (s *Streak) Start() int {
	return s.Members[0]
}

// End returns the last member index.
func (s *Streak) End() int {
	return s.Members[len(s.Members)-1]
}

// Selection is the output of the follow trigger.
type Selection struct {
	Indices []int    // ordered, deduplicated
	Streaks []Streak // ordered by start
}

// Contains reports whether a segment index was selected.
func (s *Selection) Contains(index int) bool {
	i := sort.SearchInts(s.Indices, index)
	return i < len(s.Indices) && s.Indices[i] == index
}
