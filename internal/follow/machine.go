package follow

import (
	"modquant-lab/internal/domain"
)

// State is the trigger state.
type State int

// State constants
const (
	Watching State = iota
	Following
)

func (s State) String() string {
	if s == Following {
		return "FOLLOWING"
	}
	return "WATCHING"
}

// Transition describes what one Step did.
type Transition struct {
	Index    int
	From     State
	To       State
	Selected bool // item was appended to a streak
	Flushed  bool // a streak was closed by the stop policy
}

// Machine is the follow trigger state machine.
// Items are fed in order with Step; Finish flushes an unfinished streak and
// returns the selection. A Machine is not safe for concurrent use.
type Machine struct {
	threshold int
	policy    StopPolicy

	state  State
	losses int // consecutive losses while watching
	pos    int // index of the next item

	// current streak, reused across streaks
	members []int
	labels  []byte
	wins    int

	streaks []domain.Streak
	indices []int
}

// NewMachine validates cfg and creates a Machine in the Watching state.
func NewMachine(cfg domain.FollowConfig) (*Machine, error) {
	policy, err := PolicyFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &Machine{
		threshold: cfg.LossThreshold,
		policy:    policy,
	}, nil
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Policy returns the stop policy.
func (m *Machine) Policy() StopPolicy {
	return m.policy
}

// Step consumes the next outcome.
//
// Watching: a LOSS counts toward the threshold; reaching it switches to
// Following with this LOSS as the first streak item. A WIN resets the count.
// Following: the item is appended, then the stop policy is evaluated on the
// streak; if it holds the streak is flushed and the machine watches again.
func (m *Machine) Step(o domain.Outcome) Transition {
	tr := Transition{Index: m.pos, From: m.state}
	m.pos++

	switch m.state {
	case Watching:
		if o != domain.OutcomeLoss {
			m.losses = 0
			break
		}
		m.losses++
		if m.losses >= m.threshold {
			m.losses = 0
			m.state = Following
			m.append(tr.Index, o)
			tr.Selected = true
		}

	case Following:
		m.append(tr.Index, o)
		tr.Selected = true
		if m.policy.ShouldStop(o, m.wins, len(m.members)) {
			m.flush(true)
			m.state = Watching
			tr.Flushed = true
		}
	}

	tr.To = m.state
	return tr
}

// Finish flushes an unfinished streak and returns the selection.
// The Machine is reset and may be reused.
func (m *Machine) Finish() *domain.Selection {
	if m.state == Following && len(m.members) > 0 {
		m.flush(false)
	}
	sel := &domain.Selection{Indices: m.indices, Streaks: m.streaks}
	if sel.Indices == nil {
		sel.Indices = []int{}
	}
	if sel.Streaks == nil {
		sel.Streaks = []domain.Streak{}
	}
	m.Reset()
	return sel
}

// Reset returns the Machine to its initial state, keeping the streak buffers.
func (m *Machine) Reset() {
	m.state = Watching
	m.losses = 0
	m.pos = 0
	m.members = m.members[:0]
	m.labels = m.labels[:0]
	m.wins = 0
	m.streaks = nil
	m.indices = nil
}

func (m *Machine) append(index int, o domain.Outcome) {
	m.members = append(m.members, index)
	m.labels = append(m.labels, byte(o.Rune()))
	if o == domain.OutcomeWin {
		m.wins++
	}
}

// flush copies the current streak into the result and clears the buffer.
func (m *Machine) flush(completed bool) {
	n := len(m.members)
	members := make([]int, n)
	copy(members, m.members)

	m.streaks = append(m.streaks, domain.Streak{
		Number:    len(m.streaks) + 1,
		Members:   members,
		Wins:      m.wins,
		Losses:    n - m.wins,
		Labels:    string(m.labels),
		WinRate:   float64(m.wins) * 100 / float64(n),
		Completed: completed,
	})
	for _, idx := range members {
		if k := len(m.indices); k == 0 || m.indices[k-1] < idx {
			m.indices = append(m.indices, idx)
		}
	}

	m.members = m.members[:0]
	m.labels = m.labels[:0]
	m.wins = 0
}
