package gka

import "fmt"

// State is the position of a participant in a run.
type State uint8

const (
	// StateInit means the ring is fixed but no secrets are known yet.
	StateInit State = iota
	// StatePairwiseDone means both pairwise secrets and the xor key are known.
	StatePairwiseDone
	// StateCommitted means the commitment to the xor key has been published.
	StateCommitted
	// StateRevealed means every xor key and opening value is on the board.
	StateRevealed
	// StateKeyDerived is terminal: all checks passed and the session key is known.
	StateKeyDerived
	// StateAborted is terminal: the run failed and no key is accepted.
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StatePairwiseDone:
		return "pairwise_done"
	case StateCommitted:
		return "committed"
	case StateRevealed:
		return "revealed"
	case StateKeyDerived:
		return "key_derived"
	case StateAborted:
		return "aborted"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Terminal returns true for StateKeyDerived and StateAborted.
func (s State) Terminal() bool {
	return s == StateKeyDerived || s == StateAborted
}

// CanTransition returns true if next directly follows s.
// Any non-terminal state may abort, and nothing leaves a terminal state.
func (s State) CanTransition(next State) bool {
	if s.Terminal() {
		return false
	}
	if next == StateAborted {
		return true
	}
	return next == s+1
}
