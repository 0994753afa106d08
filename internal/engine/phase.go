package engine

import (
	"errors"
	"fmt"
)

// ErrIllegalTransition is returned when the run attempts to move between
// phases out of order.
var ErrIllegalTransition = errors.New("illegal phase transition")

// Phase is one step of an allocation run.
type Phase int

const (
	// PhaseInit is the state after reset, before any allocation.
	PhaseInit Phase = iota

	// PhaseFirstPass tries every participant's 1st choice.
	PhaseFirstPass

	// PhaseSecondPass tries the 2nd choice of everyone still untagged and
	// freezes the failures into the unresolved set.
	PhaseSecondPass

	// PhaseOptimize1 sweeps the rotation rules once over the unresolved set.
	PhaseOptimize1

	// PhaseThirdPass tries the 3rd choice of everyone still unresolved.
	PhaseThirdPass

	// PhaseFinalOptimize tries the five exchange rounds per unresolved
	// participant.
	PhaseFinalOptimize

	// PhaseSummarized is terminal.
	PhaseSummarized
)

// String returns the upper-case phase name, e.g. "SECOND_PASS".
func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "INIT"
	case PhaseFirstPass:
		return "FIRST_PASS"
	case PhaseSecondPass:
		return "SECOND_PASS"
	case PhaseOptimize1:
		return "OPTIMIZE_1"
	case PhaseThirdPass:
		return "THIRD_PASS"
	case PhaseFinalOptimize:
		return "FINAL_OPTIMIZE"
	case PhaseSummarized:
		return "SUMMARIZED"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// CanTransitionTo reports whether next may follow p. Phases advance one at
// a time; after SECOND_PASS, OPTIMIZE_1 or THIRD_PASS the run may jump
// straight to SUMMARIZED when nobody is left unresolved.
func (p Phase) CanTransitionTo(next Phase) bool {
	if p >= PhaseSummarized {
		return false
	}
	if next == p+1 {
		return true
	}
	if next == PhaseSummarized {
		switch p {
		case PhaseSecondPass, PhaseOptimize1, PhaseThirdPass:
			return true
		}
	}
	return false
}
