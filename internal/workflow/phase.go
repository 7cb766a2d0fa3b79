package workflow

import (
	"errors"

	"propertysanta/engine/internal/failure"
)

type Phase string

const (
	PhaseInitial         Phase = "initial"
	PhaseManualExplained Phase = "manual_explained"
	PhaseBeforeRequested Phase = "before_requested"
	PhaseAfterRequested  Phase = "after_requested"
	PhaseCompleted       Phase = "completed"
)

var ErrInvalidTransition = errors.New("invalid workflow transition")

func (p Phase) Valid() bool {
	switch p {
	case PhaseInitial, PhaseManualExplained, PhaseBeforeRequested, PhaseAfterRequested, PhaseCompleted:
		return true
	}
	return false
}

// isAllowedTransition is the complete transition table. Reset (any phase to
// initial) is handled separately.
func isAllowedTransition(from, to Phase) bool {
	switch from {
	case PhaseInitial:
		return to == PhaseManualExplained
	case PhaseManualExplained:
		return to == PhaseBeforeRequested || to == PhaseAfterRequested
	case PhaseBeforeRequested:
		return to == PhaseBeforeRequested || to == PhaseAfterRequested
	case PhaseAfterRequested:
		return to == PhaseAfterRequested || to == PhaseCompleted
	case PhaseCompleted:
		return to == PhaseAfterRequested
	default:
		return false
	}
}

// transition moves the context to the next phase, or fails without mutating
// anything.
func (c *Context) transition(to Phase) error {
	if !isAllowedTransition(c.phase, to) {
		return &failure.Error{
			Kind: failure.KindInvalidTransition,
			Msg:  string(c.phase) + " -> " + string(to),
			Err:  ErrInvalidTransition,
		}
	}
	c.phase = to
	return nil
}
