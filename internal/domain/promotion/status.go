package promotion

import "fmt"

// InvalidTransitionError reports a status change outside the allowed table.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

// transitions is the full status state machine. EXPIRED and CANCELLED are
// terminal.
var transitions = map[Status][]Status{
	StatusDraft:     {StatusActive, StatusCancelled},
	StatusActive:    {StatusPaused, StatusCancelled, StatusExpired},
	StatusPaused:    {StatusActive, StatusCancelled},
	StatusExpired:   {},
	StatusCancelled: {},
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates and applies a status change on the promotion. It
// returns an *InvalidTransitionError when the change is outside the table.
func (p *Promotion) Transition(to Status) error {
	if !CanTransition(p.Status, to) {
		return &InvalidTransitionError{From: p.Status, To: to}
	}
	p.Status = to
	return nil
}
