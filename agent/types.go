// Package agent runs the firemaking task as an explicit state machine.
//
// Contains the states, transitions and results a run produces.
package agent

import (
	"errors"
	"time"
)

// State is one step of the firemaking cycle.
type State int

const (
	StateIdle State = iota
	StateLocating
	StatePerceivingInventory
	StateActing
	StateVerifying
	StateAdvancing
	StateRecovering
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateLocating:
		return "Locating"
	case StatePerceivingInventory:
		return "PerceivingInventory"
	case StateActing:
		return "Acting"
	case StateVerifying:
		return "Verifying"
	case StateAdvancing:
		return "Advancing"
	case StateRecovering:
		return "Recovering"
	case StateDone:
		return "Done"
	case StateAborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the run ends in s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted
}

var (
	// ErrInterrupted ends a run cancelled by the user.
	ErrInterrupted = errors.New("interrupted")
	// ErrOutcomeNotObserved means verification answered no.
	ErrOutcomeNotObserved = errors.New("expected outcome not observed")
	// ErrTooManyFailures means the consecutive-failure ceiling was reached.
	ErrTooManyFailures = errors.New("too many consecutive failures")
)

// TaskState is the mutable progress of one run.
type TaskState struct {
	FiresMade           int
	ConsecutiveFailures int
	// FuelMisses counts consecutive "fuel item absent" verdicts.
	FuelMisses int
	// Resolved is set once the window was found in this run.
	Resolved    bool
	LastFailure string
	lastErr     error
	refresh     bool
}

// Transition is one logged state change.
type Transition struct {
	From                State
	To                  State
	Reason              string
	FiresMade           int
	ConsecutiveFailures int
	At                  time.Time
}

// Outcome is how a run ended.
type Outcome int

const (
	OutcomeDone Outcome = iota
	OutcomeAborted
)

func (o Outcome) String() string {
	if o == OutcomeDone {
		return "done"
	}
	return "aborted"
}

// Result is the final report of a run.
type Result struct {
	RunID     string
	Outcome   Outcome
	FiresMade int
	// Detail is the reason for the final transition.
	Detail string
	// Err is the terminal failure of an aborted run.
	Err      error
	Duration time.Duration
	Trace    []Transition
}

// ExitCode maps the result to a process exit status.
func (r Result) ExitCode() int {
	switch {
	case r.Outcome == OutcomeDone:
		return 0
	case errors.Is(r.Err, ErrInterrupted):
		return 130
	default:
		return 1
	}
}
