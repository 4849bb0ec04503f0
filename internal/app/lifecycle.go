package app

import (
	"sync"

	"github.com/daqline/recwriter/pkg/log"
	"github.com/daqline/recwriter/pkg/record"
)

// State represents the run lifecycle state of the writer.
type State int

const (
	// StateIdle means no backend is bound to a run; a fresh
	// configuration may install a different backend.
	StateIdle State = iota

	// StatePreparing means the backend's run-scoped setup is in flight.
	StatePreparing

	// StateRunning means the worker loop is processing records.
	StateRunning

	// StateDraining means cancellation is signalled and the worker is
	// unwinding its current blocking call.
	StateDraining

	// StateStopped means the run has ended; Reset returns to Idle.
	StateStopped
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StatePreparing:
		return "Preparing"
	case StateRunning:
		return "Running"
	case StateDraining:
		return "Draining"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// StateEmitter is notified of lifecycle state changes.
type StateEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// Lifecycle is the run-scoped state machine for the writer.
type Lifecycle struct {
	mu      sync.RWMutex
	state   State
	logger  log.Logger
	emitter StateEmitter
}

// NewLifecycle creates a lifecycle manager in StateIdle.
func NewLifecycle(logger log.Logger, emitter StateEmitter) *Lifecycle {
	return &Lifecycle{state: StateIdle, logger: logger, emitter: emitter}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// TransitionTo moves to a new state, rejecting invalid transitions.
func (l *Lifecycle) TransitionTo(newState State, reason string) error {
	l.mu.Lock()
	oldState := l.state

	if !validTransition(oldState, newState) {
		l.mu.Unlock()
		switch oldState {
		case StateRunning, StatePreparing, StateDraining:
			if newState == StatePreparing {
				return record.ErrAlreadyRunning
			}
			return record.ErrNotStopped
		case StateStopped:
			return record.ErrNotStopped
		default:
			return record.ErrNotRunning
		}
	}

	l.state = newState
	l.mu.Unlock()

	if l.emitter != nil {
		l.emitter.OnStateChange(oldState, newState, reason)
	}
	l.logger.Info("state transition",
		log.String("from", oldState.String()),
		log.String("to", newState.String()),
		log.String("reason", reason),
	)
	return nil
}

func validTransition(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StatePreparing
	case StatePreparing:
		// a failed PrepareForRun falls back to Idle
		return to == StateRunning || to == StateIdle
	case StateRunning:
		return to == StateDraining
	case StateDraining:
		return to == StateStopped
	case StateStopped:
		return to == StateIdle
	}
	return false
}

// CanStart reports whether a new run may begin.
func (l *Lifecycle) CanStart() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateIdle
}

// CanStop reports whether the writer is in a stoppable state. Draining
// counts: a stop that timed out waiting for the worker may be retried.
func (l *Lifecycle) CanStop() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateRunning || l.state == StateDraining
}
