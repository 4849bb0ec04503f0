package recwriter

import "github.com/daqline/recwriter/internal/app"

// State is the writer's lifecycle state.
type State = app.State

// Lifecycle states, in the order a run moves through them.
const (
	StateIdle      = app.StateIdle
	StatePreparing = app.StatePreparing
	StateRunning   = app.StateRunning
	StateDraining  = app.StateDraining
	StateStopped   = app.StateStopped
)

// stateBridge adapts an EventHandler to the lifecycle's emitter.
type stateBridge struct {
	handler EventHandler
}

func (b stateBridge) OnStateChange(previous, current app.State, reason string) {
	if b.handler != nil {
		b.handler.OnStateChange(previous, current, reason)
	}
}
