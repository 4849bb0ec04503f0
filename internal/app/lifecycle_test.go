package app

import (
	"sync"
	"testing"

	"github.com/daqline/recwriter/pkg/log"
)

type recordingEmitter struct {
	mu          sync.Mutex
	transitions []string
}

func (e *recordingEmitter) OnStateChange(prev, cur State, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transitions = append(e.transitions, prev.String()+"->"+cur.String())
}

func TestLifecycle_FullRunCycle(t *testing.T) {
	em := &recordingEmitter{}
	l := NewLifecycle(log.NewNoopLogger(), em)

	if l.State() != StateIdle {
		t.Fatalf("initial state = %v, want Idle", l.State())
	}

	steps := []State{StatePreparing, StateRunning, StateDraining, StateStopped, StateIdle}
	for _, s := range steps {
		if err := l.TransitionTo(s, "test"); err != nil {
			t.Fatalf("transition to %v: %v", s, err)
		}
	}

	want := []string{
		"Idle->Preparing",
		"Preparing->Running",
		"Running->Draining",
		"Draining->Stopped",
		"Stopped->Idle",
	}
	if len(em.transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", em.transitions, want)
	}
	for i := range want {
		if em.transitions[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, em.transitions[i], want[i])
		}
	}
}

func TestLifecycle_FailedPrepareFallsBackToIdle(t *testing.T) {
	l := NewLifecycle(log.NewNoopLogger(), nil)

	if err := l.TransitionTo(StatePreparing, "start"); err != nil {
		t.Fatal(err)
	}
	if err := l.TransitionTo(StateIdle, "prepare failed"); err != nil {
		t.Fatalf("Preparing -> Idle rejected: %v", err)
	}
	if !l.CanStart() {
		t.Error("CanStart false after failed prepare")
	}
}

func TestLifecycle_RejectsInvalidTransitions(t *testing.T) {
	l := NewLifecycle(log.NewNoopLogger(), nil)

	if err := l.TransitionTo(StateRunning, "skip prepare"); err == nil {
		t.Error("Idle -> Running accepted")
	}
	if err := l.TransitionTo(StateStopped, "skip everything"); err == nil {
		t.Error("Idle -> Stopped accepted")
	}

	l.TransitionTo(StatePreparing, "")
	l.TransitionTo(StateRunning, "")
	if err := l.TransitionTo(StatePreparing, "double start"); err == nil {
		t.Error("Running -> Preparing accepted")
	}
	if l.CanStart() {
		t.Error("CanStart true while running")
	}
	if !l.CanStop() {
		t.Error("CanStop false while running")
	}

	l.TransitionTo(StateDraining, "")
	if !l.CanStop() {
		t.Error("CanStop false while draining")
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateIdle:      "Idle",
		StatePreparing: "Preparing",
		StateRunning:   "Running",
		StateDraining:  "Draining",
		StateStopped:   "Stopped",
		State(99):      "Unknown",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("State(%d).String() = %s, want %s", s, s.String(), want)
		}
	}
}
