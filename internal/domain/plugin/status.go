package plugin

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// Status is the lifecycle state of a detected plugin.
type Status string

// Machine state names.
const (
	stateDetected = "detected"
	stateLoading  = "loading"
	stateLoaded   = "loaded"
	stateFailed   = "failed"
)

// Statuses. Loaded and failed are terminal.
const (
	StatusDetected Status = stateDetected
	StatusLoading  Status = stateLoading
	StatusLoaded   Status = stateLoaded
	StatusFailed   Status = stateFailed
)

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusLoaded || s == StatusFailed
}

// Status machine events.
const (
	EventLoad   = "LOAD"
	EventLoaded = "LOADED"
	EventFail   = "FAIL"
	// eventSettle is never sent; terminal states only loop on it.
	eventSettle = "SETTLE"
)

// statusContext is the statekit context type; the machine carries no data.
type statusContext struct{}

// statusMachine drives one record's status:
//
//	detected --LOAD--> loading --LOADED--> loaded
//	detected --FAIL--> failed
//	loading  --FAIL--> failed
type statusMachine struct {
	interp *statekit.Interpreter[statusContext]
	status Status
}

func newStatusMachine() (*statusMachine, error) {
	machine, err := statekit.NewMachine[statusContext]("plugin-status").
		WithInitial(stateDetected).
		WithContext(statusContext{}).
		State(stateDetected).
		On(EventLoad).Target(stateLoading).
		On(EventFail).Target(stateFailed).Done().
		State(stateLoading).
		On(EventLoaded).Target(stateLoaded).
		On(EventFail).Target(stateFailed).Done().
		State(stateLoaded).
		On(eventSettle).Target(stateLoaded).Done().
		State(stateFailed).
		On(eventSettle).Target(stateFailed).Done().
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build status machine: %w", err)
	}

	interp := statekit.NewInterpreter(machine)
	interp.Start()
	return &statusMachine{interp: interp, status: StatusDetected}, nil
}

// send applies event and reports a TransitionError when the current state
// does not accept it. The interpreter is stopped once a terminal state is
// reached.
func (m *statusMachine) send(event string) (Status, error) {
	from := m.status
	if !accepts(from, event) {
		return from, &TransitionError{From: from, Event: event}
	}

	m.interp.Send(statekit.Event{Type: statekit.EventType(event)})
	to := Status(m.interp.State().Value)
	if to == from {
		return from, &TransitionError{From: from, Event: event}
	}

	m.status = to
	if to.Terminal() {
		m.interp.Stop()
	}
	return to, nil
}

func accepts(from Status, event string) bool {
	switch from {
	case StatusDetected:
		return event == EventLoad || event == EventFail
	case StatusLoading:
		return event == EventLoaded || event == EventFail
	default:
		return false
	}
}
