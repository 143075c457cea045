package lifecycle

// file: internal/lifecycle/machine.go

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/dkoosis/unitybridge/internal/fsm"
	"github.com/dkoosis/unitybridge/internal/logging"
	"github.com/dkoosis/unitybridge/internal/protocol"
)

// Machine is the state machine of one call.
type Machine struct {
	fsm.FSM
	method string
	logger logging.Logger

	mu      sync.Mutex
	history []fsm.State
}

// New builds a machine in StateReceived for a call to method.
func New(method string, logger logging.Logger) (*Machine, error) {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	m := &Machine{
		method:  method,
		logger:  logger.WithField("component", "call_lifecycle").WithField("method", method),
		history: []fsm.State{StateReceived},
	}

	active := []fsm.State{StateReceived, StateValidating, StateDispatching, StateAwaitingResponse}
	builder := fsm.NewFSM(StateReceived, m.logger).
		AddTransition(fsm.Transition{From: []fsm.State{StateReceived}, Event: EventResolved, To: StateValidating}).
		AddTransition(fsm.Transition{From: []fsm.State{StateValidating}, Event: EventValidated, To: StateDispatching}).
		AddTransition(fsm.Transition{From: []fsm.State{StateDispatching}, Event: EventSent, To: StateAwaitingResponse}).
		// Local calls complete straight from Dispatching.
		AddTransition(fsm.Transition{
			From:  []fsm.State{StateDispatching, StateAwaitingResponse},
			Event: EventSucceeded,
			To:    StateCompleted,
		}).
		AddTransition(fsm.Transition{From: active, Event: EventFailed, To: StateFailed}).
		AddTransition(fsm.Transition{
			From:  []fsm.State{StateDispatching, StateAwaitingResponse},
			Event: EventTimedOut,
			To:    StateTimedOut,
		}).
		Terminal(StateCompleted, StateFailed, StateTimedOut).
		Observe(m.record)

	if err := builder.Build(); err != nil {
		return nil, errors.Wrap(err, "failed to build call lifecycle")
	}
	m.FSM = builder
	return m, nil
}

func (m *Machine) record(from, to fsm.State, event fsm.Event) {
	m.mu.Lock()
	m.history = append(m.history, to)
	m.mu.Unlock()
	m.logger.Debug("Call state changed.", "from", from, "to", to, "event", event)
}

// Method returns the call name the machine tracks.
func (m *Machine) Method() string { return m.method }

// History lists the states visited so far, starting with StateReceived.
func (m *Machine) History() []fsm.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]fsm.State(nil), m.history...)
}

// Finish moves the machine to the terminal state matching err: Completed for
// nil, TimedOut for a timeout after dispatch, Failed otherwise.
func (m *Machine) Finish(ctx context.Context, err error) error {
	if m.IsTerminal() {
		return errors.Newf("call '%s' already finished in state '%s'", m.method, m.CurrentState())
	}
	event := EventFailed
	switch {
	case err == nil:
		event = EventSucceeded
		if !m.CanTransition(event) {
			// Success reported before dispatch is an adapter bug.
			event = EventFailed
		}
	case protocol.IsKind(err, protocol.KindTimeout) && m.CanTransition(EventTimedOut):
		event = EventTimedOut
	}
	return m.Transition(ctx, event, err)
}
