// Package lifecycle tracks a single call from receipt to its terminal
// outcome on top of the generic fsm package.
package lifecycle

// file: internal/lifecycle/states.go

import "github.com/dkoosis/unitybridge/internal/fsm"

// Call states.
const (
	StateReceived         fsm.State = "received"
	StateValidating       fsm.State = "validating"
	StateDispatching      fsm.State = "dispatching"
	StateAwaitingResponse fsm.State = "awaitingResponse"
	StateCompleted        fsm.State = "completed" // Terminal.
	StateFailed           fsm.State = "failed"    // Terminal.
	StateTimedOut         fsm.State = "timedOut"  // Terminal.
)

// Call events.
const (
	EventResolved  fsm.Event = "resolved"  // Name found in the registry.
	EventValidated fsm.Event = "validated" // Parameters normalized.
	EventSent      fsm.Event = "sent"      // Request frame written to the transport.
	EventSucceeded fsm.Event = "succeeded"
	EventFailed    fsm.Event = "failed"
	EventTimedOut  fsm.Event = "timedOut"
)

// IsTerminal reports whether s is a final state.
func IsTerminal(s fsm.State) bool {
	return s == StateCompleted || s == StateFailed || s == StateTimedOut
}
