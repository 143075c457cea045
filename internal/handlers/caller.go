// Package handlers holds one adapter per registered call. Adapters turn
// normalized parameters into collaborator calls and collaborator results
// into caller-facing envelopes, translating every failure into the error
// taxonomy.
package handlers

// file: internal/handlers/caller.go

import (
	"context"

	"github.com/dkoosis/unitybridge/internal/protocol"
	"github.com/dkoosis/unitybridge/internal/schema"
)

//go:generate mockgen -destination=mock_handlers/mock_handlers.go . Caller,StatusSource

// Caller executes a call on the editor side. The bridge dispatcher and the
// in-process editor both implement it. A success:false envelope is returned
// with a nil error.
type Caller interface {
	Call(ctx context.Context, method string, params schema.Params) (*protocol.Response, error)
}

// StatusSource reports the state of the link to the editor.
type StatusSource interface {
	Connected() bool
	Pending() int
}
