package editor

// file: internal/editor/local.go

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/dkoosis/unitybridge/internal/protocol"
	"github.com/dkoosis/unitybridge/internal/schema"
)

// LocalCaller runs calls on an in-process Editor instead of sending them
// over a transport. Responses go through the wire codec so both paths
// produce identical envelopes.
type LocalCaller struct {
	editor   *Editor
	inFlight atomic.Int64
}

// NewLocalCaller wraps e.
func NewLocalCaller(e *Editor) *LocalCaller {
	return &LocalCaller{editor: e}
}

// Call implements the handler Caller contract.
func (c *LocalCaller) Call(ctx context.Context, method string, params schema.Params) (*protocol.Response, error) {
	c.inFlight.Add(1)
	defer c.inFlight.Add(-1)

	if err := ctx.Err(); err != nil {
		return nil, protocol.NewCancelledError(method, err)
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, protocol.NewError(protocol.KindInternal, "failed to encode parameters", err)
	}
	resp := c.editor.Handle(ctx, method, raw)

	data, err := resp.MarshalJSON()
	if err != nil {
		return nil, protocol.NewError(protocol.KindInternal, "failed to encode response", err)
	}
	out := &protocol.Response{}
	if err := out.UnmarshalJSON(data); err != nil {
		return nil, protocol.NewError(protocol.KindInternal, "failed to decode response", err)
	}
	return out, nil
}

// Connected is always true for an in-process editor.
func (c *LocalCaller) Connected() bool { return true }

// Pending returns the number of calls currently executing.
func (c *LocalCaller) Pending() int { return int(c.inFlight.Load()) }
