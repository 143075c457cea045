package server

// file: internal/server/tools.go

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dkoosis/unitybridge/internal/protocol"
	"github.com/dkoosis/unitybridge/internal/registry"
)

func (s *Server) addTool(desc *registry.CallDescriptor) error {
	schemaDoc := desc.Schema().Document()
	if len(schemaDoc) == 0 {
		return errors.Newf("call '%s' has no input schema", desc.Name)
	}
	s.mcp.AddTool(&mcp.Tool{
		Name:        desc.Name,
		Description: desc.Description,
		InputSchema: schemaDoc,
	}, s.toolHandler(desc.Name))
	s.tools = append(s.tools, desc.Name)
	return nil
}

// toolHandler runs a call for an agent. Call failures are reported in the
// result with isError set, carrying the failure envelope; they are never
// protocol errors.
func (s *Server) toolHandler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args json.RawMessage
		if req != nil && req.Params != nil {
			args = req.Params.Arguments
		}
		resp, err := s.invoker.InvokeJSON(ctx, name, args)
		if err != nil {
			s.logger.Info("Tool call failed.", "tool", name, "kind", protocol.KindOf(err))
			return envelopeResult(protocol.FailureFromError(err), true), nil
		}
		return envelopeResult(resp, false), nil
	}
}

func envelopeResult(resp *protocol.Response, isError bool) *mcp.CallToolResult {
	data, err := json.Marshal(resp)
	if err != nil {
		data, _ = json.Marshal(protocol.FailureFromError(
			protocol.NewError(protocol.KindInternal, "failed to encode result", err)))
		isError = true
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		IsError: isError,
	}
}
