package handlers

// file: internal/handlers/status.go

import (
	"context"

	"github.com/dkoosis/unitybridge/internal/protocol"
	"github.com/dkoosis/unitybridge/internal/registry"
	"github.com/dkoosis/unitybridge/internal/schema"
)

// GetBridgeStatus reports the editor link and call statistics. It never
// leaves the process.
const GetBridgeStatus = "get_bridge_status"

func statusDescriptor(a *Adapters) registry.CallDescriptor {
	return registry.CallDescriptor{
		Name:        GetBridgeStatus,
		Description: "Reports whether the editor is connected, how many calls are pending and bridge call statistics",
		Handler:     a.GetBridgeStatus,
		Tool:        true,
		Local:       true,
	}
}

// GetBridgeStatus implements get_bridge_status.
func (a *Adapters) GetBridgeStatus(_ context.Context, _ schema.Params) (*protocol.Response, error) {
	connected, pending := false, 0
	if a.status != nil {
		connected = a.status.Connected()
		pending = a.status.Pending()
	}
	message := "Editor connected"
	if !connected {
		message = "Editor not connected"
	}
	return protocol.NewSuccess(message, map[string]interface{}{
		"connected":    connected,
		"pendingCalls": pending,
		"metrics":      a.metrics.Snapshot(),
	})
}
