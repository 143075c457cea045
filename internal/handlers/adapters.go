package handlers

// file: internal/handlers/adapters.go

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/dkoosis/unitybridge/internal/logging"
	"github.com/dkoosis/unitybridge/internal/metrics"
	"github.com/dkoosis/unitybridge/internal/protocol"
	"github.com/dkoosis/unitybridge/internal/schema"
)

// unknownError replaces an empty failure message from the editor.
const unknownError = "Unknown error"

// Deps are the collaborators the adapters call.
type Deps struct {
	Caller Caller
	// Status backs get_bridge_status. Defaults to Caller when it implements
	// StatusSource.
	Status  StatusSource
	Metrics *metrics.Collector
	Logger  logging.Logger
	// EditorVersions is the semver range of editor protocol versions the
	// bridge accepts. Defaults to DefaultEditorVersions.
	EditorVersions string
}

// Adapters holds one method per registered call.
type Adapters struct {
	caller   Caller
	status   StatusSource
	metrics  *metrics.Collector
	logger   logging.Logger
	versions string
}

// New creates the adapters. Caller is required.
func New(deps Deps) (*Adapters, error) {
	if deps.Caller == nil {
		return nil, errors.New("handlers require a caller")
	}
	if deps.Logger == nil {
		deps.Logger = logging.GetNoopLogger()
	}
	if deps.Status == nil {
		if s, ok := deps.Caller.(StatusSource); ok {
			deps.Status = s
		}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewCollector(10)
	}
	if deps.EditorVersions == "" {
		deps.EditorVersions = DefaultEditorVersions
	}
	if _, err := parseConstraint(deps.EditorVersions); err != nil {
		return nil, err
	}
	return &Adapters{
		caller:   deps.Caller,
		status:   deps.Status,
		metrics:  deps.Metrics,
		logger:   deps.Logger.WithField("component", "handlers"),
		versions: deps.EditorVersions,
	}, nil
}

// call runs method on the editor and turns a success:false envelope into a
// CallExecutionError reading "Failed to <action>: <message>".
func (a *Adapters) call(ctx context.Context, method string, params schema.Params, action string) (*protocol.Response, error) {
	logger := a.logger.WithContext(ctx)
	logger.Debug("Calling editor.", "method", method)

	resp, err := a.caller.Call(ctx, method, params)
	if err != nil {
		var pe *protocol.Error
		if !errors.As(err, &pe) && protocol.KindOf(err) == protocol.KindInternal {
			err = protocol.NewTransportError("editor call failed", err).WithContext("method", method)
		}
		return nil, err
	}
	if resp == nil {
		return nil, protocol.NewTransportError("editor returned no response", nil).WithContext("method", method)
	}
	if !resp.Success {
		message := resp.Message
		if message == "" || message == protocol.DefaultFailureMessage {
			message = unknownError
		}
		failure := protocol.NewCallExecutionError(method, fmt.Sprintf("Failed to %s: %s", action, message))
		if resp.Error != nil {
			failure = failure.WithContext("editorErrorType", string(resp.Error.Type))
		}
		logger.Info("Editor reported failure.", "method", method, "message", message)
		return nil, failure
	}
	return resp, nil
}

// malformed reports a success envelope whose result fields are unusable.
func malformed(method, field string, cause error) error {
	return protocol.NewTransportError(fmt.Sprintf("editor returned malformed '%s'", field), cause).
		WithContext("method", method)
}
