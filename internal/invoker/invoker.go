// Package invoker is the single entry point for running a named call:
// resolve, validate, run the handler adapter, record the outcome.
package invoker

// file: internal/invoker/invoker.go

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/dkoosis/unitybridge/internal/lifecycle"
	"github.com/dkoosis/unitybridge/internal/logging"
	"github.com/dkoosis/unitybridge/internal/metrics"
	"github.com/dkoosis/unitybridge/internal/protocol"
	"github.com/dkoosis/unitybridge/internal/registry"
	"github.com/dkoosis/unitybridge/internal/schema"
)

// Invoker runs calls from the registry.
type Invoker struct {
	registry *registry.Registry
	metrics  *metrics.Collector
	logger   logging.Logger
}

// New creates an invoker. collector may be nil.
func New(reg *registry.Registry, collector *metrics.Collector, logger logging.Logger) *Invoker {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	if collector == nil {
		collector = metrics.NewCollector(10)
	}
	return &Invoker{
		registry: reg,
		metrics:  collector,
		logger:   logger.WithField("component", "invoker"),
	}
}

// Registry returns the call table the invoker resolves against.
func (i *Invoker) Registry() *registry.Registry { return i.registry }

// InvokeJSON is Invoke with raw JSON parameters. Empty input or null means
// no parameters.
func (i *Invoker) InvokeJSON(ctx context.Context, name string, raw json.RawMessage) (*protocol.Response, error) {
	return i.run(ctx, name, func(c *schema.Compiled) (schema.Params, error) {
		return c.NormalizeJSON(raw)
	})
}

// Invoke resolves name, validates raw and runs the call's handler. Every
// returned error carries a taxonomy kind. A nil error always comes with a
// success envelope.
func (i *Invoker) Invoke(ctx context.Context, name string, raw map[string]interface{}) (*protocol.Response, error) {
	return i.run(ctx, name, func(c *schema.Compiled) (schema.Params, error) {
		return c.Normalize(raw)
	})
}

func (i *Invoker) run(ctx context.Context, name string, normalize func(*schema.Compiled) (schema.Params, error)) (resp *protocol.Response, err error) {
	start := time.Now()
	requestID := uuid.NewString()
	ctx = logging.ContextWithRequestID(ctx, requestID)
	logger := i.logger.WithContext(ctx).WithField("call", name)

	machine, err := lifecycle.New(name, logger)
	if err != nil {
		return nil, protocol.NewError(protocol.KindInternal, "failed to start call", err)
	}
	ctx = lifecycle.NewContext(ctx, machine)

	defer func() {
		if err != nil && protocol.KindOf(err) == protocol.KindInternal {
			var pe *protocol.Error
			if !errors.As(err, &pe) {
				err = protocol.NewError(protocol.KindInternal, "call failed", err).WithContext("method", name)
			}
		}
		if ferr := machine.Finish(ctx, err); ferr != nil {
			logger.Warn("Failed to finish call lifecycle.", "error", ferr)
		}
		kind := ""
		if err != nil {
			kind = string(protocol.KindOf(err))
			i.metrics.RecordError("invoker", protocol.Detail(err))
			logger.Info("Call failed.", "kind", kind, "state", machine.CurrentState(), "error", err)
		} else {
			logger.Debug("Call completed.", "state", machine.CurrentState())
		}
		i.metrics.RecordCall(name, time.Since(start), kind)
	}()

	desc, err := i.registry.Resolve(name)
	if err != nil {
		return nil, err
	}
	if err := machine.Transition(ctx, lifecycle.EventResolved, nil); err != nil {
		return nil, protocol.NewError(protocol.KindInternal, "call lifecycle rejected resolve", err)
	}

	params, err := normalize(desc.Schema())
	if err != nil {
		return nil, err
	}
	if err := machine.Transition(ctx, lifecycle.EventValidated, nil); err != nil {
		return nil, protocol.NewError(protocol.KindInternal, "call lifecycle rejected validation", err)
	}

	resp, err = desc.Handler(ctx, params)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, protocol.NewError(protocol.KindInternal, "handler returned no response", nil).
			WithContext("method", name)
	}
	if !resp.Success {
		kind := protocol.KindCallExecution
		if resp.Error != nil && resp.Error.Type != "" {
			kind = resp.Error.Type
		}
		return nil, protocol.NewError(kind, resp.Message, nil).WithContext("method", name)
	}
	return resp, nil
}
