package editor

// file: internal/editor/responder.go

import (
	"context"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/dkoosis/unitybridge/internal/protocol"
	"github.com/dkoosis/unitybridge/internal/transport"
)

// maxInFlight bounds concurrently executing requests per connection.
const maxInFlight = 32

// ServeTransport answers request frames on t until the peer goes away or ctx
// ends. Requests run concurrently; responses may be written out of order.
func (e *Editor) ServeTransport(ctx context.Context, t transport.Transport) error {
	limiter := e.newLimiter()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInFlight)

	var serveErr error
	for {
		data, err := t.ReadMessage(ctx)
		if err != nil {
			var te *transport.Error
			if errors.As(err, &te) && te.Code == transport.ErrInvalidMessage {
				e.logger.Warn("Ignoring invalid frame.", "error", err)
				continue
			}
			if ctx.Err() == nil && !transport.IsClosedError(err) {
				serveErr = err
			}
			break
		}

		frame, err := protocol.DecodeRequest(data)
		if err != nil {
			if frame == nil || frame.ID == "" {
				e.logger.Warn("Dropping request frame without token.", "error", err)
				continue
			}
			e.reply(ctx, t, frame.ID, protocol.FailureFromError(err))
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			break
		}
		g.Go(func() error {
			resp := e.Handle(gctx, frame.Method, frame.Params)
			e.reply(gctx, t, frame.ID, resp)
			return nil
		})
	}

	_ = g.Wait()
	return serveErr
}

func (e *Editor) reply(ctx context.Context, t transport.Transport, id string, resp *protocol.Response) {
	data, err := protocol.EncodeResponse(id, resp)
	if err != nil {
		e.logger.Error("Failed to encode response.", "id", id, "error", err)
		data, _ = protocol.EncodeResponse(id, protocol.FailureFromError(err))
	}
	if err := t.WriteMessage(ctx, data); err != nil {
		e.logger.Warn("Failed to write response.", "id", id, "error", err)
	}
}

// Serve accepts connections from ln and serves each one until ctx ends.
func (e *Editor) Serve(ctx context.Context, ln transport.Listener) error {
	e.logger.Info("Editor serving.", "addr", ln.Addr(), "project", e.provider.Name())
	g, gctx := errgroup.WithContext(ctx)
	var acceptErr error
	for {
		t, err := ln.Accept(gctx)
		if err != nil {
			if gctx.Err() == nil && !transport.IsClosedError(err) {
				acceptErr = err
			}
			break
		}
		g.Go(func() error {
			defer t.Close()
			if err := e.ServeTransport(gctx, t); err != nil {
				e.logger.Warn("Connection ended with error.", "error", err)
			}
			return nil
		})
	}
	_ = ln.Close()
	_ = g.Wait()
	return acceptErr
}
