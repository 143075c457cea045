package bridge

// file: internal/bridge/connection.go

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/dkoosis/unitybridge/internal/protocol"
	"github.com/dkoosis/unitybridge/internal/transport"
)

type connection struct {
	t      transport.Transport
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Attach starts reading responses from t. Calls issued while no transport
// is attached fail with TransportError.
func (d *Dispatcher) Attach(t transport.Transport) error {
	_, err := d.attach(t)
	return err
}

func (d *Dispatcher) attach(t transport.Transport) (*connection, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, protocol.NewTransportError("dispatcher is closed", nil)
	}
	if d.conn != nil {
		d.mu.Unlock()
		return nil, ErrAlreadyAttached
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &connection{t: t, cancel: cancel, done: make(chan struct{})}
	d.conn = c
	d.mu.Unlock()

	d.metrics.RecordConnection(true)
	d.logger.Info("Transport attached.")
	go d.readLoop(ctx, c)
	return c, nil
}

func (d *Dispatcher) readLoop(ctx context.Context, c *connection) {
	for {
		data, err := c.t.ReadMessage(ctx)
		if err != nil {
			var te *transport.Error
			if errors.As(err, &te) && te.Code == transport.ErrInvalidMessage {
				d.metrics.RecordMalformedFrame()
				d.logger.Warn("Discarding invalid frame.", "error", err)
				continue
			}
			d.detach(c, err)
			return
		}
		d.handleFrame(data)
	}
}

// detach drops c and fails every call that was sent on it.
func (d *Dispatcher) detach(c *connection, cause error) {
	c.once.Do(func() {
		d.mu.Lock()
		if d.conn == c {
			d.conn = nil
		}
		var orphaned []*pendingCall
		for id, p := range d.pending {
			if p.conn == c {
				delete(d.pending, id)
				p.timer.Stop()
				orphaned = append(orphaned, p)
			}
		}
		d.mu.Unlock()

		c.cancel()
		_ = c.t.Close()
		d.metrics.RecordConnection(false)

		message := "connection to editor lost"
		if cause == nil {
			message = "transport detached"
			d.logger.Info("Transport detached.", "failedCalls", len(orphaned))
		} else {
			d.metrics.RecordError("dispatcher", cause.Error())
			d.logger.Warn("Transport disconnected.", "error", cause, "failedCalls", len(orphaned))
		}
		for _, p := range orphaned {
			p.done <- outcome{err: protocol.NewTransportError(message, cause).
				WithContext("method", p.method).
				WithContext("id", p.id)}
		}
		close(c.done)
	})
}

// Detach drops the current transport, failing its pending calls.
func (d *Dispatcher) Detach() {
	d.mu.Lock()
	c := d.conn
	d.mu.Unlock()
	if c != nil {
		d.detach(c, nil)
	}
}

// Close detaches and rejects all further calls.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.Detach()
	return nil
}

// Run keeps the dispatcher connected until ctx ends, redialling with
// exponential backoff whenever the transport fails.
func (d *Dispatcher) Run(ctx context.Context, dial transport.Dialer, backoff transport.BackoffConfig) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	attempt := 0
	for {
		if ctx.Err() != nil {
			return nil
		}
		if attempt > 0 {
			delay := transport.NextBackoffDelay(backoff, attempt, rng)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
		}

		t, err := dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			attempt++
			d.metrics.RecordConnectionFailure()
			d.logger.Warn("Failed to connect to editor, retrying.", "attempt", attempt, "error", err)
			continue
		}

		c, err := d.attach(t)
		if err != nil {
			_ = t.Close()
			return err
		}
		attempt = 0

		select {
		case <-c.done:
			// Redial after one backoff step.
			attempt = 1
			d.logger.Warn("Connection to editor lost, reconnecting.")
		case <-ctx.Done():
			d.detach(c, nil)
			return nil
		}
	}
}
