// Package bridge sends validated calls to the editor and correlates each
// response frame with the caller that issued the request.
package bridge

// file: internal/bridge/dispatcher.go

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/dkoosis/unitybridge/internal/lifecycle"
	"github.com/dkoosis/unitybridge/internal/logging"
	"github.com/dkoosis/unitybridge/internal/metrics"
	"github.com/dkoosis/unitybridge/internal/protocol"
	"github.com/dkoosis/unitybridge/internal/schema"
)

// DefaultTimeout applies when neither the dispatcher nor the call sets one.
const DefaultTimeout = 10 * time.Second

// ErrAlreadyAttached is returned by Attach while another transport is live.
var ErrAlreadyAttached = errors.New("dispatcher already has an attached transport")

// Options configures a Dispatcher.
type Options struct {
	// Timeout is the process-wide default per-call timeout.
	Timeout time.Duration
	Logger  logging.Logger
	Metrics *metrics.Collector
	// NewID generates correlation tokens. Defaults to UUIDv4.
	NewID func() string
}

type outcome struct {
	resp *protocol.Response
	err  error
}

type pendingCall struct {
	id       string
	method   string
	issuedAt time.Time
	timeout  time.Duration
	conn     *connection
	// timer fails the call once timeout elapses, whether or not anyone
	// waits on it.
	timer *time.Timer
	// Buffered; only the goroutine that removed the entry from the table
	// sends on it.
	done chan outcome
}

// Dispatcher multiplexes calls over one attached transport.
type Dispatcher struct {
	timeout time.Duration
	logger  logging.Logger
	metrics *metrics.Collector
	newID   func() string

	mu      sync.Mutex
	pending map[string]*pendingCall
	conn    *connection
	closed  bool
}

// New creates a detached dispatcher.
func New(opts Options) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetNoopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewCollector(10)
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Dispatcher{
		timeout: opts.Timeout,
		logger:  opts.Logger.WithField("component", "dispatcher"),
		metrics: opts.Metrics,
		newID:   opts.NewID,
		pending: make(map[string]*pendingCall),
	}
}

// CallOption adjusts a single call.
type CallOption func(*callOptions)

type callOptions struct {
	timeout time.Duration
}

// WithTimeout overrides the default timeout for one call.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// PendingCall is the caller's handle on an issued call.
type PendingCall struct {
	d *Dispatcher
	p *pendingCall
}

// ID returns the call's correlation token.
func (c *PendingCall) ID() string { return c.p.id }

// Method returns the call name.
func (c *PendingCall) Method() string { return c.p.method }

// Wait suspends until the call's single outcome is known. Call it once.
func (c *PendingCall) Wait(ctx context.Context) (*protocol.Response, error) {
	p := c.p
	select {
	case o := <-p.done:
		return o.resp, o.err
	case <-ctx.Done():
		if c.d.remove(p.id) != nil {
			return nil, contextError(p, ctx.Err())
		}
	}
	// Someone else removed the entry first and owns delivery.
	o := <-p.done
	return o.resp, o.err
}

func contextError(p *pendingCall, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return protocol.NewTimeoutError(p.method, time.Since(p.issuedAt).Round(time.Millisecond)).
			WithContext("id", p.id)
	}
	return protocol.NewCancelledError(p.method, err).WithContext("id", p.id)
}

// Call sends method with params and waits for the correlated response. A
// success:false envelope is returned as-is with a nil error.
func (d *Dispatcher) Call(ctx context.Context, method string, params schema.Params, opts ...CallOption) (*protocol.Response, error) {
	pc, err := d.Issue(ctx, method, params, opts...)
	if err != nil {
		return nil, err
	}
	return pc.Wait(ctx)
}

// Caller binds opts to every call made through the returned value, giving
// the dispatcher the plain three-argument Call the handler adapters expect.
func (d *Dispatcher) Caller(opts ...CallOption) *BoundCaller {
	return &BoundCaller{d: d, opts: opts}
}

// BoundCaller is a Dispatcher with fixed call options.
type BoundCaller struct {
	d    *Dispatcher
	opts []CallOption
}

// Call runs method through the dispatcher with the bound options.
func (b *BoundCaller) Call(ctx context.Context, method string, params schema.Params) (*protocol.Response, error) {
	return b.d.Call(ctx, method, params, b.opts...)
}

// Connected reports whether the dispatcher has a live transport.
func (b *BoundCaller) Connected() bool { return b.d.Connected() }

// Pending returns the dispatcher's outstanding call count.
func (b *BoundCaller) Pending() int { return b.d.Pending() }

// Issue sends the request and returns without waiting.
func (d *Dispatcher) Issue(ctx context.Context, method string, params schema.Params, opts ...CallOption) (*PendingCall, error) {
	co := callOptions{timeout: d.timeout}
	for _, opt := range opts {
		opt(&co)
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return nil, protocol.NewError(protocol.KindInternal, "failed to encode parameters", err).
			WithContext("method", method)
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, protocol.NewTransportError("dispatcher is closed", nil).WithContext("method", method)
	}
	conn := d.conn
	if conn == nil {
		d.mu.Unlock()
		return nil, protocol.NewTransportError("not connected to editor", nil).WithContext("method", method)
	}
	id := d.newID()
	for {
		if _, taken := d.pending[id]; !taken && id != "" {
			break
		}
		id = d.newID()
	}
	p := &pendingCall{
		id:       id,
		method:   method,
		issuedAt: time.Now(),
		timeout:  co.timeout,
		conn:     conn,
		done:     make(chan outcome, 1),
	}
	p.timer = time.AfterFunc(co.timeout, func() { d.expire(id) })
	d.pending[id] = p
	d.mu.Unlock()

	frame, err := protocol.EncodeRequest(id, protocol.Request{Method: method, Params: raw})
	if err != nil {
		d.remove(id)
		return nil, protocol.NewError(protocol.KindInternal, "failed to encode request", err).
			WithContext("method", method)
	}

	writeCtx, cancel := context.WithTimeout(ctx, co.timeout)
	defer cancel()
	if err := conn.t.WriteMessage(writeCtx, frame); err != nil {
		if d.remove(id) == nil {
			// Already failed by a disconnect; report that outcome.
			o := <-p.done
			return nil, o.err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, contextError(p, ctxErr)
		}
		return nil, protocol.NewTransportError("failed to send request", err).
			WithContext("method", method).
			WithContext("id", id)
	}

	lifecycle.MarkSent(ctx)
	d.logger.Debug("Request sent.", "id", id, "method", method)
	return &PendingCall{d: d, p: p}, nil
}

// Cancel withdraws a pending call. Its waiter fails with CancelledError and a
// later response for the token is discarded. Reports whether the call was
// still pending.
func (d *Dispatcher) Cancel(id string) bool {
	p := d.remove(id)
	if p == nil {
		return false
	}
	d.logger.Debug("Call cancelled.", "id", id, "method", p.method)
	p.done <- outcome{err: protocol.NewCancelledError(p.method, nil).WithContext("id", id)}
	return true
}

// Pending returns the number of calls awaiting a response.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Connected reports whether a transport is attached.
func (d *Dispatcher) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn != nil
}

// Metrics returns the collector the dispatcher reports to.
func (d *Dispatcher) Metrics() *metrics.Collector { return d.metrics }

// remove takes id out of the table. The caller that gets a non-nil entry
// back owns its delivery.
func (d *Dispatcher) remove(id string) *pendingCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pending[id]
	if !ok {
		return nil
	}
	delete(d.pending, id)
	p.timer.Stop()
	return p
}

// expire fails id with a TimeoutError if it is still pending.
func (d *Dispatcher) expire(id string) {
	p := d.remove(id)
	if p == nil {
		return
	}
	d.metrics.RecordError("dispatcher", "call timed out: "+p.method)
	d.logger.Warn("Call timed out.", "id", p.id, "method", p.method, "timeout", p.timeout)
	p.done <- outcome{err: protocol.NewTimeoutError(p.method, p.timeout).WithContext("id", p.id)}
}

// deliver hands an outcome to the call registered under id. Unknown tokens
// are counted as stale.
func (d *Dispatcher) deliver(id string, o outcome) {
	p := d.remove(id)
	if p == nil {
		d.metrics.RecordStaleResponse()
		d.logger.Warn("Discarding response for unknown or expired token.", "id", id)
		return
	}
	d.logger.Debug("Response received.", "id", id, "method", p.method,
		"latency", time.Since(p.issuedAt).String())
	p.done <- o
}

func (d *Dispatcher) handleFrame(data []byte) {
	id, resp, err := protocol.DecodeResponse(data)
	if err != nil {
		d.metrics.RecordMalformedFrame()
		d.metrics.RecordError("dispatcher", protocol.Detail(err))
		if id == "" {
			d.logger.Warn("Discarding malformed response frame.", "error", err)
			return
		}
		d.logger.Warn("Malformed response frame for pending call.", "id", id, "error", err)
		d.deliver(id, outcome{err: err})
		return
	}
	d.deliver(id, outcome{resp: resp})
}
