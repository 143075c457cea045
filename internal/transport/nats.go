package transport

// file: internal/transport/nats.go

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/dkoosis/unitybridge/internal/logging"
)

// DefaultSubjectPrefix is used when NATSOptions.SubjectPrefix is empty.
const DefaultSubjectPrefix = "unitybridge"

const natsQueueGroup = "unitybridge-editors"

// NATSOptions configures a NATS connection and the bridge subjects.
type NATSOptions struct {
	URL           string
	Name          string
	Token         string
	SubjectPrefix string
	Timeout       time.Duration
}

func (o NATSOptions) prefix() string {
	if o.SubjectPrefix == "" {
		return DefaultSubjectPrefix
	}
	return o.SubjectPrefix
}

// RequestSubject is the subject editors listen on for request frames.
func (o NATSOptions) RequestSubject() string { return o.prefix() + ".requests" }

// responseSubject builds a per-session reply subject for a bridge server.
func (o NATSOptions) responseSubject() string {
	return o.prefix() + ".responses." + uuid.NewString()
}

// ConnectNATS connects with reconnect handling and logging.
func ConnectNATS(opts NATSOptions, logger logging.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	logger = logger.WithField("component", "nats")
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	natsOpts := []nats.Option{
		nats.Name(opts.Name),
		nats.Timeout(timeout),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(60),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected.", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected.", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			logger.Info("NATS connection closed.")
		}),
	}
	if opts.Token != "" {
		natsOpts = append(natsOpts, nats.Token(opts.Token))
	}

	logger.Info("Connecting to NATS.", "url", opts.URL, "name", opts.Name)
	nc, err := nats.Connect(opts.URL, natsOpts...)
	if err != nil {
		return nil, NewError(ErrConnectFailed, "failed to connect to NATS", err).WithContext("url", opts.URL)
	}
	return nc, nil
}

// NATSTransport exchanges frames over NATS subjects. On the server side it
// publishes requests with its own reply subject; on the editor side it is a
// session bound to one server's reply subject.
type NATSTransport struct {
	nc        *nats.Conn
	publishTo string
	replyTo   string
	incoming  chan []byte
	sub       *nats.Subscription
	ownsConn  bool
	onClose   func()
	closed    chan struct{}
	closeOnce sync.Once
}

func newNATSTransport(nc *nats.Conn, publishTo, replyTo string) *NATSTransport {
	return &NATSTransport{
		nc:        nc,
		publishTo: publishTo,
		replyTo:   replyTo,
		incoming:  make(chan []byte, 256),
		closed:    make(chan struct{}),
	}
}

// NewNATSClientTransport subscribes to a fresh reply subject on nc and sends
// request frames to the editor request subject.
func NewNATSClientTransport(nc *nats.Conn, opts NATSOptions) (*NATSTransport, error) {
	t := newNATSTransport(nc, opts.RequestSubject(), opts.responseSubject())
	sub, err := nc.Subscribe(t.replyTo, func(msg *nats.Msg) {
		t.deliver(msg.Data)
	})
	if err != nil {
		return nil, NewError(ErrConnectFailed, "failed to subscribe to reply subject", err).
			WithContext("subject", t.replyTo)
	}
	if err := nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, NewError(ErrConnectFailed, "failed to flush subscription", err)
	}
	t.sub = sub
	return t, nil
}

// NATSDialer returns a Dialer that opens its own connection per dial.
func NATSDialer(opts NATSOptions, logger logging.Logger) Dialer {
	return func(context.Context) (Transport, error) {
		nc, err := ConnectNATS(opts, logger)
		if err != nil {
			return nil, err
		}
		t, err := NewNATSClientTransport(nc, opts)
		if err != nil {
			nc.Close()
			return nil, err
		}
		t.ownsConn = true
		return t, nil
	}
}

func (t *NATSTransport) deliver(data []byte) bool {
	buf := make([]byte, len(data))
	copy(buf, data)
	select {
	case t.incoming <- buf:
		return true
	case <-t.closed:
		return false
	default:
		return false
	}
}

// ReadMessage implements Transport.ReadMessage.
func (t *NATSTransport) ReadMessage(ctx context.Context) ([]byte, error) {
	select {
	case <-t.closed:
		return nil, NewClosedError("read")
	default:
	}
	for {
		select {
		case <-ctx.Done():
			return nil, NewTimeoutError("read", ctx.Err())
		case <-t.closed:
			return nil, NewClosedError("read")
		case msg := <-t.incoming:
			return msg, nil
		case <-time.After(time.Second):
			if t.nc.IsClosed() {
				return nil, NewError(ErrTransportClosed, "NATS connection closed", nil)
			}
		}
	}
}

// WriteMessage implements Transport.WriteMessage.
func (t *NATSTransport) WriteMessage(ctx context.Context, message []byte) error {
	select {
	case <-t.closed:
		return NewClosedError("write")
	default:
	}
	if err := ctx.Err(); err != nil {
		return NewTimeoutError("write", err)
	}
	if len(message) > MaxMessageSize {
		return NewMessageSizeError(len(message), MaxMessageSize, message)
	}
	if err := ValidateMessage(message); err != nil {
		return err
	}
	msg := &nats.Msg{Subject: t.publishTo, Reply: t.replyTo, Data: message}
	if err := t.nc.PublishMsg(msg); err != nil {
		return NewError(ErrTransportClosed, "failed to publish frame", err).WithContext("subject", t.publishTo)
	}
	return nil
}

// Close implements Transport.Close.
func (t *NATSTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		if t.sub != nil {
			if uerr := t.sub.Unsubscribe(); uerr != nil && !t.nc.IsClosed() {
				err = NewError(ErrGeneric, "failed to unsubscribe", uerr)
			}
		}
		if t.onClose != nil {
			t.onClose()
		}
		if t.ownsConn {
			t.nc.Close()
		}
	})
	return err
}

// NATSListener serves the editor side: every distinct reply subject seen on
// the request subject becomes one accepted session transport.
type NATSListener struct {
	nc       *nats.Conn
	opts     NATSOptions
	sub      *nats.Subscription
	logger   logging.Logger
	ownsConn bool

	mu       sync.Mutex
	sessions map[string]*NATSTransport
	accept   chan *NATSTransport
	closed   chan struct{}
	once     sync.Once
}

// ListenNATS subscribes to the request subject on nc.
func ListenNATS(nc *nats.Conn, opts NATSOptions, logger logging.Logger) (*NATSListener, error) {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	l := &NATSListener{
		nc:       nc,
		opts:     opts,
		logger:   logger.WithField("component", "nats_listener"),
		sessions: make(map[string]*NATSTransport),
		accept:   make(chan *NATSTransport, 16),
		closed:   make(chan struct{}),
	}
	sub, err := nc.QueueSubscribe(opts.RequestSubject(), natsQueueGroup, l.handle)
	if err != nil {
		return nil, NewError(ErrConnectFailed, "failed to subscribe to request subject", err).
			WithContext("subject", opts.RequestSubject())
	}
	if err := nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, NewError(ErrConnectFailed, "failed to flush subscription", err)
	}
	l.sub = sub
	return l, nil
}

// ListenNATSURL connects to NATS and listens; the connection is closed with
// the listener.
func ListenNATSURL(opts NATSOptions, logger logging.Logger) (*NATSListener, error) {
	nc, err := ConnectNATS(opts, logger)
	if err != nil {
		return nil, err
	}
	l, err := ListenNATS(nc, opts, logger)
	if err != nil {
		nc.Close()
		return nil, err
	}
	l.ownsConn = true
	return l, nil
}

func (l *NATSListener) handle(msg *nats.Msg) {
	if msg.Reply == "" {
		l.logger.Warn("Dropping request frame without reply subject.", "subject", msg.Subject)
		return
	}

	l.mu.Lock()
	session, ok := l.sessions[msg.Reply]
	if !ok {
		select {
		case <-l.closed:
			l.mu.Unlock()
			return
		default:
		}
		session = newNATSTransport(l.nc, msg.Reply, "")
		reply := msg.Reply
		session.onClose = func() {
			l.mu.Lock()
			delete(l.sessions, reply)
			l.mu.Unlock()
		}
		l.sessions[msg.Reply] = session
		select {
		case l.accept <- session:
		default:
			delete(l.sessions, msg.Reply)
			l.mu.Unlock()
			l.logger.Warn("Accept backlog full, dropping new session.", "reply", msg.Reply)
			return
		}
		l.logger.Info("New bridge session.", "reply", msg.Reply)
	}
	l.mu.Unlock()

	if !session.deliver(msg.Data) {
		l.logger.Warn("Session not keeping up, dropping request frame.", "reply", msg.Reply)
	}
}

// Accept returns the next new session.
func (l *NATSListener) Accept(ctx context.Context) (Transport, error) {
	select {
	case <-ctx.Done():
		return nil, NewTimeoutError("accept", ctx.Err())
	case <-l.closed:
		return nil, NewClosedError("accept")
	case s := <-l.accept:
		return s, nil
	}
}

// Addr returns the request subject.
func (l *NATSListener) Addr() string { return l.opts.RequestSubject() }

// Close unsubscribes and closes every session.
func (l *NATSListener) Close() error {
	var err error
	l.once.Do(func() {
		close(l.closed)
		if uerr := l.sub.Unsubscribe(); uerr != nil && !l.nc.IsClosed() {
			err = NewError(ErrGeneric, "failed to unsubscribe", uerr)
		}
		l.mu.Lock()
		sessions := make([]*NATSTransport, 0, len(l.sessions))
		for _, s := range l.sessions {
			sessions = append(sessions, s)
		}
		l.mu.Unlock()
		for _, s := range sessions {
			_ = s.Close()
		}
		if l.ownsConn {
			l.nc.Close()
		}
	})
	return err
}
