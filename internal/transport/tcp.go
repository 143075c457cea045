package transport

// file: internal/transport/tcp.go

import (
	"context"
	"net"
	"time"

	"github.com/dkoosis/unitybridge/internal/logging"
)

// NewConnTransport wraps a stream connection in an NDJSON transport.
func NewConnTransport(conn net.Conn, logger logging.Logger) *NDJSONTransport {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	return NewNDJSONTransport(conn, conn, conn, logger.WithField("remote", conn.RemoteAddr().String()))
}

// TCPDialer returns a Dialer that connects to addr with the given timeout.
func TCPDialer(addr string, timeout time.Duration, logger logging.Logger) Dialer {
	return func(ctx context.Context) (Transport, error) {
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, NewError(ErrConnectFailed, "failed to dial editor", err).WithContext("addr", addr)
		}
		return NewConnTransport(conn, logger), nil
	}
}

// TCPListener accepts NDJSON connections from bridge servers.
type TCPListener struct {
	ln     net.Listener
	logger logging.Logger
}

// ListenTCP starts listening on addr. Use "127.0.0.1:0" for an ephemeral port.
func ListenTCP(ctx context.Context, addr string, logger logging.Logger) (*TCPListener, error) {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, NewError(ErrConnectFailed, "failed to listen", err).WithContext("addr", addr)
	}
	return &TCPListener{ln: ln, logger: logger.WithField("component", "tcp_listener")}, nil
}

// Accept waits for the next connection or for ctx to end.
func (l *TCPListener) Accept(ctx context.Context) (Transport, error) {
	type acceptResult struct {
		conn net.Conn
		err  error
	}
	ch := make(chan acceptResult, 1)
	go func() {
		conn, err := l.ln.Accept()
		ch <- acceptResult{conn, err}
	}()

	select {
	case <-ctx.Done():
		// Closing the listener unblocks the pending Accept.
		_ = l.ln.Close()
		res := <-ch
		if res.conn != nil {
			_ = res.conn.Close()
		}
		return nil, NewTimeoutError("accept", ctx.Err())
	case res := <-ch:
		if res.err != nil {
			return nil, NewError(ErrTransportClosed, "listener closed", res.err)
		}
		l.logger.Info("Accepted bridge connection.", "remote", res.conn.RemoteAddr().String())
		return NewConnTransport(res.conn, l.logger), nil
	}
}

// Addr returns the listening address.
func (l *TCPListener) Addr() string { return l.ln.Addr().String() }

// Close stops listening.
func (l *TCPListener) Close() error {
	if err := l.ln.Close(); err != nil && !IsClosedError(err) {
		return NewError(ErrGeneric, "failed to close listener", err)
	}
	return nil
}
