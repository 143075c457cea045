// Package transport carries serialized bridge frames between the server and
// the editor: newline-delimited JSON over a stream, NATS subjects, or an
// in-memory pair.
package transport

// file: internal/transport/transport.go

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/unitybridge/internal/logging"
)

// MaxMessageSize bounds a single frame. Script listings with content can be
// large, so this is well above a typical request.
const MaxMessageSize = 16 * 1024 * 1024

// Transport carries whole frames in order. Implementations must be safe for
// one concurrent reader and any number of concurrent writers.
type Transport interface {
	// ReadMessage blocks until a frame arrives, ctx ends, or the transport closes.
	ReadMessage(ctx context.Context) ([]byte, error)
	// WriteMessage sends one frame.
	WriteMessage(ctx context.Context, message []byte) error
	// Close shuts the transport down and unblocks pending reads.
	Close() error
}

// Dialer opens a client-side transport to the editor.
type Dialer func(ctx context.Context) (Transport, error)

// Listener accepts editor-side transports, one per connected server.
type Listener interface {
	Accept(ctx context.Context) (Transport, error)
	Addr() string
	Close() error
}

// ValidateMessage checks that a frame is a single JSON object.
func ValidateMessage(message []byte) error {
	trimmed := bytes.TrimSpace(message)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return NewInvalidMessageError(message)
	}
	return nil
}

type readResult struct {
	data []byte
	err  error
}

// NDJSONTransport implements Transport for newline-delimited JSON over any
// byte stream (TCP connection, pipe, stdio).
type NDJSONTransport struct {
	reader    *bufio.Reader
	writer    io.Writer
	closer    io.Closer
	logger    logging.Logger
	writeLock sync.Mutex

	incoming  chan readResult
	startRead sync.Once
	readDone  chan struct{}
	readErr   error
	closed    chan struct{}
	closeOnce sync.Once
}

// NewNDJSONTransport creates a transport over the given stream. closer may be
// nil when the stream needs no closing.
func NewNDJSONTransport(reader io.Reader, writer io.Writer, closer io.Closer, logger logging.Logger) *NDJSONTransport {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	return &NDJSONTransport{
		reader:   bufio.NewReader(reader),
		writer:   writer,
		closer:   closer,
		logger:   logger.WithField("component", "ndjson_transport"),
		incoming: make(chan readResult),
		readDone: make(chan struct{}),
		closed:   make(chan struct{}),
	}
}

// readLoop is the single goroutine that consumes the stream, so an abandoned
// ReadMessage never loses a frame.
func (t *NDJSONTransport) readLoop() {
	for {
		msg, err := t.readLine()
		select {
		case t.incoming <- readResult{msg, err}:
		case <-t.closed:
			return
		}
		if err != nil && !isRecoverable(err) {
			t.readErr = err
			close(t.readDone)
			return
		}
	}
}

// isRecoverable reports whether the stream is still positioned at a frame
// boundary after err.
func isRecoverable(err error) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Code == ErrInvalidMessage
	}
	return false
}

func (t *NDJSONTransport) readLine() ([]byte, error) {
	var buffer bytes.Buffer
	var message []byte
	for {
		line, prefix, err := t.reader.ReadLine()
		if err != nil {
			if err == io.EOF {
				return nil, NewError(ErrTransportClosed, "connection closed by peer", io.EOF)
			}
			return nil, NewError(ErrTransportClosed, "failed to read message line", err)
		}
		buffer.Write(line)
		if buffer.Len() > MaxMessageSize {
			return nil, NewMessageSizeError(buffer.Len(), MaxMessageSize, buffer.Bytes())
		}
		if prefix {
			continue
		}
		message = bytes.TrimSpace(buffer.Bytes())
		if len(message) > 0 {
			break
		}
		// Blank line between frames.
		buffer.Reset()
	}

	if err := ValidateMessage(message); err != nil {
		t.logger.Warn("Invalid frame received.", "error", err)
		return nil, err
	}
	out := make([]byte, len(message))
	copy(out, message)
	return out, nil
}

// ReadMessage implements Transport.ReadMessage.
func (t *NDJSONTransport) ReadMessage(ctx context.Context) ([]byte, error) {
	select {
	case <-t.closed:
		return nil, NewClosedError("read")
	default:
	}
	t.startRead.Do(func() { go t.readLoop() })

	select {
	case <-ctx.Done():
		return nil, NewTimeoutError("read", ctx.Err())
	case <-t.closed:
		return nil, NewClosedError("read")
	case res := <-t.incoming:
		return res.data, res.err
	case <-t.readDone:
		return nil, t.readErr
	}
}

// WriteMessage implements Transport.WriteMessage.
func (t *NDJSONTransport) WriteMessage(ctx context.Context, message []byte) error {
	select {
	case <-t.closed:
		return NewClosedError("write")
	default:
	}
	if err := ValidateMessage(message); err != nil {
		return err
	}
	if len(message) > MaxMessageSize {
		return NewMessageSizeError(len(message), MaxMessageSize, message)
	}
	if err := ctx.Err(); err != nil {
		return NewTimeoutError("write", err)
	}

	buf := make([]byte, len(message)+1)
	copy(buf, message)
	buf[len(message)] = '\n'

	resultCh := make(chan error, 1)
	t.writeLock.Lock()
	go func() {
		defer t.writeLock.Unlock()
		n, err := t.writer.Write(buf)
		if err == nil && n < len(buf) {
			err = io.ErrShortWrite
		}
		resultCh <- err
	}()

	select {
	case <-ctx.Done():
		return NewTimeoutError("write", ctx.Err())
	case err := <-resultCh:
		if err != nil {
			return NewError(ErrTransportClosed, "failed to write message", err)
		}
		return nil
	}
}

// Close implements Transport.Close.
func (t *NDJSONTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		if t.closer != nil {
			if cerr := t.closer.Close(); cerr != nil {
				err = NewError(ErrTransportClosed, "failed to close underlying stream", cerr)
			}
		}
	})
	return err
}
