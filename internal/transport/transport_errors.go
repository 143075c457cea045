package transport

// file: internal/transport/transport_errors.go

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/unitybridge/internal/protocol"
)

// ErrorCode identifies a transport failure condition.
type ErrorCode int

// Defined error codes for the transport layer.
const (
	// ErrGeneric represents a general or unspecified transport error.
	ErrGeneric ErrorCode = iota + 1000
	// ErrInvalidMessage indicates a frame that is not a JSON object.
	ErrInvalidMessage
	// ErrMessageTooLarge signifies a frame exceeded MaxMessageSize.
	ErrMessageTooLarge
	// ErrTransportClosed indicates the transport or its peer is closed.
	ErrTransportClosed
	// ErrReadTimeout signifies a cancelled or expired read.
	ErrReadTimeout
	// ErrWriteTimeout signifies a cancelled or expired write.
	ErrWriteTimeout
	// ErrConnectFailed indicates a dial or listen failure.
	ErrConnectFailed
)

// Error is a transport-level error. It reports protocol.KindTransport so it
// surfaces to callers as a TransportError.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *Error) Error() string {
	base := fmt.Sprintf("TransportError [%d] %s", e.Code, e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", base, e.Cause)
	}
	return base
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// Kind places the error in the bridge taxonomy.
func (e *Error) Kind() protocol.ErrorKind { return protocol.KindTransport }

// Is matches another *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithContext adds a key/value pair and returns the error for chaining.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewError creates a transport error. The cause keeps its stack trace.
func NewError(code ErrorCode, message string, cause error) *Error {
	var wrapped error
	if cause != nil {
		wrapped = errors.WithStack(cause)
	}
	return &Error{
		Code:    code,
		Message: message,
		Cause:   wrapped,
		Context: map[string]interface{}{
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		},
	}
}

// NewMessageSizeError reports a frame larger than the allowed maximum.
func NewMessageSizeError(size, maxSize int, fragment []byte) *Error {
	return NewError(
		ErrMessageTooLarge,
		fmt.Sprintf("message size %d exceeds maximum allowed size %d", size, maxSize),
		nil,
	).WithContext("messagePreview", preview(fragment))
}

// NewInvalidMessageError reports a frame that is not a JSON object.
func NewInvalidMessageError(message []byte) *Error {
	return NewError(ErrInvalidMessage, "frame is not a JSON object", nil).
		WithContext("messagePreview", preview(message)).
		WithContext("messageLength", len(message))
}

// NewTimeoutError reports a read or write abandoned because ctx ended.
func NewTimeoutError(operation string, cause error) *Error {
	code := ErrReadTimeout
	if operation == "write" {
		code = ErrWriteTimeout
	}
	return NewError(code, fmt.Sprintf("%s operation cancelled", operation), cause).
		WithContext("operation", operation)
}

// NewClosedError reports an operation on a closed transport.
func NewClosedError(operation string) *Error {
	return NewError(ErrTransportClosed, fmt.Sprintf("cannot perform %s on closed transport", operation), nil).
		WithContext("operation", operation)
}

// IsClosedError reports whether err means the transport or its peer is gone.
func IsClosedError(err error) bool {
	var transportErr *Error
	if errors.As(err, &transportErr) {
		return transportErr.Code == ErrTransportClosed
	}
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}

// IsContextError reports whether err was caused by context cancellation.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func preview(message []byte) string {
	const maxPreview = 100
	if len(message) > maxPreview {
		return string(message[:maxPreview]) + "..."
	}
	return string(message)
}
