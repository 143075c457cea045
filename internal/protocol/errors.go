// Package protocol defines the bridge's request/response envelopes, the wire
// frames that carry correlation tokens, and the error taxonomy every failure
// is reported with.
package protocol

// file: internal/protocol/errors.go

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrorKind is the stable type tag reported to callers in error.type.
type ErrorKind string

// Error kinds. The string values are part of the wire contract.
const (
	KindValidation    ErrorKind = "ValidationError"
	KindUnknownCall   ErrorKind = "UnknownCallError"
	KindDuplicateName ErrorKind = "DuplicateNameError"
	KindTransport     ErrorKind = "TransportError"
	KindTimeout       ErrorKind = "TimeoutError"
	KindCancelled     ErrorKind = "CancelledError"
	KindCallExecution ErrorKind = "CallExecutionError"
	KindInternal      ErrorKind = "InternalError"
)

// Kinded is implemented by every error that belongs to the taxonomy.
type Kinded interface {
	error
	Kind() ErrorKind
}

// Error is the common structured error of the bridge.
type Error struct {
	// ErrKind categorizes the error; exposed through Kind().
	ErrKind ErrorKind
	// Message is a human-readable description.
	Message string
	// Cause is the underlying error, if any.
	Cause error
	// Context holds extra key/value details (method, token, timeout, ...).
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.ErrKind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.ErrKind, e.Message)
}

// Kind returns the taxonomy tag.
func (e *Error) Kind() ErrorKind { return e.ErrKind }

// Unwrap exposes the cause to errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error of the same kind, so sentinel-style checks such as
// errors.Is(err, &protocol.Error{ErrKind: protocol.KindTimeout}) work.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.ErrKind == t.ErrKind
}

// WithContext adds a key/value pair and returns the error for chaining.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewError creates an Error of the given kind. The cause keeps its stack trace.
func NewError(kind ErrorKind, message string, cause error) *Error {
	var wrapped error
	if cause != nil {
		wrapped = errors.WithStack(cause)
	}
	return &Error{
		ErrKind: kind,
		Message: message,
		Cause:   wrapped,
		Context: map[string]interface{}{
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		},
	}
}

// NewUnknownCallError reports a method name that is not registered.
func NewUnknownCallError(method string) *Error {
	return NewError(KindUnknownCall, fmt.Sprintf("call '%s' is not registered", method), nil).
		WithContext("method", method)
}

// NewDuplicateNameError reports a second registration under an existing name.
func NewDuplicateNameError(name string) *Error {
	return NewError(KindDuplicateName, fmt.Sprintf("call '%s' is already registered", name), nil).
		WithContext("name", name)
}

// NewTransportError reports a lost connection or a malformed envelope.
func NewTransportError(message string, cause error) *Error {
	return NewError(KindTransport, message, cause)
}

// NewTimeoutError reports a call that got no response within its window.
func NewTimeoutError(method string, timeout time.Duration) *Error {
	return NewError(KindTimeout, fmt.Sprintf("no response to '%s' within %s", method, timeout), nil).
		WithContext("method", method).
		WithContext("timeout", timeout.String())
}

// NewCancelledError reports a call the caller withdrew from.
func NewCancelledError(method string, cause error) *Error {
	return NewError(KindCancelled, fmt.Sprintf("call '%s' was cancelled", method), cause).
		WithContext("method", method)
}

// NewCallExecutionError reports success:false from the collaborator.
func NewCallExecutionError(method, message string) *Error {
	return NewError(KindCallExecution, message, nil).WithContext("method", method)
}

// KindOf returns the taxonomy tag of err, or KindInternal for errors that are
// not part of the taxonomy.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var k Kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// Detail returns the caller-facing message of err without the kind prefix.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	var pe *Error
	if errors.As(err, &pe) {
		if pe.Cause != nil {
			return fmt.Sprintf("%s: %v", pe.Message, pe.Cause)
		}
		return pe.Message
	}
	var d interface{ Detail() string }
	if errors.As(err, &d) {
		return d.Detail()
	}
	return err.Error()
}
