package protocol

// file: internal/protocol/envelope.go

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
)

// Reserved top-level keys of a response envelope. Everything else is a
// call-specific result field.
const (
	keyID      = "id"
	keySuccess = "success"
	keyMessage = "message"
	keyError   = "error"
)

// Default messages used when the executing side leaves message empty.
const (
	DefaultSuccessMessage = "Call succeeded"
	DefaultFailureMessage = "Call failed"
)

// Request is the envelope a caller sends: a registered method name and its
// normalized parameters.
type Request struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// ErrorDetail is the structured error carried by a failed response.
type ErrorDetail struct {
	Type   ErrorKind `json:"type"`
	Detail string    `json:"detail"`
}

// Response is the uniform response envelope. Call-specific result fields are
// kept flat next to success and message on the wire.
type Response struct {
	Success bool
	Message string
	Error   *ErrorDetail
	fields  map[string]json.RawMessage
}

// NewSuccess builds a success envelope with the given result fields.
func NewSuccess(message string, fields map[string]interface{}) (*Response, error) {
	r := &Response{Success: true, Message: message}
	for k, v := range fields {
		if err := r.SetField(k, v); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// NewFailure builds a failure envelope with the given message and detail.
func NewFailure(kind ErrorKind, message, detail string) *Response {
	if message == "" {
		message = DefaultFailureMessage
	}
	return &Response{
		Success: false,
		Message: message,
		Error:   &ErrorDetail{Type: kind, Detail: detail},
	}
}

// FailureFromError converts any error into a failure envelope with a stable
// type tag. Errors outside the taxonomy are reported as InternalError.
func FailureFromError(err error) *Response {
	if err == nil {
		return NewFailure(KindInternal, DefaultFailureMessage, "unknown error")
	}
	detail := Detail(err)
	return NewFailure(KindOf(err), detail, detail)
}

// SetField stores a call-specific result field. Reserved keys are rejected.
func (r *Response) SetField(name string, value interface{}) error {
	switch name {
	case keyID, keySuccess, keyMessage, keyError:
		return errors.Newf("field name '%s' is reserved", name)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "failed to encode result field '%s'", name)
	}
	if r.fields == nil {
		r.fields = make(map[string]json.RawMessage)
	}
	r.fields[name] = raw
	return nil
}

// Field decodes a call-specific result field into out. It returns false if
// the field is absent.
func (r *Response) Field(name string, out interface{}) (bool, error) {
	raw, ok := r.fields[name]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, errors.Wrapf(err, "failed to decode result field '%s'", name)
	}
	return true, nil
}

// RawField returns the raw JSON of a result field.
func (r *Response) RawField(name string) (json.RawMessage, bool) {
	raw, ok := r.fields[name]
	return raw, ok
}

// FieldNames lists the call-specific result fields present.
func (r *Response) FieldNames() []string {
	names := make([]string, 0, len(r.fields))
	for k := range r.fields {
		names = append(names, k)
	}
	return names
}

// MarshalJSON flattens result fields next to success, message and error.
func (r *Response) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(r.fields)+3)
	for k, v := range r.fields {
		out[k] = v
	}
	out[keySuccess] = mustMarshal(r.Success)
	msg := r.Message
	if msg == "" {
		msg = defaultMessage(r.Success)
	}
	out[keyMessage] = mustMarshal(msg)
	if r.Error != nil {
		raw, err := json.Marshal(r.Error)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode error detail")
		}
		out[keyError] = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON parses a flat envelope. success is required and must be a
// boolean; a missing message is replaced with a default one.
func (r *Response) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return errors.Wrap(err, "response envelope is not a JSON object")
	}
	if obj == nil {
		return errors.New("response envelope is null")
	}
	return r.fromObject(obj)
}

func (r *Response) fromObject(obj map[string]json.RawMessage) error {
	rawSuccess, ok := obj[keySuccess]
	if !ok {
		return errors.New("response envelope is missing 'success'")
	}
	var success bool
	if err := json.Unmarshal(rawSuccess, &success); err != nil || isNull(rawSuccess) {
		return errors.Newf("response envelope 'success' must be a boolean, got %s", preview(rawSuccess))
	}

	var message string
	if rawMsg, ok := obj[keyMessage]; ok && !isNull(rawMsg) {
		if err := json.Unmarshal(rawMsg, &message); err != nil {
			return errors.Newf("response envelope 'message' must be a string, got %s", preview(rawMsg))
		}
	}
	if message == "" {
		message = defaultMessage(success)
	}

	var detail *ErrorDetail
	if rawErr, ok := obj[keyError]; ok && !isNull(rawErr) {
		detail = &ErrorDetail{}
		if err := json.Unmarshal(rawErr, detail); err != nil {
			return errors.Newf("response envelope 'error' must be an object, got %s", preview(rawErr))
		}
	}

	fields := make(map[string]json.RawMessage, len(obj))
	for k, v := range obj {
		switch k {
		case keyID, keySuccess, keyMessage, keyError:
			continue
		}
		fields[k] = v
	}

	r.Success = success
	r.Message = message
	r.Error = detail
	r.fields = fields
	return nil
}

func defaultMessage(success bool) string {
	if success {
		return DefaultSuccessMessage
	}
	return DefaultFailureMessage
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func mustMarshal(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("protocol: cannot marshal %T: %v", v, err))
	}
	return b
}

func preview(raw []byte) string {
	const maxPreview = 100
	if len(raw) > maxPreview {
		return string(raw[:maxPreview]) + "..."
	}
	return string(raw)
}
