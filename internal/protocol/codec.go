package protocol

// file: internal/protocol/codec.go

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
)

// ProtocolVersion is the bridge protocol version advertised by the editor
// responder and checked by the server side.
const ProtocolVersion = "1.1.0"

// RequestFrame is a request envelope tagged with its correlation token.
type RequestFrame struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// EncodeRequest serializes a request frame.
func EncodeRequest(id string, req Request) ([]byte, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("request frame requires a correlation token")
	}
	if req.Method == "" {
		return nil, errors.New("request frame requires a method")
	}
	params := req.Params
	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}
	data, err := json.Marshal(RequestFrame{ID: id, Method: req.Method, Params: params})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode request frame")
	}
	return data, nil
}

// DecodeRequest parses a request frame. A missing or null params object is
// normalized to an empty object.
func DecodeRequest(data []byte) (*RequestFrame, error) {
	var frame RequestFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, NewTransportError("malformed request frame", err).
			WithContext("preview", preview(data))
	}
	if frame.ID == "" {
		return nil, NewTransportError("request frame is missing 'id'", nil).
			WithContext("preview", preview(data))
	}
	if frame.Method == "" {
		return &frame, NewTransportError("request frame is missing 'method'", nil).
			WithContext("id", frame.ID)
	}
	if len(frame.Params) == 0 || isNull(frame.Params) {
		frame.Params = json.RawMessage(`{}`)
	}
	return &frame, nil
}

// EncodeResponse serializes a response envelope with its correlation token.
func EncodeResponse(id string, resp *Response) ([]byte, error) {
	if resp == nil {
		return nil, errors.New("cannot encode nil response")
	}
	body, err := resp.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, errors.Wrap(err, "failed to re-read response body")
	}
	obj[keyID] = mustMarshal(id)
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode response frame")
	}
	return data, nil
}

// DecodeResponse parses a response frame. When the frame carries a token but
// its envelope is malformed, the token is still returned together with a
// TransportError so the matching caller can be failed.
func DecodeResponse(data []byte) (string, *Response, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return "", nil, NewTransportError("malformed response frame", err).
			WithContext("preview", preview(data))
	}

	var id string
	rawID, ok := obj[keyID]
	if !ok || json.Unmarshal(rawID, &id) != nil || id == "" {
		return "", nil, NewTransportError("response frame is missing a correlation token", nil).
			WithContext("preview", preview(data))
	}

	resp := &Response{}
	if err := resp.fromObject(obj); err != nil {
		return id, nil, NewTransportError("malformed response envelope", err).
			WithContext("id", id)
	}
	return id, resp, nil
}
