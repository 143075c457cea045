package schema

// file: internal/schema/params.go

import (
	"bytes"
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// Params is a normalized parameter record. Values can only be produced by
// Compiled.Normalize, so holding a Params means validation has passed. Every
// declared field is present; absent optional fields without a default are null.
type Params struct {
	call   string
	order  []string
	values map[string]interface{}
}

// Call returns the name of the call these parameters were validated for.
func (p Params) Call() string { return p.call }

// Has reports whether name is a declared field.
func (p Params) Has(name string) bool {
	_, ok := p.values[name]
	return ok
}

// IsNull reports whether the field is null or undeclared.
func (p Params) IsNull(name string) bool {
	return p.values[name] == nil
}

// String returns a string field; ok is false when the field is null.
func (p Params) String(name string) (string, bool) {
	s, ok := p.values[name].(string)
	return s, ok
}

// Bool returns a boolean field, false when null.
func (p Params) Bool(name string) bool {
	b, _ := p.values[name].(bool)
	return b
}

// Int returns an integer field, 0 when null.
func (p Params) Int(name string) int64 {
	n, _ := p.values[name].(int64)
	return n
}

// MarshalJSON writes the fields in declaration order.
func (p Params) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range p.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to encode parameter name '%s'", name)
		}
		val, err := json.Marshal(p.values[name])
		if err != nil {
			return nil, errors.Wrapf(err, "failed to encode parameter '%s'", name)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
