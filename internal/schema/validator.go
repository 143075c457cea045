package schema

// file: internal/schema/validator.go

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Compiled is a Definition compiled for validation. It is immutable and safe
// for concurrent use.
type Compiled struct {
	call   string
	def    Definition
	doc    json.RawMessage
	schema *jsonschema.Schema
}

// Compile checks the definition and compiles its rendered JSON Schema.
func Compile(call string, def Definition) (*Compiled, error) {
	if err := def.check(); err != nil {
		return nil, errors.Wrapf(err, "invalid parameter schema for '%s'", call)
	}
	doc, err := def.JSON()
	if err != nil {
		return nil, err
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	resourceID := "unitybridge://calls/" + call + ".json"
	if err := compiler.AddResource(resourceID, bytes.NewReader(doc)); err != nil {
		return nil, errors.Wrapf(err, "failed to add parameter schema for '%s'", call)
	}
	compiled, err := compiler.Compile(resourceID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to compile parameter schema for '%s'", call)
	}

	return &Compiled{call: call, def: def, doc: doc, schema: compiled}, nil
}

// MustCompile is Compile for statically declared schemas.
func MustCompile(call string, def Definition) *Compiled {
	c, err := Compile(call, def)
	if err != nil {
		panic(err)
	}
	return c
}

// Definition returns the declared fields.
func (c *Compiled) Definition() Definition { return c.def }

// Document returns the rendered JSON Schema advertised to agents.
func (c *Compiled) Document() json.RawMessage {
	out := make(json.RawMessage, len(c.doc))
	copy(out, c.doc)
	return out
}

// Normalize validates raw caller parameters and returns the normalized record.
// Null values count as absent, unknown fields are dropped, and declared
// defaults are applied. It never has side effects.
func (c *Compiled) Normalize(raw map[string]interface{}) (Params, error) {
	known := make(map[string]interface{}, len(c.def.Fields))
	for _, f := range c.def.Fields {
		v, ok := raw[f.Name]
		if !ok || v == nil {
			if f.Required {
				return Params{}, &ValidationError{
					Call:       c.call,
					Field:      f.Name,
					Constraint: ConstraintRequired,
					Message:    "missing required field",
				}
			}
			continue
		}
		known[f.Name] = v
	}

	instance, err := toJSONValues(known)
	if err != nil {
		return Params{}, &ValidationError{
			Call:       c.call,
			Constraint: ConstraintType,
			Message:    "parameters are not representable as JSON",
			Cause:      err,
		}
	}

	if err := c.schema.Validate(instance); err != nil {
		var valErr *jsonschema.ValidationError
		if errors.As(err, &valErr) {
			return Params{}, c.convertValidationError(valErr)
		}
		return Params{}, &ValidationError{Call: c.call, Message: "schema validation failed", Cause: err}
	}

	p := Params{
		call:   c.call,
		order:  make([]string, 0, len(c.def.Fields)),
		values: make(map[string]interface{}, len(c.def.Fields)),
	}
	for _, f := range c.def.Fields {
		p.order = append(p.order, f.Name)
		v, present := instance[f.Name]
		if !present {
			v = f.Default
		}
		normalized, err := coerce(f, v)
		if err != nil {
			return Params{}, &ValidationError{
				Call:       c.call,
				Field:      f.Name,
				Constraint: ConstraintType,
				Message:    err.Error(),
			}
		}
		p.values[f.Name] = normalized
	}
	return p, nil
}

// NormalizeJSON decodes a JSON object and normalizes it. Empty input and null
// are treated as an empty object.
func (c *Compiled) NormalizeJSON(data []byte) (Params, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return c.Normalize(nil)
	}
	var raw map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return Params{}, &ValidationError{
			Call:       c.call,
			Constraint: ConstraintType,
			Message:    "parameters must be a JSON object",
			Cause:      err,
		}
	}
	return c.Normalize(raw)
}

// toJSONValues round-trips the input through encoding/json so the validator
// sees the same value types regardless of how the caller built the map.
func toJSONValues(in map[string]interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return nil, errors.Wrap(err, "json.Marshal failed")
	}
	out := make(map[string]interface{}, len(in))
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, errors.Wrap(err, "json.Decode failed")
	}
	return out, nil
}

// coerce maps a validated JSON value (or a declared default) to the Go type
// exposed by Params.
func coerce(f Field, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch f.Type {
	case TypeInteger:
		return toInt64(v)
	case TypeNumber:
		return toFloat64(v)
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return nil, errors.Newf("expected string, got %T", v)
		}
		return s, nil
	case TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, errors.Newf("expected boolean, got %T", v)
		}
		return b, nil
	}
	return nil, errors.Newf("unsupported type %s", f.Type)
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, errors.Wrapf(err, "invalid integer %s", n)
		}
		if f != float64(int64(f)) {
			return 0, errors.Newf("%s is not an integer", n)
		}
		return int64(f), nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != float64(int64(n)) {
			return 0, errors.Newf("%v is not an integer", n)
		}
		return int64(n), nil
	}
	return 0, errors.Newf("expected integer, got %T", v)
}

func toFloat64(v interface{}) (float64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Float64()
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	}
	return 0, errors.Newf("expected number, got %T", v)
}

// convertValidationError picks the most specific failure, preferring fields
// in declaration order so the report is deterministic.
func (c *Compiled) convertValidationError(valErr *jsonschema.ValidationError) *ValidationError {
	leaves := collectLeaves(valErr, nil)
	if len(leaves) == 0 {
		leaves = []*jsonschema.ValidationError{valErr}
	}

	rank := make(map[string]int, len(c.def.Fields))
	for i, f := range c.def.Fields {
		rank[f.Name] = i
	}
	sort.SliceStable(leaves, func(i, j int) bool {
		ri, iok := rank[fieldOf(leaves[i].InstanceLocation)]
		rj, jok := rank[fieldOf(leaves[j].InstanceLocation)]
		if iok != jok {
			return iok
		}
		return ri < rj
	})

	leaf := leaves[0]
	return &ValidationError{
		Call:       c.call,
		Field:      fieldOf(leaf.InstanceLocation),
		Constraint: constraintOf(leaf.KeywordLocation),
		Message:    leaf.Message,
		Cause:      valErr,
	}
}

func collectLeaves(e *jsonschema.ValidationError, acc []*jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(e.Causes) == 0 {
		if e.KeywordLocation != "" {
			acc = append(acc, e)
		}
		return acc
	}
	for _, cause := range e.Causes {
		acc = collectLeaves(cause, acc)
	}
	return acc
}

// fieldOf turns an instance location such as "/maxFileSizeBytes" into the
// top-level field name.
func fieldOf(instanceLocation string) string {
	loc := strings.TrimPrefix(instanceLocation, "/")
	if i := strings.IndexByte(loc, '/'); i >= 0 {
		loc = loc[:i]
	}
	return strings.NewReplacer("~1", "/", "~0", "~").Replace(loc)
}

// constraintOf returns the keyword of a keyword location such as
// "/properties/maxFileSizeBytes/minimum".
func constraintOf(keywordLocation string) string {
	if i := strings.LastIndexByte(keywordLocation, '/'); i >= 0 {
		return keywordLocation[i+1:]
	}
	return keywordLocation
}

// String describes the compiled schema for logs.
func (c *Compiled) String() string {
	names := make([]string, 0, len(c.def.Fields))
	for _, f := range c.def.Fields {
		names = append(names, f.Name)
	}
	return fmt.Sprintf("%s(%s)", c.call, strings.Join(names, ", "))
}
