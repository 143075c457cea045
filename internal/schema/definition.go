// Package schema declares call parameters, renders them as JSON Schema and
// normalizes caller input into validated Params.
package schema

// file: internal/schema/definition.go

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// FieldType is the JSON type of a declared parameter.
type FieldType string

// Supported parameter types.
const (
	TypeString  FieldType = "string"
	TypeBoolean FieldType = "boolean"
	TypeInteger FieldType = "integer"
	TypeNumber  FieldType = "number"
)

// Field declares one parameter of a call.
type Field struct {
	Name        string
	Type        FieldType
	Description string
	// Required fields must be present and non-null.
	Required bool
	// Nullable advertises null as an accepted value. Null input is always
	// treated as absent for optional fields.
	Nullable bool
	// Default is applied when the field is absent or null. A nil Default on an
	// optional field normalizes to null.
	Default   interface{}
	Minimum   *float64
	Maximum   *float64
	MinLength *int
	MaxLength *int
	Enum      []interface{}
}

// Definition is the declarative parameter schema of a call.
type Definition struct {
	Fields []Field
}

// Min returns a pointer for use as Field.Minimum or Field.Maximum.
func Min(v float64) *float64 { return &v }

// Len returns a pointer for use as Field.MinLength or Field.MaxLength.
func Len(v int) *int { return &v }

// Field looks up a declared field by name.
func (d Definition) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// check verifies the definition itself is well formed.
func (d Definition) check() error {
	seen := make(map[string]struct{}, len(d.Fields))
	for _, f := range d.Fields {
		if err := ValidateName(EntityTypeField, f.Name); err != nil {
			return err
		}
		if _, dup := seen[f.Name]; dup {
			return errors.Newf("field '%s' is declared twice", f.Name)
		}
		seen[f.Name] = struct{}{}
		switch f.Type {
		case TypeString, TypeBoolean, TypeInteger, TypeNumber:
		default:
			return errors.Newf("field '%s' has unsupported type '%s'", f.Name, f.Type)
		}
		if f.Required && f.Default != nil {
			return errors.Newf("required field '%s' cannot declare a default", f.Name)
		}
	}
	return nil
}

// Document renders the definition as a JSON Schema (draft 2020-12) object.
func (d Definition) Document() map[string]interface{} {
	props := make(map[string]interface{}, len(d.Fields))
	required := make([]string, 0)
	for _, f := range d.Fields {
		prop := map[string]interface{}{}
		if f.Nullable {
			prop["type"] = []string{string(f.Type), "null"}
		} else {
			prop["type"] = string(f.Type)
		}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		if f.Default != nil || (f.Nullable && !f.Required) {
			prop["default"] = f.Default
		}
		if f.Minimum != nil {
			prop["minimum"] = *f.Minimum
		}
		if f.Maximum != nil {
			prop["maximum"] = *f.Maximum
		}
		if f.MinLength != nil {
			prop["minLength"] = *f.MinLength
		}
		if f.MaxLength != nil {
			prop["maxLength"] = *f.MaxLength
		}
		if len(f.Enum) > 0 {
			prop["enum"] = f.Enum
		}
		props[f.Name] = prop
		if f.Required {
			required = append(required, f.Name)
		}
	}
	doc := map[string]interface{}{
		"$schema":    "https://json-schema.org/draft/2020-12/schema",
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

// JSON returns the rendered schema document as JSON.
func (d Definition) JSON() (json.RawMessage, error) {
	data, err := json.Marshal(d.Document())
	if err != nil {
		return nil, errors.Wrap(err, "failed to render parameter schema")
	}
	return data, nil
}
