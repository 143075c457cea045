package schema

// file: internal/schema/errors.go

import (
	"fmt"

	"github.com/dkoosis/unitybridge/internal/protocol"
)

// Violated constraint names reported in ValidationError.Constraint.
const (
	ConstraintRequired  = "required"
	ConstraintType      = "type"
	ConstraintMinimum   = "minimum"
	ConstraintMaximum   = "maximum"
	ConstraintEnum      = "enum"
	ConstraintMinLength = "minLength"
	ConstraintMaxLength = "maxLength"
)

// ValidationError reports caller parameters that violate a call's schema.
type ValidationError struct {
	// Call is the call name the parameters were checked for.
	Call string
	// Field is the parameter name that failed.
	Field string
	// Constraint is the violated keyword, e.g. "required" or "minimum".
	Constraint string
	// Message is a human-readable description.
	Message string
	// Cause is the underlying validator error, if any.
	Cause error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", protocol.KindValidation, e.Detail())
}

// Detail is the caller-facing message without the kind prefix.
func (e *ValidationError) Detail() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid parameters for '%s': %s", e.Call, e.Message)
	}
	return fmt.Sprintf("invalid parameter '%s' for '%s' (%s): %s", e.Field, e.Call, e.Constraint, e.Message)
}

// Kind places the error in the bridge taxonomy.
func (e *ValidationError) Kind() protocol.ErrorKind { return protocol.KindValidation }

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error { return e.Cause }
