package schema

// file: internal/schema/name_rules.go

import (
	"regexp"

	"github.com/cockroachdb/errors"
)

// EntityType represents a kind of name the bridge validates at registration.
type EntityType string

const (
	// EntityTypeCall is a registered call name (also the agent tool name).
	EntityTypeCall EntityType = "call"

	// EntityTypeField is a declared parameter name.
	EntityTypeField EntityType = "field"

	// EntityTypeResourceURI is the URI a call is exposed under as a resource.
	EntityTypeResourceURI EntityType = "resource URI"
)

// NameRule defines validation rules for a name.
type NameRule struct {
	// Pattern is the regex pattern the name must match.
	Pattern *regexp.Regexp

	// Description is a human-readable description of the pattern.
	Description string

	// MaxLength is the maximum allowed length of the name.
	MaxLength int
}

var nameRules = map[EntityType]NameRule{
	EntityTypeCall: {
		Pattern:     regexp.MustCompile(`^[a-z][a-z0-9_]*$`),
		Description: "Must start with a lowercase letter, followed by lowercase letters, digits or underscores",
		MaxLength:   64,
	},
	EntityTypeField: {
		Pattern:     regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`),
		Description: "Must start with a letter, followed by letters, digits or underscores",
		MaxLength:   64,
	},
	EntityTypeResourceURI: {
		Pattern:     regexp.MustCompile(`^[a-z][a-z0-9+.-]*://[A-Za-z0-9._~/-]+$`),
		Description: "Must be an absolute URI such as unity://scripts without query or fragment",
		MaxLength:   256,
	},
}

// ValidateName validates a name against the rules for a specific entity type.
func ValidateName(entityType EntityType, name string) error {
	rule, ok := nameRules[entityType]
	if !ok {
		return errors.Newf("unknown entity type: %s", entityType)
	}

	if len(name) == 0 {
		return errors.Newf("empty %s name is not allowed", entityType)
	}

	if len(name) > rule.MaxLength {
		return errors.Newf("%s name exceeds maximum length of %d characters", entityType, rule.MaxLength)
	}

	if !rule.Pattern.MatchString(name) {
		return errors.Newf("invalid %s name '%s': %s", entityType, name, rule.Description)
	}

	return nil
}
