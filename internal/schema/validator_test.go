package schema

// file: internal/schema/validator_test.go

import (
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/unitybridge/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scriptsDefinition() Definition {
	return Definition{Fields: []Field{
		{Name: "searchPattern", Type: TypeString, Nullable: true},
		{Name: "includeContent", Type: TypeBoolean, Default: false},
		{Name: "maxFileSizeBytes", Type: TypeInteger, Default: 50000, Minimum: Min(0)},
	}}
}

func TestNormalize_AppliesDefaults(t *testing.T) {
	c, err := Compile("get_scripts", scriptsDefinition())
	require.NoError(t, err)

	p, err := c.Normalize(map[string]interface{}{})
	require.NoError(t, err)

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"searchPattern": null, "includeContent": false, "maxFileSizeBytes": 50000}`, string(data))
	assert.True(t, p.IsNull("searchPattern"))
	assert.False(t, p.Bool("includeContent"))
	assert.Equal(t, int64(50000), p.Int("maxFileSizeBytes"))
	assert.Equal(t, "get_scripts", p.Call())
}

func TestNormalize_NullCountsAsAbsent(t *testing.T) {
	c := MustCompile("get_scripts", scriptsDefinition())

	p, err := c.Normalize(map[string]interface{}{
		"searchPattern":    nil,
		"includeContent":   nil,
		"maxFileSizeBytes": nil,
	})
	require.NoError(t, err)
	assert.True(t, p.IsNull("searchPattern"))
	assert.False(t, p.Bool("includeContent"))
	assert.Equal(t, int64(50000), p.Int("maxFileSizeBytes"))
}

func TestNormalize_KeepsSuppliedValuesAndDropsUnknown(t *testing.T) {
	c := MustCompile("get_scripts", scriptsDefinition())

	p, err := c.NormalizeJSON([]byte(`{"searchPattern": "Player", "includeContent": true, "maxFileSizeBytes": 10, "extra": [1]}`))
	require.NoError(t, err)

	s, ok := p.String("searchPattern")
	assert.True(t, ok)
	assert.Equal(t, "Player", s)
	assert.True(t, p.Bool("includeContent"))
	assert.Equal(t, int64(10), p.Int("maxFileSizeBytes"))
	assert.False(t, p.Has("extra"))
}

func TestNormalize_AcceptsGoNumericTypes(t *testing.T) {
	c := MustCompile("get_scripts", scriptsDefinition())

	p, err := c.Normalize(map[string]interface{}{"maxFileSizeBytes": 7})
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.Int("maxFileSizeBytes"))

	p, err = c.Normalize(map[string]interface{}{"maxFileSizeBytes": float64(8)})
	require.NoError(t, err)
	assert.Equal(t, int64(8), p.Int("maxFileSizeBytes"))
}

func TestNormalize_Violations(t *testing.T) {
	def := Definition{Fields: []Field{
		{Name: "name", Type: TypeString, Required: true, MinLength: Len(2), MaxLength: Len(5)},
		{Name: "count", Type: TypeInteger, Minimum: Min(0), Maximum: Min(10)},
		{Name: "mode", Type: TypeString, Enum: []interface{}{"fast", "slow"}},
		{Name: "flag", Type: TypeBoolean},
	}}
	c := MustCompile("probe", def)

	testCases := []struct {
		name       string
		input      map[string]interface{}
		field      string
		constraint string
	}{
		{name: "missing required", input: map[string]interface{}{}, field: "name", constraint: ConstraintRequired},
		{name: "null required", input: map[string]interface{}{"name": nil}, field: "name", constraint: ConstraintRequired},
		{name: "type mismatch", input: map[string]interface{}{"name": "ab", "flag": "yes"}, field: "flag", constraint: ConstraintType},
		{name: "fractional integer", input: map[string]interface{}{"name": "ab", "count": 1.5}, field: "count", constraint: ConstraintType},
		{name: "below minimum", input: map[string]interface{}{"name": "ab", "count": -1}, field: "count", constraint: ConstraintMinimum},
		{name: "above maximum", input: map[string]interface{}{"name": "ab", "count": 11}, field: "count", constraint: ConstraintMaximum},
		{name: "too short", input: map[string]interface{}{"name": "a"}, field: "name", constraint: ConstraintMinLength},
		{name: "too long", input: map[string]interface{}{"name": "abcdef"}, field: "name", constraint: ConstraintMaxLength},
		{name: "not in enum", input: map[string]interface{}{"name": "ab", "mode": "medium"}, field: "mode", constraint: ConstraintEnum},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Normalize(tc.input)
			require.Error(t, err)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "expected *ValidationError, got %T", err)
			assert.Equal(t, tc.field, ve.Field)
			assert.Equal(t, tc.constraint, ve.Constraint)
			assert.Equal(t, "probe", ve.Call)
			assert.Equal(t, protocol.KindValidation, protocol.KindOf(err))
		})
	}
}

func TestNormalize_FirstDeclaredFieldReportedFirst(t *testing.T) {
	def := Definition{Fields: []Field{
		{Name: "a", Type: TypeInteger},
		{Name: "b", Type: TypeInteger},
	}}
	c := MustCompile("pair", def)

	for i := 0; i < 10; i++ {
		_, err := c.Normalize(map[string]interface{}{"a": "x", "b": "y"})
		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "a", ve.Field)
	}
}

func TestNormalizeJSON_RejectsNonObject(t *testing.T) {
	c := MustCompile("get_scripts", scriptsDefinition())

	_, err := c.NormalizeJSON([]byte(`[1, 2]`))
	assert.True(t, protocol.IsKind(err, protocol.KindValidation))

	p, err := c.NormalizeJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), p.Int("maxFileSizeBytes"))
}

func TestCompile_RejectsBadDefinitions(t *testing.T) {
	_, err := Compile("x", Definition{Fields: []Field{{Name: "a", Type: "array"}}})
	assert.Error(t, err)

	_, err = Compile("x", Definition{Fields: []Field{{Name: "a", Type: TypeString}, {Name: "a", Type: TypeString}}})
	assert.Error(t, err)

	_, err = Compile("x", Definition{Fields: []Field{{Name: "a", Type: TypeString, Required: true, Default: "d"}}})
	assert.Error(t, err)
}

func TestDocument(t *testing.T) {
	c := MustCompile("get_scripts", scriptsDefinition())

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(c.Document(), &doc))
	assert.Equal(t, "object", doc["type"])

	props, ok := doc["properties"].(map[string]interface{})
	require.True(t, ok)
	require.Len(t, props, 3)

	maxSize := props["maxFileSizeBytes"].(map[string]interface{})
	assert.Equal(t, "integer", maxSize["type"])
	assert.Equal(t, float64(50000), maxSize["default"])
	assert.Equal(t, float64(0), maxSize["minimum"])

	pattern := props["searchPattern"].(map[string]interface{})
	assert.Equal(t, []interface{}{"string", "null"}, pattern["type"])
	assert.Contains(t, pattern, "default")
	assert.Nil(t, pattern["default"])
	assert.NotContains(t, doc, "required")
}
