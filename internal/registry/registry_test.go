package registry

// file: internal/registry/registry_test.go

import (
	"context"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/unitybridge/internal/protocol"
	"github.com/dkoosis/unitybridge/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(message string) Handler {
	return func(context.Context, schema.Params) (*protocol.Response, error) {
		return &protocol.Response{Success: true, Message: message}, nil
	}
}

func TestRegister_DuplicateKeepsFirst(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register(CallDescriptor{Name: "get_scripts", Description: "first", Handler: okHandler("first")}))

	err := r.Register(CallDescriptor{Name: "get_scripts", Description: "second", Handler: okHandler("second")})
	require.Error(t, err)
	assert.Equal(t, protocol.KindDuplicateName, protocol.KindOf(err))

	d, err := r.Resolve("get_scripts")
	require.NoError(t, err)
	assert.Equal(t, "first", d.Description)
	assert.Len(t, r.Descriptors(), 1)
}

func TestResolve_IsIdempotent(t *testing.T) {
	r := New(nil)
	r.MustRegister(CallDescriptor{Name: "get_scripts", Description: "d", Handler: okHandler("x")})

	first, err := r.Resolve("get_scripts")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := r.Resolve("get_scripts")
		require.NoError(t, err)
		assert.Same(t, first, again)
	}

	for i := 0; i < 3; i++ {
		_, err := r.Resolve("nope")
		require.Error(t, err)
		assert.True(t, errors.Is(err, &protocol.Error{ErrKind: protocol.KindUnknownCall}))
	}
}

func TestRegister_RejectsInvalidDescriptors(t *testing.T) {
	r := New(nil)

	assert.Error(t, r.Register(CallDescriptor{Name: "", Handler: okHandler("x")}))
	assert.Error(t, r.Register(CallDescriptor{Name: "Bad-Name", Handler: okHandler("x")}))
	assert.Error(t, r.Register(CallDescriptor{Name: "no_handler"}))
	assert.Error(t, r.Register(CallDescriptor{
		Name:    "bad_schema",
		Handler: okHandler("x"),
		Params:  schema.Definition{Fields: []schema.Field{{Name: "a", Type: "object"}}},
	}))
	assert.Empty(t, r.Names())
}

func TestRegister_ResourceURIMustBeUnique(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register(CallDescriptor{
		Name:     "get_scripts",
		Handler:  okHandler("x"),
		Resource: &Resource{URI: "unity://scripts", MIMEType: "application/json"},
	}))
	err := r.Register(CallDescriptor{
		Name:     "other",
		Handler:  okHandler("y"),
		Resource: &Resource{URI: "unity://scripts"},
	})
	assert.Error(t, err)

	d, err := r.ResolveURI("unity://scripts")
	require.NoError(t, err)
	assert.Equal(t, "get_scripts", d.Name)

	_, err = r.ResolveURI("unity://missing")
	assert.Equal(t, protocol.KindUnknownCall, protocol.KindOf(err))
}

func TestSeal_StopsRegistration(t *testing.T) {
	r := New(nil)
	r.MustRegister(CallDescriptor{Name: "a", Handler: okHandler("a")})
	r.Seal()
	assert.True(t, r.Sealed())

	err := r.Register(CallDescriptor{Name: "b", Handler: okHandler("b")})
	assert.True(t, errors.Is(err, ErrSealed))
	assert.Equal(t, []string{"a"}, r.Names())
}

func TestDescriptors_RegistrationOrderAndCompiledSchema(t *testing.T) {
	r := New(nil)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		r.MustRegister(CallDescriptor{
			Name:    name,
			Handler: okHandler(name),
			Params:  schema.Definition{Fields: []schema.Field{{Name: "n", Type: schema.TypeInteger, Default: 1}}},
		})
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, r.Names())

	for _, d := range r.Descriptors() {
		require.NotNil(t, d.Schema())
		p, err := d.Schema().Normalize(nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1), p.Int("n"))
	}
}

func TestResolve_ConcurrentLookups(t *testing.T) {
	r := New(nil)
	r.MustRegister(CallDescriptor{Name: "get_scripts", Handler: okHandler("x")})
	r.Seal()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := r.Resolve("get_scripts")
			assert.NoError(t, err)
			assert.Equal(t, "get_scripts", d.Name)
		}()
	}
	wg.Wait()
}
