// Package registry holds the process-wide table of named calls: their
// description, parameter schema, handler and how they are exposed to agents.
package registry

// file: internal/registry/registry.go

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/unitybridge/internal/logging"
	"github.com/dkoosis/unitybridge/internal/protocol"
	"github.com/dkoosis/unitybridge/internal/schema"
)

// Handler executes a call with parameters that have already been validated.
type Handler func(ctx context.Context, params schema.Params) (*protocol.Response, error)

// Resource describes how a call is exposed as an agent resource.
type Resource struct {
	URI      string
	Name     string
	MIMEType string
}

// CallDescriptor describes one registered call. Descriptors returned by the
// registry must be treated as read-only.
type CallDescriptor struct {
	Name        string
	Description string
	Params      schema.Definition
	Handler     Handler
	// Tool advertises the call as an agent tool.
	Tool bool
	// Resource, when set, advertises the call as an agent resource.
	Resource *Resource
	// Local calls are served in-process and never cross the transport.
	Local bool

	compiled *schema.Compiled
}

// Schema returns the compiled parameter schema.
func (d *CallDescriptor) Schema() *schema.Compiled { return d.compiled }

// Registry maps call names to descriptors. Registration is append-only and
// ends with Seal; lookups are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*CallDescriptor
	byURI  map[string]*CallDescriptor
	order  []*CallDescriptor
	sealed bool
	logger logging.Logger
}

// New creates an empty registry.
func New(logger logging.Logger) *Registry {
	return &Registry{
		byName: make(map[string]*CallDescriptor),
		byURI:  make(map[string]*CallDescriptor),
		logger: logging.For(logger, "call_registry"),
	}
}

// ErrSealed is returned by Register after Seal.
var ErrSealed = errors.New("registry is sealed")

// Register validates and stores a descriptor. A name that is already taken
// fails with DuplicateNameError and the first registration is kept.
func (r *Registry) Register(d CallDescriptor) error {
	if err := schema.ValidateName(schema.EntityTypeCall, d.Name); err != nil {
		return errors.Wrap(err, "cannot register call")
	}
	if d.Handler == nil {
		return errors.Newf("call '%s' must have a handler", d.Name)
	}
	if d.Resource != nil {
		if err := schema.ValidateName(schema.EntityTypeResourceURI, d.Resource.URI); err != nil {
			return errors.Wrapf(err, "cannot register call '%s'", d.Name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return errors.Wrapf(ErrSealed, "cannot register call '%s'", d.Name)
	}
	if _, exists := r.byName[d.Name]; exists {
		r.logger.Warn("Attempted to register duplicate call.", "name", d.Name)
		return protocol.NewDuplicateNameError(d.Name)
	}
	if d.Resource != nil {
		if owner, exists := r.byURI[d.Resource.URI]; exists {
			return errors.Newf("resource URI '%s' of call '%s' is already claimed by '%s'",
				d.Resource.URI, d.Name, owner.Name)
		}
	}

	compiled, err := schema.Compile(d.Name, d.Params)
	if err != nil {
		return err
	}

	stored := d
	stored.compiled = compiled
	if d.Resource != nil {
		res := *d.Resource
		stored.Resource = &res
		r.byURI[res.URI] = &stored
	}
	r.byName[d.Name] = &stored
	r.order = append(r.order, &stored)

	r.logger.Debug("Registered call.", "name", d.Name, "tool", d.Tool, "resource", d.Resource != nil, "local", d.Local)
	return nil
}

// MustRegister panics if Register fails. Intended for the fixed startup set.
func (r *Registry) MustRegister(d CallDescriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Seal ends the registration phase.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.sealed {
		r.sealed = true
		r.logger.Info("Call registry sealed.", "calls", len(r.order))
	}
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Resolve returns the descriptor registered under name. The same pointer is
// returned on every call; unknown names fail with UnknownCallError.
func (r *Registry) Resolve(name string) (*CallDescriptor, error) {
	r.mu.RLock()
	d, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return nil, protocol.NewUnknownCallError(name)
	}
	return d, nil
}

// ResolveURI returns the descriptor exposed under a resource URI.
func (r *Registry) ResolveURI(uri string) (*CallDescriptor, error) {
	r.mu.RLock()
	d, ok := r.byURI[uri]
	r.mu.RUnlock()
	if !ok {
		return nil, protocol.NewUnknownCallError(uri).WithContext("uri", uri)
	}
	return d, nil
}

// Descriptors lists all descriptors in registration order.
func (r *Registry) Descriptors() []*CallDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*CallDescriptor, len(r.order))
	copy(out, r.order)
	return out
}

// Names lists registered call names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.order))
	for _, d := range r.order {
		names = append(names, d.Name)
	}
	return names
}
