package handlers

// file: internal/handlers/register.go

import (
	"github.com/cockroachdb/errors"

	"github.com/dkoosis/unitybridge/internal/registry"
)

// Register adds every call to reg. It stops at the first rejected descriptor.
func Register(reg *registry.Registry, deps Deps) (*Adapters, error) {
	a, err := New(deps)
	if err != nil {
		return nil, err
	}
	for _, d := range a.Descriptors() {
		if err := reg.Register(d); err != nil {
			return nil, errors.Wrapf(err, "failed to register '%s'", d.Name)
		}
	}
	return a, nil
}

// Descriptors lists the calls in the order they are advertised.
func (a *Adapters) Descriptors() []registry.CallDescriptor {
	return []registry.CallDescriptor{
		scriptsDescriptor(a),
		analyzeDescriptor(a),
		editorInfoDescriptor(a),
		statusDescriptor(a),
	}
}
