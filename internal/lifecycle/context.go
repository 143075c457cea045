package lifecycle

// file: internal/lifecycle/context.go

import "context"

type machineKey struct{}

// NewContext returns ctx carrying m.
func NewContext(ctx context.Context, m *Machine) context.Context {
	return context.WithValue(ctx, machineKey{}, m)
}

// FromContext returns the machine carried by ctx, or nil.
func FromContext(ctx context.Context) *Machine {
	m, _ := ctx.Value(machineKey{}).(*Machine)
	return m
}

// MarkSent records that the call's request has been written to the
// transport. It is a no-op when ctx carries no machine.
func MarkSent(ctx context.Context) {
	if m := FromContext(ctx); m != nil && m.CurrentState() == StateDispatching {
		_ = m.Transition(ctx, EventSent, nil)
	}
}
