// Package fsm provides a small finite state machine builder on top of
// looplab/fsm, with guard conditions, enter actions and terminal states.
package fsm

// file: internal/fsm/fsm.go

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/unitybridge/internal/logging"
	lfsm "github.com/looplab/fsm"
)

// State represents a state in the FSM.
type State string

// Event represents an event that can trigger a state transition.
type Event string

// TransitionAction runs after the machine entered the transition's To state.
type TransitionAction func(ctx context.Context, event Event, data interface{}) error

// GuardCondition returns false to cancel the transition.
type GuardCondition func(ctx context.Context, event Event, data interface{}) bool

// Observer is notified of every completed transition.
type Observer func(from, to State, event Event)

// Transition defines a transition rule between states.
type Transition struct {
	From      []State
	To        State
	Event     Event
	Action    TransitionAction
	Condition GuardCondition
}

// FSM is a state machine that is configured with AddTransition and Terminal
// and then finalized with Build.
type FSM interface {
	AddTransition(transition Transition) FSM
	// Terminal marks states that must have no outgoing transitions.
	Terminal(states ...State) FSM
	// Observe registers a callback for completed transitions.
	Observe(observer Observer) FSM
	Build() error
	CurrentState() State
	CanTransition(event Event) bool
	Transition(ctx context.Context, event Event, data interface{}) error
	IsTerminal() bool
}

// ErrNotBuilt is returned when the machine is used before a successful Build.
var ErrNotBuilt = errors.New("fsm has not been built")

type loopFSM struct {
	initialState State
	logger       logging.Logger
	transitions  []Transition
	terminal     map[State]struct{}
	observers    []Observer
	fsm          *lfsm.FSM
	buildErr     error
	mu           sync.RWMutex
}

// NewFSM creates a new FSM builder with the given initial state.
func NewFSM(initialState State, logger logging.Logger) FSM {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	return &loopFSM{
		initialState: initialState,
		logger:       logger.WithField("component", "fsm"),
		terminal:     make(map[State]struct{}),
	}
}

func (l *loopFSM) configErr(err error) {
	if l.buildErr == nil {
		l.buildErr = err
	}
}

// AddTransition stores a transition definition to be used during Build().
func (l *loopFSM) AddTransition(t Transition) FSM {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch {
	case l.fsm != nil:
		l.configErr(errors.New("cannot AddTransition after Build"))
	case len(t.From) == 0:
		l.configErr(errors.Newf("transition '%s' is missing 'From' states", t.Event))
	default:
		l.transitions = append(l.transitions, t)
	}
	return l
}

// Terminal marks final states.
func (l *loopFSM) Terminal(states ...State) FSM {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range states {
		l.terminal[s] = struct{}{}
	}
	return l
}

// Observe registers a transition observer. Observers must be added before Build.
func (l *loopFSM) Observe(observer Observer) FSM {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fsm != nil {
		l.configErr(errors.New("cannot Observe after Build"))
		return l
	}
	if observer != nil {
		l.observers = append(l.observers, observer)
	}
	return l
}

// Build validates the configuration and creates the looplab/fsm instance.
// Building twice is a no-op.
func (l *loopFSM) Build() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fsm != nil || l.buildErr != nil {
		return l.buildErr
	}

	events := make(map[string]*lfsm.EventDesc)
	order := make([]string, 0)
	callbacks := make(lfsm.Callbacks)

	for i, t := range l.transitions {
		for _, from := range t.From {
			if _, final := l.terminal[from]; final {
				l.buildErr = errors.Newf("terminal state '%s' cannot have outgoing transition '%s'", from, t.Event)
				return l.buildErr
			}
		}

		name := string(t.Event)
		desc, exists := events[name]
		if !exists {
			desc = &lfsm.EventDesc{Name: name, Dst: string(t.To)}
			events[name] = desc
			order = append(order, name)
		} else if desc.Dst != string(t.To) {
			l.buildErr = errors.Newf("conflicting destinations ('%s' and '%s') for event '%s'", desc.Dst, t.To, name)
			return l.buildErr
		}
		for _, from := range t.From {
			if !containsString(desc.Src, string(from)) {
				desc.Src = append(desc.Src, string(from))
			}
		}

		if t.Condition != nil {
			key := "before_" + name
			if _, taken := callbacks[key]; taken {
				l.buildErr = errors.Newf("event '%s' already has a guard condition", name)
				return l.buildErr
			}
			callbacks[key] = l.guardCallback(t)
		}
		if t.Action != nil {
			key := "enter_" + string(t.To)
			callbacks[key] = l.actionCallback(i, callbacks[key])
		}
	}

	if len(l.observers) > 0 {
		observers := append([]Observer(nil), l.observers...)
		callbacks["enter_state"] = func(_ context.Context, e *lfsm.Event) {
			for _, o := range observers {
				o(State(e.Src), State(e.Dst), Event(e.Event))
			}
		}
	}

	descs := make([]lfsm.EventDesc, 0, len(order))
	for _, name := range order {
		descs = append(descs, *events[name])
	}
	l.fsm = lfsm.NewFSM(string(l.initialState), descs, callbacks)
	l.logger.Debug("FSM built.", "initialState", l.initialState, "events", len(descs))
	return nil
}

func (l *loopFSM) guardCallback(t Transition) lfsm.Callback {
	return func(ctx context.Context, e *lfsm.Event) {
		if !containsState(t.From, State(e.Src)) {
			return
		}
		var data interface{}
		if len(e.Args) > 0 {
			data = e.Args[0]
		}
		if !t.Condition(ctx, t.Event, data) {
			e.Cancel(errors.Newf("guard condition for event '%s' from state '%s' failed", t.Event, e.Src))
		}
	}
}

// actionCallback chains the action of transition i into the enter callback
// of its destination state.
func (l *loopFSM) actionCallback(i int, next lfsm.Callback) lfsm.Callback {
	t := l.transitions[i]
	return func(ctx context.Context, e *lfsm.Event) {
		if string(t.Event) == e.Event && containsState(t.From, State(e.Src)) {
			var data interface{}
			if len(e.Args) > 0 {
				data = e.Args[0]
			}
			if err := t.Action(ctx, t.Event, data); err != nil {
				l.logger.Error("Transition action failed.", "event", t.Event, "to", t.To, "error", err)
			}
		}
		if next != nil {
			next(ctx, e)
		}
	}
}

// CurrentState returns the current state, or "" before Build.
func (l *loopFSM) CurrentState() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.fsm == nil {
		return ""
	}
	return State(l.fsm.Current())
}

// CanTransition reports whether event is defined for the current state.
func (l *loopFSM) CanTransition(event Event) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.fsm == nil {
		return false
	}
	return l.fsm.Can(string(event))
}

// IsTerminal reports whether the machine is in a terminal state.
func (l *loopFSM) IsTerminal() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.fsm == nil {
		return false
	}
	_, final := l.terminal[State(l.fsm.Current())]
	return final
}

// Transition triggers a state transition.
func (l *loopFSM) Transition(ctx context.Context, event Event, data interface{}) error {
	l.mu.RLock()
	machine := l.fsm
	buildErr := l.buildErr
	l.mu.RUnlock()
	if machine == nil {
		if buildErr != nil {
			return buildErr
		}
		return ErrNotBuilt
	}

	from := machine.Current()
	var args []interface{}
	if data != nil {
		args = append(args, data)
	}
	if err := machine.Event(ctx, string(event), args...); err != nil {
		var noTransition lfsm.NoTransitionError
		if errors.As(err, &noTransition) {
			return nil
		}
		l.logger.Debug("FSM transition rejected.", "event", event, "state", from, "error", err)
		return err
	}
	l.logger.Debug("FSM transition.", "event", event, "from", from, "to", machine.Current())
	return nil
}

func containsState(states []State, s State) bool {
	for _, candidate := range states {
		if candidate == s {
			return true
		}
	}
	return false
}

func containsString(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
