// Package flow groups steps into flows with entry and exit points, and runs
// pluggable components when a conversation enters, leaves or abandons a flow.
package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/stepwise/pkg/domain"
)

// MetadataPreviousFlowData is the metadata key holding the exit payloads of
// the flow the conversation came from.
const MetadataPreviousFlowData = "previous_flow_data"

// Component reacts to flow lifecycle events. Exit returns the component's
// handoff payload, which is passed to the next flow under its name.
type Component interface {
	Name() string
	Enter(ctx context.Context, fc *Context) error
	Exit(ctx context.Context, fc *Context) (any, error)
	Cleanup(ctx context.Context, fc *Context) error
}

// Config declares a flow.
type Config struct {
	ID         string
	Enters     []string
	Exits      []string
	Steps      []string
	Components []Component
}

// Flow is a named group of steps. It is immutable after New.
type Flow struct {
	id         string
	enters     []string
	exits      []string
	steps      []string
	stepSet    map[string]struct{}
	components []Component
}

// New validates cfg and builds a flow.
func New(cfg Config) (*Flow, error) {
	if cfg.ID == "" {
		return nil, &domain.DefinitionError{Err: domain.ErrInvalidFlowDefinition, Reason: "flow id is required"}
	}
	if len(cfg.Steps) == 0 {
		return nil, &domain.DefinitionError{Err: domain.ErrInvalidFlowDefinition, ID: cfg.ID, Reason: "flow has no steps"}
	}
	if len(cfg.Enters) == 0 {
		return nil, &domain.DefinitionError{Err: domain.ErrInvalidFlowDefinition, ID: cfg.ID, Reason: "flow has no entry steps"}
	}

	f := &Flow{
		id:      cfg.ID,
		enters:  append([]string(nil), cfg.Enters...),
		exits:   append([]string(nil), cfg.Exits...),
		steps:   append([]string(nil), cfg.Steps...),
		stepSet: make(map[string]struct{}, len(cfg.Steps)),
	}
	for _, s := range cfg.Steps {
		f.stepSet[s] = struct{}{}
	}
	for _, s := range append(append([]string(nil), cfg.Enters...), cfg.Exits...) {
		if !f.Contains(s) {
			return nil, &domain.DefinitionError{Err: domain.ErrInvalidFlowDefinition, ID: cfg.ID, Reason: fmt.Sprintf("step %q is an entry or exit but not a member", s)}
		}
	}

	names := make(map[string]struct{}, len(cfg.Components))
	for _, c := range cfg.Components {
		if c == nil {
			continue
		}
		if _, dup := names[c.Name()]; dup {
			return nil, &domain.DefinitionError{Err: domain.ErrInvalidFlowDefinition, ID: cfg.ID, Reason: fmt.Sprintf("duplicate component %q", c.Name())}
		}
		names[c.Name()] = struct{}{}
		f.components = append(f.components, c)
	}
	return f, nil
}

// ID returns the flow identifier.
func (f *Flow) ID() string { return f.id }

// Steps returns the member steps in declaration order.
func (f *Flow) Steps() []string { return append([]string(nil), f.steps...) }

// Enters returns the entry steps.
func (f *Flow) Enters() []string { return append([]string(nil), f.enters...) }

// Exits returns the exit steps.
func (f *Flow) Exits() []string { return append([]string(nil), f.exits...) }

// Components returns the attached components in declaration order.
func (f *Flow) Components() []Component { return append([]Component(nil), f.components...) }

// Contains reports whether stepID is a member of the flow.
func (f *Flow) Contains(stepID string) bool {
	_, ok := f.stepSet[stepID]
	return ok
}

// CanEnter reports whether stepID is an entry point.
func (f *Flow) CanEnter(stepID string) bool { return containsString(f.enters, stepID) }

// CanExit reports whether stepID is an exit point.
func (f *Flow) CanExit(stepID string) bool { return containsString(f.exits, stepID) }

// Enter activates the flow at entryStep. The new context is registered in st
// and every component's Enter runs in declaration order. If a component fails
// the context is deregistered again.
func (f *Flow) Enter(ctx context.Context, st *State, entryStep string, previous domain.History, metadata map[string]any) (*domain.FlowContext, error) {
	if !f.CanEnter(entryStep) {
		return nil, fmt.Errorf("%w: flow %q cannot be entered at %q", domain.ErrInvalidEntryPoint, f.id, entryStep)
	}

	fc := &domain.FlowContext{
		FlowID:          f.id,
		EntryStep:       entryStep,
		PreviousContext: previous.Clone(),
		Metadata:        domain.CloneMap(metadata),
		HistoryStart:    len(st.History),
	}
	if fc.Metadata == nil {
		fc.Metadata = map[string]any{}
	}
	st.register(fc)

	for _, c := range f.components {
		if err := c.Enter(ctx, &Context{FlowContext: fc, state: st}); err != nil {
			st.deregister(fc)
			return nil, fmt.Errorf("flow %q: component %q enter: %w", f.id, c.Name(), err)
		}
	}
	return fc, nil
}

// Exit leaves the flow through exitStep and returns the components' handoff
// payloads keyed by component name.
func (f *Flow) Exit(ctx context.Context, st *State, exitStep string, fc *domain.FlowContext) (map[string]any, error) {
	if !f.CanExit(exitStep) {
		return nil, fmt.Errorf("%w: flow %q cannot be exited at %q", domain.ErrInvalidExitPoint, f.id, exitStep)
	}
	active := st.lookup(fc)
	if active == nil {
		return nil, fmt.Errorf("flow %q: context entered at %q is not active", f.id, fc.EntryStep)
	}

	out := make(map[string]any, len(f.components))
	for _, c := range f.components {
		payload, err := c.Exit(ctx, &Context{FlowContext: active, state: st})
		if err != nil {
			return nil, fmt.Errorf("flow %q: component %q exit: %w", f.id, c.Name(), err)
		}
		out[c.Name()] = payload
	}
	st.deregister(active)
	return out, nil
}

// Cleanup abandons the flow context, running every component's Cleanup.
// It is a no-op when the context is no longer active.
func (f *Flow) Cleanup(ctx context.Context, st *State, fc *domain.FlowContext) error {
	active := st.lookup(fc)
	if active == nil {
		return nil
	}
	var errs []error
	for _, c := range f.components {
		if err := c.Cleanup(ctx, &Context{FlowContext: active, state: st}); err != nil {
			errs = append(errs, fmt.Errorf("flow %q: component %q cleanup: %w", f.id, c.Name(), err))
		}
	}
	st.deregister(active)
	return errors.Join(errs...)
}

func containsString(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
