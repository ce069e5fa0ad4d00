package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/stepwise/pkg/domain"
)

// Manager owns the step to flow registry. It is built once per agent and never
// mutated, so concurrent sessions can share it without locking.
type Manager struct {
	flows []*Flow
	byID  map[string]*Flow
	owner map[string]*Flow
}

// NewManager registers flows in declaration order. The first flow containing a
// step is that step's registry owner.
func NewManager(flows ...*Flow) (*Manager, error) {
	m := &Manager{
		byID:  make(map[string]*Flow, len(flows)),
		owner: make(map[string]*Flow),
	}
	for _, f := range flows {
		if _, dup := m.byID[f.id]; dup {
			return nil, &domain.DefinitionError{Err: domain.ErrInvalidFlowDefinition, ID: f.id, Reason: "duplicate flow id"}
		}
		m.byID[f.id] = f
		m.flows = append(m.flows, f)
		for _, s := range f.steps {
			if _, taken := m.owner[s]; !taken {
				m.owner[s] = f
			}
		}
	}
	return m, nil
}

// Flows returns the registered flows in declaration order.
func (m *Manager) Flows() []*Flow {
	if m == nil {
		return nil
	}
	return append([]*Flow(nil), m.flows...)
}

// Flow looks up a flow by ID.
func (m *Manager) Flow(id string) (*Flow, bool) {
	if m == nil {
		return nil, false
	}
	f, ok := m.byID[id]
	return f, ok
}

// FlowFor resolves the flow that owns stepID for a session. An active flow
// containing the step wins over the registry owner.
func (m *Manager) FlowFor(st *State, stepID string) *Flow {
	if m == nil {
		return nil
	}
	if st != nil {
		for i := len(st.Flows) - 1; i >= 0; i-- {
			if f, ok := m.byID[st.Flows[i].FlowID]; ok && f.Contains(stepID) {
				return f
			}
		}
	}
	return m.owner[stepID]
}

// TransitionBetweenFlows exits from through exitStep and enters to at
// entryStep, handing the exit payloads over as previous_flow_data. It works on
// a copy of st and only commits when both halves succeed.
func (m *Manager) TransitionBetweenFlows(ctx context.Context, st *State, from, to *Flow, exitStep, entryStep string, fc *domain.FlowContext) (*domain.FlowContext, error) {
	work := st.Clone()

	var data map[string]any
	if from != nil && fc != nil {
		var err error
		data, err = from.Exit(ctx, work, exitStep, fc)
		if err != nil {
			return nil, err
		}
	}

	var next *domain.FlowContext
	if to != nil {
		metadata := map[string]any{}
		if data != nil {
			metadata[MetadataPreviousFlowData] = data
		}
		var err error
		next, err = to.Enter(ctx, work, entryStep, work.History, metadata)
		if err != nil {
			return nil, err
		}
	}

	*st = *work
	return next, nil
}

// CleanupAll abandons every active context, for sessions destroyed mid-flow.
func (m *Manager) CleanupAll(ctx context.Context, st *State) error {
	var errs []error
	for _, fc := range append([]*domain.FlowContext(nil), st.Flows...) {
		f, ok := m.Flow(fc.FlowID)
		if !ok {
			st.deregister(fc)
			continue
		}
		if err := f.Cleanup(ctx, st, fc); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Validate checks that every flow member is a known step.
func (m *Manager) Validate(known func(stepID string) bool) error {
	for _, f := range m.Flows() {
		for _, s := range f.steps {
			if !known(s) {
				return &domain.DefinitionError{Err: domain.ErrInvalidFlowDefinition, ID: f.id, Reason: fmt.Sprintf("unknown step %q", s)}
			}
		}
	}
	return nil
}
