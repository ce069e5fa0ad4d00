package flow

import (
	"fmt"

	"github.com/aretw0/stepwise/pkg/domain"
)

// State is the per-session view flows operate on: the active contexts and the
// history components are allowed to summarize.
type State struct {
	Flows   []*domain.FlowContext
	History domain.History
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	c := &State{History: s.History.Clone()}
	for _, fc := range s.Flows {
		c.Flows = append(c.Flows, fc.Clone())
	}
	return c
}

// Active returns the active context of flowID, if any.
func (s *State) Active(flowID string) *domain.FlowContext {
	for _, fc := range s.Flows {
		if fc.FlowID == flowID {
			return fc
		}
	}
	return nil
}

func (s *State) lookup(fc *domain.FlowContext) *domain.FlowContext {
	if fc == nil {
		return nil
	}
	for _, active := range s.Flows {
		if active.FlowID == fc.FlowID && active.EntryStep == fc.EntryStep {
			return active
		}
	}
	return nil
}

// register replaces any context with the same (flow, entry step) key.
func (s *State) register(fc *domain.FlowContext) {
	s.deregister(fc)
	s.Flows = append(s.Flows, fc)
}

func (s *State) deregister(fc *domain.FlowContext) {
	kept := s.Flows[:0]
	for _, active := range s.Flows {
		if active.FlowID == fc.FlowID && active.EntryStep == fc.EntryStep {
			continue
		}
		kept = append(kept, active)
	}
	s.Flows = kept
}

// Context is what a component sees: the flow context plus the session history.
type Context struct {
	*domain.FlowContext
	state *State
}

// History returns the full session history.
func (c *Context) History() domain.History { return c.state.History }

// FlowHistory returns the entries produced since the flow was entered.
func (c *Context) FlowHistory() domain.History {
	start := c.HistoryStart
	if start > len(c.state.History) {
		start = len(c.state.History)
	}
	return c.state.History[start:]
}

// Append adds entries at the end of the session history.
func (c *Context) Append(entries ...domain.Entry) {
	c.state.History = c.state.History.Append(entries...)
}

// SummarizeFlow replaces everything the flow produced with one Summary entry.
func (c *Context) SummarizeFlow(lines []string) error {
	if c.HistoryStart > len(c.state.History) {
		return fmt.Errorf("flow %q: history start %d is past the end of history", c.FlowID, c.HistoryStart)
	}
	h, err := c.state.History.Summarize(c.HistoryStart, len(c.state.History), lines)
	if err != nil {
		return err
	}
	c.state.History = h
	return nil
}
