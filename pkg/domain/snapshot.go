package domain

import "time"

// FlowContext is the working memory of an active flow.
// It is created when a flow is entered and discarded on exit or cleanup.
type FlowContext struct {
	FlowID    string `json:"flow_id"`
	EntryStep string `json:"entry_step"`

	// PreviousContext holds the history the session had when the flow was entered.
	PreviousContext History `json:"previous_context,omitempty"`

	// Metadata carries data handed to the flow, including "previous_flow_data".
	Metadata map[string]any `json:"metadata,omitempty"`

	// HistoryStart is the index of the first history entry produced inside the flow.
	HistoryStart int `json:"history_start"`
}

// Clone returns a deep copy of the context.
func (fc *FlowContext) Clone() *FlowContext {
	if fc == nil {
		return nil
	}
	c := *fc
	c.PreviousContext = fc.PreviousContext.Clone()
	c.Metadata = CloneMap(fc.Metadata)
	return &c
}

// Snapshot is the persisted state of a session between turns.
type Snapshot struct {
	SessionID      string         `json:"session_id"`
	CurrentStepID  string         `json:"current_step_id"`
	History        History        `json:"history"`
	ErrorCount     int            `json:"error_count"`
	IterationCount int            `json:"iteration_count"`
	Flows          []*FlowContext `json:"flows,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// NewSnapshot creates a clean snapshot positioned at startStepID.
func NewSnapshot(sessionID, startStepID string) *Snapshot {
	return &Snapshot{
		SessionID:     sessionID,
		CurrentStepID: startStepID,
		History:       History{},
	}
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.History = s.History.Clone()
	if s.Flows != nil {
		c.Flows = make([]*FlowContext, len(s.Flows))
		for i, fc := range s.Flows {
			c.Flows[i] = fc.Clone()
		}
	}
	return &c
}

// CloneMap deep-copies nested maps and slices of a generic JSON-like value.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case History:
		return t.Clone()
	default:
		return v
	}
}
