package domain

import "encoding/json"

// Action is the kind of move the oracle chose for an attempt.
type Action string

const (
	// ActionAsk asks the user for more information.
	ActionAsk Action = "ASK"
	// ActionAnswer answers the user.
	ActionAnswer Action = "ANSWER"
	// ActionEnd ends the turn.
	ActionEnd Action = "END"
	// ActionMove transitions to another step through one of its routes.
	ActionMove Action = "MOVE"
	// ActionToolCall invokes one of the step's tools.
	ActionToolCall Action = "TOOL_CALL"
)

// AllActions lists every action in canonical order.
var AllActions = []Action{ActionAsk, ActionAnswer, ActionEnd, ActionMove, ActionToolCall}

// ToolCall is the tool invocation requested by a decision.
type ToolCall struct {
	ToolName   string         `json:"tool_name"`
	ToolKwargs map[string]any `json:"tool_kwargs,omitempty"`
}

// Decision is the structured output of one oracle attempt.
type Decision struct {
	Reasoning []string `json:"reasoning"`
	Action    Action   `json:"action"`

	// Response is a string, or an object when the step declares an answer model.
	Response any `json:"response,omitempty"`

	Suggestions    []string  `json:"suggestions,omitempty"`
	StepTransition string    `json:"step_transition,omitempty"`
	ToolCall       *ToolCall `json:"tool_call,omitempty"`
}

// ResponseText renders the response as it is stored in history.
func (d *Decision) ResponseText() string {
	switch r := d.Response.(type) {
	case nil:
		return ""
	case string:
		return r
	default:
		b, err := json.Marshal(r)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// HasResponse reports whether the decision carries something to show the user.
func (d *Decision) HasResponse() bool {
	return d.ResponseText() != ""
}
