package domain

// TurnResult is the outcome of one successful turn.
type TurnResult struct {
	Decision *Decision `json:"decision"`

	// ToolResult holds the rendered tool output when the action was TOOL_CALL.
	ToolResult string `json:"tool_result,omitempty"`

	// FromStep is the step the decision was taken in, StepID the step after dispatch.
	FromStep string `json:"from_step"`
	StepID   string `json:"step_id"`
}

// Ended reports whether the agent chose to end the conversation.
func (r *TurnResult) Ended() bool {
	return r != nil && r.Decision != nil && r.Decision.Action == ActionEnd
}

// AgentInfo is a read-only description of an agent, used for introspection,
// graph rendering and transport discovery endpoints.
type AgentInfo struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	StartStep   string      `json:"start_step"`
	Steps       []*Step     `json:"steps"`
	Flows       []FlowInfo  `json:"flows,omitempty"`
	Tools       []ToolInfo  `json:"tools,omitempty"`
	Limits      AgentLimits `json:"limits"`
}

// FlowInfo describes a flow's membership.
type FlowInfo struct {
	ID         string   `json:"id"`
	Enters     []string `json:"enters"`
	Exits      []string `json:"exits,omitempty"`
	Steps      []string `json:"steps"`
	Components []string `json:"components,omitempty"`
}

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// AgentLimits are the per-session hard stops.
type AgentLimits struct {
	MaxErrors     int `json:"max_errors"`
	MaxIterations int `json:"max_iterations"`
}

// Step looks up a step by ID.
func (a *AgentInfo) Step(id string) *Step {
	for _, s := range a.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// FlowOf returns the first declared flow containing stepID.
func (a *AgentInfo) FlowOf(stepID string) *FlowInfo {
	for i := range a.Flows {
		for _, s := range a.Flows[i].Steps {
			if s == stepID {
				return &a.Flows[i]
			}
		}
	}
	return nil
}
