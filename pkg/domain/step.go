package domain

import "fmt"

// Route defines a conditional transition to another step.
type Route struct {
	// Target is the ID of the destination step. It must resolve to a real Step
	// once the agent is assembled.
	Target string `json:"target" yaml:"target" mapstructure:"target"`

	// Condition is a natural-language description of when the transition applies.
	// It is shown to the oracle and never evaluated by the engine.
	Condition string `json:"condition" yaml:"condition" mapstructure:"condition"`
}

// Step represents one unit of agent behaviour.
type Step struct {
	ID          string `json:"id" yaml:"id" mapstructure:"id"`
	Description string `json:"description" yaml:"description" mapstructure:"description"`

	// Routes lists the outgoing transitions in declaration order.
	Routes []Route `json:"routes,omitempty" yaml:"routes,omitempty" mapstructure:"routes"`

	// AvailableTools names the tools the oracle may call while in this step.
	AvailableTools []string `json:"available_tools,omitempty" yaml:"available_tools,omitempty" mapstructure:"available_tools"`

	// AutoFlow steps never talk to the user: the oracle can only move, call a tool or end.
	AutoFlow bool `json:"auto_flow,omitempty" yaml:"auto_flow,omitempty" mapstructure:"auto_flow"`

	// QuickSuggestions asks the oracle to propose short replies for the user.
	QuickSuggestions bool `json:"quick_suggestions,omitempty" yaml:"quick_suggestions,omitempty" mapstructure:"quick_suggestions"`

	// AnswerModel optionally constrains the response to a JSON Schema object.
	AnswerModel map[string]any `json:"answer_model,omitempty" yaml:"answer_model,omitempty" mapstructure:"answer_model"`
}

// NewStep validates s and returns a copy that is safe to share.
func NewStep(s Step) (*Step, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	c := s
	c.Routes = append([]Route(nil), s.Routes...)
	c.AvailableTools = append([]string(nil), s.AvailableTools...)
	return &c, nil
}

// Validate checks the construction invariants of a step.
func (s *Step) Validate() error {
	if s.ID == "" {
		return &DefinitionError{Err: ErrInvalidStepDefinition, Reason: "step id is required"}
	}
	if s.AutoFlow && len(s.Routes) == 0 && len(s.AvailableTools) == 0 {
		return &DefinitionError{Err: ErrInvalidStepDefinition, ID: s.ID, Reason: "auto_flow step needs at least one route or tool"}
	}
	if s.AutoFlow && s.QuickSuggestions {
		return &DefinitionError{Err: ErrInvalidStepDefinition, ID: s.ID, Reason: "auto_flow and quick_suggestions are mutually exclusive"}
	}

	targets := make(map[string]struct{}, len(s.Routes))
	for i, r := range s.Routes {
		if r.Target == "" {
			return &DefinitionError{Err: ErrInvalidStepDefinition, ID: s.ID, Reason: fmt.Sprintf("route %d has no target", i)}
		}
		if _, dup := targets[r.Target]; dup {
			return &DefinitionError{Err: ErrInvalidStepDefinition, ID: s.ID, Reason: fmt.Sprintf("duplicate route to %q", r.Target)}
		}
		targets[r.Target] = struct{}{}
	}

	tools := make(map[string]struct{}, len(s.AvailableTools))
	for _, name := range s.AvailableTools {
		if name == "" {
			return &DefinitionError{Err: ErrInvalidStepDefinition, ID: s.ID, Reason: "empty tool name"}
		}
		if _, dup := tools[name]; dup {
			return &DefinitionError{Err: ErrInvalidStepDefinition, ID: s.ID, Reason: fmt.Sprintf("duplicate tool %q", name)}
		}
		tools[name] = struct{}{}
	}
	return nil
}

// RouteTargets returns the route targets in declaration order.
func (s *Step) RouteTargets() []string {
	out := make([]string, len(s.Routes))
	for i, r := range s.Routes {
		out[i] = r.Target
	}
	return out
}

// HasRoute reports whether target is one of the step's route targets.
func (s *Step) HasRoute(target string) bool {
	for _, r := range s.Routes {
		if r.Target == target {
			return true
		}
	}
	return false
}

// HasTool reports whether the step exposes the named tool.
func (s *Step) HasTool(name string) bool {
	for _, t := range s.AvailableTools {
		if t == name {
			return true
		}
	}
	return false
}
