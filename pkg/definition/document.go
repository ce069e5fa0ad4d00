package definition

import (
	"encoding/json"
	"fmt"
)

// Document is the declarative form of an agent.
type Document struct {
	Name          string     `json:"name" mapstructure:"name"`
	Description   string     `json:"description,omitempty" mapstructure:"description"`
	Start         string     `json:"start,omitempty" mapstructure:"start"`
	Persona       string     `json:"persona,omitempty" mapstructure:"persona"`
	SystemMessage string     `json:"system_message,omitempty" mapstructure:"system_message"`
	MaxErrors     int        `json:"max_errors,omitempty" mapstructure:"max_errors"`
	MaxIterations int        `json:"max_iterations,omitempty" mapstructure:"max_iterations"`
	Steps         []StepSpec `json:"steps,omitempty" mapstructure:"steps"`
	Flows         []FlowSpec `json:"flows,omitempty" mapstructure:"flows"`
	Tools         []ToolSpec `json:"tools,omitempty" mapstructure:"tools"`
}

// StepSpec declares one step. Routes may be written as bare target IDs.
type StepSpec struct {
	ID               string         `json:"id" mapstructure:"id"`
	Description      string         `json:"description,omitempty" mapstructure:"description"`
	Routes           []RouteSpec    `json:"routes,omitempty" mapstructure:"routes"`
	Tools            []string       `json:"tools,omitempty" mapstructure:"tools"`
	AutoFlow         bool           `json:"auto_flow,omitempty" mapstructure:"auto_flow"`
	QuickSuggestions bool           `json:"quick_suggestions,omitempty" mapstructure:"quick_suggestions"`
	AnswerModel      map[string]any `json:"answer_model,omitempty" mapstructure:"answer_model"`
}

// RouteSpec declares an outgoing route.
type RouteSpec struct {
	To        string `json:"to" mapstructure:"to"`
	Condition string `json:"condition,omitempty" mapstructure:"condition"`
}

// FlowSpec declares a flow. Components are resolved by name at compile time;
// "memory" is always available.
type FlowSpec struct {
	ID         string      `json:"id" mapstructure:"id"`
	Enters     []string    `json:"enters" mapstructure:"enters"`
	Exits      []string    `json:"exits,omitempty" mapstructure:"exits"`
	Steps      []string    `json:"steps" mapstructure:"steps"`
	Memory     *MemorySpec `json:"memory,omitempty" mapstructure:"memory"`
	Components []string    `json:"components,omitempty" mapstructure:"components"`
}

// MemorySpec configures the flow memory component.
type MemorySpec struct {
	// Keep bounds the number of summary lines handed to the next flow. Zero means 10.
	Keep int    `json:"keep,omitempty" mapstructure:"keep"`
	Name string `json:"name,omitempty" mapstructure:"name"`
}

// ToolSpec declares a tool backed by an external runtime. Kind selects the
// builder; every field not listed here is passed to it in Options.
type ToolSpec struct {
	Name        string                   `json:"name" mapstructure:"name"`
	Description string                   `json:"description,omitempty" mapstructure:"description"`
	Kind        string                   `json:"kind" mapstructure:"kind"`
	Parameters  map[string]ParameterSpec `json:"parameters,omitempty" mapstructure:"parameters"`
	Options     map[string]any           `json:"-" mapstructure:",remain"`
}

// StartStep returns the declared start step, or the first step.
func (d *Document) StartStep() string {
	if d.Start != "" {
		return d.Start
	}
	if len(d.Steps) > 0 {
		return d.Steps[0].ID
	}
	return ""
}

// Step looks up a step spec by ID.
func (d *Document) Step(id string) (*StepSpec, bool) {
	for i := range d.Steps {
		if d.Steps[i].ID == id {
			return &d.Steps[i], true
		}
	}
	return nil, false
}

// AddStep appends a step, rejecting duplicate IDs.
func (d *Document) AddStep(s StepSpec) error {
	if _, dup := d.Step(s.ID); dup {
		return fmt.Errorf("step %q is defined more than once", s.ID)
	}
	d.Steps = append(d.Steps, s)
	return nil
}

// MarshalJSON inlines Options next to the declared fields, mirroring how the
// spec is written.
func (t ToolSpec) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(t.Options)+4)
	for k, v := range t.Options {
		out[k] = v
	}
	out["name"] = t.Name
	out["kind"] = t.Kind
	if t.Description != "" {
		out["description"] = t.Description
	}
	if len(t.Parameters) > 0 {
		out["parameters"] = t.Parameters
	}
	return json.Marshal(out)
}
