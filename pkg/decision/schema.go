// Package decision builds, per step, the set of legal actions and the
// structural contract an oracle decision must satisfy, and parses raw oracle
// output against it.
package decision

import (
	"sync"

	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/tool"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// Field names of a decision object.
type Field string

const (
	FieldReasoning      Field = "reasoning"
	FieldAction         Field = "action"
	FieldResponse       Field = "response"
	FieldSuggestions    Field = "suggestions"
	FieldStepTransition Field = "step_transition"
	FieldToolCall       Field = "tool_call"
)

// ToolSpec is the slice of a tool an oracle needs to know about.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Schema is the contract for one step: which actions are legal and which
// fields a decision may carry.
type Schema struct {
	StepID  string
	Actions []domain.Action

	// Response and Suggestions are offered only to conversational steps.
	Response    bool
	Suggestions bool

	// RouteTargets enumerates step_transition, ToolNames enumerates tool_call.tool_name.
	RouteTargets []string
	ToolNames    []string
	Tools        []ToolSpec

	// AnswerModel types the response as an object when set.
	AnswerModel map[string]any

	compileOnce sync.Once
	compiled    *sjsonschema.Schema
	compileErr  error
}

// Build derives the decision schema for step with the resolved tools.
// It is a pure function of its inputs.
func Build(step *domain.Step, tools []*tool.Tool) *Schema {
	s := &Schema{StepID: step.ID}

	if step.AutoFlow {
		s.Actions = []domain.Action{domain.ActionEnd}
	} else {
		s.Actions = []domain.Action{domain.ActionAsk, domain.ActionAnswer, domain.ActionEnd}
		s.Response = true
		s.Suggestions = step.QuickSuggestions
		s.AnswerModel = step.AnswerModel
	}

	if len(step.Routes) > 0 {
		s.Actions = append(s.Actions, domain.ActionMove)
		s.RouteTargets = step.RouteTargets()
	}

	if len(tools) > 0 {
		s.Actions = append(s.Actions, domain.ActionToolCall)
		for _, t := range tools {
			s.ToolNames = append(s.ToolNames, t.Name)
			s.Tools = append(s.Tools, ToolSpec{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters.JSONSchema(),
			})
		}
	}

	return s
}

// Allows reports whether a is a legal action for the step.
func (s *Schema) Allows(a domain.Action) bool {
	for _, legal := range s.Actions {
		if legal == a {
			return true
		}
	}
	return false
}

// Fields lists the fields a decision may carry, in canonical order.
func (s *Schema) Fields() []Field {
	fields := []Field{FieldReasoning, FieldAction}
	if s.Response {
		fields = append(fields, FieldResponse)
	}
	if s.Suggestions {
		fields = append(fields, FieldSuggestions)
	}
	if len(s.RouteTargets) > 0 {
		fields = append(fields, FieldStepTransition)
	}
	if len(s.ToolNames) > 0 {
		fields = append(fields, FieldToolCall)
	}
	return fields
}

// HasField reports whether f is part of the schema.
func (s *Schema) HasField(f Field) bool {
	for _, have := range s.Fields() {
		if have == f {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
