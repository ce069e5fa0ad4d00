package decision

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// JSONSchema renders the schema as a JSON Schema (Draft 2020-12) document.
func (s *Schema) JSONSchema() *jsonschema.Schema {
	props := jsonschema.NewProperties()
	required := []string{string(FieldReasoning), string(FieldAction)}

	props.Set(string(FieldReasoning), &jsonschema.Schema{
		Type:        "array",
		Description: "Step by step reasoning behind the chosen action.",
		Items:       &jsonschema.Schema{Type: "string"},
	})
	props.Set(string(FieldAction), &jsonschema.Schema{
		Type:        "string",
		Description: "The action to take.",
		Enum:        toAny(s.Actions),
	})

	if s.Response {
		props.Set(string(FieldResponse), s.responseSchema())
	}
	if s.Suggestions {
		props.Set(string(FieldSuggestions), &jsonschema.Schema{
			Type:        "array",
			Description: "Short replies the user could pick next.",
			Items:       &jsonschema.Schema{Type: "string"},
		})
	}
	if len(s.RouteTargets) > 0 {
		props.Set(string(FieldStepTransition), &jsonschema.Schema{
			Type:        "string",
			Description: "Target step, required when action is MOVE.",
			Enum:        toAny(s.RouteTargets),
		})
	}
	if len(s.ToolNames) > 0 {
		call := jsonschema.NewProperties()
		call.Set("tool_name", &jsonschema.Schema{Type: "string", Enum: toAny(s.ToolNames)})
		call.Set("tool_kwargs", &jsonschema.Schema{Type: "object", Description: "Arguments for the tool."})
		props.Set(string(FieldToolCall), &jsonschema.Schema{
			Type:                 "object",
			Description:          "Tool invocation, required when action is TOOL_CALL.",
			Properties:           call,
			Required:             []string{"tool_name"},
			AdditionalProperties: jsonschema.FalseSchema,
		})
	}

	return &jsonschema.Schema{
		Version:              jsonschema.Version,
		Title:                fmt.Sprintf("decision for step %s", s.StepID),
		Type:                 "object",
		Properties:           props,
		Required:             required,
		AdditionalProperties: jsonschema.FalseSchema,
	}
}

func (s *Schema) responseSchema() *jsonschema.Schema {
	if len(s.AnswerModel) > 0 {
		b, err := json.Marshal(s.AnswerModel)
		if err == nil {
			var model jsonschema.Schema
			if err := json.Unmarshal(b, &model); err == nil {
				if model.Description == "" {
					model.Description = "Structured answer for the user."
				}
				return &model
			}
		}
	}
	return &jsonschema.Schema{Type: "string", Description: "Message for the user."}
}

// Document returns the JSON Schema as a generic map, the form most oracle
// SDKs accept for structured output.
func (s *Schema) Document() (map[string]any, error) {
	b, err := json.Marshal(s.JSONSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal decision schema: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal decision schema: %w", err)
	}
	return doc, nil
}

// validator compiles the JSON Schema once per Schema value.
func (s *Schema) validator() (*sjsonschema.Schema, error) {
	s.compileOnce.Do(func() {
		doc, err := s.Document()
		if err != nil {
			s.compileErr = err
			return
		}
		// An absolute id keeps the working directory out of error messages.
		const url = "https://stepwise.local/decision.json"
		c := sjsonschema.NewCompiler()
		if err := c.AddResource(url, doc); err != nil {
			s.compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		s.compiled, s.compileErr = c.Compile(url)
	})
	return s.compiled, s.compileErr
}

func toAny[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
