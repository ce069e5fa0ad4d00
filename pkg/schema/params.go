package schema

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Parameter describes one argument of a tool.
type Parameter struct {
	Type        Type
	Description string
	// Default is applied when the argument is omitted. A parameter with a
	// default is optional; one without is required.
	Default  any
	Optional bool
}

// Required reports whether callers must supply the parameter.
func (p Parameter) Required() bool {
	return p.Default == nil && !p.Optional
}

// Parameters maps argument names to their declarations.
type Parameters map[string]Parameter

// Resolve validates args against the declared parameters and returns a new map
// with defaults applied. Unknown arguments, missing required ones and type
// mismatches are reported together as an AggregateError.
func (ps Parameters) Resolve(args map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(ps))
	var errs []error

	for _, name := range sortedKeys(ps) {
		p := ps[name]
		value, ok := args[name]
		if !ok {
			switch {
			case p.Default != nil:
				out[name] = p.Default
			case p.Required():
				errs = append(errs, &ValidationError{Key: name, Reason: "required"})
			}
			continue
		}
		if p.Type != nil {
			if err := p.Type.Validate(value); err != nil {
				errs = append(errs, &ValidationError{Key: name, Reason: err.Error(), Value: value})
				continue
			}
		}
		out[name] = value
	}
	errs = append(errs, unknownFields(ps, args)...)

	if len(errs) > 0 {
		return nil, &AggregateError{Errors: errs}
	}
	return out, nil
}

// JSONSchema renders the parameters as a JSON Schema object.
func (ps Parameters) JSONSchema() map[string]any {
	props := make(map[string]any, len(ps))
	required := []string{}
	for _, name := range sortedKeys(ps) {
		p := ps[name]
		prop := map[string]any{}
		if p.Type != nil {
			prop = JSONSchemaOf(p.Type)
		}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		props[name] = prop
		if p.Required() {
			required = append(required, name)
		}
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

// ParameterSpec is the declarative form of a Parameter, as found in YAML or JSON definitions.
type ParameterSpec struct {
	Type        string `json:"type" yaml:"type" mapstructure:"type"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	Default     any    `json:"default,omitempty" yaml:"default,omitempty" mapstructure:"default"`
	Optional    bool   `json:"optional,omitempty" yaml:"optional,omitempty" mapstructure:"optional"`
}

// ParseParameters converts declarative specs into Parameters.
func ParseParameters(specs map[string]ParameterSpec) (Parameters, error) {
	out := make(Parameters, len(specs))
	for name, spec := range specs {
		t, err := ParseType(spec.Type)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}
		if spec.Default != nil {
			if err := t.Validate(spec.Default); err != nil {
				return nil, fmt.Errorf("parameter %s: default: %w", name, err)
			}
		}
		out[name] = Parameter{Type: t, Description: spec.Description, Default: spec.Default, Optional: spec.Optional}
	}
	return out, nil
}

// MarshalJSON serializes the parameters in their declarative form.
func (ps Parameters) MarshalJSON() ([]byte, error) {
	specs := make(map[string]ParameterSpec, len(ps))
	for name, p := range ps {
		typeName := "any"
		if p.Type != nil {
			typeName = p.Type.Name()
		}
		specs[name] = ParameterSpec{Type: typeName, Description: p.Description, Default: p.Default, Optional: p.Optional}
	}
	return json.Marshal(specs)
}

// UnmarshalJSON deserializes the declarative form.
func (ps *Parameters) UnmarshalJSON(data []byte) error {
	var specs map[string]ParameterSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return err
	}
	parsed, err := ParseParameters(specs)
	if err != nil {
		return err
	}
	*ps = parsed
	return nil
}

func unknownFields[T any](declared map[string]T, data map[string]any) []error {
	var errs []error
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := declared[k]; !ok {
			errs = append(errs, &ValidationError{Key: k, Reason: "unknown argument", Value: data[k]})
		}
	}
	return errs
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
