package definition

import (
	"context"
	"fmt"
	"os"
	"reflect"

	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/ports"
	"github.com/aretw0/stepwise/pkg/schema"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ParameterSpec declares a tool parameter. It may be written as a bare type name.
type ParameterSpec = schema.ParameterSpec

// Parse decodes a YAML or JSON agent definition.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := decodeInto(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ParseStep decodes a single YAML or JSON step definition.
func ParseStep(data []byte) (*StepSpec, error) {
	var s StepSpec
	if err := decodeInto(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadFile reads and parses a single-file definition.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Load assembles a Document from a loader: the manifest first, then every
// step it lists. Steps may also be declared inline in the manifest.
func Load(ctx context.Context, l ports.DefinitionLoader) (*Document, error) {
	raw, err := l.Manifest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}
	doc, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}

	ids, err := l.ListSteps(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	for _, id := range ids {
		data, err := l.GetStep(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load step %s: %w", id, err)
		}
		step, err := ParseStep(data)
		if err != nil {
			return nil, fmt.Errorf("step %s: %w", id, err)
		}
		if step.ID == "" {
			step.ID = id
		}
		if err := doc.AddStep(*step); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func decodeInto(data []byte, out any) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidAgentDefinition, err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.ComposeDecodeHookFunc(routeShorthand, parameterShorthand),
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidAgentDefinition, err)
	}
	return nil
}

// routeShorthand lets `routes: [end]` stand for `routes: [{to: end}]`.
func routeShorthand(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(RouteSpec{}) {
		return data, nil
	}
	if s, ok := data.(string); ok {
		return RouteSpec{To: s}, nil
	}
	return data, nil
}

// parameterShorthand lets `tz: string` stand for `tz: {type: string}`.
func parameterShorthand(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(ParameterSpec{}) {
		return data, nil
	}
	if s, ok := data.(string); ok {
		return ParameterSpec{Type: s}, nil
	}
	return data, nil
}
