package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// Type defines the contract for argument validation.
type Type interface {
	// Name returns the canonical name of the type (e.g., "string", "[int]").
	Name() string
	// Validate checks if a value conforms to this type.
	Validate(value any) error
}

// StringType validates string values.
type StringType struct{}

func (t *StringType) Name() string { return "string" }

func (t *StringType) Validate(value any) error {
	if _, ok := value.(string); !ok {
		return fmt.Errorf("expected string, got %T", value)
	}
	return nil
}

// IntType validates integer values.
type IntType struct{}

func (t *IntType) Name() string { return "int" }

func (t *IntType) Validate(value any) error {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return nil
	case float64:
		// JSON numbers decode as float64.
		if v == float64(int64(v)) {
			return nil
		}
		return fmt.Errorf("expected int, got float (not a whole number)")
	default:
		return fmt.Errorf("expected int, got %T", value)
	}
}

// FloatType validates numeric values.
type FloatType struct{}

func (t *FloatType) Name() string { return "float" }

func (t *FloatType) Validate(value any) error {
	switch value.(type) {
	case float32, float64, int, int8, int16, int32, int64:
		return nil
	default:
		return fmt.Errorf("expected float, got %T", value)
	}
}

// BoolType validates boolean values.
type BoolType struct{}

func (t *BoolType) Name() string { return "bool" }

func (t *BoolType) Validate(value any) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("expected bool, got %T", value)
	}
	return nil
}

// ObjectType validates JSON objects.
type ObjectType struct{}

func (t *ObjectType) Name() string { return "object" }

func (t *ObjectType) Validate(value any) error {
	if value == nil {
		return fmt.Errorf("expected object, got nil")
	}
	if reflect.ValueOf(value).Kind() != reflect.Map {
		return fmt.Errorf("expected object, got %T", value)
	}
	return nil
}

// AnyType accepts every value, including nil.
type AnyType struct{}

func (t *AnyType) Name() string { return "any" }

func (t *AnyType) Validate(any) error { return nil }

// SliceType validates slices of a specific element type.
type SliceType struct {
	elemType Type
}

func (t *SliceType) Name() string {
	return fmt.Sprintf("[%s]", t.elemType.Name())
}

// Elem returns the element type.
func (t *SliceType) Elem() Type { return t.elemType }

func (t *SliceType) Validate(value any) error {
	if value == nil {
		return fmt.Errorf("expected slice, got nil")
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return fmt.Errorf("expected slice, got %T", value)
	}
	for i := 0; i < rv.Len(); i++ {
		if err := t.elemType.Validate(rv.Index(i).Interface()); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

// String creates a string type validator.
func String() Type { return &StringType{} }

// Int creates an integer type validator.
func Int() Type { return &IntType{} }

// Float creates a float type validator.
func Float() Type { return &FloatType{} }

// Bool creates a boolean type validator.
func Bool() Type { return &BoolType{} }

// Object creates an object type validator.
func Object() Type { return &ObjectType{} }

// Any creates a validator that accepts anything.
func Any() Type { return &AnyType{} }

// Slice creates a slice type validator for elements of the given type.
func Slice(elemType Type) Type {
	return &SliceType{elemType: elemType}
}

// ParseType converts a type name to a Type.
// Accepts "string", "int", "float", "bool", "object", "any", their common
// aliases ("str", "integer", "number", "boolean", "dict") and lists written
// either as "[T]" or "list[T]".
func ParseType(typeStr string) (Type, error) {
	s := strings.TrimSpace(typeStr)

	if len(s) > 2 && s[0] == '[' && s[len(s)-1] == ']' {
		return parseSlice(s[1 : len(s)-1])
	}
	if strings.HasPrefix(s, "list[") && strings.HasSuffix(s, "]") {
		return parseSlice(s[len("list[") : len(s)-1])
	}

	switch s {
	case "string", "str":
		return String(), nil
	case "int", "integer":
		return Int(), nil
	case "float", "number":
		return Float(), nil
	case "bool", "boolean":
		return Bool(), nil
	case "object", "dict", "map":
		return Object(), nil
	case "any", "":
		return Any(), nil
	case "list", "array":
		return Slice(Any()), nil
	default:
		return nil, fmt.Errorf("unsupported type: %s", typeStr)
	}
}

func parseSlice(elem string) (Type, error) {
	elemType, err := ParseType(elem)
	if err != nil {
		return nil, err
	}
	return Slice(elemType), nil
}

// JSONSchemaOf describes t as a JSON Schema fragment. AnyType is unconstrained.
func JSONSchemaOf(t Type) map[string]any {
	switch v := t.(type) {
	case *StringType:
		return map[string]any{"type": "string"}
	case *IntType:
		return map[string]any{"type": "integer"}
	case *FloatType:
		return map[string]any{"type": "number"}
	case *BoolType:
		return map[string]any{"type": "boolean"}
	case *ObjectType:
		return map[string]any{"type": "object"}
	case *SliceType:
		return map[string]any{"type": "array", "items": JSONSchemaOf(v.elemType)}
	default:
		return map[string]any{}
	}
}
