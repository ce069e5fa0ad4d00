// Package tool defines named, schema-validated callables that an oracle can
// invoke while the session is in a step exposing them.
package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/schema"
)

// Func is the signature of a tool implementation.
// It receives a context and the resolved arguments, and returns a result or error.
type Func func(ctx context.Context, args map[string]any) (any, error)

// Tool is a named callable with declared parameters.
type Tool struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Parameters  schema.Parameters `json:"parameters"`
	Fn          Func              `json:"-"`
}

// New creates a tool. The name must be non-empty and fn must be set.
func New(name, description string, params schema.Parameters, fn Func) (*Tool, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: tool name is required", domain.ErrInvalidAgentDefinition)
	}
	if fn == nil {
		return nil, fmt.Errorf("%w: tool %q has no implementation", domain.ErrInvalidAgentDefinition, name)
	}
	if params == nil {
		params = schema.Parameters{}
	}
	return &Tool{Name: name, Description: description, Parameters: params, Fn: fn}, nil
}

// Must is like New but panics on error.
func Must(name, description string, params schema.Parameters, fn Func) *Tool {
	t, err := New(name, description, params, fn)
	if err != nil {
		panic(err)
	}
	return t
}

// Run validates args, invokes the tool and renders its result as a string.
// Argument failures return *ArgumentError without invoking the callable;
// callable failures (including panics) return *ExecutionError.
func (t *Tool) Run(ctx context.Context, args map[string]any) (result string, err error) {
	resolved, err := t.Parameters.Resolve(args)
	if err != nil {
		return "", &ArgumentError{Tool: t.Name, Fields: schema.Fields(err), Err: err}
	}

	defer func() {
		if r := recover(); r != nil {
			err = &ExecutionError{Tool: t.Name, Err: fmt.Errorf("panic: %v\n%s", r, debug.Stack())}
		}
	}()

	out, callErr := t.Fn(ctx, resolved)
	if callErr != nil {
		var argErr *ArgumentError
		if errors.As(callErr, &argErr) {
			return "", callErr
		}
		return "", &ExecutionError{Tool: t.Name, Err: callErr}
	}

	s, convErr := Stringify(out)
	if convErr != nil {
		return "", &ExecutionError{Tool: t.Name, Err: convErr}
	}
	return s, nil
}

// Stringify coerces a tool result to text: strings as-is, Stringers through
// String, byte slices as UTF-8 and everything else as JSON.
func Stringify(v any) (string, error) {
	switch r := v.(type) {
	case nil:
		return "", nil
	case string:
		return r, nil
	case []byte:
		return string(r), nil
	case fmt.Stringer:
		return r.String(), nil
	case error:
		return r.Error(), nil
	default:
		b, err := json.Marshal(r)
		if err != nil {
			return "", fmt.Errorf("result of type %T is not serializable: %w", v, err)
		}
		return string(b), nil
	}
}

// ArgumentError reports that the arguments did not match the tool parameters.
type ArgumentError struct {
	Tool   string
	Fields []string
	Err    error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%v: %s: %v", domain.ErrToolArgument, e.Tool, e.Err)
}

func (e *ArgumentError) Unwrap() []error { return []error{domain.ErrToolArgument, e.Err} }

// ExecutionError reports that the tool callable failed.
type ExecutionError struct {
	Tool string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%v: %s: %v", domain.ErrToolExecution, e.Tool, e.Err)
}

func (e *ExecutionError) Unwrap() []error { return []error{domain.ErrToolExecution, e.Err} }
