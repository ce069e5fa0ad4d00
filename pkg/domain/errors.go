package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidStepDefinition is returned when a Step violates its construction invariants.
	ErrInvalidStepDefinition = errors.New("invalid step definition")

	// ErrInvalidFlowDefinition is returned when a Flow violates its construction invariants.
	ErrInvalidFlowDefinition = errors.New("invalid flow definition")

	// ErrInvalidAgentDefinition is returned when steps, tools and flows do not resolve against each other.
	ErrInvalidAgentDefinition = errors.New("invalid agent definition")

	// ErrInvalidDecision is returned when the oracle output does not satisfy the decision schema
	// or references a route or tool that is not available on the current step.
	ErrInvalidDecision = errors.New("invalid decision")

	// ErrToolArgument is returned when tool arguments fail parameter validation.
	ErrToolArgument = errors.New("tool argument error")

	// ErrToolExecution is returned when a tool callable fails.
	ErrToolExecution = errors.New("tool execution error")

	// ErrToolNotFound is returned when a tool name does not resolve in the registry.
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidEntryPoint is returned when a flow is entered through a step that is not one of its enters.
	ErrInvalidEntryPoint = errors.New("invalid flow entry point")

	// ErrInvalidExitPoint is returned when a flow is exited through a step that is not one of its exits.
	ErrInvalidExitPoint = errors.New("invalid flow exit point")

	// ErrMaxErrorsExceeded is returned when a session reaches its error budget.
	ErrMaxErrorsExceeded = errors.New("max errors exceeded")

	// ErrMaxIterationsExceeded is returned when a session reaches its iteration budget.
	ErrMaxIterationsExceeded = errors.New("max iterations exceeded")

	// ErrSessionNotFound is returned when a session ID cannot be found in the store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrStepNotFound is returned when a step ID does not resolve.
	ErrStepNotFound = errors.New("step not found")
)

// DefinitionError describes why a Step, Flow or Agent definition was rejected.
type DefinitionError struct {
	Err    error // ErrInvalidStepDefinition, ErrInvalidFlowDefinition or ErrInvalidAgentDefinition
	ID     string
	Reason string
}

func (e *DefinitionError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Reason)
	}
	return fmt.Sprintf("%v %q: %s", e.Err, e.ID, e.Reason)
}

func (e *DefinitionError) Unwrap() error { return e.Err }

// DecisionError carries the reason an oracle decision was rejected.
type DecisionError struct {
	Reason string
	Cause  error
}

// NewDecisionError builds an ErrInvalidDecision with a formatted reason.
func NewDecisionError(format string, args ...any) *DecisionError {
	return &DecisionError{Reason: fmt.Sprintf(format, args...)}
}

func (e *DecisionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%v: %s: %v", ErrInvalidDecision, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%v: %s", ErrInvalidDecision, e.Reason)
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is.
func (e *DecisionError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrInvalidDecision, e.Cause}
	}
	return []error{ErrInvalidDecision}
}

// LimitError is returned when a session hits one of its hard stops.
// Err is either ErrMaxErrorsExceeded or ErrMaxIterationsExceeded.
type LimitError struct {
	Err        error
	Errors     int
	Iterations int
	Last       error // last recovered error, if any
}

func (e *LimitError) Error() string {
	msg := fmt.Sprintf("%v (errors=%d, iterations=%d)", e.Err, e.Errors, e.Iterations)
	if e.Last != nil {
		msg += ": last error: " + e.Last.Error()
	}
	return msg
}

func (e *LimitError) Unwrap() error { return e.Err }
