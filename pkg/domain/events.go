package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventDecision   EventType = "decision"
	EventStepEnter  EventType = "step_enter"
	EventStepLeave  EventType = "step_leave"
	EventToolCall   EventType = "tool_call"
	EventToolReturn EventType = "tool_return"
	EventFlowEnter  EventType = "flow_enter"
	EventFlowExit   EventType = "flow_exit"
	EventError      EventType = "error"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// NewEventBase stamps an event with the current time.
func NewEventBase(t EventType, sessionID string) EventBase {
	return EventBase{Timestamp: time.Now(), Type: t, SessionID: sessionID}
}

// DecisionEvent is emitted for every decision the oracle returns, valid or not.
type DecisionEvent struct {
	EventBase
	StepID   string        `json:"step_id"`
	Action   Action        `json:"action,omitempty"`
	Latency  time.Duration `json:"latency"`
	Rejected bool          `json:"rejected,omitempty"`
}

// StepEvent represents entry or exit from a step.
type StepEvent struct {
	EventBase
	StepID string `json:"step_id"`
}

// ToolEvent represents a tool execution.
type ToolEvent struct {
	EventBase
	StepID   string        `json:"step_id"`
	ToolName string        `json:"tool_name"`
	Input    any           `json:"input,omitempty"`
	Output   any           `json:"output,omitempty"`
	IsError  bool          `json:"is_error,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// FlowEvent represents entering or exiting a flow.
type FlowEvent struct {
	EventBase
	FlowID string `json:"flow_id"`
	StepID string `json:"step_id"`
}

// ErrorEvent is emitted for every recovered error and for hard stops.
type ErrorEvent struct {
	EventBase
	StepID string `json:"step_id"`
	Err    error  `json:"-"`
	Fatal  bool   `json:"fatal,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnDecision   func(context.Context, *DecisionEvent)
	OnStepEnter  func(context.Context, *StepEvent)
	OnStepLeave  func(context.Context, *StepEvent)
	OnToolCall   func(context.Context, *ToolEvent)
	OnToolReturn func(context.Context, *ToolEvent)
	OnFlowEnter  func(context.Context, *FlowEvent)
	OnFlowExit   func(context.Context, *FlowEvent)
	OnError      func(context.Context, *ErrorEvent)
}

// ComposeHooks fans every callback out to all non-nil hooks, in order.
func ComposeHooks(hooks ...LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnDecision: func(ctx context.Context, e *DecisionEvent) {
			for _, h := range hooks {
				if h.OnDecision != nil {
					h.OnDecision(ctx, e)
				}
			}
		},
		OnStepEnter: func(ctx context.Context, e *StepEvent) {
			for _, h := range hooks {
				if h.OnStepEnter != nil {
					h.OnStepEnter(ctx, e)
				}
			}
		},
		OnStepLeave: func(ctx context.Context, e *StepEvent) {
			for _, h := range hooks {
				if h.OnStepLeave != nil {
					h.OnStepLeave(ctx, e)
				}
			}
		},
		OnToolCall: func(ctx context.Context, e *ToolEvent) {
			for _, h := range hooks {
				if h.OnToolCall != nil {
					h.OnToolCall(ctx, e)
				}
			}
		},
		OnToolReturn: func(ctx context.Context, e *ToolEvent) {
			for _, h := range hooks {
				if h.OnToolReturn != nil {
					h.OnToolReturn(ctx, e)
				}
			}
		},
		OnFlowEnter: func(ctx context.Context, e *FlowEvent) {
			for _, h := range hooks {
				if h.OnFlowEnter != nil {
					h.OnFlowEnter(ctx, e)
				}
			}
		},
		OnFlowExit: func(ctx context.Context, e *FlowEvent) {
			for _, h := range hooks {
				if h.OnFlowExit != nil {
					h.OnFlowExit(ctx, e)
				}
			}
		},
		OnError: func(ctx context.Context, e *ErrorEvent) {
			for _, h := range hooks {
				if h.OnError != nil {
					h.OnError(ctx, e)
				}
			}
		},
	}
}
