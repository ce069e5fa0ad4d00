package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/stepwise/pkg/domain"
)

// LogHooks writes one structured line per lifecycle event.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnDecision: func(ctx context.Context, e *domain.DecisionEvent) {
			logger.DebugContext(ctx, "decision",
				"session_id", e.SessionID,
				"step_id", e.StepID,
				"action", e.Action,
				"latency", e.Latency,
				"rejected", e.Rejected,
			)
		},
		OnStepEnter: func(ctx context.Context, e *domain.StepEvent) {
			logger.InfoContext(ctx, "step_enter", "session_id", e.SessionID, "step_id", e.StepID)
		},
		OnStepLeave: func(ctx context.Context, e *domain.StepEvent) {
			logger.InfoContext(ctx, "step_leave", "session_id", e.SessionID, "step_id", e.StepID)
		},
		OnToolCall: func(ctx context.Context, e *domain.ToolEvent) {
			logger.InfoContext(ctx, "tool_call", "session_id", e.SessionID, "step_id", e.StepID, "tool", e.ToolName)
		},
		OnToolReturn: func(ctx context.Context, e *domain.ToolEvent) {
			logger.InfoContext(ctx, "tool_return",
				"session_id", e.SessionID,
				"tool", e.ToolName,
				"is_error", e.IsError,
				"duration", e.Duration,
			)
		},
		OnFlowEnter: func(ctx context.Context, e *domain.FlowEvent) {
			logger.InfoContext(ctx, "flow_enter", "session_id", e.SessionID, "flow_id", e.FlowID, "step_id", e.StepID)
		},
		OnFlowExit: func(ctx context.Context, e *domain.FlowEvent) {
			logger.InfoContext(ctx, "flow_exit", "session_id", e.SessionID, "flow_id", e.FlowID, "step_id", e.StepID)
		},
		OnError: func(ctx context.Context, e *domain.ErrorEvent) {
			level := slog.LevelWarn
			if e.Fatal {
				level = slog.LevelError
			}
			logger.Log(ctx, level, "engine_error", "session_id", e.SessionID, "step_id", e.StepID, "err", e.Err)
		},
	}
}
