package runtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aretw0/stepwise/pkg/decision"
	"github.com/aretw0/stepwise/pkg/domain"
)

func (e *Engine) emitDecision(ctx context.Context, work *domain.Snapshot, stepID string, d *domain.Decision, raw json.RawMessage, latency time.Duration, rejected bool) {
	if e.hooks.OnDecision == nil {
		return
	}
	action := decision.PeekAction(raw)
	if d != nil {
		action = d.Action
	}
	e.hooks.OnDecision(ctx, &domain.DecisionEvent{
		EventBase: domain.NewEventBase(domain.EventDecision, work.SessionID),
		StepID:    stepID,
		Action:    action,
		Latency:   latency,
		Rejected:  rejected,
	})
}

func (e *Engine) emitStep(ctx context.Context, work *domain.Snapshot, stepID string, enter bool) {
	hook, typ := e.hooks.OnStepLeave, domain.EventStepLeave
	if enter {
		hook, typ = e.hooks.OnStepEnter, domain.EventStepEnter
	}
	if hook == nil {
		return
	}
	hook(ctx, &domain.StepEvent{EventBase: domain.NewEventBase(typ, work.SessionID), StepID: stepID})
}

func (e *Engine) emitFlow(ctx context.Context, work *domain.Snapshot, flowID, stepID string, enter bool) {
	hook, typ := e.hooks.OnFlowExit, domain.EventFlowExit
	if enter {
		hook, typ = e.hooks.OnFlowEnter, domain.EventFlowEnter
	}
	if hook == nil {
		return
	}
	hook(ctx, &domain.FlowEvent{EventBase: domain.NewEventBase(typ, work.SessionID), FlowID: flowID, StepID: stepID})
}

func (e *Engine) emitError(ctx context.Context, work *domain.Snapshot, err error, fatal bool) {
	if e.hooks.OnError == nil {
		return
	}
	e.hooks.OnError(ctx, &domain.ErrorEvent{
		EventBase: domain.NewEventBase(domain.EventError, work.SessionID),
		StepID:    work.CurrentStepID,
		Err:       err,
		Fatal:     fatal,
	})
}
