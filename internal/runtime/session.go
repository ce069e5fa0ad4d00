package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/flow"
	"github.com/aretw0/stepwise/pkg/oracle"
)

// Result is the outcome of a successful Next call.
type Result = domain.TurnResult

// Session is the mutable state of one conversation. Only one Next runs at a time.
type Session struct {
	id     string
	mu     sync.Mutex
	engine *Engine
	snap   *domain.Snapshot
}

// NewSession starts a conversation at startStep.
func (e *Engine) NewSession(id, startStep string) (*Session, error) {
	if _, ok := e.steps[startStep]; !ok {
		return nil, fmt.Errorf("%w: start step %q", domain.ErrStepNotFound, startStep)
	}
	snap := domain.NewSnapshot(id, startStep)
	return &Session{id: snap.SessionID, engine: e, snap: snap}, nil
}

// Resume rehydrates a session from a snapshot.
func (e *Engine) Resume(snap *domain.Snapshot) (*Session, error) {
	if snap == nil {
		return nil, domain.ErrSessionNotFound
	}
	if _, ok := e.steps[snap.CurrentStepID]; !ok {
		return nil, fmt.Errorf("%w: current step %q", domain.ErrStepNotFound, snap.CurrentStepID)
	}
	for _, fc := range snap.Flows {
		if _, ok := e.flows.Flow(fc.FlowID); !ok {
			return nil, fmt.Errorf("snapshot references unknown flow %q", fc.FlowID)
		}
	}
	c := snap.Clone()
	if c.History == nil {
		c.History = domain.History{}
	}
	return &Session{id: c.SessionID, engine: e, snap: c}, nil
}

// Snapshot returns a copy of the committed state.
func (s *Session) Snapshot() *domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone()
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CurrentStep returns the step the session is in.
func (s *Session) CurrentStep() *domain.Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.steps[s.snap.CurrentStepID]
}

// History returns a copy of the committed history.
func (s *Session) History() domain.History {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.History.Clone()
}

// Counters returns the committed error and iteration counts.
func (s *Session) Counters() (errorCount, iterationCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.ErrorCount, s.snap.IterationCount
}

// Close abandons every active flow, running component cleanup hooks.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine.flows == nil || len(s.snap.Flows) == 0 {
		return nil
	}
	work := s.snap.Clone()
	fst := &flow.State{Flows: work.Flows, History: work.History}
	err := s.engine.flows.CleanupAll(ctx, fst)
	work.Flows, work.History = fst.Flows, fst.History
	s.commit(work)
	return err
}

// Next runs one turn. A non-empty input is appended as a user message first.
//
// Decision, tool and flow errors are recorded in history and retried without
// new input until the error or iteration budget runs out, which returns a
// *domain.LimitError. Every attempt counts as an iteration; user input resets
// the iteration count and a successful dispatch resets the error count.
//
// All mutations happen on a copy that is committed only on success. Limit
// errors, cancellation and oracle failures leave the session at its last
// committed state, so a later call with fresh input starts with full budgets.
func (s *Session) Next(ctx context.Context, input string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.engine
	work := s.snap.Clone()
	log := e.logger.With("session_id", work.SessionID)

	if input != "" {
		work.IterationCount = 0
	}
	if err := e.checkLimits(work, nil); err != nil {
		log.Error("session limit reached", "err", err)
		return nil, err
	}
	if input != "" {
		work.History = work.History.Append(domain.Message{Role: domain.RoleUser, Content: input})
	}
	if err := e.ensureFlow(ctx, work); err != nil {
		return nil, err
	}

	var lastErr error
	for {
		if err := e.checkLimits(work, lastErr); err != nil {
			e.emitError(ctx, work, err, true)
			log.Error("session limit reached", "step_id", work.CurrentStepID, "err", err)
			return nil, err
		}
		work.IterationCount++

		res, err := e.attempt(ctx, work)
		if err == nil {
			work.ErrorCount = 0
			s.commit(work)
			return res, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !recoverable(err) {
			log.Error("turn aborted", "step_id", work.CurrentStepID, "err", err)
			return nil, err
		}

		lastErr = err
		work.ErrorCount++
		work.History = work.History.Append(domain.Message{Role: domain.RoleError, Content: err.Error()})
		e.emitError(ctx, work, err, false)
		log.Warn("recovered error", "step_id", work.CurrentStepID, "errors", work.ErrorCount, "iterations", work.IterationCount, "err", err)
	}
}

func (s *Session) commit(work *domain.Snapshot) {
	work.UpdatedAt = time.Now()
	s.snap = work
}

func (e *Engine) checkLimits(work *domain.Snapshot, last error) error {
	if work.ErrorCount >= e.maxErrors {
		return &domain.LimitError{Err: domain.ErrMaxErrorsExceeded, Errors: work.ErrorCount, Iterations: work.IterationCount, Last: last}
	}
	if work.IterationCount >= e.maxIterations {
		return &domain.LimitError{Err: domain.ErrMaxIterationsExceeded, Errors: work.ErrorCount, Iterations: work.IterationCount, Last: last}
	}
	return nil
}

func recoverable(err error) bool {
	return errors.Is(err, domain.ErrInvalidDecision) ||
		errors.Is(err, domain.ErrToolArgument) ||
		errors.Is(err, domain.ErrToolExecution) ||
		errors.Is(err, domain.ErrToolNotFound)
}

// attempt asks the oracle once and dispatches a valid decision on work.
func (e *Engine) attempt(ctx context.Context, work *domain.Snapshot) (*Result, error) {
	step := e.steps[work.CurrentStepID]
	schema := e.schemas[step.ID]

	req := &oracle.Request{
		SessionID:     work.SessionID,
		Step:          step,
		Tools:         schema.Tools,
		History:       work.History.Clone(),
		Persona:       e.persona,
		SystemMessage: e.systemMessage,
		Schema:        schema,
	}

	start := time.Now()
	raw, err := e.oracle.Decide(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("oracle: %w", err)
	}
	d, err := schema.Parse(raw)
	e.emitDecision(ctx, work, step.ID, d, raw, time.Since(start), err != nil)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("decision received", "session_id", work.SessionID, "step_id", step.ID, "action", d.Action)

	work.History = work.History.Append(domain.StepIdentifier{StepID: step.ID})
	res := &Result{Decision: d, FromStep: step.ID, StepID: step.ID}

	switch d.Action {
	case domain.ActionAsk, domain.ActionAnswer, domain.ActionEnd:
		if d.HasResponse() {
			work.History = work.History.Append(domain.Message{Role: domain.RoleAgent, Content: d.ResponseText()})
		}
		return res, nil

	case domain.ActionToolCall:
		out, err := e.callTool(ctx, work, step.ID, d.ToolCall)
		if err != nil {
			return nil, err
		}
		work.History = work.History.Append(domain.Message{Role: domain.RoleTool, Content: out})
		res.ToolResult = out
		return res, nil

	case domain.ActionMove:
		target, ok := e.steps[d.StepTransition]
		if !ok {
			return nil, domain.NewDecisionError("step_transition %q does not resolve to a step", d.StepTransition)
		}
		if err := e.crossFlows(ctx, work, step.ID, target.ID); err != nil {
			return nil, &domain.DecisionError{Reason: fmt.Sprintf("move to %q rejected", target.ID), Cause: err}
		}
		e.emitStep(ctx, work, step.ID, false)
		work.CurrentStepID = target.ID
		e.emitStep(ctx, work, target.ID, true)
		res.StepID = target.ID
		return res, nil

	default:
		return nil, domain.NewDecisionError("unknown action %q", d.Action)
	}
}

func (e *Engine) callTool(ctx context.Context, work *domain.Snapshot, stepID string, call *domain.ToolCall) (string, error) {
	ev := &domain.ToolEvent{
		EventBase: domain.NewEventBase(domain.EventToolCall, work.SessionID),
		StepID:    stepID,
		ToolName:  call.ToolName,
		Input:     call.ToolKwargs,
	}
	if e.hooks.OnToolCall != nil {
		e.hooks.OnToolCall(ctx, ev)
	}

	start := time.Now()
	out, err := e.tools.Run(ctx, call.ToolName, call.ToolKwargs)

	if e.hooks.OnToolReturn != nil {
		ret := *ev
		ret.EventBase = domain.NewEventBase(domain.EventToolReturn, work.SessionID)
		ret.Output = out
		ret.IsError = err != nil
		ret.Duration = time.Since(start)
		if err != nil {
			ret.Output = err.Error()
		}
		e.hooks.OnToolReturn(ctx, &ret)
	}
	return out, err
}

// ensureFlow enters the flow owning the current step when the session sits on
// one of its entry points without an active context, e.g. on the first turn.
func (e *Engine) ensureFlow(ctx context.Context, work *domain.Snapshot) error {
	if e.flows == nil {
		return nil
	}
	fst := &flow.State{Flows: work.Flows, History: work.History}
	f := e.flows.FlowFor(fst, work.CurrentStepID)
	if f == nil || fst.Active(f.ID()) != nil || !f.CanEnter(work.CurrentStepID) {
		return nil
	}
	if _, err := f.Enter(ctx, fst, work.CurrentStepID, work.History, nil); err != nil {
		return err
	}
	work.Flows, work.History = fst.Flows, fst.History
	e.emitFlow(ctx, work, f.ID(), work.CurrentStepID, true)
	return nil
}

// crossFlows runs the flow protocol for a move between two steps.
func (e *Engine) crossFlows(ctx context.Context, work *domain.Snapshot, fromStep, toStep string) error {
	if e.flows == nil {
		return nil
	}
	fst := &flow.State{Flows: work.Flows, History: work.History}

	from := e.flows.FlowFor(fst, fromStep)
	var fc *domain.FlowContext
	if from != nil {
		if fc = fst.Active(from.ID()); fc == nil {
			from = nil
		}
	}
	to := e.flows.FlowFor(fst, toStep)

	switch {
	case from == nil && to == nil:
		return nil
	case from != nil && to == from:
		return nil
	case from == nil && to != nil && fst.Active(to.ID()) != nil:
		return nil
	}

	if _, err := e.flows.TransitionBetweenFlows(ctx, fst, from, to, fromStep, toStep, fc); err != nil {
		return err
	}
	work.Flows, work.History = fst.Flows, fst.History
	if from != nil {
		e.emitFlow(ctx, work, from.ID(), fromStep, false)
	}
	if to != nil {
		e.emitFlow(ctx, work, to.ID(), toStep, true)
	}
	return nil
}
