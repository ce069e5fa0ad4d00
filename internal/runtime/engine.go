// Package runtime implements the per-turn execution loop: it asks the oracle
// for a decision, validates it against the step's schema, dispatches it and
// retries within the session's error and iteration budgets.
package runtime

import (
	"fmt"
	"log/slog"

	"github.com/aretw0/stepwise/internal/logging"
	"github.com/aretw0/stepwise/pkg/decision"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/flow"
	"github.com/aretw0/stepwise/pkg/oracle"
	"github.com/aretw0/stepwise/pkg/tool"
)

const (
	DefaultMaxErrors     = 3
	DefaultMaxIterations = 10
)

// Engine holds everything sessions share: steps, tools, flows and the oracle.
// It is immutable after NewEngine and safe for concurrent use.
type Engine struct {
	steps   map[string]*domain.Step
	order   []string
	tools   *tool.Set
	flows   *flow.Manager
	oracle  oracle.Oracle
	schemas map[string]*decision.Schema
	bound   map[string][]*tool.Tool

	maxErrors     int
	maxIterations int
	persona       string
	systemMessage string

	logger *slog.Logger
	hooks  domain.LifecycleHooks
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(h domain.LifecycleHooks) Option {
	return func(e *Engine) { e.hooks = h }
}

// WithMaxErrors sets the error budget. Values below 1 keep the default.
func WithMaxErrors(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxErrors = n
		}
	}
}

// WithMaxIterations sets the iteration budget. Values below 1 keep the default.
func WithMaxIterations(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxIterations = n
		}
	}
}

// WithPersona sets the persona passed to the oracle.
func WithPersona(p string) Option {
	return func(e *Engine) { e.persona = p }
}

// WithSystemMessage sets the system message passed to the oracle.
func WithSystemMessage(m string) Option {
	return func(e *Engine) { e.systemMessage = m }
}

// NewEngine validates that steps, tools and flows resolve against each other
// and precomputes every step's decision schema.
func NewEngine(steps []*domain.Step, tools *tool.Set, flows *flow.Manager, o oracle.Oracle, opts ...Option) (*Engine, error) {
	if o == nil {
		return nil, &domain.DefinitionError{Err: domain.ErrInvalidAgentDefinition, Reason: "an oracle is required"}
	}
	if tools == nil {
		tools = tool.MustSet()
	}

	e := &Engine{
		steps:         make(map[string]*domain.Step, len(steps)),
		tools:         tools,
		flows:         flows,
		oracle:        o,
		schemas:       make(map[string]*decision.Schema, len(steps)),
		bound:         make(map[string][]*tool.Tool, len(steps)),
		maxErrors:     DefaultMaxErrors,
		maxIterations: DefaultMaxIterations,
		logger:        logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, s := range steps {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := e.steps[s.ID]; dup {
			return nil, &domain.DefinitionError{Err: domain.ErrInvalidAgentDefinition, ID: s.ID, Reason: "duplicate step id"}
		}
		e.steps[s.ID] = s
		e.order = append(e.order, s.ID)
	}

	for _, id := range e.order {
		s := e.steps[id]
		for _, r := range s.Routes {
			if _, ok := e.steps[r.Target]; !ok {
				return nil, &domain.DefinitionError{Err: domain.ErrInvalidAgentDefinition, ID: s.ID, Reason: fmt.Sprintf("route target %q does not resolve", r.Target)}
			}
		}
		bound, err := tools.Resolve(s.AvailableTools)
		if err != nil {
			return nil, &domain.DefinitionError{Err: domain.ErrInvalidAgentDefinition, ID: s.ID, Reason: err.Error()}
		}
		e.bound[id] = bound
		e.schemas[id] = decision.Build(s, bound)
	}

	if flows != nil {
		if err := flows.Validate(func(id string) bool { _, ok := e.steps[id]; return ok }); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Step looks up a step by ID.
func (e *Engine) Step(id string) (*domain.Step, bool) {
	s, ok := e.steps[id]
	return s, ok
}

// Steps returns the steps in declaration order.
func (e *Engine) Steps() []*domain.Step {
	out := make([]*domain.Step, len(e.order))
	for i, id := range e.order {
		out[i] = e.steps[id]
	}
	return out
}

// Schema returns the precomputed decision schema of a step.
func (e *Engine) Schema(stepID string) (*decision.Schema, bool) {
	s, ok := e.schemas[stepID]
	return s, ok
}

// Tools returns the tool registry.
func (e *Engine) Tools() *tool.Set { return e.tools }

// Flows returns the flow manager, which may be nil.
func (e *Engine) Flows() *flow.Manager { return e.flows }

// Limits returns the error and iteration budgets.
func (e *Engine) Limits() (maxErrors, maxIterations int) {
	return e.maxErrors, e.maxIterations
}

// Info describes the engine's steps, flows, tools and limits. Name,
// description and start step belong to the caller and are left empty.
func (e *Engine) Info() domain.AgentInfo {
	info := domain.AgentInfo{
		Steps:  e.Steps(),
		Limits: domain.AgentLimits{MaxErrors: e.maxErrors, MaxIterations: e.maxIterations},
	}
	for _, t := range e.tools.List() {
		info.Tools = append(info.Tools, domain.ToolInfo{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters.JSONSchema(),
		})
	}
	for _, f := range e.flows.Flows() {
		fi := domain.FlowInfo{ID: f.ID(), Enters: f.Enters(), Exits: f.Exits(), Steps: f.Steps()}
		for _, c := range f.Components() {
			fi.Components = append(fi.Components, c.Name())
		}
		info.Flows = append(info.Flows, fi)
	}
	return info
}
