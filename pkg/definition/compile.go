package definition

import (
	"fmt"

	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/flow"
	"github.com/aretw0/stepwise/pkg/schema"
	"github.com/aretw0/stepwise/pkg/tool"
)

// ToolBuilder turns a declarative tool into a runnable one. Parameters are
// already parsed; builders decode spec.Options into their own configuration.
type ToolBuilder func(spec ToolSpec, params schema.Parameters) (*tool.Tool, error)

// ComponentFactory creates a fresh flow component for a flow.
type ComponentFactory func(flowID string) (flow.Component, error)

// Compiled is a definition resolved into runtime objects.
type Compiled struct {
	Name          string
	Description   string
	Start         string
	Persona       string
	SystemMessage string
	MaxErrors     int
	MaxIterations int
	Steps         []*domain.Step
	Tools         *tool.Set
	Flows         *flow.Manager
}

type compiler struct {
	builders   map[string]ToolBuilder
	components map[string]ComponentFactory
	tools      *tool.Set
	summarizer flow.Summarizer
}

// CompileOption configures Compile.
type CompileOption func(*compiler)

// WithToolBuilder registers the builder for a tool kind.
func WithToolBuilder(kind string, b ToolBuilder) CompileOption {
	return func(c *compiler) { c.builders[kind] = b }
}

// WithTools adds tools implemented in Go. Declared tools may not shadow them.
func WithTools(s *tool.Set) CompileOption {
	return func(c *compiler) {
		if s != nil {
			c.tools = s
		}
	}
}

// WithComponent registers a named flow component.
func WithComponent(name string, f ComponentFactory) CompileOption {
	return func(c *compiler) { c.components[name] = f }
}

// WithSummarizer replaces the summarizer used by memory components.
func WithSummarizer(s flow.Summarizer) CompileOption {
	return func(c *compiler) { c.summarizer = s }
}

// Compile validates a document and resolves it into steps, tools and flows.
// Cross-references between them are checked again by the engine.
func Compile(doc *Document, opts ...CompileOption) (*Compiled, error) {
	c := &compiler{
		builders:   map[string]ToolBuilder{},
		components: map[string]ComponentFactory{},
		tools:      tool.MustSet(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if len(doc.Steps) == 0 {
		return nil, &domain.DefinitionError{Err: domain.ErrInvalidAgentDefinition, ID: doc.Name, Reason: "no steps defined"}
	}

	out := &Compiled{
		Name:          doc.Name,
		Description:   doc.Description,
		Start:         doc.StartStep(),
		Persona:       doc.Persona,
		SystemMessage: doc.SystemMessage,
		MaxErrors:     doc.MaxErrors,
		MaxIterations: doc.MaxIterations,
	}
	if _, ok := doc.Step(out.Start); !ok {
		return nil, &domain.DefinitionError{Err: domain.ErrInvalidAgentDefinition, ID: doc.Name, Reason: fmt.Sprintf("start step %q is not defined", out.Start)}
	}

	for _, spec := range doc.Steps {
		step, err := compileStep(spec)
		if err != nil {
			return nil, err
		}
		out.Steps = append(out.Steps, step)
	}

	declared := make([]*tool.Tool, 0, len(doc.Tools))
	for _, spec := range doc.Tools {
		t, err := c.compileTool(spec)
		if err != nil {
			return nil, err
		}
		declared = append(declared, t)
	}
	set, err := tool.NewSet(declared...)
	if err != nil {
		return nil, err
	}
	if out.Tools, err = c.tools.Merge(set); err != nil {
		return nil, err
	}

	flows := make([]*flow.Flow, 0, len(doc.Flows))
	for _, spec := range doc.Flows {
		f, err := c.compileFlow(spec)
		if err != nil {
			return nil, err
		}
		flows = append(flows, f)
	}
	if len(flows) > 0 {
		if out.Flows, err = flow.NewManager(flows...); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func compileStep(spec StepSpec) (*domain.Step, error) {
	routes := make([]domain.Route, 0, len(spec.Routes))
	for _, r := range spec.Routes {
		routes = append(routes, domain.Route{Target: r.To, Condition: r.Condition})
	}
	return domain.NewStep(domain.Step{
		ID:               spec.ID,
		Description:      spec.Description,
		Routes:           routes,
		AvailableTools:   spec.Tools,
		AutoFlow:         spec.AutoFlow,
		QuickSuggestions: spec.QuickSuggestions,
		AnswerModel:      spec.AnswerModel,
	})
}

func (c *compiler) compileTool(spec ToolSpec) (*tool.Tool, error) {
	fail := func(reason string, args ...any) error {
		return &domain.DefinitionError{Err: domain.ErrInvalidAgentDefinition, ID: spec.Name, Reason: fmt.Sprintf(reason, args...)}
	}
	if spec.Name == "" {
		return nil, fail("tool is missing a name")
	}
	build, ok := c.builders[spec.Kind]
	if !ok {
		return nil, fail("no builder registered for tool kind %q", spec.Kind)
	}
	params, err := schema.ParseParameters(spec.Parameters)
	if err != nil {
		return nil, fail("%v", err)
	}
	t, err := build(spec, params)
	if err != nil {
		return nil, fail("%v", err)
	}
	return t, nil
}

func (c *compiler) compileFlow(spec FlowSpec) (*flow.Flow, error) {
	var components []flow.Component
	if spec.Memory != nil {
		var mopts []flow.MemoryOption
		if spec.Memory.Name != "" {
			mopts = append(mopts, flow.WithName(spec.Memory.Name))
		}
		switch {
		case c.summarizer != nil:
			mopts = append(mopts, flow.WithSummarizer(c.summarizer))
		case spec.Memory.Keep > 0:
			mopts = append(mopts, flow.WithSummarizer(flow.LastMessages(spec.Memory.Keep)))
		}
		components = append(components, flow.NewMemory(mopts...))
	}
	for _, name := range spec.Components {
		factory, ok := c.components[name]
		if !ok {
			return nil, &domain.DefinitionError{Err: domain.ErrInvalidFlowDefinition, ID: spec.ID, Reason: fmt.Sprintf("unknown component %q", name)}
		}
		comp, err := factory(spec.ID)
		if err != nil {
			return nil, &domain.DefinitionError{Err: domain.ErrInvalidFlowDefinition, ID: spec.ID, Reason: err.Error()}
		}
		components = append(components, comp)
	}
	return flow.New(flow.Config{
		ID:         spec.ID,
		Enters:     spec.Enters,
		Exits:      spec.Exits,
		Steps:      spec.Steps,
		Components: components,
	})
}
