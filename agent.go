package stepwise

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/stepwise/internal/logging"
	"github.com/aretw0/stepwise/internal/runtime"
	loamAdapter "github.com/aretw0/stepwise/pkg/adapters/loam"
	luaAdapter "github.com/aretw0/stepwise/pkg/adapters/lua"
	"github.com/aretw0/stepwise/pkg/adapters/process"
	"github.com/aretw0/stepwise/pkg/definition"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/flow"
	"github.com/aretw0/stepwise/pkg/oracle"
	"github.com/aretw0/stepwise/pkg/ports"
	"github.com/aretw0/stepwise/pkg/tool"
	"github.com/google/uuid"
)

// Re-exported so that most callers only import this package.
type (
	Session  = runtime.Session
	Result   = domain.TurnResult
	Snapshot = domain.Snapshot
)

// Agent is a compiled, immutable agent. It is safe for concurrent use; every
// session it creates is independent.
type Agent struct {
	engine      *runtime.Engine
	name        string
	description string
	start       string
	loader      ports.DefinitionLoader
	logger      *slog.Logger
}

var _ ports.StatelessAgent = (*Agent)(nil)

type options struct {
	name        string
	description string
	start       string
	toolList    []*tool.Tool
	tools       *tool.Set
	flows       []*flow.Flow
	compileOpts []definition.CompileOption
	runtimeOpts []runtime.Option
	logger      *slog.Logger
	baseDir     string
}

// Option configures an Agent.
type Option func(*options)

// WithName names the agent. Definitions carry their own name.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithDescription describes the agent.
func WithDescription(d string) Option {
	return func(o *options) { o.description = d }
}

// WithStart sets the start step (default: the first step).
func WithStart(stepID string) Option {
	return func(o *options) { o.start = stepID }
}

// WithTools registers tools implemented in Go.
func WithTools(tools ...*tool.Tool) Option {
	return func(o *options) {
		o.toolList = append(o.toolList, tools...)
	}
}

// WithFlows registers flows for agents built in Go.
func WithFlows(flows ...*flow.Flow) Option {
	return func(o *options) { o.flows = append(o.flows, flows...) }
}

// WithComponent registers a flow component that definitions can name.
func WithComponent(name string, f definition.ComponentFactory) Option {
	return func(o *options) {
		o.compileOpts = append(o.compileOpts, definition.WithComponent(name, f))
	}
}

// WithToolBuilder registers a builder for a declarative tool kind.
func WithToolBuilder(kind string, b definition.ToolBuilder) Option {
	return func(o *options) {
		o.compileOpts = append(o.compileOpts, definition.WithToolBuilder(kind, b))
	}
}

// WithSummarizer replaces the summarizer of Memory components built from definitions.
func WithSummarizer(s flow.Summarizer) Option {
	return func(o *options) {
		o.compileOpts = append(o.compileOpts, definition.WithSummarizer(s))
	}
}

// WithMaxErrors sets how many consecutive recovered errors a turn tolerates.
func WithMaxErrors(n int) Option {
	return func(o *options) { o.runtimeOpts = append(o.runtimeOpts, runtime.WithMaxErrors(n)) }
}

// WithMaxIterations sets how many oracle calls a turn may make.
func WithMaxIterations(n int) Option {
	return func(o *options) { o.runtimeOpts = append(o.runtimeOpts, runtime.WithMaxIterations(n)) }
}

// WithPersona sets the persona shown to the oracle.
func WithPersona(p string) Option {
	return func(o *options) { o.runtimeOpts = append(o.runtimeOpts, runtime.WithPersona(p)) }
}

// WithSystemMessage sets the system message shown to the oracle.
func WithSystemMessage(m string) Option {
	return func(o *options) { o.runtimeOpts = append(o.runtimeOpts, runtime.WithSystemMessage(m)) }
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(o *options) { o.runtimeOpts = append(o.runtimeOpts, runtime.WithLifecycleHooks(hooks)) }
}

// WithLogger sets a custom structured logger for the agent.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithBaseDir resolves process working directories and Lua script files
// against dir. Open sets it to the definition's directory.
func WithBaseDir(dir string) Option {
	return func(o *options) { o.baseDir = dir }
}

func buildOptions(opts []Option) (*options, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}
	tools, err := tool.NewSet(o.toolList...)
	if err != nil {
		return nil, err
	}
	o.tools = tools
	return o, nil
}

// New builds an agent from steps defined in Go.
func New(steps []*domain.Step, o oracle.Oracle, opts ...Option) (*Agent, error) {
	cfg, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	var flows *flow.Manager
	if len(cfg.flows) > 0 {
		m, err := flow.NewManager(cfg.flows...)
		if err != nil {
			return nil, err
		}
		flows = m
	}
	start := cfg.start
	if start == "" && len(steps) > 0 {
		start = steps[0].ID
	}
	return build(cfg, steps, cfg.tools, flows, o, start, cfg.runtimeOpts)
}

// FromDefinition compiles a definition document. Process and Lua tools are
// supported out of the box; options given here override the document's
// limits, persona and system message.
func FromDefinition(doc *definition.Document, o oracle.Oracle, opts ...Option) (*Agent, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil definition", domain.ErrInvalidAgentDefinition)
	}
	cfg, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}

	compileOpts := []definition.CompileOption{
		definition.WithToolBuilder(process.Kind, process.NewRunner(process.WithBaseDir(cfg.baseDir)).Builder()),
		definition.WithToolBuilder(luaAdapter.Kind, luaAdapter.NewRuntime(luaAdapter.WithBaseDir(cfg.baseDir), luaAdapter.WithLogger(cfg.logger)).Builder()),
		definition.WithTools(cfg.tools),
	}
	compiled, err := definition.Compile(doc, append(compileOpts, cfg.compileOpts...)...)
	if err != nil {
		return nil, err
	}

	if cfg.name == "" {
		cfg.name = compiled.Name
	}
	if cfg.description == "" {
		cfg.description = compiled.Description
	}
	start := cfg.start
	if start == "" {
		start = compiled.Start
	}

	runtimeOpts := []runtime.Option{
		runtime.WithMaxErrors(compiled.MaxErrors),
		runtime.WithMaxIterations(compiled.MaxIterations),
		runtime.WithPersona(compiled.Persona),
		runtime.WithSystemMessage(compiled.SystemMessage),
	}
	return build(cfg, compiled.Steps, compiled.Tools, compiled.Flows, o, start, append(runtimeOpts, cfg.runtimeOpts...))
}

// Load reads a definition through loader and compiles it.
func Load(ctx context.Context, loader ports.DefinitionLoader, o oracle.Oracle, opts ...Option) (*Agent, error) {
	doc, err := definition.Load(ctx, loader)
	if err != nil {
		return nil, err
	}
	a, err := FromDefinition(doc, o, opts...)
	if err != nil {
		return nil, err
	}
	a.loader = loader
	return a, nil
}

// Open loads an agent from path: a YAML or JSON definition file, or a
// directory of Markdown steps with an agent.md manifest.
func Open(path string, o oracle.Oracle, opts ...Option) (*Agent, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open agent definition: %w", err)
	}

	if info.IsDir() {
		loader, err := loamAdapter.Open(abs)
		if err != nil {
			return nil, err
		}
		opts = append([]Option{WithName(filepath.Base(abs)), WithBaseDir(abs)}, opts...)
		return Load(context.Background(), loader, o, opts...)
	}

	doc, err := definition.LoadFile(abs)
	if err != nil {
		return nil, err
	}
	return FromDefinition(doc, o, append([]Option{WithBaseDir(filepath.Dir(abs))}, opts...)...)
}

func build(cfg *options, steps []*domain.Step, tools *tool.Set, flows *flow.Manager, o oracle.Oracle, start string, runtimeOpts []runtime.Option) (*Agent, error) {
	logger := cfg.logger
	if cfg.name != "" {
		logger = logger.With("agent", cfg.name)
	}
	engine, err := runtime.NewEngine(steps, tools, flows, o, append(runtimeOpts, runtime.WithLogger(logger))...)
	if err != nil {
		return nil, err
	}
	if _, ok := engine.Step(start); !ok {
		return nil, &domain.DefinitionError{Err: domain.ErrInvalidAgentDefinition, ID: start, Reason: "start step does not exist"}
	}
	return &Agent{
		engine:      engine,
		name:        cfg.name,
		description: cfg.description,
		start:       start,
		logger:      logger,
	}, nil
}

// NewSessionID returns a random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// Name returns the agent's name.
func (a *Agent) Name() string { return a.name }

// StartStep returns the step new sessions begin in.
func (a *Agent) StartStep() string { return a.start }

// Logger returns the agent's logger.
func (a *Agent) Logger() *slog.Logger { return a.logger }

// NewSession starts a conversation at the start step.
func (a *Agent) NewSession(id string) (*Session, error) {
	if id == "" {
		id = NewSessionID()
	}
	return a.engine.NewSession(id, a.start)
}

// Resume rehydrates a session from a snapshot.
func (a *Agent) Resume(snap *Snapshot) (*Session, error) {
	return a.engine.Resume(snap)
}

// Start returns the snapshot of a new session.
func (a *Agent) Start(sessionID string) (*Snapshot, error) {
	sess, err := a.NewSession(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Snapshot(), nil
}

// Turn resumes snap, runs one turn with input and returns the resulting
// snapshot. snap itself is never modified. When the turn fails, limit errors
// included, the returned snapshot equals snap.
func (a *Agent) Turn(ctx context.Context, snap *Snapshot, input string) (*Result, *Snapshot, error) {
	sess, err := a.engine.Resume(snap)
	if err != nil {
		return nil, nil, err
	}
	res, err := sess.Next(ctx, input)
	return res, sess.Snapshot(), err
}

// Inspect describes the agent's steps, flows, tools and limits.
func (a *Agent) Inspect() domain.AgentInfo {
	info := a.engine.Info()
	info.Name = a.name
	info.Description = a.description
	info.StartStep = a.start
	return info
}

// Watch signals when the definition source changes. Only agents loaded from
// a watchable loader support it.
func (a *Agent) Watch(ctx context.Context) (<-chan string, error) {
	if w, ok := a.loader.(ports.Watchable); ok {
		return w.Watch(ctx)
	}
	return nil, errors.New("agent definition does not support watching")
}
