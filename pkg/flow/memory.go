package flow

import (
	"context"
	"fmt"

	"github.com/aretw0/stepwise/pkg/domain"
)

// Summarizer condenses a range of history into summary lines.
type Summarizer func(ctx context.Context, entries domain.History) ([]string, error)

// Memory summarizes everything a flow produced when the flow is exited, and
// hands the summary to the next flow.
type Memory struct {
	name      string
	summarize Summarizer
}

// MemoryOption configures a Memory component.
type MemoryOption func(*Memory)

// WithSummarizer replaces the default summarizer, typically with one backed by a model.
func WithSummarizer(s Summarizer) MemoryOption {
	return func(m *Memory) { m.summarize = s }
}

// WithName changes the component name, which is also its handoff key.
func WithName(name string) MemoryOption {
	return func(m *Memory) { m.name = name }
}

// NewMemory creates a memory component keeping the last 10 messages by default.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{name: "memory", summarize: LastMessages(10)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Name() string { return m.name }

func (m *Memory) Enter(context.Context, *Context) error { return nil }

// Exit replaces the flow's history range with a Summary and returns its lines.
func (m *Memory) Exit(ctx context.Context, fc *Context) (any, error) {
	entries := fc.FlowHistory()
	if len(entries) == 0 {
		return []string{}, nil
	}
	lines, err := m.summarize(ctx, entries)
	if err != nil {
		return nil, err
	}
	if err := fc.SummarizeFlow(lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func (m *Memory) Cleanup(context.Context, *Context) error { return nil }

// LastMessages keeps the last n conversational lines, rendered as "role: content".
// Earlier summaries are carried over verbatim.
func LastMessages(n int) Summarizer {
	return func(_ context.Context, entries domain.History) ([]string, error) {
		var lines []string
		for _, e := range entries {
			switch v := e.(type) {
			case domain.Message:
				if v.Role == domain.RoleError {
					continue
				}
				lines = append(lines, fmt.Sprintf("%s: %s", v.Role, v.Content))
			case domain.Summary:
				lines = append(lines, v.Lines...)
			case domain.StepIdentifier:
			}
		}
		if n > 0 && len(lines) > n {
			lines = lines[len(lines)-n:]
		}
		return lines, nil
	}
}

// Funcs adapts plain functions into a Component. Nil hooks are no-ops.
type Funcs struct {
	ComponentName string
	OnEnter       func(ctx context.Context, fc *Context) error
	OnExit        func(ctx context.Context, fc *Context) (any, error)
	OnCleanup     func(ctx context.Context, fc *Context) error
}

func (f Funcs) Name() string { return f.ComponentName }

func (f Funcs) Enter(ctx context.Context, fc *Context) error {
	if f.OnEnter == nil {
		return nil
	}
	return f.OnEnter(ctx, fc)
}

func (f Funcs) Exit(ctx context.Context, fc *Context) (any, error) {
	if f.OnExit == nil {
		return nil, nil
	}
	return f.OnExit(ctx, fc)
}

func (f Funcs) Cleanup(ctx context.Context, fc *Context) error {
	if f.OnCleanup == nil {
		return nil
	}
	return f.OnCleanup(ctx, fc)
}
