package tool

import (
	"context"
	"fmt"
	"sort"

	"github.com/aretw0/stepwise/pkg/domain"
)

// Set is an immutable registry of tools, keyed by name.
// It is safe for concurrent use because it never changes after NewSet.
type Set struct {
	tools map[string]*Tool
	order []string
}

// NewSet builds a registry from tools. Duplicate names are rejected.
func NewSet(tools ...*Tool) (*Set, error) {
	s := &Set{tools: make(map[string]*Tool, len(tools))}
	for _, t := range tools {
		if t == nil {
			continue
		}
		if _, dup := s.tools[t.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate tool %q", domain.ErrInvalidAgentDefinition, t.Name)
		}
		s.tools[t.Name] = t
		s.order = append(s.order, t.Name)
	}
	return s, nil
}

// MustSet is like NewSet but panics on error. Intended for tests and examples.
func MustSet(tools ...*Tool) *Set {
	s, err := NewSet(tools...)
	if err != nil {
		panic(err)
	}
	return s
}

// Merge returns a new set containing the tools of s followed by other.
func (s *Set) Merge(other *Set) (*Set, error) {
	return NewSet(append(s.List(), other.List()...)...)
}

// Get looks up a tool by name.
func (s *Set) Get(name string) (*Tool, bool) {
	if s == nil {
		return nil, false
	}
	t, ok := s.tools[name]
	return t, ok
}

// List returns the tools in registration order.
func (s *Set) List() []*Tool {
	if s == nil {
		return nil
	}
	out := make([]*Tool, len(s.order))
	for i, name := range s.order {
		out[i] = s.tools[name]
	}
	return out
}

// Names returns the sorted tool names.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	names := append([]string(nil), s.order...)
	sort.Strings(names)
	return names
}

// Len returns the number of tools.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Resolve returns the tools named in names, in that order.
func (s *Set) Resolve(names []string) ([]*Tool, error) {
	out := make([]*Tool, 0, len(names))
	for _, name := range names {
		t, ok := s.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrToolNotFound, name)
		}
		out = append(out, t)
	}
	return out, nil
}

// Run looks up a tool by name and runs it.
func (s *Set) Run(ctx context.Context, name string, args map[string]any) (string, error) {
	t, ok := s.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrToolNotFound, name)
	}
	return t.Run(ctx, args)
}
