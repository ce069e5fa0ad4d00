package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/stepwise/pkg/definition"
	"github.com/aretw0/stepwise/pkg/domain"
)

// Loader implements ports.DefinitionLoader from raw documents held in memory.
type Loader struct {
	manifest []byte
	steps    map[string][]byte
	order    []string
}

// NewLoader creates a loader from a raw manifest and raw step documents.
// Steps are listed in the order of ids; steps missing from ids are appended
// in no particular order.
func NewLoader(manifest string, steps map[string]string, ids ...string) *Loader {
	l := &Loader{manifest: []byte(manifest), steps: make(map[string][]byte, len(steps))}
	seen := make(map[string]bool, len(steps))
	for _, id := range ids {
		if _, ok := steps[id]; ok && !seen[id] {
			l.order = append(l.order, id)
			seen[id] = true
		}
	}
	for id, raw := range steps {
		l.steps[id] = []byte(raw)
		if !seen[id] {
			l.order = append(l.order, id)
		}
	}
	return l
}

// NewFromDocument serializes a document so it can be served like any other
// source. This keeps tests on the same parse path as files.
func NewFromDocument(doc *definition.Document) (*Loader, error) {
	manifest := *doc
	manifest.Steps = nil
	raw, err := json.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	l := &Loader{manifest: raw, steps: make(map[string][]byte, len(doc.Steps))}
	for _, s := range doc.Steps {
		if s.ID == "" {
			return nil, fmt.Errorf("step missing ID")
		}
		data, err := json.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal step %s: %w", s.ID, err)
		}
		l.steps[s.ID] = data
		l.order = append(l.order, s.ID)
	}
	return l, nil
}

// Manifest returns the raw agent manifest.
func (l *Loader) Manifest(ctx context.Context) ([]byte, error) {
	return l.manifest, nil
}

// GetStep retrieves the raw definition of a step by ID.
func (l *Loader) GetStep(ctx context.Context, id string) ([]byte, error) {
	content, ok := l.steps[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrStepNotFound, id)
	}
	return content, nil
}

// ListSteps returns all step IDs.
func (l *Loader) ListSteps(ctx context.Context) ([]string, error) {
	return append([]string(nil), l.order...), nil
}
