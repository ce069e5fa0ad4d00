// Package loam serves agent definitions from a Loam repository: a directory
// of Markdown documents with YAML frontmatter (JSON and YAML files work too).
//
// The manifest is agent.md (or any document with kind: agent); its body is the
// system message. Documents with kind: tools hold tool libraries merged into
// the manifest. Every other document is a step whose body is its description.
package loam

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/stepwise/pkg/domain"
)

// Loader adapts a Loam repository to ports.DefinitionLoader.
type Loader struct {
	Repo *loam.TypedRepository[DocumentMetadata]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[DocumentMetadata]) *Loader {
	return &Loader{Repo: repo}
}

// Open initializes a read-only Loam repository at path and wraps it.
func Open(path string) (*Loader, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve definition path: %w", err)
	}
	repo, err := loam.Init(abs,
		loam.WithVersioning(false),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open loam repository: %w", err)
	}
	return New(loam.NewTypedRepository[DocumentMetadata](repo)), nil
}

type entry struct {
	id      string
	path    string
	meta    DocumentMetadata
	content string
}

func (l *Loader) entries(ctx context.Context) ([]entry, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string, len(docs))
	out := make([]entry, 0, len(docs))
	for _, doc := range docs {
		rawID := doc.Data.ID
		if rawID == "" {
			rawID = doc.ID
		}
		id := trimExtension(rawID)
		if existing, ok := seen[id]; ok {
			return nil, fmt.Errorf("collision detected: ID '%s' is defined in both '%s' and '%s'", id, existing, doc.ID)
		}
		seen[id] = doc.ID
		out = append(out, entry{id: id, path: doc.ID, meta: doc.Data, content: doc.Content})
	}
	return out, nil
}

func kindOf(e entry) string {
	switch {
	case e.meta.Kind != "":
		return e.meta.Kind
	case e.id == ManifestID:
		return KindAgent
	default:
		return KindStep
	}
}

// Manifest assembles the agent manifest and every tool library as JSON.
func (l *Loader) Manifest(ctx context.Context) ([]byte, error) {
	entries, err := l.entries(ctx)
	if err != nil {
		return nil, err
	}

	var agent *entry
	var tools []any
	for i := range entries {
		switch kindOf(entries[i]) {
		case KindAgent:
			if agent != nil {
				return nil, fmt.Errorf("more than one agent manifest: '%s' and '%s'", agent.path, entries[i].path)
			}
			agent = &entries[i]
		case KindTools:
			tools = append(tools, entries[i].meta.Tools...)
		}
	}
	if agent == nil {
		return nil, fmt.Errorf("%w: no agent manifest (%s.md or kind: agent) found", domain.ErrInvalidAgentDefinition, ManifestID)
	}

	body, err := l.body(ctx, *agent)
	if err != nil {
		return nil, err
	}

	m := agent.meta
	data := map[string]any{"name": m.Name}
	if data["name"] == "" {
		data["name"] = agent.id
	}
	setIf(data, "description", m.Description)
	setIf(data, "start", m.Start)
	setIf(data, "persona", m.Persona)
	systemMessage := m.SystemMessage
	if systemMessage == "" {
		systemMessage = body
	}
	setIf(data, "system_message", systemMessage)
	if m.MaxErrors > 0 {
		data["max_errors"] = m.MaxErrors
	}
	if m.MaxIterations > 0 {
		data["max_iterations"] = m.MaxIterations
	}
	if len(m.Flows) > 0 {
		data["flows"] = m.Flows
	}
	if all := append(append([]any(nil), m.Tools...), tools...); len(all) > 0 {
		data["tools"] = all
	}

	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return b, nil
}

// GetStep renders a step document as JSON.
func (l *Loader) GetStep(ctx context.Context, id string) ([]byte, error) {
	entries, err := l.entries(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.id != id || kindOf(e) != KindStep {
			continue
		}
		body, err := l.body(ctx, e)
		if err != nil {
			return nil, err
		}
		return buildStep(e, body)
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrStepNotFound, id)
}

// body fetches the Markdown body of a document; List only carries metadata.
func (l *Loader) body(ctx context.Context, e entry) (string, error) {
	if e.content != "" {
		return strings.TrimSpace(e.content), nil
	}
	doc, err := l.Repo.Get(ctx, trimExtension(e.path))
	if err != nil {
		return "", fmt.Errorf("loam get failed for %s: %w", e.path, err)
	}
	return strings.TrimSpace(doc.Content), nil
}

func buildStep(e entry, body string) ([]byte, error) {
	m := e.meta
	data := map[string]any{"id": e.id}

	description := m.Description
	if description == "" {
		description = body
	}
	setIf(data, "description", description)
	if len(m.Routes) > 0 {
		data["routes"] = m.Routes
	}
	if len(m.Tools) > 0 {
		data["tools"] = m.Tools
	}
	if m.AutoFlow {
		data["auto_flow"] = true
	}
	if m.QuickSuggestions {
		data["quick_suggestions"] = true
	}
	if len(m.AnswerModel) > 0 {
		data["answer_model"] = m.AnswerModel
	}

	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal step data: %w", err)
	}
	return b, nil
}

// ListSteps lists every step document.
func (l *Loader) ListSteps(ctx context.Context) ([]string, error) {
	entries, err := l.entries(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if kindOf(e) == KindStep {
			ids = append(ids, e.id)
		}
	}
	return ids, nil
}

// Watch implements ports.Watchable.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- trimExtension(evt.ID):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

func setIf(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

func trimExtension(id string) string {
	if ext := filepath.Ext(id); ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
