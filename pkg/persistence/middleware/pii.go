package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/ports"
)

// Mask replaces every redacted value.
const Mask = "***"

// Common patterns for NewPIIMiddleware.
const (
	PatternEmail      = `[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`
	PatternCardNumber = `\b(?:\d[ -]?){13,16}\b`
)

type piiMiddleware struct {
	next     ports.SnapshotStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks text matching any pattern
// in history messages and summaries, and values of flow metadata whose key
// matches, before they reach the store. Loaded snapshots keep the mask.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid PII pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.SnapshotStore) ports.SnapshotStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Save(ctx context.Context, sessionID string, snap *domain.Snapshot) error {
	// The engine keeps using snap; mask a copy.
	cloned := snap.Clone()
	cloned.History = m.maskHistory(cloned.History)
	for _, fc := range cloned.Flows {
		fc.PreviousContext = m.maskHistory(fc.PreviousContext)
		m.maskMap(fc.Metadata)
	}
	return m.next.Save(ctx, sessionID, cloned)
}

func (m *piiMiddleware) Load(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	return m.next.Load(ctx, sessionID)
}

func (m *piiMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *piiMiddleware) maskText(s string) string {
	for _, p := range m.patterns {
		s = p.ReplaceAllString(s, Mask)
	}
	return s
}

func (m *piiMiddleware) maskHistory(h domain.History) domain.History {
	for i, e := range h {
		switch v := e.(type) {
		case domain.Message:
			v.Content = m.maskText(v.Content)
			h[i] = v
		case domain.Summary:
			lines := make([]string, len(v.Lines))
			for j, l := range v.Lines {
				lines[j] = m.maskText(l)
			}
			v.Lines = lines
			h[i] = v
		case domain.StepIdentifier:
		}
	}
	return h
}

func (m *piiMiddleware) maskMap(md map[string]any) {
	for k, v := range md {
		masked := false
		for _, p := range m.patterns {
			if p.MatchString(k) {
				md[k] = Mask
				masked = true
				break
			}
		}
		if masked {
			continue
		}
		switch val := v.(type) {
		case string:
			md[k] = m.maskText(val)
		case map[string]any:
			m.maskMap(val)
		}
	}
}
