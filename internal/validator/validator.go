// Package validator checks an assembled agent for problems that construction
// accepts but that usually signal a definition mistake.
package validator

import (
	"fmt"
	"strings"

	"github.com/aretw0/stepwise/pkg/domain"
)

// Report lists the findings of Validate. Errors make an agent unusable,
// warnings point at dead definitions.
type Report struct {
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// OK reports whether no errors were found.
func (r *Report) OK() bool { return len(r.Errors) == 0 }

// Err folds the errors into one error, or nil.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	return fmt.Errorf("found %d errors:\n- %s", len(r.Errors), strings.Join(r.Errors, "\n- "))
}

// Validate walks the routes from the start step. It reports broken links,
// unreachable steps, unused tools and flows whose entry points cannot be reached.
func Validate(info domain.AgentInfo) *Report {
	r := &Report{}

	start := info.Step(info.StartStep)
	if start == nil {
		r.Errors = append(r.Errors, fmt.Sprintf("start step '%s' not found", info.StartStep))
		return r
	}

	visited := map[string]bool{}
	queue := []string{start.ID}
	for len(queue) > 0 {
		currentID := queue[0]
		queue = queue[1:]
		if visited[currentID] {
			continue
		}
		visited[currentID] = true

		s := info.Step(currentID)
		for _, route := range s.Routes {
			if info.Step(route.Target) == nil {
				r.Errors = append(r.Errors, fmt.Sprintf("step '%s' routes to missing step '%s'", s.ID, route.Target))
				continue
			}
			if !visited[route.Target] {
				queue = append(queue, route.Target)
			}
		}
	}

	for _, s := range info.Steps {
		if !visited[s.ID] {
			r.Warnings = append(r.Warnings, fmt.Sprintf("step '%s' is unreachable from '%s'", s.ID, start.ID))
		}
	}

	used := map[string]bool{}
	for _, s := range info.Steps {
		for _, name := range s.AvailableTools {
			used[name] = true
		}
	}
	for _, t := range info.Tools {
		if !used[t.Name] {
			r.Warnings = append(r.Warnings, fmt.Sprintf("tool '%s' is not available in any step", t.Name))
		}
	}

	for _, f := range info.Flows {
		reachable := false
		for _, id := range f.Enters {
			if visited[id] {
				reachable = true
			}
		}
		if !reachable {
			r.Warnings = append(r.Warnings, fmt.Sprintf("flow '%s' has no reachable entry step", f.ID))
		}
		if len(f.Exits) == 0 {
			r.Warnings = append(r.Warnings, fmt.Sprintf("flow '%s' declares no exit steps", f.ID))
		}
	}

	return r
}
