package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/stepwise/pkg/domain"
)

// GraphOverlay contains dynamic state data to visualize on the graph.
type GraphOverlay struct {
	VisitedSteps []string
	CurrentStep  string
	ActiveFlows  []string
}

// OverlayFromSnapshot collects the steps a session took decisions in.
func OverlayFromSnapshot(snap *domain.Snapshot) *GraphOverlay {
	if snap == nil {
		return nil
	}
	o := &GraphOverlay{CurrentStep: snap.CurrentStepID}
	for _, e := range snap.History {
		if s, ok := e.(domain.StepIdentifier); ok {
			o.VisitedSteps = append(o.VisitedSteps, s.StepID)
		}
	}
	for _, fc := range snap.Flows {
		o.ActiveFlows = append(o.ActiveFlows, fc.FlowID)
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart of an agent's steps.
// It applies semantic styling:
// - Start: ((Circle))
// - Tool-using: [[Subroutine]]
// - Auto flow: {{Hexagon}}
// - Default: [Rectangle]
// Flows become subgraphs holding the steps they own, entry points marked with
// a thick border. Overlay styles (Visited/Current) are applied if provided.
func GenerateMermaid(info domain.AgentInfo, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	owned := make(map[string]bool)
	for _, f := range info.Flows {
		fmt.Fprintf(&sb, "    subgraph %s[\"%s\"]\n", flowID(f.ID), f.ID)
		for _, id := range f.Steps {
			if owned[id] {
				continue
			}
			if s := info.Step(id); s != nil {
				owned[id] = true
				sb.WriteString("    " + stepNode(s, info.StartStep))
			}
		}
		sb.WriteString("    end\n")
	}
	for _, s := range info.Steps {
		if !owned[s.ID] {
			sb.WriteString(stepNode(s, info.StartStep))
		}
	}

	for _, s := range info.Steps {
		from := sanitizeMermaidID(s.ID)
		fromFlow := info.FlowOf(s.ID)
		for _, r := range s.Routes {
			crossing := fromFlow != info.FlowOf(r.Target)
			arrow := "-->"
			if crossing {
				arrow = "-.->"
			}
			if r.Condition != "" {
				cond := strings.ReplaceAll(r.Condition, "\"", "'")
				arrow = fmt.Sprintf("-- \"%s\" -->", cond)
				if crossing {
					arrow = fmt.Sprintf("-. \"%s\" .->", cond)
				}
			}
			fmt.Fprintf(&sb, "    %s %s %s\n", from, arrow, sanitizeMermaidID(r.Target))
		}
	}

	if len(info.Flows) > 0 {
		sb.WriteString("    classDef entry stroke-width:3px;\n")
		seen := make(map[string]bool)
		for _, f := range info.Flows {
			for _, id := range f.Enters {
				if !seen[id] {
					seen[id] = true
					fmt.Fprintf(&sb, "    class %s entry;\n", sanitizeMermaidID(id))
				}
			}
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visited := make(map[string]bool)
		for _, id := range overlay.VisitedSteps {
			safeID := sanitizeMermaidID(id)
			if !visited[safeID] && safeID != "" && info.Step(id) != nil {
				visited[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}
		if overlay.CurrentStep != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentStep))
		}
		for _, id := range overlay.ActiveFlows {
			fmt.Fprintf(&sb, "    style %s stroke:#fbc02d,stroke-width:3px;\n", flowID(id))
		}
	}

	return sb.String()
}

func stepNode(s *domain.Step, start string) string {
	opener, closer := "[", "]"
	switch {
	case s.ID == start:
		opener, closer = "((", "))"
	case s.AutoFlow:
		opener, closer = "{{", "}}"
	case len(s.AvailableTools) > 0:
		opener, closer = "[[", "]]"
	}

	label := s.ID
	if len(s.AvailableTools) > 0 {
		label = fmt.Sprintf("%s <br/> 🔧 %s", s.ID, strings.Join(s.AvailableTools, ", "))
	}
	return fmt.Sprintf("    %s%s\"%s\"%s\n", sanitizeMermaidID(s.ID), opener, label, closer)
}

// flowID keeps subgraph IDs apart from step IDs of the same name.
func flowID(id string) string {
	return "flow_" + sanitizeMermaidID(id)
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
