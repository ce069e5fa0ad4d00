package oracle

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/stepwise/pkg/domain"
)

// Turn is one chat message in the transcript sent to a chat-completion model.
type Turn struct {
	Role    string // "user" or "assistant"
	Content string
}

// SystemPrompt renders the instructions shared by every chat-completion oracle.
func SystemPrompt(req *Request) string {
	var b strings.Builder
	if req.Persona != "" {
		b.WriteString(req.Persona)
		b.WriteString("\n\n")
	}
	if req.SystemMessage != "" {
		b.WriteString(req.SystemMessage)
		b.WriteString("\n\n")
	}

	step := req.Step
	fmt.Fprintf(&b, "Current step: %s\n", step.ID)
	if step.Description != "" {
		fmt.Fprintf(&b, "Instructions: %s\n", step.Description)
	}
	if len(step.Routes) > 0 {
		b.WriteString("\nYou may MOVE to:\n")
		for _, r := range step.Routes {
			fmt.Fprintf(&b, "- %s: %s\n", r.Target, r.Condition)
		}
	}
	if len(req.Tools) > 0 {
		b.WriteString("\nYou may call these tools with TOOL_CALL:\n")
		for _, t := range req.Tools {
			params, _ := json.Marshal(t.Parameters)
			fmt.Fprintf(&b, "- %s: %s (parameters: %s)\n", t.Name, t.Description, params)
		}
	}
	if req.Schema != nil {
		fmt.Fprintf(&b, "\nAllowed actions: %v\n", req.Schema.Actions)
		if doc, err := req.Schema.Document(); err == nil {
			schemaJSON, _ := json.Marshal(doc)
			fmt.Fprintf(&b, "Reply with a single JSON object matching this schema:\n%s\n", schemaJSON)
		}
	}
	return b.String()
}

// Transcript renders history as alternating chat turns. Tool results, errors
// and summaries are shown to the model as user-side context. Consecutive
// turns of the same role are merged and the transcript always starts and
// ends with a user turn.
func Transcript(h domain.History) []Turn {
	var turns []Turn
	add := func(role, content string) {
		if content == "" {
			return
		}
		if n := len(turns); n > 0 && turns[n-1].Role == role {
			turns[n-1].Content += "\n" + content
			return
		}
		turns = append(turns, Turn{Role: role, Content: content})
	}

	for _, e := range h {
		switch v := e.(type) {
		case domain.Message:
			switch v.Role {
			case domain.RoleAgent:
				add("assistant", v.Content)
			case domain.RoleUser:
				add("user", v.Content)
			case domain.RoleTool:
				add("user", "[tool result] "+v.Content)
			case domain.RoleError:
				add("user", "[error] "+v.Content)
			case domain.RoleSystem:
				add("user", "[system] "+v.Content)
			}
		case domain.Summary:
			add("user", "[summary of earlier conversation]\n"+strings.Join(v.Lines, "\n"))
		case domain.StepIdentifier:
			// Step markers are bookkeeping and are not shown to the model.
		}
	}

	if len(turns) == 0 || turns[0].Role != "user" {
		turns = append([]Turn{{Role: "user", Content: "[conversation start]"}}, turns...)
	}
	if turns[len(turns)-1].Role == "assistant" {
		turns = append(turns, Turn{Role: "user", Content: "[continue]"})
	}
	return turns
}
