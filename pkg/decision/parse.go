package decision

import (
	"encoding/json"
	"strings"

	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/tidwall/gjson"
)

// Extract locates the JSON object inside an oracle reply. Models frequently
// wrap the object in prose or Markdown fences; the first balanced object wins.
func Extract(reply string) (string, bool) {
	s := strings.TrimSpace(reply)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "{") && gjson.Valid(s) {
		return s, true
	}

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	for end := strings.LastIndexByte(s, '}'); end > start; end = strings.LastIndexByte(s[:end], '}') {
		if candidate := s[start : end+1]; gjson.Valid(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// Parse validates a raw oracle reply against the schema and decodes it.
// Every failure is returned as a *domain.DecisionError.
func (s *Schema) Parse(raw []byte) (*domain.Decision, error) {
	body, ok := Extract(string(raw))
	if !ok {
		return nil, domain.NewDecisionError("reply does not contain a JSON object")
	}

	sch, err := s.validator()
	if err != nil {
		return nil, &domain.DecisionError{Reason: "decision schema does not compile", Cause: err}
	}

	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, &domain.DecisionError{Reason: "reply is not valid JSON", Cause: err}
	}
	if err := sch.Validate(doc); err != nil {
		return nil, &domain.DecisionError{Reason: "reply violates decision schema", Cause: err}
	}

	var d domain.Decision
	if err := json.Unmarshal([]byte(body), &d); err != nil {
		return nil, &domain.DecisionError{Reason: "reply cannot be decoded", Cause: err}
	}
	if err := s.Check(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// PeekAction reads the action of a raw reply without validating it.
func PeekAction(raw []byte) domain.Action {
	body, ok := Extract(string(raw))
	if !ok {
		return ""
	}
	return domain.Action(gjson.Get(body, "action").String())
}

// Check enforces the rules the JSON Schema cannot express: the fields an action
// depends on must be present and must reference something the step offers.
func (s *Schema) Check(d *domain.Decision) error {
	if !s.Allows(d.Action) {
		return domain.NewDecisionError("action %q is not allowed in step %q (allowed: %v)", d.Action, s.StepID, s.Actions)
	}
	if d.Response != nil && !s.Response {
		return domain.NewDecisionError("step %q does not accept a response", s.StepID)
	}
	if len(d.Suggestions) > 0 && !s.Suggestions {
		return domain.NewDecisionError("step %q does not accept suggestions", s.StepID)
	}
	if d.StepTransition != "" && len(s.RouteTargets) == 0 {
		return domain.NewDecisionError("step %q has no routes", s.StepID)
	}
	if d.ToolCall != nil && len(s.ToolNames) == 0 {
		return domain.NewDecisionError("step %q has no tools", s.StepID)
	}

	switch d.Action {
	case domain.ActionAsk, domain.ActionAnswer, domain.ActionEnd:
		return nil
	case domain.ActionMove:
		if d.StepTransition == "" {
			return domain.NewDecisionError("MOVE requires step_transition")
		}
		if !contains(s.RouteTargets, d.StepTransition) {
			return domain.NewDecisionError("step_transition %q is not a route of step %q", d.StepTransition, s.StepID)
		}
		return nil
	case domain.ActionToolCall:
		if d.ToolCall == nil || d.ToolCall.ToolName == "" {
			return domain.NewDecisionError("TOOL_CALL requires tool_call.tool_name")
		}
		if !contains(s.ToolNames, d.ToolCall.ToolName) {
			return domain.NewDecisionError("tool %q is not available in step %q", d.ToolCall.ToolName, s.StepID)
		}
		return nil
	default:
		return domain.NewDecisionError("unknown action %q", d.Action)
	}
}
