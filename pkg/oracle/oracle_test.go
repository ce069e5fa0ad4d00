package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aretw0/stepwise/pkg/decision"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScripted(t *testing.T) {
	s := NewScripted(`{"action":"END"}`)
	require.NoError(t, s.Push(map[string]any{"action": "ASK"}))

	ctx := context.Background()
	req := &Request{SessionID: "s1"}

	r1, err := s.Decide(ctx, req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"END"}`, string(r1))

	r2, err := s.Decide(ctx, req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"ASK"}`, string(r2))

	_, err = s.Decide(ctx, req)
	assert.True(t, errors.Is(err, ErrScriptExhausted))
	assert.Equal(t, 3, s.Calls())
	assert.Same(t, req, s.Requests()[0])
}

func TestScripted_RepeatAndCancel(t *testing.T) {
	s := NewScripted(`{"action":"END"}`).Repeat()
	for i := 0; i < 3; i++ {
		_, err := s.Decide(context.Background(), &Request{})
		require.NoError(t, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Decide(ctx, &Request{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTranscript(t *testing.T) {
	h := domain.History{
		domain.StepIdentifier{StepID: "start"},
		domain.Message{Role: domain.RoleAgent, Content: "Hi there"},
		domain.Message{Role: domain.RoleUser, Content: "time?"},
		domain.Message{Role: domain.RoleTool, Content: "12:00"},
		domain.Summary{Lines: []string{"user: hello"}},
		domain.Message{Role: domain.RoleAgent, Content: "It is noon"},
	}

	turns := Transcript(h)
	require.Len(t, turns, 5)
	assert.Equal(t, Turn{Role: "user", Content: "[conversation start]"}, turns[0])
	assert.Equal(t, "assistant", turns[1].Role)
	assert.Equal(t, "user", turns[2].Role)
	assert.Contains(t, turns[2].Content, "[tool result] 12:00")
	assert.Contains(t, turns[2].Content, "user: hello")
	assert.Equal(t, "assistant", turns[3].Role)
	assert.Equal(t, Turn{Role: "user", Content: "[continue]"}, turns[4])
}

func TestSystemPrompt(t *testing.T) {
	step := &domain.Step{
		ID:          "start",
		Description: "Greet the user",
		Routes:      []domain.Route{{Target: "end", Condition: "user says bye"}},
	}
	req := &Request{
		Step:          step,
		Persona:       "You are a helpful clock.",
		SystemMessage: "Be brief.",
		Schema:        decision.Build(step, nil),
	}

	prompt := SystemPrompt(req)
	assert.Contains(t, prompt, "You are a helpful clock.")
	assert.Contains(t, prompt, "Current step: start")
	assert.Contains(t, prompt, "- end: user says bye")
	assert.Contains(t, prompt, "[ASK ANSWER END MOVE]")
	assert.Contains(t, prompt, `"step_transition"`)
}

func TestFunc(t *testing.T) {
	var o Oracle = Func(func(context.Context, *Request) (json.RawMessage, error) {
		return json.RawMessage(`{}`), nil
	})
	_, err := o.Decide(context.Background(), &Request{})
	assert.NoError(t, err)
}
