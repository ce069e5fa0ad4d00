package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleHistory() History {
	return History{
		Message{Role: RoleUser, Content: "what time is it?"},
		StepIdentifier{StepID: "start"},
		Message{Role: RoleTool, Content: "12:00"},
		Summary{Lines: []string{"user asked the time"}},
	}
}

func TestHistory_JSON(t *testing.T) {
	h := sampleHistory()

	b, err := json.Marshal(h)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"kind":"message","role":"user","content":"what time is it?"},
		{"kind":"step","step_id":"start"},
		{"kind":"message","role":"tool","content":"12:00"},
		{"kind":"summary","summary":["user asked the time"]}
	]`, string(b))

	var decoded History
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.True(t, h.Equal(decoded))
}

func TestHistory_UnmarshalUnknownKind(t *testing.T) {
	var h History
	err := json.Unmarshal([]byte(`[{"kind":"bogus"}]`), &h)
	assert.Error(t, err)
}

func TestHistory_Summarize(t *testing.T) {
	h := sampleHistory()

	out, err := h.Summarize(1, 3, []string{"tool: 12:00"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, Message{Role: RoleUser, Content: "what time is it?"}, out[0])
	assert.Equal(t, Summary{Lines: []string{"tool: 12:00"}}, out[1])
	assert.Equal(t, KindSummary, out[2].Kind())

	// Original untouched.
	assert.Len(t, h, 4)

	_, err = h.Summarize(3, 1, nil)
	assert.Error(t, err)
	_, err = h.Summarize(0, 9, nil)
	assert.Error(t, err)
}

func TestHistory_CloneIsDeep(t *testing.T) {
	h := sampleHistory()
	c := h.Clone()
	c[3].(Summary).Lines[0] = "changed"
	assert.Equal(t, "user asked the time", h[3].(Summary).Lines[0])
}

func TestHistory_PrefixAndAccessors(t *testing.T) {
	h := sampleHistory()
	assert.True(t, h.HasPrefix(h[:2]))
	assert.False(t, h[:2].HasPrefix(h))
	assert.Equal(t, []string{"start"}, h.Steps())
	assert.Len(t, h.Messages(), 2)
}

func TestSnapshot_CloneIsDeep(t *testing.T) {
	s := NewSnapshot("s1", "start")
	s.Flows = []*FlowContext{{FlowID: "f", Metadata: map[string]any{"k": map[string]any{"n": 1}}}}

	c := s.Clone()
	c.Flows[0].Metadata["k"].(map[string]any)["n"] = 2
	c.History = c.History.Append(Message{Role: RoleUser, Content: "x"})

	assert.Equal(t, 1, s.Flows[0].Metadata["k"].(map[string]any)["n"])
	assert.Empty(t, s.History)
}
