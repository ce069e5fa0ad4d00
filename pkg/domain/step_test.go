package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStep_Invariants(t *testing.T) {
	tests := []struct {
		name    string
		step    Step
		wantErr bool
	}{
		{"plain conversational step", Step{ID: "start"}, false},
		{"auto flow with route", Step{ID: "a", AutoFlow: true, Routes: []Route{{Target: "b", Condition: "always"}}}, false},
		{"auto flow with tool", Step{ID: "a", AutoFlow: true, AvailableTools: []string{"get_time"}}, false},
		{"auto flow without routes or tools", Step{ID: "a", AutoFlow: true}, true},
		{"auto flow with quick suggestions", Step{ID: "a", AutoFlow: true, QuickSuggestions: true, Routes: []Route{{Target: "b"}}}, true},
		{"missing id", Step{Description: "x"}, true},
		{"route without target", Step{ID: "a", Routes: []Route{{Condition: "c"}}}, true},
		{"duplicate route target", Step{ID: "a", Routes: []Route{{Target: "b"}, {Target: "b"}}}, true},
		{"duplicate tool", Step{ID: "a", AvailableTools: []string{"t", "t"}}, true},
		{"quick suggestions without auto flow", Step{ID: "a", QuickSuggestions: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewStep(tt.step)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidStepDefinition))
				var defErr *DefinitionError
				assert.True(t, errors.As(err, &defErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.step.ID, s.ID)
		})
	}
}

func TestNewStep_CopiesSlices(t *testing.T) {
	routes := []Route{{Target: "b"}}
	s, err := NewStep(Step{ID: "a", Routes: routes})
	require.NoError(t, err)

	routes[0].Target = "mutated"
	assert.Equal(t, "b", s.Routes[0].Target)
}

func TestStep_Lookups(t *testing.T) {
	s := Step{
		ID:             "a",
		Routes:         []Route{{Target: "b"}, {Target: "c"}},
		AvailableTools: []string{"get_time"},
	}
	assert.Equal(t, []string{"b", "c"}, s.RouteTargets())
	assert.True(t, s.HasRoute("c"))
	assert.False(t, s.HasRoute("nonexistent"))
	assert.True(t, s.HasTool("get_time"))
	assert.False(t, s.HasTool("other"))
}

func TestDecision_ResponseText(t *testing.T) {
	assert.Equal(t, "", (&Decision{}).ResponseText())
	assert.Equal(t, "hello", (&Decision{Response: "hello"}).ResponseText())
	assert.Equal(t, `{"n":1}`, (&Decision{Response: map[string]any{"n": 1}}).ResponseText())
}
