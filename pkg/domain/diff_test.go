package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff(t *testing.T) {
	base := &Snapshot{
		SessionID:     "sess-1",
		CurrentStepID: "start",
		History:       History{Message{Role: RoleUser, Content: "hi"}},
	}

	t.Run("Initial Load (Old is Nil)", func(t *testing.T) {
		d := Diff(nil, base)
		require.NotNil(t, d)
		assert.Equal(t, "start", *d.CurrentStepID)
		assert.Equal(t, 0, *d.ErrorCount)
		require.NotNil(t, d.History)
		assert.Len(t, d.History.Appended, 1)
	})

	t.Run("No Changes", func(t *testing.T) {
		assert.Nil(t, Diff(base, base.Clone()))
	})

	t.Run("Append And Move", func(t *testing.T) {
		next := base.Clone()
		next.CurrentStepID = "end"
		next.History = next.History.Append(StepIdentifier{StepID: "start"}, Message{Role: RoleAgent, Content: "bye"})

		d := Diff(base, next)
		require.NotNil(t, d)
		assert.Equal(t, "end", *d.CurrentStepID)
		assert.Nil(t, d.ErrorCount)
		require.NotNil(t, d.History)
		assert.Nil(t, d.History.Replaced)
		assert.Equal(t, History{StepIdentifier{StepID: "start"}, Message{Role: RoleAgent, Content: "bye"}}, d.History.Appended)
	})

	t.Run("Summarized History Is Replaced", func(t *testing.T) {
		next := base.Clone()
		var err error
		next.History, err = next.History.Summarize(0, 1, []string{"user: hi"})
		require.NoError(t, err)

		d := Diff(base, next)
		require.NotNil(t, d)
		require.NotNil(t, d.History)
		assert.Equal(t, next.History, d.History.Replaced)
	})

	t.Run("Flow Exit Reports Empty Set", func(t *testing.T) {
		old := base.Clone()
		old.Flows = []*FlowContext{{FlowID: "checkout", EntryStep: "start"}}
		d := Diff(old, base)
		require.NotNil(t, d)
		assert.Equal(t, []string{}, d.ActiveFlows)
	})
}

func TestDiff_JSON(t *testing.T) {
	next := &Snapshot{SessionID: "s", CurrentStepID: "b", ErrorCount: 2}
	d := Diff(&Snapshot{SessionID: "s", CurrentStepID: "a"}, next)

	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"session_id":"s","current_step_id":"b","error_count":2}`, string(b))
}
