package ports

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSnapshotStoreContract runs a suite of tests to verify that a SnapshotStore
// implementation adheres to the interface contract.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	t.Helper()
	ctx := context.Background()
	sessionID := fmt.Sprintf("contract-%d", time.Now().UnixNano())

	t.Run("Save and Load", func(t *testing.T) {
		snap := sampleSnapshot(sessionID)
		require.NoError(t, store.Save(ctx, sessionID, snap))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, snap.SessionID, loaded.SessionID)
		assert.Equal(t, snap.CurrentStepID, loaded.CurrentStepID)
		assert.Equal(t, snap.ErrorCount, loaded.ErrorCount)
		assert.Equal(t, snap.IterationCount, loaded.IterationCount)
		assert.True(t, snap.History.Equal(loaded.History), "history must survive a round trip")
		require.Len(t, loaded.Flows, 1)
		assert.Equal(t, "onboarding", loaded.Flows[0].FlowID)
		assert.Equal(t, 1, loaded.Flows[0].HistoryStart)
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		snap := sampleSnapshot(sessionID)
		snap.CurrentStepID = "confirm"
		snap.ErrorCount = 2
		require.NoError(t, store.Save(ctx, sessionID, snap))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "confirm", loaded.CurrentStepID)
		assert.Equal(t, 2, loaded.ErrorCount)
	})

	t.Run("Load Is Isolated", func(t *testing.T) {
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.History = loaded.History.Append(domain.Message{Role: domain.RoleUser, Content: "mutated"})

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Len(t, again.History, len(loaded.History)-1)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "missing-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("List", func(t *testing.T) {
		id1, id2 := sessionID+"-1", sessionID+"-2"
		require.NoError(t, store.Save(ctx, id1, domain.NewSnapshot(id1, "start")))
		require.NoError(t, store.Save(ctx, id2, domain.NewSnapshot(id2, "start")))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, sessionID))
		_, err := store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)

		require.NoError(t, store.Delete(ctx, sessionID), "deleting twice is not an error")

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.NotContains(t, ids, sessionID)
	})
}

func sampleSnapshot(id string) *domain.Snapshot {
	snap := domain.NewSnapshot(id, "greet")
	snap.ErrorCount = 1
	snap.IterationCount = 3
	snap.History = domain.History{
		domain.Message{Role: domain.RoleUser, Content: "hello"},
		domain.StepIdentifier{StepID: "greet"},
		domain.Summary{Lines: []string{"user: hello"}},
		domain.Message{Role: domain.RoleTool, Content: `{"ok":true}`},
	}
	snap.Flows = []*domain.FlowContext{{
		FlowID:       "onboarding",
		EntryStep:    "greet",
		HistoryStart: 1,
		Metadata:     map[string]any{"source": "contract"},
	}}
	return snap
}

// RunDefinitionLoaderContract verifies a DefinitionLoader against the step IDs
// it is expected to serve.
func RunDefinitionLoaderContract(t *testing.T, loader DefinitionLoader, wantSteps []string) {
	t.Helper()
	ctx := context.Background()

	t.Run("Manifest", func(t *testing.T) {
		data, err := loader.Manifest(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	})

	t.Run("ListSteps", func(t *testing.T) {
		ids, err := loader.ListSteps(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, wantSteps, ids)
	})

	t.Run("GetStep", func(t *testing.T) {
		for _, id := range wantSteps {
			data, err := loader.GetStep(ctx, id)
			require.NoError(t, err, id)
			assert.NotEmpty(t, data, id)
		}
	})

	t.Run("GetStep NotFound", func(t *testing.T) {
		_, err := loader.GetStep(ctx, "non-existent-step")
		assert.ErrorIs(t, err, domain.ErrStepNotFound)
	})
}
