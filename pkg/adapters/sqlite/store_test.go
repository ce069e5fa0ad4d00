package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aretw0/stepwise/pkg/adapters/sqlite"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, path string) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_Contract(t *testing.T) {
	ports.RunSnapshotStoreContract(t, newStore(t, ":memory:"))
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	ctx := context.Background()

	first, err := sqlite.New(path)
	require.NoError(t, err)
	snap := domain.NewSnapshot("s1", "start")
	snap.History = snap.History.Append(domain.Message{Role: domain.RoleUser, Content: "hi"})
	require.NoError(t, first.Save(ctx, "s1", snap))
	require.NoError(t, first.Close())

	second := newStore(t, path)
	loaded, err := second.Load(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, snap.History.Equal(loaded.History))
}
