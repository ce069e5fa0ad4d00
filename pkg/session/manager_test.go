package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/stepwise"
	"github.com/aretw0/stepwise/pkg/adapters/memory"
	redisAdapter "github.com/aretw0/stepwise/pkg/adapters/redis"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/oracle"
	"github.com/aretw0/stepwise/pkg/session"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	*memory.Store
}

func NewSlowStore() *SlowStore {
	return &SlowStore{Store: memory.NewStore()}
}

func (s *SlowStore) Save(ctx context.Context, sessionID string, snap *domain.Snapshot) error {
	time.Sleep(5 * time.Millisecond)
	return s.Store.Save(ctx, sessionID, snap)
}

func (s *SlowStore) Load(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	time.Sleep(5 * time.Millisecond)
	return s.Store.Load(ctx, sessionID)
}

// echoAgent appends the input to the history, or fails with err.
type echoAgent struct {
	err error
}

func (a *echoAgent) Start(sessionID string) (*domain.Snapshot, error) {
	return domain.NewSnapshot(sessionID, "start"), nil
}

func (a *echoAgent) Turn(_ context.Context, snap *domain.Snapshot, input string) (*domain.TurnResult, *domain.Snapshot, error) {
	next := snap.Clone()
	next.History = next.History.Append(domain.Message{Role: domain.RoleUser, Content: input})
	next.IterationCount++
	if a.err != nil {
		return nil, next, a.err
	}
	return &domain.TurnResult{FromStep: snap.CurrentStepID, StepID: snap.CurrentStepID}, next, nil
}

func (a *echoAgent) Inspect() domain.AgentInfo { return domain.AgentInfo{} }

func TestManager_TurnSerializes(t *testing.T) {
	manager := session.NewManager(&echoAgent{}, NewSlowStore())
	ctx := context.Background()
	id := "race-test"

	var wg sync.WaitGroup
	const turns = 10
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := manager.Turn(ctx, id, "hi")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	snap, err := manager.Load(ctx, id)
	require.NoError(t, err)
	assert.Len(t, snap.History, turns, "lost update")
}

func TestManager_LoadOrStart(t *testing.T) {
	manager := session.NewManager(&echoAgent{}, NewSlowStore())
	ctx := context.Background()
	id := "atomic-init"

	_, err := manager.Load(ctx, id)
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := manager.LoadOrStart(ctx, id)
			assert.NoError(t, err)
			assert.NotNil(t, snap)
		}()
	}
	wg.Wait()

	snap, err := manager.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "start", snap.CurrentStepID)

	ids, err := manager.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids)

	require.NoError(t, manager.Delete(ctx, id))
	_, err = manager.Load(ctx, id)
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
}

func TestManager_SavesOnlyCommittedSnapshots(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	failures := map[string]error{
		"limit": &domain.LimitError{Err: domain.ErrMaxErrorsExceeded, Errors: 3},
		"fail":  errors.New("oracle down"),
	}
	for id, turnErr := range failures {
		_, _, err := session.NewManager(&echoAgent{err: turnErr}, store).Turn(ctx, id, "x")
		require.ErrorIs(t, err, turnErr)
		saved, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, saved.History, id)
		assert.Zero(t, saved.IterationCount, id)
	}
}

func TestManager_TurnWithPrevious(t *testing.T) {
	ctx := context.Background()
	manager := session.NewManager(&echoAgent{}, memory.NewStore())

	_, prev, next, err := manager.TurnWithPrevious(ctx, "s", "one")
	require.NoError(t, err)
	assert.Empty(t, prev.History)
	assert.Len(t, next.History, 1)

	_, prev, next, err = manager.TurnWithPrevious(ctx, "s", "two")
	require.NoError(t, err)
	assert.Len(t, prev.History, 1)
	assert.Len(t, next.History, 2)
	d := domain.Diff(prev, next)
	require.NotNil(t, d.History)
	assert.Len(t, d.History.Appended, 1)
}

func TestManager_WithAgentAndDistributedLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	steps := []*domain.Step{{ID: "start", Description: "Chat"}}
	o := oracle.NewScripted(`{"reasoning":[],"action":"ANSWER","response":"hello"}`).Repeat()
	agent, err := stepwise.New(steps, o)
	require.NoError(t, err)

	manager := session.NewManager(agent,
		redisAdapter.NewFromClient(client),
		session.WithLocker(redisAdapter.NewLocker(client, "")),
		session.WithLockTTL(time.Second),
	)
	ctx := context.Background()

	res, snap, err := manager.Turn(ctx, "s1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Decision.ResponseText())
	assert.Len(t, snap.History, 3)

	_, snap, err = manager.Turn(ctx, "s1", "again")
	require.NoError(t, err)
	assert.Len(t, snap.History, 6)

	loaded, err := manager.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, snap.History, loaded.History)
}
