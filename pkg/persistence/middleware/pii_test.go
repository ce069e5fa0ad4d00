package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/stepwise/pkg/adapters/memory"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlying := memory.NewStore()
	mw, err := middleware.NewPIIMiddleware([]string{middleware.PatternEmail, "password"})
	require.NoError(t, err)
	secure := mw(underlying)
	ctx := context.Background()

	snap := domain.NewSnapshot("pii", "start")
	snap.History = snap.History.Append(
		domain.Message{Role: domain.RoleUser, Content: "write to jane@example.com"},
		domain.StepIdentifier{StepID: "start"},
		domain.Summary{Lines: []string{"user: jane@example.com"}},
	)
	snap.Flows = []*domain.FlowContext{{
		FlowID:   "signup",
		Metadata: map[string]any{"user_password": "hunter2", "note": "ping bob@example.org", "safe": "public"},
	}}

	require.NoError(t, secure.Save(ctx, "pii", snap))

	// The caller's snapshot is untouched.
	assert.Equal(t, "write to jane@example.com", snap.History[0].(domain.Message).Content)
	assert.Equal(t, "hunter2", snap.Flows[0].Metadata["user_password"])

	stored, err := secure.Load(ctx, "pii")
	require.NoError(t, err)
	assert.Equal(t, "write to ***", stored.History[0].(domain.Message).Content)
	assert.Equal(t, domain.StepIdentifier{StepID: "start"}, stored.History[1])
	assert.Equal(t, []string{"user: ***"}, stored.History[2].(domain.Summary).Lines)
	assert.Equal(t, "***", stored.Flows[0].Metadata["user_password"])
	assert.Equal(t, "ping ***", stored.Flows[0].Metadata["note"])
	assert.Equal(t, "public", stored.Flows[0].Metadata["safe"])
}

func TestPIIMiddleware_InvalidPattern(t *testing.T) {
	_, err := middleware.NewPIIMiddleware([]string{"("})
	assert.Error(t, err)
}

func TestChain(t *testing.T) {
	underlying := memory.NewStore()
	pii, err := middleware.NewPIIMiddleware([]string{"secret"})
	require.NoError(t, err)
	enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: make([]byte, 32)})
	require.NoError(t, err)

	store := middleware.Chain(underlying, pii, enc)
	ctx := context.Background()

	snap := domain.NewSnapshot("c", "start")
	snap.History = snap.History.Append(domain.Message{Role: domain.RoleUser, Content: "a secret"})
	require.NoError(t, store.Save(ctx, "c", snap))

	loaded, err := store.Load(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "a ***", loaded.History[0].(domain.Message).Content)

	raw, err := underlying.Load(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "encrypted", raw.CurrentStepID)
}
