package ports

import (
	"context"

	"github.com/aretw0/stepwise/pkg/domain"
)

// StatelessAgent is the interface transports drive. Snapshots flow in and out;
// the agent keeps no per-session state between calls.
type StatelessAgent interface {
	// Start creates the snapshot of a new conversation.
	Start(sessionID string) (*domain.Snapshot, error)

	// Turn runs one turn on snap and returns the result with the next snapshot.
	// On any error, limit errors included, the returned snapshot is the
	// committed state snap already held and nothing needs persisting.
	Turn(ctx context.Context, snap *domain.Snapshot, input string) (*domain.TurnResult, *domain.Snapshot, error)

	// Inspect describes the agent's steps, flows and tools.
	Inspect() domain.AgentInfo
}
