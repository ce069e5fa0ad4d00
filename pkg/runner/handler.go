package runner

import (
	"context"

	"github.com/aretw0/stepwise/pkg/domain"
)

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (CLI/TUI) and JSON (Structured) modes.
type IOHandler interface {
	// Output presents the outcome of a turn.
	Output(ctx context.Context, res *domain.TurnResult) error

	// Input reads a response from the user. io.EOF ends the conversation.
	Input(ctx context.Context) (string, error)

	// SystemOutput presents a meta-message to the user (e.g. a rejected input
	// or a turn stopped by a limit). This is distinct from agent output.
	SystemOutput(ctx context.Context, msg string) error
}

// ContentRenderer transforms agent text before output, e.g. Markdown to ANSI.
type ContentRenderer func(string) (string, error)
