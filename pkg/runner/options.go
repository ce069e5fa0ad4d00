package runner

import (
	"log/slog"

	"github.com/aretw0/stepwise/pkg/session"
)

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithManager sets the session manager turns go through.
func WithManager(m *session.Manager) Option {
	return func(r *Runner) {
		r.Manager = m
	}
}

// WithSessionID sets the session to run. Existing sessions are resumed.
func WithSessionID(id string) Option {
	return func(r *Runner) {
		r.SessionID = id
	}
}

// WithInputHandler configures a custom IOHandler.
func WithInputHandler(handler IOHandler) Option {
	return func(r *Runner) {
		r.Handler = handler
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.Logger = logger
		}
	}
}

// WithMaxInputSize bounds a single user input in bytes.
func WithMaxInputSize(n int) Option {
	return func(r *Runner) {
		r.MaxInputSize = n
	}
}

// WithInitialInput is sent as the first user message instead of reading one.
func WithInitialInput(input string) Option {
	return func(r *Runner) {
		r.InitialInput = input
	}
}
