package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/stepwise/internal/logging"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/session"
)

// Runner handles the conversation loop of one session using provided IO.
type Runner struct {
	Manager      *session.Manager
	SessionID    string
	Handler      IOHandler
	Logger       *slog.Logger
	MaxInputSize int
	InitialInput string
}

// NewRunner creates a new Runner with a text handler on Stdin/Stdout.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{Logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	if r.Handler == nil {
		r.Handler = NewTextHandler(nil, nil)
	}
	return r
}

// Run converses until the agent ends the session, the input is exhausted or
// ctx is done. Rejected inputs are reported and read again; limit errors are
// reported and end the run with the error.
func (r *Runner) Run(ctx context.Context) error {
	if r.Manager == nil {
		return errors.New("runner: a session manager is required")
	}
	if r.SessionID == "" {
		return errors.New("runner: a session id is required")
	}
	log := r.Logger.With("session_id", r.SessionID)

	snap, err := r.Manager.LoadOrStart(ctx, r.SessionID)
	if err != nil {
		return err
	}
	log.Debug("session ready", "step_id", snap.CurrentStepID, "history", len(snap.History))

	pending := r.InitialInput
	needInput := pending == ""
	for {
		input := pending
		pending = ""
		if needInput {
			input, err = r.readInput(ctx)
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return err
			}
		}

		res, _, err := r.Manager.Turn(ctx, r.SessionID, input)
		if err != nil {
			var limitErr *domain.LimitError
			if errors.As(err, &limitErr) {
				_ = r.Handler.SystemOutput(ctx, fmt.Sprintf("session stopped: %v", err))
			}
			return err
		}

		if err := r.Handler.Output(ctx, res); err != nil {
			return fmt.Errorf("output error: %w", err)
		}
		if res.Ended() {
			log.Debug("session ended", "step_id", res.StepID)
			return nil
		}
		needInput = waitsForUser(res.Decision.Action)
	}
}

func (r *Runner) readInput(ctx context.Context) (string, error) {
	for {
		raw, err := r.Handler.Input(ctx)
		if err != nil {
			return "", err
		}
		var input string
		if r.MaxInputSize > 0 {
			input, err = SanitizeInputWithLimit(raw, r.MaxInputSize)
		} else {
			input, err = SanitizeInput(raw)
		}
		if err != nil {
			_ = r.Handler.SystemOutput(ctx, err.Error())
			continue
		}
		if input == "" {
			continue
		}
		return input, nil
	}
}

// waitsForUser reports whether the agent handed the turn back to the user.
func waitsForUser(a domain.Action) bool {
	return a == domain.ActionAsk || a == domain.ActionAnswer
}
