package cli

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/aretw0/stepwise"
	"github.com/aretw0/stepwise/internal/config"
	"github.com/aretw0/stepwise/internal/presentation/tui"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/observability"
	"github.com/aretw0/stepwise/pkg/oracle"
	"github.com/aretw0/stepwise/pkg/runner"
)

// RunOptions configures an interactive session.
type RunOptions struct {
	Path      string
	SessionID string
	JSON      bool
	Watch     bool
	Fresh     bool
	Debug     bool
	Verbose   bool
	Config    *config.Config

	// Stdin and Stdout default to the process streams.
	Stdin  io.Reader
	Stdout io.Writer
}

// RunSession converses with the agent at opts.Path until it ends the session,
// input runs out or ctx is cancelled. In watch mode the agent is reloaded
// whenever its definition changes and the session continues where it was.
func RunSession(ctx context.Context, opts RunOptions) error {
	if opts.Config == nil {
		opts.Config = config.NewDefaultConfig()
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.SessionID == "" {
		if opts.Watch {
			// Scoped by path so that projects do not share a watch session.
			hash := md5.Sum([]byte(opts.Path))
			opts.SessionID = fmt.Sprintf("watch-%x", hash[:4])
		} else {
			opts.SessionID = stepwise.NewSessionID()
		}
	}

	logger := NewLogger(opts.Config, opts.Debug)
	o, err := NewOracle(opts.Config)
	if err != nil {
		return err
	}
	p, err := NewPersistence(ctx, opts.Config)
	if err != nil {
		return err
	}
	defer p.Close()

	if opts.Fresh {
		if err := p.Store.Delete(ctx, opts.SessionID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			return err
		}
	}

	// One handler for every reload so that a single goroutine reads stdin.
	handler := newHandler(opts)
	if !opts.JSON {
		tui.PrintBanner(opts.Stdout, opts.Path, stepwise.Version)
	}

	for {
		reload, err := runOnce(ctx, opts, o, p, handler, logger)
		if err != nil || !reload {
			return err
		}
		logger.Info("definition changed, reloading", "path", opts.Path)
		_ = handler.SystemOutput(ctx, "Definition changed, reloading...")
	}
}

func newHandler(opts RunOptions) runner.IOHandler {
	if opts.JSON {
		return runner.NewJSONHandler(opts.Stdin, opts.Stdout)
	}
	textOpts := []runner.TextHandlerOption{runner.WithTextHandlerVerbose(opts.Verbose || opts.Debug)}
	if tui.IsTerminal(opts.Stdout) {
		textOpts = append(textOpts, runner.WithTextHandlerRenderer(tui.NewRenderer("", 0)))
	}
	return runner.NewTextHandler(opts.Stdin, opts.Stdout, textOpts...)
}

// runOnce runs the session against a freshly loaded agent. It reports
// whether the agent should be reloaded.
func runOnce(ctx context.Context, opts RunOptions, o oracle.Oracle, p *Persistence, handler runner.IOHandler, logger *slog.Logger) (bool, error) {
	var hooks domain.LifecycleHooks
	if opts.Debug {
		hooks = observability.LogHooks(logger)
	}

	agent, err := OpenAgent(opts.Path, opts.Config, o, logger, hooks)
	if err != nil {
		if !opts.Watch {
			return false, err
		}
		logger.Error("agent initialization failed", "err", err)
		_ = handler.SystemOutput(ctx, err.Error())
		select {
		case <-ctx.Done():
			return false, nil
		case <-time.After(2 * time.Second):
			return true, nil
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	reloaded := make(chan struct{})
	if opts.Watch {
		events, err := agent.Watch(runCtx)
		if err != nil {
			logger.Warn("watch unavailable", "path", opts.Path, "err", err)
		} else {
			go func() {
				select {
				case <-runCtx.Done():
				case _, ok := <-events:
					if ok {
						close(reloaded)
						cancel()
					}
				}
			}()
		}
	}

	r := runner.NewRunner(
		runner.WithManager(p.NewManager(agent, logger)),
		runner.WithSessionID(opts.SessionID),
		runner.WithInputHandler(handler),
		runner.WithLogger(logger),
		runner.WithMaxInputSize(opts.Config.MaxInputSize),
	)
	err = r.Run(runCtx)

	select {
	case <-reloaded:
		return true, nil
	default:
	}
	if ctx.Err() != nil {
		// Interrupted by the user.
		return false, nil
	}
	return false, err
}
