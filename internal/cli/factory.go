// Package cli assembles agents, oracles and stores from configuration for the
// stepwise command.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aretw0/stepwise"
	"github.com/aretw0/stepwise/internal/config"
	"github.com/aretw0/stepwise/internal/logging"
	"github.com/aretw0/stepwise/pkg/adapters/blob"
	"github.com/aretw0/stepwise/pkg/adapters/file"
	"github.com/aretw0/stepwise/pkg/adapters/memory"
	redisAdapter "github.com/aretw0/stepwise/pkg/adapters/redis"
	"github.com/aretw0/stepwise/pkg/adapters/sqlite"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/oracle"
	anthropicOracle "github.com/aretw0/stepwise/pkg/oracle/anthropic"
	openaiOracle "github.com/aretw0/stepwise/pkg/oracle/openai"
	"github.com/aretw0/stepwise/pkg/ports"
	"github.com/aretw0/stepwise/pkg/session"
	"github.com/anthropics/anthropic-sdk-go"
)

var ErrMissingScript = errors.New("the scripted oracle needs a script file (STEPWISE_SCRIPT or --script)")

// NewLogger configures the application logger. Logs go to stderr so they
// never mix with the conversation on stdout.
func NewLogger(cfg *config.Config, debug bool) *slog.Logger {
	if debug {
		return logging.New(slog.LevelDebug)
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return logging.New(slog.LevelInfo)
	}
	return logging.New(level)
}

// NewOracle builds the oracle named by cfg.Oracle.
func NewOracle(cfg *config.Config) (oracle.Oracle, error) {
	switch cfg.Oracle {
	case config.OracleOpenAI:
		return openaiOracle.New(func(o *openaiOracle.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
		}), nil
	case config.OracleAnthropic:
		return anthropicOracle.New(func(o *anthropicOracle.Options) {
			if cfg.Model != "" {
				o.Model = anthropic.Model(cfg.Model)
			}
		}), nil
	case config.OracleScripted:
		if cfg.Script == "" {
			return nil, ErrMissingScript
		}
		return LoadScript(cfg.Script)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidOracle, cfg.Oracle)
	}
}

// LoadScript reads a scripted oracle from a JSON Lines file, one decision
// per line. Blank lines and lines starting with # are skipped.
func LoadScript(path string) (*oracle.Scripted, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open script: %w", err)
	}
	defer f.Close()

	var replies []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		replies = append(replies, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return oracle.NewScripted(replies...), nil
}

// Persistence bundles the store selected by configuration with its locker,
// when the backend provides one, and a release function.
type Persistence struct {
	Store  ports.SnapshotStore
	Locker ports.DistributedLocker
	Close  func() error
}

// NewPersistence opens the store named by cfg.Store.
func NewPersistence(ctx context.Context, cfg *config.Config) (*Persistence, error) {
	noop := func() error { return nil }
	switch cfg.Store {
	case config.StoreMemory:
		return &Persistence{Store: memory.NewStore(), Close: noop}, nil
	case config.StoreFile:
		return &Persistence{Store: file.New(cfg.StorePath), Close: noop}, nil
	case config.StoreSQLite:
		s, err := sqlite.New(cfg.StorePath)
		if err != nil {
			return nil, err
		}
		return &Persistence{Store: s, Close: s.Close}, nil
	case config.StoreBlob:
		s, err := blob.Open(ctx, cfg.StorePath, "sessions/")
		if err != nil {
			return nil, err
		}
		return &Persistence{Store: s, Close: s.Close}, nil
	case config.StoreRedis:
		s := redisAdapter.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redisAdapter.WithPrefix(cfg.Redis.Prefix+":session:"),
			redisAdapter.WithTTL(cfg.SessionTTL))
		return &Persistence{
			Store:  s,
			Locker: redisAdapter.NewLocker(s.Client(), cfg.Redis.Prefix+":lock:"),
			Close:  s.Close,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidStore, cfg.Store)
	}
}

// NewManager wires a session manager over p, using its locker if any.
func (p *Persistence) NewManager(agent ports.StatelessAgent, logger *slog.Logger) *session.Manager {
	opts := []session.Option{session.WithLogger(logger)}
	if p.Locker != nil {
		opts = append(opts, session.WithLocker(p.Locker))
	}
	return session.NewManager(agent, p.Store, opts...)
}

// OpenAgent loads the agent at path. Budgets in the definition win unless
// the configuration moved them off the defaults.
func OpenAgent(path string, cfg *config.Config, o oracle.Oracle, logger *slog.Logger, hooks domain.LifecycleHooks) (*stepwise.Agent, error) {
	opts := []stepwise.Option{
		stepwise.WithLogger(logger),
		stepwise.WithLifecycleHooks(hooks),
	}
	if cfg.MaxErrors != config.DefaultMaxErrors {
		opts = append(opts, stepwise.WithMaxErrors(cfg.MaxErrors))
	}
	if cfg.MaxIterations != config.DefaultMaxIterations {
		opts = append(opts, stepwise.WithMaxIterations(cfg.MaxIterations))
	}

	a, err := stepwise.Open(path, o, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing agent: %w", err)
	}
	return a, nil
}
