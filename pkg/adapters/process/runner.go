// Package process exposes local commands as tools. Arguments are passed as
// STEPWISE_ARG_<NAME> environment variables, never as command-line flags, and
// stdout becomes the tool result (decoded when it is JSON).
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/stepwise/pkg/definition"
	"github.com/aretw0/stepwise/pkg/schema"
	"github.com/aretw0/stepwise/pkg/tool"
	"github.com/mitchellh/mapstructure"
)

// EnvPrefix prefixes every argument passed to a process.
const EnvPrefix = "STEPWISE_ARG_"

// Runner executes process tools.
type Runner struct {
	baseDir string
	timeout time.Duration
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithBaseDir sets the working directory for processes that declare none.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// WithDefaultTimeout bounds processes that declare no timeout.
func WithDefaultTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.timeout = d
	}
}

// NewRunner creates a new Process Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Builder returns a definition.ToolBuilder for tools of kind "process".
func (r *Runner) Builder() definition.ToolBuilder {
	return func(spec definition.ToolSpec, params schema.Parameters) (*tool.Tool, error) {
		cfg := ProcessConfig{Name: spec.Name, Description: spec.Description}
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &cfg,
			ErrorUnused:      true,
			WeaklyTypedInput: true,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(spec.Options); err != nil {
			return nil, fmt.Errorf("process tool %q: %w", spec.Name, err)
		}
		if err := cfg.validate(); err != nil {
			return nil, err
		}
		return r.Tool(cfg, params)
	}
}

// Tool wraps a single process configuration as a tool.
func (r *Runner) Tool(cfg ProcessConfig, params schema.Parameters) (*tool.Tool, error) {
	return tool.New(cfg.Name, cfg.Description, params, func(ctx context.Context, args map[string]any) (any, error) {
		return r.Execute(ctx, cfg, args)
	})
}

// Tools builds a tool set from configs loaded with LoadTools.
func (r *Runner) Tools(configs map[string]ProcessConfig) (*tool.Set, error) {
	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	sort.Strings(names)

	tools := make([]*tool.Tool, 0, len(names))
	for _, name := range names {
		cfg := configs[name]
		params, err := schema.ParseParameters(cfg.Parameters)
		if err != nil {
			return nil, fmt.Errorf("process tool %q: %w", name, err)
		}
		t, err := r.Tool(cfg, params)
		if err != nil {
			return nil, err
		}
		tools = append(tools, t)
	}
	return tool.NewSet(tools...)
}

// Execute runs the process with args in its environment.
func (r *Runner) Execute(ctx context.Context, cfg ProcessConfig, args map[string]any) (any, error) {
	timeout := r.timeout
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", cfg.Timeout, err)
		}
		timeout = d
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Dir = r.baseDir
	if cfg.Dir != "" {
		cmd.Dir = cfg.Dir
	}

	env := cmd.Environ()
	for k, v := range cfg.Environment {
		env = append(env, k+"="+v)
	}
	for k, v := range args {
		env = append(env, EnvPrefix+strings.ToUpper(k)+"="+envValue(v))
	}
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("process %q: %w", cfg.Command, ctx.Err())
		}
		return nil, fmt.Errorf("execution failed: %w. Stderr: %s", err, strings.TrimSpace(stderr.String()))
	}
	return decodeOutput(stdout.String()), nil
}

func envValue(v any) string {
	switch v.(type) {
	case nil:
		return ""
	case string, int, int64, float64, bool:
		return fmt.Sprintf("%v", v)
	default:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
		return fmt.Sprintf("%v", v)
	}
}

func decodeOutput(output string) any {
	trimmed := strings.TrimSpace(output)
	if (strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")) ||
		(strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]")) {
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return v
		}
	}
	return trimmed
}
