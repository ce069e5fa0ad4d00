// Package lua exposes Lua functions as tools. Each call runs in a fresh,
// sandboxed interpreter: no io, os or module loading, and only
// deterministic math.
package lua

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/stepwise/internal/logging"
	"github.com/aretw0/stepwise/pkg/definition"
	"github.com/aretw0/stepwise/pkg/schema"
	"github.com/aretw0/stepwise/pkg/tool"
	"github.com/mitchellh/mapstructure"
	lua "github.com/yuin/gopher-lua"
)

// Kind is the tool kind served by this package.
const Kind = "lua"

// DefaultFunction is called when a tool names no function.
const DefaultFunction = "run"

// ScriptConfig locates the Lua code behind a tool. Exactly one of Script and
// File is set.
type ScriptConfig struct {
	Script   string `mapstructure:"script"`
	File     string `mapstructure:"file"`
	Function string `mapstructure:"function"`
}

// Runtime builds and runs Lua tools.
type Runtime struct {
	baseDir string
	logger  *slog.Logger
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithBaseDir resolves relative script files against dir.
func WithBaseDir(dir string) Option {
	return func(r *Runtime) { r.baseDir = dir }
}

// WithLogger receives messages scripts write with log().
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRuntime creates a Lua runtime.
func NewRuntime(opts ...Option) *Runtime {
	r := &Runtime{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Builder returns a definition.ToolBuilder for tools of kind "lua".
func (r *Runtime) Builder() definition.ToolBuilder {
	return func(spec definition.ToolSpec, params schema.Parameters) (*tool.Tool, error) {
		var cfg ScriptConfig
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{Result: &cfg, ErrorUnused: true})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(spec.Options); err != nil {
			return nil, fmt.Errorf("lua tool %q: %w", spec.Name, err)
		}
		return r.Tool(spec.Name, spec.Description, params, cfg)
	}
}

// Tool compiles cfg once to catch syntax errors and wraps it as a tool.
func (r *Runtime) Tool(name, description string, params schema.Parameters, cfg ScriptConfig) (*tool.Tool, error) {
	source, err := r.source(cfg)
	if err != nil {
		return nil, fmt.Errorf("lua tool %q: %w", name, err)
	}
	fn := cfg.Function
	if fn == "" {
		fn = DefaultFunction
	}

	L := r.newState()
	err = L.DoString(source)
	if err == nil && L.GetGlobal(fn).Type() != lua.LTFunction {
		err = fmt.Errorf("script must define a '%s' function", fn)
	}
	L.Close()
	if err != nil {
		return nil, fmt.Errorf("lua tool %q: %w", name, err)
	}

	return tool.New(name, description, params, func(ctx context.Context, args map[string]any) (any, error) {
		return r.Call(ctx, name, source, fn, args)
	})
}

func (r *Runtime) source(cfg ScriptConfig) (string, error) {
	switch {
	case cfg.Script != "" && cfg.File != "":
		return "", fmt.Errorf("script and file are mutually exclusive")
	case cfg.Script != "":
		return cfg.Script, nil
	case cfg.File != "":
		path := cfg.File
		if !filepath.IsAbs(path) && r.baseDir != "" {
			path = filepath.Join(r.baseDir, path)
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read script: %w", err)
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("script or file is required")
	}
}

// Call runs fn(args) from source in a fresh interpreter and returns its first
// result converted to Go.
func (r *Runtime) Call(ctx context.Context, name, source, fn string, args map[string]any) (any, error) {
	L := r.newState()
	defer L.Close()
	L.SetContext(ctx)

	L.SetGlobal("log", L.NewFunction(func(L *lua.LState) int {
		r.logger.Info(L.CheckString(1), "tool", name)
		return 0
	}))

	if err := L.DoString(source); err != nil {
		return nil, fmt.Errorf("failed to load script: %w", err)
	}
	f := L.GetGlobal(fn)
	if f.Type() != lua.LTFunction {
		return nil, fmt.Errorf("script must define a '%s' function", fn)
	}

	L.Push(f)
	L.Push(goToLua(L, args))
	if err := L.PCall(1, 1, nil); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("lua execution failed: %w", err)
	}
	ret := L.Get(-1)
	L.Pop(1)
	return luaToGo(ret), nil
}

func (r *Runtime) newState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibs(L)
	return L
}

func openSafeLibs(L *lua.LState) {
	lua.OpenBase(L)
	L.SetGlobal("loadfile", lua.LNil)
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("load", lua.LNil)
	L.SetGlobal("loadstring", lua.LNil)
	L.SetGlobal("print", lua.LNil)

	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	if tbl, ok := L.GetGlobal("math").(*lua.LTable); ok {
		L.SetField(tbl, "random", lua.LNil)
		L.SetField(tbl, "randomseed", lua.LNil)
	}
}
