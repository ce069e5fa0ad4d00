package lua

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/stepwise/pkg/definition"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func params(t *testing.T, specs map[string]schema.ParameterSpec) schema.Parameters {
	t.Helper()
	p, err := schema.ParseParameters(specs)
	require.NoError(t, err)
	return p
}

func TestRuntime_InlineScript(t *testing.T) {
	build := NewRuntime().Builder()
	tl, err := build(definition.ToolSpec{
		Name: "add",
		Options: map[string]any{"script": `
function run(args)
  return { sum = args.a + args.b, tags = { "x", "y" } }
end`},
	}, params(t, map[string]schema.ParameterSpec{"a": {Type: "int"}, "b": {Type: "int"}}))
	require.NoError(t, err)

	out, err := tl.Fn(context.Background(), map[string]any{"a": 2, "b": 3})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"sum": int64(5), "tags": []any{"x", "y"}}, out)

	s, err := tl.Run(context.Background(), map[string]any{"a": 1, "b": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"sum":2,"tags":["x","y"]}`, s)
}

func TestRuntime_FileAndFunction(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "greet.lua"), []byte(`
function greet(args)
  return "hello " .. string.upper(args.name)
end`), 0o644))

	rt := NewRuntime(WithBaseDir(dir))
	tl, err := rt.Tool("greet", "", params(t, map[string]schema.ParameterSpec{"name": {Type: "string"}}), ScriptConfig{File: "greet.lua", Function: "greet"})
	require.NoError(t, err)

	s, err := tl.Run(context.Background(), map[string]any{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, "hello ADA", s)
}

func TestRuntime_Errors(t *testing.T) {
	rt := NewRuntime()

	t.Run("Syntax Error At Build", func(t *testing.T) {
		_, err := rt.Tool("bad", "", nil, ScriptConfig{Script: "function run("})
		assert.Error(t, err)
	})

	t.Run("Missing Function", func(t *testing.T) {
		_, err := rt.Tool("bad", "", nil, ScriptConfig{Script: "x = 1"})
		assert.ErrorContains(t, err, "'run' function")
	})

	t.Run("Script And File", func(t *testing.T) {
		_, err := rt.Tool("bad", "", nil, ScriptConfig{Script: "x = 1", File: "x.lua"})
		assert.Error(t, err)
	})

	t.Run("Runtime Error Is Execution Error", func(t *testing.T) {
		tl, err := rt.Tool("boom", "", nil, ScriptConfig{Script: `function run() error("boom") end`})
		require.NoError(t, err)
		_, err = tl.Run(context.Background(), nil)
		assert.True(t, errors.Is(err, domain.ErrToolExecution))
		assert.ErrorContains(t, err, "boom")
	})

	t.Run("Sandbox Has No OS", func(t *testing.T) {
		tl, err := rt.Tool("escape", "", nil, ScriptConfig{Script: `function run() return os.getenv("HOME") end`})
		require.NoError(t, err)
		_, err = tl.Run(context.Background(), nil)
		assert.Error(t, err)
	})

	t.Run("Cancellation", func(t *testing.T) {
		tl, err := rt.Tool("spin", "", nil, ScriptConfig{Script: `function run() while true do end end`})
		require.NoError(t, err)
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err = tl.Run(ctx, nil)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})
}
