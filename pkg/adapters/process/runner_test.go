package process

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/aretw0/stepwise/pkg/definition"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestRunner_Execute(t *testing.T) {
	skipOnWindows(t)
	r := NewRunner()
	ctx := context.Background()

	t.Run("Returns Trimmed Stdout", func(t *testing.T) {
		out, err := r.Execute(ctx, ProcessConfig{Command: "echo", Args: []string{"hello"}}, nil)
		require.NoError(t, err)
		assert.Equal(t, "hello", out)
	})

	t.Run("Passes Arguments via Env Vars", func(t *testing.T) {
		cfg := ProcessConfig{Command: "sh", Args: []string{"-c", "echo $STEPWISE_ARG_NAME-$STEPWISE_ARG_TAGS-$GREETING"}, Environment: map[string]string{"GREETING": "hi"}}
		out, err := r.Execute(ctx, cfg, map[string]any{"name": "ada", "tags": []any{"a"}})
		require.NoError(t, err)
		assert.Equal(t, `ada-["a"]-hi`, out)
	})

	t.Run("Decodes JSON Output", func(t *testing.T) {
		cfg := ProcessConfig{Command: "sh", Args: []string{"-c", `echo '{"ok": true}'`}}
		out, err := r.Execute(ctx, cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"ok": true}, out)
	})

	t.Run("Reports Stderr On Failure", func(t *testing.T) {
		cfg := ProcessConfig{Command: "sh", Args: []string{"-c", "echo boom >&2; exit 3"}}
		_, err := r.Execute(ctx, cfg, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("Honors Timeout", func(t *testing.T) {
		cfg := ProcessConfig{Command: "sleep", Args: []string{"5"}, Timeout: "50ms"}
		start := time.Now()
		_, err := r.Execute(ctx, cfg, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
		assert.Less(t, time.Since(start), 4*time.Second)
	})
}

func TestRunner_Builder(t *testing.T) {
	skipOnWindows(t)
	params, err := schema.ParseParameters(map[string]schema.ParameterSpec{"who": {Type: "string"}})
	require.NoError(t, err)

	build := NewRunner().Builder()
	tl, err := build(definition.ToolSpec{
		Name: "greet",
		Kind: Kind,
		Options: map[string]any{
			"command": "sh",
			"args":    []any{"-c", "echo hello $STEPWISE_ARG_WHO"},
		},
	}, params)
	require.NoError(t, err)

	out, err := tl.Run(context.Background(), map[string]any{"who": "world"})
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)

	_, err = tl.Run(context.Background(), map[string]any{})
	assert.True(t, errors.Is(err, domain.ErrToolArgument))

	t.Run("Rejects Unknown Options", func(t *testing.T) {
		_, err := build(definition.ToolSpec{Name: "x", Options: map[string]any{"command": "true", "shell": "bash"}}, nil)
		assert.Error(t, err)
	})

	t.Run("Requires Command", func(t *testing.T) {
		_, err := build(definition.ToolSpec{Name: "x", Options: map[string]any{}}, nil)
		assert.Error(t, err)
	})
}

func TestRunner_FailureIsExecutionError(t *testing.T) {
	skipOnWindows(t)
	tl, err := NewRunner().Tool(ProcessConfig{Name: "fail", Command: "false"}, nil)
	require.NoError(t, err)

	_, err = tl.Run(context.Background(), nil)
	assert.True(t, errors.Is(err, domain.ErrToolExecution))
}

func TestLoadTools(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tools.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`tools:
  - name: date
    description: Prints the date
    command: date
    timeout: 2s
  - name: echo
    command: echo
    parameters:
      text:
        type: string
  - command: nameless
`), 0o644))

	tools, err := LoadTools(path)
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "date", tools["date"].Command)
	assert.Equal(t, "string", tools["echo"].Parameters["text"].Type)

	set, err := NewRunner().Tools(tools)
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "echo"}, set.Names())

	missing, err := LoadTools(filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err)
	assert.Empty(t, missing)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("tools:\n  - name: x\n    command: y\n    timeout: soon\n"), 0o644))
	_, err = LoadTools(bad)
	assert.Error(t, err)
}
