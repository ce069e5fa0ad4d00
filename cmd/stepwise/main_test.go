package main

import (
	"bytes"
	"testing"

	"github.com/aretw0/stepwise/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const supportYAML = `
name: support
steps:
  - id: greet
    description: Greet the user.
    routes: [bye]
  - id: bye
    description: Say goodbye.
  - id: orphan
    description: Never reached.
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeAgent(t *testing.T) string {
	t.Helper()
	return testutils.WriteAgent(t, "support.yaml", supportYAML)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "stepwise version")
}

func TestValidateCommand(t *testing.T) {
	out, err := execute(t, "validate", writeAgent(t))
	require.NoError(t, err)
	assert.Contains(t, out, "warning: step 'orphan' is unreachable from 'greet'")
	assert.Contains(t, out, "Agent 'support' is valid!")
}

func TestGraphCommand(t *testing.T) {
	out, err := execute(t, "graph", writeAgent(t))
	require.NoError(t, err)
	assert.Contains(t, out, "graph TD")
	assert.Contains(t, out, "greet --> bye")
}

func TestSessionCommands(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "session", "ls", "--store", "file", "--store-path", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions found.")

	_, err = execute(t, "session", "rm", "--store", "file", "--store-path", dir)
	assert.Error(t, err)
}
