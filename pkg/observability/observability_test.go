package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/aretw0/stepwise"
	"github.com/aretw0/stepwise/internal/logging"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/observability"
	"github.com/aretw0/stepwise/pkg/oracle"
	"github.com/aretw0/stepwise/pkg/schema"
	"github.com/aretw0/stepwise/pkg/tool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runConversation(t *testing.T, hooks domain.LifecycleHooks) {
	t.Helper()
	steps := []*domain.Step{
		{ID: "start", Description: "Start", Routes: []domain.Route{{Target: "end"}}, AvailableTools: []string{"ping"}},
		{ID: "end", Description: "End"},
	}
	ping := tool.Must("ping", "", schema.Parameters{}, func(context.Context, map[string]any) (any, error) { return "pong", nil })
	o := oracle.NewScripted(
		`{"reasoning":[],"action":"DANCE"}`,
		`{"reasoning":[],"action":"TOOL_CALL","tool_call":{"tool_name":"ping","tool_kwargs":{}}}`,
		`{"reasoning":[],"action":"MOVE","step_transition":"end"}`,
	)
	agent, err := stepwise.New(steps, o, stepwise.WithTools(ping), stepwise.WithLifecycleHooks(hooks))
	require.NoError(t, err)

	sess, err := agent.NewSession("obs")
	require.NoError(t, err)
	_, err = sess.Next(context.Background(), "hi")
	require.NoError(t, err)
	_, err = sess.Next(context.Background(), "next")
	require.NoError(t, err)
}

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	runConversation(t, m.Hooks())

	expected := `
# HELP stepwise_tool_calls_total Tool invocations by tool and outcome.
# TYPE stepwise_tool_calls_total counter
stepwise_tool_calls_total{outcome="ok",tool_name="ping"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "stepwise_tool_calls_total"))

	expected = `
# HELP stepwise_step_visits_total Total number of step entries.
# TYPE stepwise_step_visits_total counter
stepwise_step_visits_total{step_id="end"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "stepwise_step_visits_total"))

	expected = `
# HELP stepwise_errors_total Recovered errors and hard stops.
# TYPE stepwise_errors_total counter
stepwise_errors_total{fatal="false",step_id="start"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "stepwise_errors_total"))

	_, err = observability.NewMetrics(reg)
	assert.Error(t, err, "double registration")
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, slog.LevelDebug, true)

	runConversation(t, observability.LogHooks(logger))

	out := buf.String()
	assert.Contains(t, out, `"msg":"tool_call"`)
	assert.Contains(t, out, `"msg":"step_enter"`)
	assert.Contains(t, out, `"msg":"engine_error"`)
	assert.Contains(t, out, `"tool":"ping"`)
}
