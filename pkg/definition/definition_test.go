package definition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/flow"
	"github.com/aretw0/stepwise/pkg/schema"
	"github.com/aretw0/stepwise/pkg/tool"
	"github.com/mitchellh/mapstructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shopYAML = `
name: shop
description: Sells socks.
start: browse
persona: A cheerful clerk.
max_errors: 5
steps:
  - id: browse
    description: Help the user pick socks.
    routes:
      - cart
      - to: help
        condition: the user is lost
    tools: [stock]
  - id: cart
    description: Confirm the order.
    quick_suggestions: true
    routes: [pay]
  - id: pay
    description: Take payment.
  - id: help
    description: Answer questions.
flows:
  - id: shopping
    enters: [browse]
    exits: [cart]
    steps: [browse, cart]
    memory:
      keep: 5
tools:
  - name: stock
    kind: echo
    description: Checks stock.
    parameters:
      color: string
      size:
        type: int
        default: 42
    reply: in stock
`

type echoOptions struct {
	Reply string `mapstructure:"reply"`
}

func echoBuilder(spec ToolSpec, params schema.Parameters) (*tool.Tool, error) {
	var opts echoOptions
	if err := mapstructure.Decode(spec.Options, &opts); err != nil {
		return nil, err
	}
	return tool.New(spec.Name, spec.Description, params, func(context.Context, map[string]any) (any, error) {
		return opts.Reply, nil
	})
}

func TestParse_Shorthands(t *testing.T) {
	doc, err := Parse([]byte(shopYAML))
	require.NoError(t, err)

	assert.Equal(t, "shop", doc.Name)
	assert.Equal(t, 5, doc.MaxErrors)
	require.Len(t, doc.Steps, 4)
	assert.Equal(t, []RouteSpec{{To: "cart"}, {To: "help", Condition: "the user is lost"}}, doc.Steps[0].Routes)
	assert.True(t, doc.Steps[1].QuickSuggestions)

	require.Len(t, doc.Tools, 1)
	assert.Equal(t, ParameterSpec{Type: "string"}, doc.Tools[0].Parameters["color"])
	assert.Equal(t, 42, doc.Tools[0].Parameters["size"].Default)
	assert.Equal(t, "in stock", doc.Tools[0].Options["reply"])

	require.Len(t, doc.Flows, 1)
	assert.Equal(t, 5, doc.Flows[0].Memory.Keep)
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("name: x\nstpes: []\n"))
	assert.True(t, errors.Is(err, domain.ErrInvalidAgentDefinition))

	_, err = Parse([]byte("name: [unclosed"))
	assert.True(t, errors.Is(err, domain.ErrInvalidAgentDefinition))
}

func TestParse_JSON(t *testing.T) {
	doc, err := Parse([]byte(`{"name":"j","steps":[{"id":"a","routes":["b"]},{"id":"b"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "a", doc.StartStep())
	assert.Equal(t, "b", doc.Steps[0].Routes[0].To)
}

func TestCompile(t *testing.T) {
	doc, err := Parse([]byte(shopYAML))
	require.NoError(t, err)

	c, err := Compile(doc, WithToolBuilder("echo", echoBuilder))
	require.NoError(t, err)

	assert.Equal(t, "browse", c.Start)
	assert.Equal(t, "A cheerful clerk.", c.Persona)
	require.Len(t, c.Steps, 4)
	assert.Equal(t, []string{"cart", "help"}, c.Steps[0].RouteTargets())

	out, err := c.Tools.Run(context.Background(), "stock", map[string]any{"color": "red"})
	require.NoError(t, err)
	assert.Equal(t, "in stock", out)

	f, ok := c.Flows.Flow("shopping")
	require.True(t, ok)
	assert.True(t, f.CanExit("cart"))
	require.Len(t, f.Components(), 1)
	assert.Equal(t, "memory", f.Components()[0].Name())
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		opts []CompileOption
		want error
	}{
		{"no steps", "name: empty\n", nil, domain.ErrInvalidAgentDefinition},
		{"bad start", "start: nope\nsteps: [{id: a}]\n", nil, domain.ErrInvalidAgentDefinition},
		{"bad step", "steps: [{id: a, auto_flow: true}]\n", nil, domain.ErrInvalidStepDefinition},
		{"unknown kind", "steps: [{id: a}]\ntools: [{name: t, kind: rocket}]\n", nil, domain.ErrInvalidAgentDefinition},
		{"bad param type", "steps: [{id: a}]\ntools: [{name: t, kind: echo, parameters: {x: tensor}}]\n",
			[]CompileOption{WithToolBuilder("echo", echoBuilder)}, domain.ErrInvalidAgentDefinition},
		{"unknown component", "steps: [{id: a}]\nflows: [{id: f, enters: [a], steps: [a], components: [audit]}]\n", nil, domain.ErrInvalidFlowDefinition},
		{"bad flow", "steps: [{id: a}]\nflows: [{id: f, enters: [z], steps: [a]}]\n", nil, domain.ErrInvalidFlowDefinition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)
			_, err = Compile(doc, tt.opts...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), err.Error())
		})
	}
}

func TestCompile_GoToolsAndComponents(t *testing.T) {
	doc, err := Parse([]byte(`
steps: [{id: a, tools: [now]}]
flows: [{id: f, enters: [a], steps: [a], components: [audit]}]
`))
	require.NoError(t, err)

	now := tool.Must("now", "", nil, func(context.Context, map[string]any) (any, error) { return "noon", nil })
	var built []string
	c, err := Compile(doc,
		WithTools(tool.MustSet(now)),
		WithComponent("audit", func(flowID string) (flow.Component, error) {
			built = append(built, flowID)
			return flow.Funcs{ComponentName: "audit"}, nil
		}),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"now"}, c.Tools.Names())
	assert.Equal(t, []string{"f"}, built)
}

type fakeLoader struct {
	manifest string
	steps    map[string]string
	order    []string
}

func (l *fakeLoader) Manifest(context.Context) ([]byte, error) { return []byte(l.manifest), nil }

func (l *fakeLoader) ListSteps(context.Context) ([]string, error) { return l.order, nil }

func (l *fakeLoader) GetStep(_ context.Context, id string) ([]byte, error) {
	s, ok := l.steps[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrStepNotFound, id)
	}
	return []byte(s), nil
}

func TestLoad(t *testing.T) {
	l := &fakeLoader{
		manifest: "name: split\nstart: hello\n",
		steps: map[string]string{
			"hello": "description: Greet.\nroutes: [bye]\n",
			"bye":   `{"id":"bye","description":"Part."}`,
		},
		order: []string{"hello", "bye"},
	}
	doc, err := Load(context.Background(), l)
	require.NoError(t, err)
	require.Len(t, doc.Steps, 2)
	assert.Equal(t, "hello", doc.Steps[0].ID)
	assert.Equal(t, "Part.", doc.Steps[1].Description)

	l.manifest = "steps: [{id: hello}]\n"
	_, err = Load(context.Background(), l)
	assert.ErrorContains(t, err, "more than once")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(shopYAML), 0o644))

	doc, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "shop", doc.Name)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDocument_JSONRoundTrip(t *testing.T) {
	doc, err := Parse([]byte(shopYAML))
	require.NoError(t, err)

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	again, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, doc.Steps, again.Steps)
	require.Len(t, again.Tools, 1)
	assert.Equal(t, "in stock", again.Tools[0].Options["reply"])
	assert.Equal(t, "echo", again.Tools[0].Kind)
	assert.Equal(t, doc.Tools[0].Parameters, again.Tools[0].Parameters)
}
