package tool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGreeter(t *testing.T, calls *int) *Tool {
	t.Helper()
	greet, err := New("greet", "Greets someone", schema.Parameters{
		"name":     {Type: schema.String()},
		"greeting": {Type: schema.String(), Default: "Hello"},
	}, func(_ context.Context, args map[string]any) (any, error) {
		*calls++
		return args["greeting"].(string) + ", " + args["name"].(string), nil
	})
	require.NoError(t, err)
	return greet
}

func TestTool_Run(t *testing.T) {
	var calls int
	greet := newGreeter(t, &calls)

	out, err := greet.Run(context.Background(), map[string]any{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hello, Ada", out)
	assert.Equal(t, 1, calls)
}

func TestTool_ArgumentErrorDoesNotInvoke(t *testing.T) {
	var calls int
	greet := newGreeter(t, &calls)

	_, err := greet.Run(context.Background(), map[string]any{"name": 7, "mood": "happy"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrToolArgument))
	assert.False(t, errors.Is(err, domain.ErrToolExecution))

	var argErr *ArgumentError
	require.True(t, errors.As(err, &argErr))
	assert.Equal(t, []string{"name", "mood"}, argErr.Fields)
	assert.Equal(t, 0, calls)
}

func TestTool_ExecutionErrors(t *testing.T) {
	boom := errors.New("boom")
	failing := Must("fail", "", nil, func(context.Context, map[string]any) (any, error) {
		return nil, boom
	})
	panicking := Must("panic", "", nil, func(context.Context, map[string]any) (any, error) {
		panic("kaboom")
	})

	_, err := failing.Run(context.Background(), nil)
	assert.True(t, errors.Is(err, domain.ErrToolExecution))
	assert.True(t, errors.Is(err, boom))

	_, err = panicking.Run(context.Background(), nil)
	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "panic", execErr.Tool)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestTool_ResultCoercion(t *testing.T) {
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name string
		out  any
		want string
	}{
		{"string", "ok", "ok"},
		{"bytes", []byte("raw"), "raw"},
		{"stringer", fixed, fixed.String()},
		{"json", map[string]int{"n": 1}, `{"n":1}`},
		{"nil", nil, ""},
		{"number", 42, "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := Must("t", "", nil, func(context.Context, map[string]any) (any, error) { return tt.out, nil })
			got, err := tl.Run(context.Background(), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	unserializable := Must("ch", "", nil, func(context.Context, map[string]any) (any, error) { return make(chan int), nil })
	_, err := unserializable.Run(context.Background(), nil)
	assert.True(t, errors.Is(err, domain.ErrToolExecution))
}

func TestNew_Validation(t *testing.T) {
	_, err := New("", "", nil, func(context.Context, map[string]any) (any, error) { return nil, nil })
	assert.Error(t, err)
	_, err = New("x", "", nil, nil)
	assert.Error(t, err)
}

func TestSet(t *testing.T) {
	var calls int
	greet := newGreeter(t, &calls)
	clock := Must("get_time", "Current time", nil, func(context.Context, map[string]any) (any, error) {
		return "12:00", nil
	})

	set, err := NewSet(greet, clock)
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
	assert.Equal(t, []string{"get_time", "greet"}, set.Names())

	tools, err := set.Resolve([]string{"get_time"})
	require.NoError(t, err)
	assert.Equal(t, clock, tools[0])

	_, err = set.Resolve([]string{"missing"})
	assert.True(t, errors.Is(err, domain.ErrToolNotFound))

	out, err := set.Run(context.Background(), "get_time", nil)
	require.NoError(t, err)
	assert.Equal(t, "12:00", out)

	_, err = NewSet(clock, clock)
	assert.True(t, errors.Is(err, domain.ErrInvalidAgentDefinition))

	var empty *Set
	_, ok := empty.Get("x")
	assert.False(t, ok)
}
