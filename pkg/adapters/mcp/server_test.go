package mcp_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/stepwise"
	"github.com/aretw0/stepwise/pkg/adapters/memory"
	stepmcp "github.com/aretw0/stepwise/pkg/adapters/mcp"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/oracle"
	"github.com/aretw0/stepwise/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, o oracle.Oracle) *stepmcp.Server {
	t.Helper()
	steps := []*domain.Step{
		{ID: "greet", Description: "Greet", Routes: []domain.Route{{Target: "bye"}}},
		{ID: "bye", Description: "Part"},
	}
	a, err := stepwise.New(steps, o, stepwise.WithName("greeter"), stepwise.WithMaxErrors(1))
	require.NoError(t, err)
	return stepmcp.NewServer(session.NewManager(a, memory.NewStore()))
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func TestHandleTurn(t *testing.T) {
	s := newServer(t, oracle.NewScripted(
		`{"reasoning":[],"action":"ANSWER","response":"Hello"}`,
		`{"reasoning":[],"action":"END","response":"Bye"}`,
	))
	ctx := context.Background()

	args := map[string]any{"session_id": "m1", "input": "hi"}
	resp, err := s.HandleTurn(ctx, callRequest(args), args)
	require.NoError(t, err)
	assert.Equal(t, "Hello", resp.Result.Decision.ResponseText())
	assert.Equal(t, "greet", resp.StepID)
	assert.False(t, resp.Ended)

	args["input"] = "bye"
	resp, err = s.HandleTurn(ctx, callRequest(args), args)
	require.NoError(t, err)
	assert.True(t, resp.Ended)

	res, err := s.HandleGetSession(ctx, callRequest(map[string]any{"session_id": "m1"}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	var snap domain.Snapshot
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].(mcp.TextContent).Text), &snap))
	assert.Equal(t, "m1", snap.SessionID)
}

func TestHandleTurn_Errors(t *testing.T) {
	s := newServer(t, oracle.NewScripted(`{"reasoning":[],"action":"MOVE","step_transition":"nowhere"}`).Repeat())
	ctx := context.Background()

	_, err := s.HandleTurn(ctx, callRequest(nil), map[string]any{})
	assert.ErrorContains(t, err, "session_id is required")

	args := map[string]any{"session_id": "m1", "input": "go"}
	resp, err := s.HandleTurn(ctx, callRequest(args), args)
	require.NoError(t, err)
	assert.Contains(t, resp.Error, "max errors exceeded")
	assert.Equal(t, "greet", resp.StepID)

	res, err := s.HandleGetSession(ctx, callRequest(map[string]any{"session_id": "ghost"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestAgentAndGraph(t *testing.T) {
	s := newServer(t, oracle.NewScripted())
	ctx := context.Background()

	res, err := s.HandleGetAgent(ctx, callRequest(nil))
	require.NoError(t, err)
	var info domain.AgentInfo
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].(mcp.TextContent).Text), &info))
	assert.Equal(t, "greeter", info.Name)

	contents, err := s.ReadAgent(ctx, mcp.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.Equal(t, stepmcp.AgentResourceURI, contents[0].(mcp.TextResourceContents).URI)

	contents, err = s.ReadGraph(ctx, mcp.ReadResourceRequest{})
	require.NoError(t, err)
	assert.Contains(t, contents[0].(mcp.TextResourceContents).Text, `greet(("greet"))`)
	assert.NotNil(t, s.MCPServer())
}
