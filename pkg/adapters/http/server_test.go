package http_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/stepwise"
	"github.com/aretw0/stepwise/pkg/adapters/memory"
	stephttp "github.com/aretw0/stepwise/pkg/adapters/http"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/observability"
	"github.com/aretw0/stepwise/pkg/oracle"
	"github.com/aretw0/stepwise/pkg/session"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, o oracle.Oracle, opts ...stephttp.Option) *httptest.Server {
	t.Helper()
	steps := []*domain.Step{
		{ID: "greet", Description: "Greet", Routes: []domain.Route{{Target: "bye"}}},
		{ID: "bye", Description: "Part"},
	}

	reg := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	a, err := stepwise.New(steps, o, stepwise.WithName("greeter"), stepwise.WithMaxErrors(2), stepwise.WithLifecycleHooks(metrics.Hooks()))
	require.NoError(t, err)

	m := session.NewManager(a, memory.NewStore())
	srv := httptest.NewServer(stephttp.NewHandler(m, append([]stephttp.Option{stephttp.WithMetrics(reg)}, opts...)...))
	t.Cleanup(srv.Close)
	return srv
}

func postTurn(t *testing.T, url, input string) *http.Response {
	t.Helper()
	body, _ := json.Marshal(stephttp.TurnRequest{Input: input})
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServer_TurnAndSessions(t *testing.T) {
	srv := newServer(t, oracle.NewScripted(
		`{"reasoning":[],"action":"ANSWER","response":"Hello"}`,
		`{"reasoning":[],"action":"MOVE","step_transition":"bye"}`,
	))

	resp := postTurn(t, srv.URL+"/sessions/s1/turn", "hi")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var turn stephttp.TurnResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&turn))
	assert.Equal(t, "Hello", turn.Result.Decision.ResponseText())
	assert.Equal(t, "s1", turn.Snapshot.SessionID)

	resp = postTurn(t, srv.URL+"/sessions/s1/turn", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	get, err := http.Get(srv.URL + "/sessions/s1")
	require.NoError(t, err)
	defer get.Body.Close()
	var snap domain.Snapshot
	require.NoError(t, json.NewDecoder(get.Body).Decode(&snap))
	assert.Equal(t, "bye", snap.CurrentStepID)

	list, err := http.Get(srv.URL + "/sessions")
	require.NoError(t, err)
	defer list.Body.Close()
	var ids []string
	require.NoError(t, json.NewDecoder(list.Body).Decode(&ids))
	assert.Equal(t, []string{"s1"}, ids)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/sessions/s1", nil)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	del.Body.Close()
	assert.Equal(t, http.StatusNoContent, del.StatusCode)

	missing, err := http.Get(srv.URL + "/sessions/s1")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestServer_TurnErrors(t *testing.T) {
	srv := newServer(t, oracle.NewScripted(`{"reasoning":[],"action":"MOVE","step_transition":"nowhere"}`).Repeat(),
		stephttp.WithMaxInputSize(8))

	resp := postTurn(t, srv.URL+"/sessions/s1/turn", "this is far too long")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	bad, err := http.Post(srv.URL+"/sessions/s1/turn", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)

	resp = postTurn(t, srv.URL+"/sessions/s1/turn", "go")
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var e stephttp.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	assert.Contains(t, e.Error, "max errors exceeded")
	require.NotNil(t, e.Snapshot)
	assert.Equal(t, 0, e.Snapshot.ErrorCount)
	assert.Empty(t, e.Snapshot.History)
}

func TestServer_AgentGraphAndMetrics(t *testing.T) {
	srv := newServer(t, oracle.NewScripted(`{"reasoning":[],"action":"ANSWER","response":"Hi"}`))
	postTurn(t, srv.URL+"/sessions/s1/turn", "hi")

	resp, err := http.Get(srv.URL + "/agent")
	require.NoError(t, err)
	defer resp.Body.Close()
	var info domain.AgentInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, "greeter", info.Name)
	assert.Equal(t, "greet", info.StartStep)

	g, err := http.Get(srv.URL + "/agent/graph?session=s1")
	require.NoError(t, err)
	defer g.Body.Close()
	src, _ := io.ReadAll(g.Body)
	assert.Contains(t, string(src), "graph TD")
	assert.Contains(t, string(src), "class greet current;")

	m, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer m.Body.Close()
	text, _ := io.ReadAll(m.Body)
	assert.Contains(t, string(text), `stepwise_decisions_total{action="ANSWER"`)

	info2, err := http.Get(srv.URL + "/info")
	require.NoError(t, err)
	defer info2.Body.Close()
	var meta map[string]string
	require.NoError(t, json.NewDecoder(info2.Body).Decode(&meta))
	assert.Equal(t, "greeter", meta["agent"])
	assert.Equal(t, strings.TrimSpace(stepwise.Version), meta["version"])
}

func TestServer_SubscribeEvents(t *testing.T) {
	srv := newServer(t, oracle.NewScripted(`{"reasoning":[],"action":"MOVE","step_transition":"bye"}`))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sessions/s1/events?watch=step", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: ping\n", line)

	postTurn(t, srv.URL+"/sessions/s1/turn", "leave")

	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: {") {
			break
		}
	}
	var diff domain.SnapshotDiff
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &diff))
	require.NotNil(t, diff.CurrentStepID)
	assert.Equal(t, "bye", *diff.CurrentStepID)
}

func TestServer_WebSocketTurn(t *testing.T) {
	srv := newServer(t, oracle.NewScripted(`{"reasoning":[],"action":"ANSWER","response":"Hello"}`))

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/w1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(stephttp.WSMessage{Type: "turn", Input: "hi"}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got stephttp.WSMessage
	for got.Type != "turn" {
		got = stephttp.WSMessage{}
		require.NoError(t, conn.ReadJSON(&got))
		require.NotEqual(t, "error", got.Type, got.Error)
	}
	require.NotNil(t, got.Response)
	assert.Equal(t, "Hello", got.Response.Result.Decision.ResponseText())

	require.NoError(t, conn.WriteJSON(stephttp.WSMessage{Type: "shout"}))
	for got.Type != "error" {
		got = stephttp.WSMessage{}
		require.NoError(t, conn.ReadJSON(&got))
	}
	assert.Contains(t, got.Error, "unknown message type")
}

func TestServer_OpenAPISpec(t *testing.T) {
	srv := newServer(t, oracle.NewScripted())

	resp, err := http.Get(srv.URL + "/openapi.yaml")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(raw)
	require.NoError(t, err)
	require.NoError(t, doc.Validate(context.Background()))

	for _, path := range []string{"/health", "/info", "/agent", "/agent/graph", "/sessions", "/sessions/{id}", "/sessions/{id}/turn", "/sessions/{id}/events", "/sessions/{id}/ws"} {
		assert.NotNil(t, doc.Paths.Find(path), path)
	}

	served, err := stephttp.GetSwagger()
	require.NoError(t, err)
	assert.Equal(t, doc.Info.Title, served.Info.Title)
}

func TestServer_TurnValidatesBody(t *testing.T) {
	srv := newServer(t, oracle.NewScripted(`{"reasoning":[],"action":"ANSWER","response":"Hello"}`))

	for _, body := range []string{`{"input":42}`, `{"input":"hi","extra":true}`, `[]`} {
		resp, err := http.Post(srv.URL+"/sessions/s1/turn", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		var e stephttp.ErrorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.Equal(t, "invalid request body", e.Error)
	}

	resp := postTurn(t, srv.URL+"/sessions/s1/turn", "hi")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
