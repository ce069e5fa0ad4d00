package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aretw0/stepwise/pkg/decision"
	"github.com/aretw0/stepwise/pkg/domain"
	"github.com/aretw0/stepwise/pkg/oracle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOracle_Decide(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "{\"reasoning\":[],\"action\":\"END\"}"}
			}]
		}`)
	}))
	defer srv.Close()

	o := New(func(opts *Options) {
		opts.APIKey = "test"
		opts.BaseURL = srv.URL + "/"
	})

	step := &domain.Step{ID: "start"}
	raw, err := o.Decide(context.Background(), &oracle.Request{
		Step:    step,
		History: domain.History{domain.Message{Role: domain.RoleUser, Content: "bye"}},
		Schema:  decision.Build(step, nil),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"reasoning":[],"action":"END"}`, string(raw))

	require.NotNil(t, body)
	assert.Equal(t, "gpt-4o-mini", body["model"])
	format := body["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])

	messages := body["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
}
