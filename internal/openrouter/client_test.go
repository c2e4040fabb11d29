package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{
		APIKey:     "test-key",
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)
	client.baseURL = srv.URL
	return client
}

func chatReply(content string) []byte {
	resp := map[string]interface{}{
		"id": "gen-1",
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	}
	b, _ := json.Marshal(resp)
	return b
}

func TestGenerateDebateStripsMarkdownFences(t *testing.T) {
	payload := "```json\n{\"summary\":\"s\",\"severity_score\":42,\"tags\":[\"BUREAUCRACY\"]," +
		"\"replies\":[{\"persona_id\":\"scout\",\"content\":\"c\"}]}\n```"

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Write(chatReply(payload))
	})

	result, err := client.GenerateDebate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "s", result.Summary)
	assert.EqualValues(t, 42, result.SeverityScore)
	require.Len(t, result.Replies, 1)
	assert.Equal(t, "scout", result.Replies[0].PersonaID)
}

func TestGenerateDebateRejectsEmptyReplies(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(chatReply(`{"summary":"s","severity_score":1,"tags":[],"replies":[]}`))
	})

	_, err := client.GenerateDebate(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no replies")
}

func TestGenerateDiscoveryRequiresTitle(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(chatReply(`{"title":"","description":"d"}`))
	})

	_, err := client.GenerateDiscovery(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without a title")
}

func TestGenerateDebateServerError(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.GenerateDebate(context.Background(), "prompt")
	require.Error(t, err)
	assert.GreaterOrEqual(t, calls, 2, "server errors are retried")
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{}, zap.NewNop())
	assert.Error(t, err)
}

func TestCleanMarkdown(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanMarkdown("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanMarkdown("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanMarkdown(`{"a":1}`))
}
