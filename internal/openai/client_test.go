package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return srv
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body any) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	assert.NoError(t, json.NewEncoder(w).Encode(body))
}

func embeddingResponse(values []float64) map[string]any {
	return map[string]any{
		"object": "list",
		"model":  "text-embedding-3-small",
		"data": []map[string]any{
			{"object": "embedding", "index": 0, "embedding": values},
		},
		"usage": map[string]any{"prompt_tokens": 1, "total_tokens": 1},
	}
}

func TestCreateEmbedding_EmptyInput(t *testing.T) {
	c := NewClient("key")

	_, err := c.CreateEmbedding(context.Background(), "   ")
	require.ErrorIs(t, err, ErrEmptyInput)
}

func TestCreateEmbedding_InvalidDims(t *testing.T) {
	c := NewClient("key", WithDimensions(0))

	_, err := c.CreateEmbedding(context.Background(), "hello")
	require.ErrorIs(t, err, ErrInvalidDims)
}

func TestCreateEmbedding_Success(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "custom-model", body["model"])
		assert.InDelta(t, 3, body["dimensions"], 0)

		writeJSON(t, w, http.StatusOK, embeddingResponse([]float64{0.5, 0.25, -1}))
	})

	c := NewClient("key", WithBaseURL(srv.URL), WithModel("custom-model"), WithDimensions(3))

	vec, err := c.CreateEmbedding(context.Background(), "colmado")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.25, -1}, vec)
}

func TestCreateEmbedding_DimensionMismatch(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, http.StatusOK, embeddingResponse([]float64{1, 0}))
	})

	c := NewClient("key", WithBaseURL(srv.URL), WithDimensions(3))

	_, err := c.CreateEmbedding(context.Background(), "colmado")
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestCreateEmbedding_NoRetries(t *testing.T) {
	var calls atomic.Int32

	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeJSON(t, w, http.StatusInternalServerError, map[string]any{"error": map[string]any{"message": "boom"}})
	})

	c := NewClient("key", WithBaseURL(srv.URL), WithDimensions(3))

	_, err := c.CreateEmbedding(context.Background(), "colmado")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCreateChatCompletion(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var body struct {
			Model       string   `json:"model"`
			Temperature *float64 `json:"temperature"`
			Messages    []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "chat-model", body.Model)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "system", body.Messages[0].Role)
		assert.Equal(t, "user", body.Messages[1].Role)
		assert.Equal(t, "where can I buy bread?", body.Messages[1].Content)

		if assert.NotNil(t, body.Temperature) {
			assert.InDelta(t, 0.2, *body.Temperature, 1e-9)
		}

		writeJSON(t, w, http.StatusOK, map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "chat-model",
			"choices": []map[string]any{
				{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]any{"role": "assistant", "content": "Try Colmado Luz."},
				},
			},
		})
	})

	c := NewClient("key", WithBaseURL(srv.URL), WithChatModel("chat-model"))
	temperature := 0.2

	answer, err := c.CreateChatCompletion(context.Background(), "You are a concierge.", "where can I buy bread?", &temperature, nil)
	require.NoError(t, err)
	assert.Equal(t, "Try Colmado Luz.", answer)
}
