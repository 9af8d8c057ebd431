package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cookify/internal/config"
)

func TestGroqGenerateContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer groq-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, groqModel, body["model"])

		w.Write([]byte(`{
			"choices": [{"message": {"content": "Swap butter for olive oil."}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 6, "total_tokens": 18}
		}`))
	}))
	defer srv.Close()

	gen := NewGroqClient(&config.Config{Groq: config.APIKeyConfig{APIKey: "groq-key"}}).(*groqClient)
	gen.endpoint = srv.URL

	resp, err := gen.GenerateContent(context.Background(), "substitute for butter?")
	require.NoError(t, err)
	assert.Equal(t, "Swap butter for olive oil.", resp.Content)
	assert.Equal(t, 18, resp.Usage.TotalTokens)
	assert.Equal(t, groqModel, resp.Usage.Model)
}

func TestGroqErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	gen := NewGroqClient(&config.Config{}).(*groqClient)
	gen.endpoint = srv.URL

	_, err := gen.GenerateContent(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=429")
}

func TestNewFromConfig(t *testing.T) {
	ctx := context.Background()

	gen, err := NewFromConfig(ctx, &config.Config{Chat: config.ChatConfig{Fallback: config.FallbackNone}})
	require.NoError(t, err)
	assert.Nil(t, gen)

	gen, err = NewFromConfig(ctx, &config.Config{Chat: config.ChatConfig{Fallback: config.FallbackGroq}})
	require.NoError(t, err)
	assert.NotNil(t, gen)

	_, err = NewFromConfig(ctx, &config.Config{Chat: config.ChatConfig{Fallback: "ollama"}})
	assert.Error(t, err)
}
