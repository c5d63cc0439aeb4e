package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osoriodev/ragbase/internal/model"
)

func TestNew(t *testing.T) {
	t.Run("requires api key", func(t *testing.T) {
		_, err := New(Config{})
		assert.Error(t, err)
	})

	t.Run("defaults applied", func(t *testing.T) {
		c, err := New(Config{APIKey: "key"})
		require.NoError(t, err)
		assert.Equal(t, DefaultBaseURL, c.baseURL)
		assert.Equal(t, DefaultModel, c.model)
	})
}

func TestGenerateNoContext(t *testing.T) {
	c, err := New(Config{APIKey: "key", BaseURL: "http://unreachable.invalid"})
	require.NoError(t, err)

	answer, err := c.Generate(context.Background(), "anything", nil)
	require.NoError(t, err)
	assert.Equal(t, NoContextAnswer, answer)
}

func TestGenerate(t *testing.T) {
	t.Run("returns completion content", func(t *testing.T) {
		var captured chatCompletionRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{
					{"message": map[string]any{"content": "the answer"}},
				},
			})
		}))
		defer srv.Close()

		c, err := New(Config{APIKey: "key", BaseURL: srv.URL})
		require.NoError(t, err)

		answer, err := c.Generate(context.Background(), "what is up?", []model.Chunk{
			{Content: "first context"},
			{Content: "second context"},
		})
		require.NoError(t, err)
		assert.Equal(t, "the answer", answer)

		require.Len(t, captured.Messages, 1)
		assert.Contains(t, captured.Messages[0].Content, "first context\nsecond context")
		assert.Contains(t, captured.Messages[0].Content, "what is up?")
	})

	t.Run("api error payload", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "rate limited", "type": "rate_limit"},
			})
		}))
		defer srv.Close()

		c, err := New(Config{APIKey: "key", BaseURL: srv.URL})
		require.NoError(t, err)

		_, err = c.Generate(context.Background(), "q", []model.Chunk{{Content: "ctx"}})
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrAnswerGeneration)
		assert.Contains(t, err.Error(), "rate limited")
	})

	t.Run("empty completion", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
		}))
		defer srv.Close()

		c, err := New(Config{APIKey: "key", BaseURL: srv.URL})
		require.NoError(t, err)

		_, err = c.Generate(context.Background(), "q", []model.Chunk{{Content: "ctx"}})
		assert.ErrorIs(t, err, model.ErrAnswerGeneration)
	})

	t.Run("transport failure", func(t *testing.T) {
		c, err := New(Config{APIKey: "key", BaseURL: "http://127.0.0.1:0"})
		require.NoError(t, err)

		_, err = c.Generate(context.Background(), "q", []model.Chunk{{Content: "ctx"}})
		assert.ErrorIs(t, err, model.ErrAnswerGeneration)
	})
}
