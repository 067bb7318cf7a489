package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embedServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{BaseURL: srv.URL, Model: "test-model"})
	require.NoError(t, err)
	return client
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	client, err := NewClient(Config{BaseURL: "http://localhost:8080"})
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestEmbedDocuments(t *testing.T) {
	t.Run("sends texts and decodes vectors", func(t *testing.T) {
		client := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/embed", r.URL.Path)

			var req teiRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.True(t, req.Truncate)

			json.NewEncoder(w).Encode([][]float32{{0.1, 0.2}, {0.3, 0.4}})
		})

		vectors, err := client.EmbedDocuments(context.Background(), []string{"one", "two"})
		require.NoError(t, err)
		require.Len(t, vectors, 2)
		assert.Equal(t, []float32{0.1, 0.2}, vectors[0])
	})

	t.Run("rejects empty input", func(t *testing.T) {
		client := embedServer(t, func(w http.ResponseWriter, r *http.Request) {})

		_, err := client.EmbedDocuments(context.Background(), nil)
		assert.ErrorIs(t, err, ErrEmptyInput)
	})

	t.Run("surfaces server errors", func(t *testing.T) {
		client := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model loading", http.StatusServiceUnavailable)
		})

		_, err := client.EmbedDocuments(context.Background(), []string{"one"})
		assert.ErrorIs(t, err, ErrEmbeddingFailed)
	})
}

func TestEmbedQuery(t *testing.T) {
	t.Run("returns the first vector", func(t *testing.T) {
		client := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode([][]float32{{0.5, 0.6}})
		})

		vec, err := client.EmbedQuery(context.Background(), "query")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.5, 0.6}, vec)
	})

	t.Run("rejects empty text", func(t *testing.T) {
		client := embedServer(t, func(w http.ResponseWriter, r *http.Request) {})

		_, err := client.EmbedQuery(context.Background(), "")
		assert.ErrorIs(t, err, ErrEmptyInput)
	})

	t.Run("empty response is an error", func(t *testing.T) {
		client := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode([][]float32{})
		})

		_, err := client.EmbedQuery(context.Background(), "query")
		assert.ErrorIs(t, err, ErrEmbeddingFailed)
	})
}

func TestEmbeddingFunc(t *testing.T) {
	client := embedServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([][]float32{{1, 0}})
	})

	fn := client.EmbeddingFunc()
	vec, err := fn(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vec)
}
