package llmclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pixell07/localrag/internal/entity"
)

func TestPickEmbeddingModel(t *testing.T) {
	models := []entity.ModelInfo{
		{Name: "llama3"},
		{Name: "nomic-embed-text"},
		{Name: "mxbai-embed-large"},
	}

	require.Equal(t, "nomic-embed-text", PickEmbeddingModel(models, []string{"nomic-embed-text"}))
	require.Equal(t, "mxbai-embed-large", PickEmbeddingModel(models, []string{"mxbai"}))
	require.Equal(t, "nomic-embed-text", PickEmbeddingModel(models, nil))
	require.Empty(t, PickEmbeddingModel([]entity.ModelInfo{{Name: "llama3"}}, nil))
}

func TestGenerateEmbeddingEmptyText(t *testing.T) {
	c := New("http://unused", time.Second)
	ok, vec, err := c.GenerateEmbedding(context.Background(), "nomic-embed-text", "   ")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, vec)
}

func TestGenerateEmbeddingSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embeddings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"embedding":[0.1,0.2,0.3]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	ok, vec, err := c.GenerateEmbedding(context.Background(), "nomic-embed-text", "hello")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestGenerateChatResponseStreamsFragments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		lines := []string{
			`{"message":{"content":"Hello"},"done":false}`,
			`{"message":{"content":", world"},"done":false}`,
			`{"message":{"content":""},"done":true}`,
		}
		for _, l := range lines {
			w.Write([]byte(l + "\n"))
		}
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	out := make(chan string, 8)
	err := c.GenerateChatResponse(context.Background(), "llama3", []entity.ChatMessage{
		{Role: entity.RoleUser, Content: "hi"},
	}, 0.0, out)
	require.NoError(t, err)

	var got []string
	for frag := range out {
		got = append(got, frag)
	}
	require.Equal(t, []string{"Hello", ", world"}, got)
}

func TestGenerateChatResponseUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"model not found","done":true}` + "\n"))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	out := make(chan string, 8)
	err := c.GenerateChatResponse(context.Background(), "missing", nil, 0.0, out)
	require.Error(t, err)

	// channel must still be closed (defer close(out) in GenerateChatResponse)
	_, open := <-out
	require.False(t, open)
}

func TestCheckConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	ok, msg := c.CheckConnection(context.Background())
	require.True(t, ok)
	require.Equal(t, "ok", msg)
}
