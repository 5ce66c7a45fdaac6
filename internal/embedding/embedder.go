// Package embedding wraps the LLM client's embedding endpoint so the
// rest of the code can depend on a clean interface instead of the HTTP
// adapter directly.
package embedding

import (
	"context"
	"fmt"

	"github.com/pixell07/localrag/internal/apperr"
)

// Embedder is the interface the rest of the app depends on.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// embeddingClient is the subset of llmclient.Client this package needs,
// kept as an interface so tests can substitute a fake server.
type embeddingClient interface {
	GenerateEmbedding(ctx context.Context, model, text string) (bool, []float32, error)
}

// LocalEmbedder calls the configured embedding model on the local LLM
// server for both single queries and document batches.
type LocalEmbedder struct {
	client embeddingClient
	model  string
}

// New constructs a LocalEmbedder bound to a specific model name.
func New(client embeddingClient, model string) *LocalEmbedder {
	return &LocalEmbedder{client: client, model: model}
}

// EmbedDocuments embeds a batch of texts sequentially against the
// configured model. Parallelism across the batch is the caller's
// responsibility (see internal/ingest), since a single LocalEmbedder
// instance is shared across workers.
func (e *LocalEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		ok, vec, err := e.client.GenerateEmbedding(ctx, e.model, text)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindEmbeddingGen, fmt.Sprintf("embed chunk %d", i), err)
		}
		if !ok {
			return nil, apperr.New(apperr.KindEmbeddingGen, fmt.Sprintf("chunk %d produced no embedding", i))
		}
		out[i] = vec
	}
	return out, nil
}

// EmbedQuery embeds a single query string.
func (e *LocalEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	ok, vec, err := e.client.GenerateEmbedding(ctx, e.model, text)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindEmbeddingGen, "embed query", err)
	}
	if !ok {
		return nil, apperr.New(apperr.KindEmbeddingGen, "query produced no embedding")
	}
	return vec, nil
}
