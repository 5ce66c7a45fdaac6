package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pixell07/localrag/internal/entity"
)

type fakeSearcher struct {
	results []entity.RetrievalResult
}

func (f *fakeSearcher) SearchSimilarChunks(_ context.Context, _ []float32, _ int, _ string) ([]entity.RetrievalResult, error) {
	return f.results, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.5, 0.5}
	}
	return out, nil
}

func (fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.5, 0.5}, nil
}

func TestRetrieveRejectsEmptyQuery(t *testing.T) {
	r := New(&fakeSearcher{}, fakeEmbedder{}, nil, DefaultOptions(), nil)
	_, err := r.Retrieve(context.Background(), "   ", 0, 0, "")
	require.Error(t, err)
}

func TestRetrieveReturnsEmptyWhenNoHits(t *testing.T) {
	r := New(&fakeSearcher{}, fakeEmbedder{}, nil, DefaultOptions(), nil)
	results, err := r.Retrieve(context.Background(), "backup schedule", 5, 0.28, "")
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestRetrieveFiltersBySimilarityThreshold(t *testing.T) {
	searcher := &fakeSearcher{results: []entity.RetrievalResult{
		{ChunkText: "irrelevant filler text", Filename: "a.txt", ChunkIndex: 0, Similarity: 0.1},
		{ChunkText: "the backup window is nightly", Filename: "b.txt", ChunkIndex: 1, Similarity: 0.9},
	}}
	opts := DefaultOptions()
	opts.EnableExpansion = false
	r := New(searcher, fakeEmbedder{}, nil, opts, nil)

	results, err := r.Retrieve(context.Background(), "backup window", 5, 0.28, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "b.txt", results[0].Filename)
}

func TestRetrieveOrdersByCompositeScoreThenTieBreaks(t *testing.T) {
	searcher := &fakeSearcher{results: []entity.RetrievalResult{
		{ChunkText: "backup policy details here", Filename: "z.txt", ChunkIndex: 2, Similarity: 0.5},
		{ChunkText: "backup policy details here too", Filename: "a.txt", ChunkIndex: 1, Similarity: 0.5},
	}}
	opts := DefaultOptions()
	opts.EnableExpansion = false
	opts.DiversityThresh = 1.0
	r := New(searcher, fakeEmbedder{}, nil, opts, nil)

	results, err := r.Retrieve(context.Background(), "backup policy", 5, 0.1, "")
	require.NoError(t, err)
	require.Len(t, results, 2)
	// Same similarity and keyword/BM25 scores; a.txt wins on the lower
	// chunk_index (position) and longer text (length).
	require.Equal(t, "a.txt", results[0].Filename)
	require.Equal(t, "z.txt", results[1].Filename)

	// Identical score, similarity and chunk_index: filename decides.
	searcher.results = []entity.RetrievalResult{
		{ChunkText: "backup policy details", Filename: "z.txt", ChunkIndex: 0, Similarity: 0.5},
		{ChunkText: "backup policy details", Filename: "a.txt", ChunkIndex: 0, Similarity: 0.5},
	}
	results, err = r.Retrieve(context.Background(), "backup policy", 5, 0.1, "")
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "a.txt", results[0].Filename)
	require.Equal(t, "z.txt", results[1].Filename)
}

func TestRetrieveCachesResultsAcrossCalls(t *testing.T) {
	searcher := &fakeSearcher{results: []entity.RetrievalResult{
		{ChunkText: "cache hit content", Filename: "c.txt", ChunkIndex: 0, Similarity: 0.95},
	}}
	opts := DefaultOptions()
	opts.EnableExpansion = false
	c, err := newTestCache()
	require.NoError(t, err)
	r := New(searcher, fakeEmbedder{}, c, opts, nil)

	first, err := r.Retrieve(context.Background(), "cache me", 5, 0.1, "")
	require.NoError(t, err)
	require.Len(t, first, 1)

	searcher.results = nil // cache should mask this change
	second, err := r.Retrieve(context.Background(), "cache me", 5, 0.1, "")
	require.NoError(t, err)
	require.Len(t, second, 1)
}
