package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pixell07/localrag/internal/apperr"
	"github.com/pixell07/localrag/internal/chunker"
	"github.com/pixell07/localrag/internal/entity"
	"github.com/pixell07/localrag/internal/vectorstore"
)

type fakeStore struct {
	existing      map[string]bool
	insertedDocID int64
	insertedChunk []vectorstore.ChunkInput
	insertErr     error
}

func (f *fakeStore) DocumentExists(_ context.Context, filename string) (bool, error) {
	return f.existing[filename], nil
}

func (f *fakeStore) InsertDocumentWithChunks(_ context.Context, filename string, size int64, chunks []vectorstore.ChunkInput) (int64, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.insertedDocID = 42
	f.insertedChunk = chunks
	return f.insertedDocID, nil
}

type fakeEmbedder struct {
	failTexts map[string]bool
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if f.failTexts[t] {
			return nil, errors.New("embedding backend unavailable")
		}
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func TestIngestRejectsDuplicateFilename(t *testing.T) {
	s := &fakeStore{existing: map[string]bool{"handbook.md": true}}
	p := New(s, &fakeEmbedder{}, Options{}, nil)

	_, err := p.Ingest(context.Background(), "handbook.md", []byte("content"))
	require.Error(t, err)
	kind, ok := apperr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, apperr.KindFileUpload, kind)
}

func TestIngestSucceedsAndInsertsAllChunks(t *testing.T) {
	s := &fakeStore{existing: map[string]bool{}}
	p := New(s, &fakeEmbedder{}, Options{
		ChunkerOptions: chunker.Options{ChunkSize: 50, ChunkOverlap: 5, TableChunkSize: 200},
		MaxWorkers:     2,
		BatchSize:      3,
	}, nil)

	text := "Paragraph one has some content. Paragraph two has more content here.\n\nParagraph three follows after a blank line and keeps going on."
	result, err := p.Ingest(context.Background(), "doc.txt", []byte(text))
	require.NoError(t, err)
	require.Equal(t, int64(42), result.DocumentID)
	require.Equal(t, 0, result.FailedChunks)
	require.Equal(t, result.ChunkCount, len(s.insertedChunk))
	require.Greater(t, result.ChunkCount, 0)

	for i, c := range s.insertedChunk {
		require.Equal(t, i, c.ChunkIndex)
		require.NotNil(t, c.Embedding)
	}
}

func TestIngestFailsWhenEmptyDocument(t *testing.T) {
	s := &fakeStore{existing: map[string]bool{}}
	p := New(s, &fakeEmbedder{}, Options{}, nil)

	_, err := p.Ingest(context.Background(), "empty.txt", []byte("   \n\n  "))
	require.Error(t, err)
}

func TestIngestFailsWhenSuccessRateBelowThreshold(t *testing.T) {
	s := &fakeStore{existing: map[string]bool{}}
	failing := &fakeEmbedder{failTexts: map[string]bool{}}
	p := New(s, failing, Options{
		ChunkerOptions: chunker.Options{ChunkSize: 20, ChunkOverlap: 2, TableChunkSize: 100},
		MaxWorkers:     1,
		BatchSize:      1,
	}, nil)

	text := "one two three four five six seven eight nine ten eleven twelve thirteen fourteen"
	pagesChunks := chunker.Chunk([]entity.PageRecord{{PageNumber: 1, Text: text}}, p.chunkerOptions)
	for _, c := range pagesChunks {
		failing.failTexts[c.ChunkText] = true
	}

	_, err := p.Ingest(context.Background(), "doc2.txt", []byte(text))
	require.Error(t, err)
	kind, ok := apperr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, apperr.KindEmbeddingGen, kind)
}
