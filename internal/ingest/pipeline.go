// Package ingest orchestrates document onboarding: duplicate check,
// load, chunk, parallel embed, and one-transaction insert. It
// generalizes the bounded-worker-pool idiom of a fire-and-forget
// ingestion queue into a synchronous pipeline whose worker pool is
// joined before the database transaction begins, so a document is
// either fully present or entirely absent.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pixell07/localrag/internal/apperr"
	"github.com/pixell07/localrag/internal/chunker"
	"github.com/pixell07/localrag/internal/embedding"
	"github.com/pixell07/localrag/internal/entity"
	"github.com/pixell07/localrag/internal/loader"
	"github.com/pixell07/localrag/internal/vectorstore"
)

// store is the subset of vectorstore.Store the pipeline depends on.
type store interface {
	DocumentExists(ctx context.Context, filename string) (bool, error)
	InsertDocumentWithChunks(ctx context.Context, filename string, size int64, chunks []vectorstore.ChunkInput) (int64, error)
}

// Result summarizes a completed ingest for the HTTP layer / progress
// event consumers.
type Result struct {
	DocumentID   int64
	Filename     string
	ChunkCount   int
	FailedChunks int
}

// Pipeline wires the loader, chunker, embedder, and vector store
// together per spec.md §4.5's protocol.
type Pipeline struct {
	store          store
	embedder       embedding.Embedder
	chunkerOptions chunker.Options
	maxWorkers     int
	batchSize      int
	logger         *slog.Logger
}

// Options configures a Pipeline; zero values fall back to spec.md
// defaults via chunker.DefaultOptions and sane worker/batch sizes.
type Options struct {
	ChunkerOptions chunker.Options
	MaxWorkers     int
	BatchSize      int
}

// New constructs an ingestion Pipeline.
func New(s store, embedder embedding.Embedder, opts Options, logger *slog.Logger) *Pipeline {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 8
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.ChunkerOptions.ChunkSize <= 0 {
		opts.ChunkerOptions = chunker.DefaultOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:          s,
		embedder:       embedder,
		chunkerOptions: opts.ChunkerOptions,
		maxWorkers:     opts.MaxWorkers,
		batchSize:      opts.BatchSize,
		logger:         logger,
	}
}

// minSuccessRate is the floor below which a partially embedded batch
// fails the whole ingest rather than silently dropping chunks.
const minSuccessRate = 0.90

// Ingest runs the full load → chunk → embed → insert protocol for one
// uploaded file. filename must be unique; re-ingesting an existing
// filename fails with apperr.KindFileUpload (duplicate).
func (p *Pipeline) Ingest(ctx context.Context, filename string, data []byte) (*Result, error) {
	exists, err := p.store.DocumentExists(ctx, filename)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseConn, "check existing document", err)
	}
	if exists {
		return nil, apperr.Duplicate(filename)
	}

	pages, err := loader.Load(filename, data)
	if err != nil {
		return nil, err
	}

	chunks := chunker.Chunk(pages, p.chunkerOptions)
	if len(chunks) == 0 {
		return nil, apperr.New(apperr.KindChunking, fmt.Sprintf("%s produced no chunks", filename))
	}

	embeddings, failed := p.embedBatch(ctx, chunks)
	successRate := float64(len(chunks)-failed) / float64(len(chunks))
	if successRate < minSuccessRate {
		return nil, apperr.New(apperr.KindEmbeddingGen,
			fmt.Sprintf("embedding success rate %.0f%% below threshold (%d/%d chunks failed)",
				successRate*100, failed, len(chunks)))
	}

	var inputs []vectorstore.ChunkInput
	for i, c := range chunks {
		if embeddings[i] == nil {
			continue
		}
		inputs = append(inputs, vectorstore.ChunkInput{
			ChunkIndex: c.ChunkIndex,
			Text:       c.ChunkText,
			Embedding:  embeddings[i],
			Metadata:   c.Metadata,
		})
	}

	// The document row and its chunks land in one transaction: a
	// document with zero chunks must never be observable.
	docID, err := p.store.InsertDocumentWithChunks(ctx, filename, int64(len(data)), inputs)
	if err != nil {
		return nil, err
	}

	p.logger.Info("document ingested", "filename", filename, "document_id", docID,
		"chunks", len(inputs), "failed_chunks", failed)

	return &Result{
		DocumentID:   docID,
		Filename:     filename,
		ChunkCount:   len(inputs),
		FailedChunks: failed,
	}, nil
}

// embedBatch generates embeddings for every chunk using a bounded,
// joined worker pool: MAX_WORKERS goroutines each claim successive
// batches of BATCH_SIZE chunks off a shared index channel. Unlike a
// fire-and-forget job queue, every worker is joined via WaitGroup
// before this function returns, since step 5 (the insert transaction)
// may not begin until all embeddings are known.
func (p *Pipeline) embedBatch(ctx context.Context, chunks []entity.Chunk) ([][]float32, int) {
	results := make([][]float32, len(chunks))

	type batch struct {
		start, end int
	}
	batches := make(chan batch, (len(chunks)/p.batchSize)+1)
	for start := 0; start < len(chunks); start += p.batchSize {
		end := start + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batches <- batch{start: start, end: end}
	}
	close(batches)

	var mu sync.Mutex
	failed := 0

	var wg sync.WaitGroup
	workers := p.maxWorkers
	if workers > len(chunks) {
		workers = len(chunks)
	}
	if workers < 1 {
		workers = 1
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range batches {
				texts := make([]string, 0, b.end-b.start)
				for _, c := range chunks[b.start:b.end] {
					texts = append(texts, c.ChunkText)
				}

				vecs, err := p.embedder.EmbedDocuments(ctx, texts)
				mu.Lock()
				if err != nil {
					p.logger.Error("batch embedding failed", "start", b.start, "end", b.end, "error", err)
					failed += b.end - b.start
				} else {
					for i, v := range vecs {
						results[b.start+i] = v
					}
				}
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return results, failed
}
