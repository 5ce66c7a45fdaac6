// Package vectorstore durably stores documents and chunk embeddings in
// Postgres, exposing CRUD, batch insert, and k-NN retrieval. It is the
// single point of database access: connections are acquired from a
// pgxpool.Pool, never shared across concurrent statements, and every
// public call commits on success or rolls back on error.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/pixell07/localrag/internal/apperr"
	"github.com/pixell07/localrag/internal/entity"
)

// ChunkInput is one chunk awaiting insertion as part of a batch.
type ChunkInput struct {
	ChunkIndex int
	Text       string
	Embedding  []float32
	Metadata   entity.ChunkMetadata
}

// Store wraps the Postgres connection pool. All public methods are safe
// for concurrent use; the pool itself enforces min/max connections.
type Store struct {
	pool *pgxpool.Pool
}

// New constructs a Store from an existing pool. Callers own the pool's
// lifecycle (created via NewPool, closed via Store.Close).
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// NewPool builds a pgxpool.Pool configured with the given min/max
// connection bounds, matching spec.md §4.1 pool defaults (min=5, max=50).
func NewPool(ctx context.Context, databaseURL string, minConns, maxConns int32) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseConn, "parse database url", err)
	}
	pcfg.MinConns = minConns
	pcfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseConn, "create connection pool", err)
	}
	return pool, nil
}

// Initialize ensures the vector extension, tables, and indexes exist.
// It is idempotent: calling it N times is indistinguishable from calling
// it once.
func (s *Store) Initialize(ctx context.Context) (bool, string, error) {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS documents (
			id BIGSERIAL PRIMARY KEY,
			filename TEXT NOT NULL UNIQUE,
			file_size BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS document_chunks (
			id BIGSERIAL PRIMARY KEY,
			document_id BIGINT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			chunk_index INT NOT NULL,
			chunk_text TEXT NOT NULL,
			embedding vector(768) NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			UNIQUE(document_id, chunk_index)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_document_chunks_document_id ON document_chunks(document_id)`,
		`CREATE INDEX IF NOT EXISTS idx_document_chunks_embedding_cosine
			ON document_chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return false, "", apperr.Wrap(apperr.KindDatabaseConn, "initialize schema", err)
		}
	}
	return true, "schema ready", nil
}

// DocumentExists reports whether a document with the given filename is
// already stored.
func (s *Store) DocumentExists(ctx context.Context, filename string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM documents WHERE filename = $1)`, filename,
	).Scan(&exists)
	if err != nil {
		return false, apperr.Wrap(apperr.KindDatabaseConn, "check document existence", err)
	}
	return exists, nil
}

// InsertDocument inserts a new document row, returning its assigned ID.
// Fails with a Duplicate FileUploadError if filename already exists.
//
// This commits on its own and is kept only for callers (tests, admin
// tooling) that need a bare document row with no chunks. The ingest
// pipeline must use InsertDocumentWithChunks instead: a document row
// committed without its chunks would otherwise violate the all-or-
// nothing ingest invariant.
func (s *Store) InsertDocument(ctx context.Context, filename string, size int64) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO documents (filename, file_size, created_at) VALUES ($1, $2, $3) RETURNING id`,
		filename, size, time.Now(),
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, apperr.Duplicate(filename)
		}
		return 0, apperr.Wrap(apperr.KindDatabaseConn, "insert document", err)
	}
	return id, nil
}

// InsertDocumentWithChunks inserts the document row and every one of its
// chunks inside a single transaction: INSERT document RETURNING id, then
// SendBatch the chunk inserts, then commit. The transaction is the
// atomicity boundary for ingest — either the document and all its chunks
// land together, or neither does. Fails with a Duplicate FileUploadError
// if filename already exists.
func (s *Store) InsertDocumentWithChunks(ctx context.Context, filename string, size int64, chunks []ChunkInput) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindDatabaseConn, "begin transaction", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op if already committed

	var documentID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO documents (filename, file_size, created_at) VALUES ($1, $2, $3) RETURNING id`,
		filename, size, time.Now(),
	).Scan(&documentID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, apperr.Duplicate(filename)
		}
		return 0, apperr.Wrap(apperr.KindDatabaseConn, "insert document", err)
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		metaJSON, err := metadataJSON(c.Metadata)
		if err != nil {
			return 0, apperr.Wrap(apperr.KindDatabaseConn, "encode chunk metadata", err)
		}
		batch.Queue(
			`INSERT INTO document_chunks (document_id, chunk_index, chunk_text, embedding, metadata)
			 VALUES ($1, $2, $3, $4, $5)`,
			documentID, c.ChunkIndex, c.Text, pgvector.NewVector(c.Embedding), metaJSON,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range chunks {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return 0, apperr.Wrap(apperr.KindDatabaseConn, "insert chunk batch", err)
		}
	}
	if err := br.Close(); err != nil {
		return 0, apperr.Wrap(apperr.KindDatabaseConn, "close chunk batch", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, apperr.Wrap(apperr.KindDatabaseConn, "commit document and chunks", err)
	}
	return documentID, nil
}

// GetAllDocuments returns every stored document, newest first.
func (s *Store) GetAllDocuments(ctx context.Context) ([]entity.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, filename, file_size, created_at FROM documents ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabaseConn, "list documents", err)
	}
	defer rows.Close()

	var docs []entity.Document
	for rows.Next() {
		var d entity.Document
		if err := rows.Scan(&d.ID, &d.Filename, &d.FileSize, &d.CreatedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindDatabaseConn, "scan document row", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// GetDocumentCount returns the number of stored documents.
func (s *Store) GetDocumentCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM documents`).Scan(&n)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindDatabaseConn, "count documents", err)
	}
	return n, nil
}

// GetChunkCount returns the number of stored chunks.
func (s *Store) GetChunkCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM document_chunks`).Scan(&n)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindDatabaseConn, "count chunks", err)
	}
	return n, nil
}

// SearchSimilarChunks runs a cosine-distance k-NN search, optionally
// filtered by filename suffix (file type). similarity = 1 - distance.
func (s *Store) SearchSimilarChunks(ctx context.Context, queryEmbedding []float32, topK int, fileTypeFilter string) ([]entity.RetrievalResult, error) {
	if topK <= 0 {
		topK = 10
	}

	query, searchArgs := buildSearchQuery(fileTypeFilter, topK)
	args := append([]any{pgvector.NewVector(queryEmbedding)}, searchArgs...)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindSearch, "similarity search", err)
	}
	defer rows.Close()

	var results []entity.RetrievalResult
	for rows.Next() {
		var r entity.RetrievalResult
		var metaJSON []byte
		if err := rows.Scan(&r.ChunkText, &r.Filename, &r.ChunkIndex, &metaJSON, &r.Similarity); err != nil {
			return nil, apperr.Wrap(apperr.KindSearch, "scan search row", err)
		}
		meta, err := metadataFromJSON(metaJSON)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindSearch, "decode chunk metadata", err)
		}
		r.Metadata = meta
		if r.Similarity < 0 {
			r.Similarity = 0
		}
		if r.Similarity > 1 {
			r.Similarity = 1
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// buildSearchQuery renders the SQL and trailing bind args (everything
// after the $1 query-vector placeholder) for SearchSimilarChunks. Split
// out so the filter/limit logic is unit-testable without a live pool.
func buildSearchQuery(fileTypeFilter string, topK int) (string, []any) {
	query := `
		SELECT dc.chunk_text, d.filename, dc.chunk_index, dc.metadata,
		       1 - (dc.embedding <=> $1) AS similarity
		FROM document_chunks dc
		JOIN documents d ON d.id = dc.document_id`
	args := []any{}

	if fileTypeFilter != "" {
		query += fmt.Sprintf(" WHERE d.filename ILIKE $%d", len(args)+2)
		args = append(args, "%"+strings.TrimPrefix(fileTypeFilter, "."))
	}

	query += fmt.Sprintf(" ORDER BY dc.embedding <=> $1 LIMIT $%d", len(args)+2)
	args = append(args, topK)

	return query, args
}

// DeleteDocument removes a document and (via ON DELETE CASCADE) its chunks.
func (s *Store) DeleteDocument(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabaseConn, "delete document", err)
	}
	return nil
}

// DeleteAllDocuments clears the store.
func (s *Store) DeleteAllDocuments(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE documents CASCADE`)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabaseConn, "delete all documents", err)
	}
	return nil
}

// Close drains and closes the pool with a bounded timeout.
func (s *Store) Close(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.pool.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	case <-time.After(10 * time.Second):
	}
}
