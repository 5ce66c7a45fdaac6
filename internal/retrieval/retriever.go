// Package retrieval turns a user query into an ordered list of ranked
// chunks: normalize, expand, embed, search, fuse, filter, re-rank,
// diversify, truncate. It generalizes the teacher's single-call
// SimilaritySearch into the full hybrid pipeline.
package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/pixell07/localrag/internal/apperr"
	"github.com/pixell07/localrag/internal/cache"
	"github.com/pixell07/localrag/internal/embedding"
	"github.com/pixell07/localrag/internal/entity"
)

// vectorSearcher is the subset of vectorstore.Store the retriever
// depends on.
type vectorSearcher interface {
	SearchSimilarChunks(ctx context.Context, queryEmbedding []float32, topK int, fileTypeFilter string) ([]entity.RetrievalResult, error)
}

// Options configures one retriever instance. New replaces a zero TopK,
// RerankTopK or DiversityThresh with its DefaultOptions value; every
// other field is used as given.
type Options struct {
	TopK             int
	RerankTopK       int
	MinSimilarity    float64
	Weights          Weights
	DiversityThresh  float64
	EnableExpansion  bool
	EmbedCacheTTL    int64 // seconds; 0 caches embeddings without expiry
	ResultCacheTTL   int64 // seconds; 0 caches result lists without expiry
}

// DefaultOptions mirrors spec.md §4.6's stated defaults.
func DefaultOptions() Options {
	return Options{
		TopK:            5,
		RerankTopK:      12,
		MinSimilarity:   0.28,
		Weights:         DefaultWeights(),
		DiversityThresh: 0.90,
		EnableExpansion: true,
		EmbedCacheTTL:   3600,
		ResultCacheTTL:  300,
	}
}

// Retriever runs the hybrid retrieval pipeline described in spec.md
// §4.6.
type Retriever struct {
	store    vectorSearcher
	embedder embedding.Embedder
	cache    cache.Cache
	opts     Options
	logger   *slog.Logger
}

// New constructs a Retriever. cache may be nil, in which case caching
// is skipped entirely (every query re-embeds and re-searches).
func New(store vectorSearcher, embedder embedding.Embedder, c cache.Cache, opts Options, logger *slog.Logger) *Retriever {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.RerankTopK <= 0 {
		opts.RerankTopK = 12
	}
	if opts.DiversityThresh <= 0 {
		opts.DiversityThresh = 0.90
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{store: store, embedder: embedder, cache: c, opts: opts, logger: logger}
}

// Retrieve runs the full pipeline for one query and fileTypeFilter
// (empty string means no filter). Returns an empty, non-error slice
// when there are no documents or nothing survives the similarity
// filter.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, minSimilarity float64, fileTypeFilter string) ([]entity.RetrievalResult, error) {
	normalized := normalizeQuery(query)
	if normalized == "" {
		return nil, apperr.New(apperr.KindValidation, "query must not be empty")
	}

	if topK <= 0 {
		topK = r.opts.TopK
	}
	if minSimilarity <= 0 {
		minSimilarity = r.opts.MinSimilarity
	}

	resultCacheKey := r.resultCacheKey(normalized, topK, minSimilarity, fileTypeFilter)
	if r.cache != nil {
		if cached, ok := r.cache.Get(ctx, resultCacheKey); ok {
			var results []entity.RetrievalResult
			if err := json.Unmarshal(cached, &results); err == nil {
				return results, nil
			}
		}
	}

	variants := []string{normalized}
	if r.opts.EnableExpansion {
		variants = expandQuery(normalized)
	}

	searchK := topK * 4
	if searchK > 100 {
		searchK = 100
	}

	type rankedHit struct {
		result entity.RetrievalResult
		ranks  []int
		bestSim float64
	}
	byKey := make(map[string]*rankedHit)

	maxObservedSim := 0.0

	for _, variant := range variants {
		vec, err := r.embedWithCache(ctx, variant)
		if err != nil {
			return nil, err
		}

		hits, err := r.store.SearchSimilarChunks(ctx, vec, searchK, fileTypeFilter)
		if err != nil {
			return nil, err
		}

		sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })

		for rank, h := range hits {
			if h.Similarity > maxObservedSim {
				maxObservedSim = h.Similarity
			}
			key := fmt.Sprintf("%s#%d", h.Filename, h.ChunkIndex)
			entry, ok := byKey[key]
			if !ok {
				entry = &rankedHit{result: h}
				byKey[key] = entry
			}
			entry.ranks = append(entry.ranks, rank)
			if h.Similarity > entry.bestSim {
				entry.bestSim = h.Similarity
				entry.result = h
			}
		}
	}

	if len(byKey) == 0 {
		return []entity.RetrievalResult{}, nil
	}

	var fused []entity.RetrievalResult
	multiVariant := len(variants) > 1
	for _, entry := range byKey {
		res := entry.result
		if multiVariant {
			rrf := 0.0
			for _, rank := range entry.ranks {
				rrf += 1.0 / (60.0 + float64(rank+1))
			}
			// Scale by the best possible sum (rank 1 in every variant,
			// 1/61 each) so rrfNorm lies in [0,1] like the similarity.
			rrfNorm := rrf * 61.0 / float64(len(variants))
			res.Similarity = 0.7*rrfNorm + 0.3*entry.bestSim
		}
		fused = append(fused, res)
	}

	var filtered []entity.RetrievalResult
	for _, f := range fused {
		if f.Similarity >= minSimilarity {
			filtered = append(filtered, f)
		}
	}
	if len(filtered) == 0 {
		r.logger.Info("retrieval: all candidates below similarity threshold",
			"query", normalized, "max_similarity", maxObservedSim, "min_similarity", minSimilarity)
		return []entity.RetrievalResult{}, nil
	}

	queryTerms := tokenize(normalized)
	reranked := rerank(filtered, queryTerms, r.opts.Weights)
	diverse := diversityFilter(reranked, r.opts.DiversityThresh)

	if len(diverse) > r.opts.RerankTopK {
		diverse = diverse[:r.opts.RerankTopK]
	}

	if r.cache != nil {
		if encoded, err := json.Marshal(diverse); err == nil {
			r.cache.Set(ctx, resultCacheKey, encoded, ttlSeconds(r.opts.ResultCacheTTL))
		}
	}

	return diverse, nil
}

func (r *Retriever) resultCacheKey(normalized string, topK int, minSimilarity float64, filter string) string {
	return fmt.Sprintf("retrieval:%s:%d:%.4f:%s", normalized, topK, minSimilarity, filter)
}

func (r *Retriever) embedCacheKey(text string) string {
	return "embed:" + text
}
