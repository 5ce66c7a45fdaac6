package retrieval

import (
	"math"
	"strings"

	"github.com/pixell07/localrag/internal/entity"
)

// Weights holds the multi-signal re-rank coefficients from spec.md
// §4.6 step 8. Callers populate this from config; DefaultWeights
// matches the specification's stated defaults.
type Weights struct {
	Similarity float64
	Keyword    float64
	BM25       float64
	Position   float64
	Length     float64
}

// DefaultWeights returns the specification's canonical weights
// (sum 1.0).
func DefaultWeights() Weights {
	return Weights{Similarity: 0.45, Keyword: 0.25, BM25: 0.20, Position: 0.05, Length: 0.05}
}

const (
	bm25K1         = 1.5
	bm25B          = 0.75
	bm25AvgDocLen  = 500.0
	positionDecay  = 0.1
	lengthScaleLen = 1000.0
)

// keywordOverlap computes |queryTerms ∩ chunkTerms| / |queryTerms|.
func keywordOverlap(queryTerms []string, chunkSet map[string]struct{}) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	matched := 0
	seen := make(map[string]struct{}, len(queryTerms))
	for _, t := range queryTerms {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := chunkSet[t]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(seen))
}

// bm25Lite scores term-frequency without corpus-wide IDF (no corpus
// statistics are maintained), per spec.md §4.6 step 8's stated
// approximation: k1=1.5, b=0.75, assumed average document length 500.
func bm25Lite(queryTerms []string, chunkTokens []string) float64 {
	if len(queryTerms) == 0 || len(chunkTokens) == 0 {
		return 0
	}

	tf := make(map[string]int, len(chunkTokens))
	for _, t := range chunkTokens {
		tf[t]++
	}
	docLen := float64(len(chunkTokens))

	var score float64
	for _, qt := range queryTerms {
		f := float64(tf[qt])
		if f == 0 {
			continue
		}
		numerator := f * (bm25K1 + 1)
		denominator := f + bm25K1*(1-bm25B+bm25B*(docLen/bm25AvgDocLen))
		score += numerator / denominator
	}

	// Normalize against one occurrence of every query term in a chunk of
	// average length (each such term scores exactly 1.0), clipped at 1.0,
	// so it composes sensibly with the other signals.
	maxPerTerm := (bm25K1 + 1) / (1 + bm25K1*(1-bm25B+bm25B))
	norm := maxPerTerm * float64(len(queryTerms))
	if norm <= 0 {
		return 0
	}
	return math.Min(score/norm, 1.0)
}

func positionScore(chunkIndex int) float64 {
	return 1.0 / (1.0 + positionDecay*float64(chunkIndex))
}

func lengthScore(chunkText string) float64 {
	return math.Min(float64(len(chunkText))/lengthScaleLen, 1.0)
}

// rerank computes the composite score S for each candidate and sorts
// descending, with ties broken by similarity, then ascending
// chunk_index, then filename lexicographic (spec.md §4.6 "Ordering and
// tie-breaks").
func rerank(candidates []entity.RetrievalResult, queryTerms []string, w Weights) []entity.RetrievalResult {
	for i := range candidates {
		c := &candidates[i]
		chunkTokens := tokenize(c.ChunkText)
		chunkSet := tokenSet(chunkTokens)

		kw := keywordOverlap(queryTerms, chunkSet)
		bm25 := bm25Lite(queryTerms, chunkTokens)
		pos := positionScore(c.ChunkIndex)
		ln := lengthScore(c.ChunkText)

		c.Score = w.Similarity*c.Similarity + w.Keyword*kw + w.BM25*bm25 + w.Position*pos + w.Length*ln
	}

	sortResults(candidates)
	return candidates
}

func sortResults(candidates []entity.RetrievalResult) {
	less := func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if a.ChunkIndex != b.ChunkIndex {
			return a.ChunkIndex < b.ChunkIndex
		}
		return strings.Compare(a.Filename, b.Filename) < 0
	}
	insertionSort(candidates, less)
}

// insertionSort is a small stable sort; the candidate lists handled
// here (post similarity-filter, pre RERANK_TOP_K truncation) are small
// enough that O(n^2) is irrelevant and it keeps the tie-break logic
// easy to read as a single less function.
func insertionSort(s []entity.RetrievalResult, less func(i, j int) bool) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

// jaccardOverlap computes token-set Jaccard similarity between two
// chunks, used by the diversity filter.
func jaccardOverlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for t := range a {
		if _, ok := b[t]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// diversityFilter walks candidates in score order, rejecting any whose
// Jaccard overlap with an already-kept candidate exceeds the threshold
// (spec.md §4.6 step 9, default 0.90).
func diversityFilter(candidates []entity.RetrievalResult, threshold float64) []entity.RetrievalResult {
	var kept []entity.RetrievalResult
	var keptSets []map[string]struct{}

	for _, c := range candidates {
		set := tokenSet(tokenize(c.ChunkText))
		tooSimilar := false
		for _, ks := range keptSets {
			if jaccardOverlap(set, ks) > threshold {
				tooSimilar = true
				break
			}
		}
		if tooSimilar {
			continue
		}
		kept = append(kept, c)
		keptSets = append(keptSets, set)
	}

	return kept
}
