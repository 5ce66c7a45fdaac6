// Package contextfmt packs a ranked list of retrieval results into a
// single bounded string suitable for insertion into an LLM prompt. It
// generalizes the teacher's inline strings.Builder context-assembly
// loop into the per-source-header, relevance-tiered, length-bounded
// format the specification requires.
package contextfmt

import (
	"fmt"
	"strings"

	"github.com/pixell07/localrag/internal/entity"
)

const (
	highRelevance = 0.80
	goodRelevance = 0.65
)

// Options configures packing behavior; zero value falls back to
// DefaultOptions.
type Options struct {
	MaxContextChars int
}

// DefaultOptions mirrors the specification's default budget.
func DefaultOptions() Options {
	return Options{MaxContextChars: 8000}
}

// Format packs results into a bounded context string. At least one
// block is always included even if it alone exceeds MaxContextChars.
func Format(results []entity.RetrievalResult, opts Options) string {
	if opts.MaxContextChars <= 0 {
		opts = DefaultOptions()
	}
	if len(results) == 0 {
		return ""
	}

	var b strings.Builder
	included := 0

	for i, r := range results {
		block := formatBlock(i+1, r)

		if included > 0 && b.Len()+len(block) > opts.MaxContextChars {
			break
		}
		b.WriteString(block)
		included++
	}

	if included < len(results) {
		fmt.Fprintf(&b, "[Context truncated: %d of %d chunks included]\n", included, len(results))
	}

	return b.String()
}

func formatBlock(sourceNum int, r entity.RetrievalResult) string {
	var b strings.Builder

	marker := relevanceMarker(r.Similarity)
	if marker != "" {
		b.WriteString(marker)
		b.WriteString(" ")
	}

	fmt.Fprintf(&b, "[Source %d] %s (chunk %d", sourceNum, r.Filename, r.ChunkIndex)
	if r.Metadata.PageNumber != nil {
		fmt.Fprintf(&b, ", page %d", *r.Metadata.PageNumber)
	}
	if r.Metadata.SectionTitle != nil && *r.Metadata.SectionTitle != "" {
		fmt.Fprintf(&b, ", section: %q", *r.Metadata.SectionTitle)
	}
	fmt.Fprintf(&b, ", relevance: %.0f%%)\n", r.Similarity*100)

	if r.Metadata.HasTable {
		b.WriteString("[Contains structured data table]\n")
	}

	b.WriteString(normalizeWhitespace(r.ChunkText))
	b.WriteString("\n---\n")

	return b.String()
}

func relevanceMarker(similarity float64) string {
	switch {
	case similarity >= highRelevance:
		return "***"
	case similarity >= goodRelevance:
		return "[+]"
	default:
		return " - "
	}
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
