package contextfmt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pixell07/localrag/internal/entity"
)

func TestFormatEmptyResultsReturnsEmptyString(t *testing.T) {
	require.Equal(t, "", Format(nil, DefaultOptions()))
}

func TestFormatIncludesSourceHeaderAndRelevanceMarker(t *testing.T) {
	page := 3
	section := "Backup Policy"
	results := []entity.RetrievalResult{
		{
			Filename:   "handbook.md",
			ChunkIndex: 2,
			Similarity: 0.91,
			ChunkText:  "The backup   window  is\nnightly.",
			Metadata:   entity.ChunkMetadata{PageNumber: &page, SectionTitle: &section},
		},
	}

	out := Format(results, DefaultOptions())
	require.Contains(t, out, "***")
	require.Contains(t, out, "[Source 1] handbook.md (chunk 2, page 3, section: \"Backup Policy\", relevance: 91%)")
	require.Contains(t, out, "The backup window is nightly.")
	require.Contains(t, out, "---")
}

func TestFormatMarksTableChunks(t *testing.T) {
	results := []entity.RetrievalResult{
		{Filename: "a.pdf", ChunkIndex: 0, Similarity: 0.5, ChunkText: "h1 | h2", Metadata: entity.ChunkMetadata{HasTable: true}},
	}
	out := Format(results, DefaultOptions())
	require.Contains(t, out, "[Contains structured data table]")
}

func TestFormatAlwaysIncludesFirstBlockEvenIfOverBudget(t *testing.T) {
	results := []entity.RetrievalResult{
		{Filename: "big.txt", ChunkIndex: 0, Similarity: 0.5, ChunkText: strings.Repeat("x", 500)},
	}
	out := Format(results, Options{MaxContextChars: 10})
	require.Contains(t, out, strings.Repeat("x", 500))
}

func TestFormatTruncatesAndReportsCounts(t *testing.T) {
	results := []entity.RetrievalResult{
		{Filename: "a.txt", ChunkIndex: 0, Similarity: 0.5, ChunkText: strings.Repeat("a", 50)},
		{Filename: "b.txt", ChunkIndex: 0, Similarity: 0.5, ChunkText: strings.Repeat("b", 50)},
		{Filename: "c.txt", ChunkIndex: 0, Similarity: 0.5, ChunkText: strings.Repeat("c", 50)},
	}
	out := Format(results, Options{MaxContextChars: 100})
	require.Contains(t, out, "[Context truncated:")
	require.Contains(t, out, "of 3 chunks included]")
}
