package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pixell07/localrag/internal/entity"
)

func TestChunkContiguousIndices(t *testing.T) {
	pages := []entity.PageRecord{
		{PageNumber: 1, Text: strings.Repeat("alpha beta gamma delta. ", 200)},
	}
	chunks := Chunk(pages, DefaultOptions())
	require.NotEmpty(t, chunks)

	for i, c := range chunks {
		require.Equal(t, i, c.ChunkIndex)
		require.NotEmpty(t, strings.TrimSpace(c.ChunkText))
	}
}

func TestChunkExactlyAtBudgetBoundaryStaysSingle(t *testing.T) {
	opts := Options{ChunkSize: 50, ChunkOverlap: 10, TableChunkSize: 200}
	text := strings.Repeat("a", 50)
	pages := []entity.PageRecord{{PageNumber: 1, Text: text}}

	chunks := Chunk(pages, opts)
	require.Len(t, chunks, 1)
	require.Equal(t, text, chunks[0].ChunkText)
}

func TestChunkPreservesPageAndSectionMetadata(t *testing.T) {
	section := "Backup Policy"
	pages := []entity.PageRecord{
		{PageNumber: 2, Text: "The backup window is 02:00-04:00 UTC.", SectionTitle: &section},
	}
	chunks := Chunk(pages, DefaultOptions())
	require.Len(t, chunks, 1)
	require.NotNil(t, chunks[0].Metadata.PageNumber)
	require.Equal(t, 2, *chunks[0].Metadata.PageNumber)
	require.NotNil(t, chunks[0].Metadata.SectionTitle)
	require.Equal(t, section, *chunks[0].Metadata.SectionTitle)
}

func TestChunkKeepsSmallTableIntact(t *testing.T) {
	table := "\n[Table]\nh1 | h2\nv1 | v2\n[/Table]\n"
	pages := []entity.PageRecord{{PageNumber: 1, Text: "Intro text.\n\n" + table + "\n\nOutro text."}}

	chunks := Chunk(pages, DefaultOptions())

	var tableChunks []entity.Chunk
	for _, c := range chunks {
		if c.Metadata.HasTable {
			tableChunks = append(tableChunks, c)
		}
	}
	require.Len(t, tableChunks, 1)
	require.Contains(t, tableChunks[0].ChunkText, "h1 | h2")
	require.Contains(t, tableChunks[0].ChunkText, "v1 | v2")
}

func TestChunkSplitsOversizedTableRepeatingHeader(t *testing.T) {
	var rows []string
	rows = append(rows, "header_a | header_b")
	for i := 0; i < 100; i++ {
		rows = append(rows, "value_row_data_here | more_value_data_padding_to_grow_row")
	}
	table := "\n[Table]\n" + strings.Join(rows, "\n") + "\n[/Table]\n"

	opts := Options{ChunkSize: 1024, ChunkOverlap: 100, TableChunkSize: 500}
	pages := []entity.PageRecord{{PageNumber: 1, Text: table}}

	chunks := Chunk(pages, opts)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		require.True(t, c.Metadata.HasTable)
		require.Contains(t, c.ChunkText, "header_a | header_b")
	}
}

func TestChunkSeedsOverlapBetweenAdjacentProseChunks(t *testing.T) {
	opts := Options{ChunkSize: 60, ChunkOverlap: 15, TableChunkSize: 500}
	text := strings.Repeat("lorem ipsum dolor sit amet consectetur ", 20)
	pages := []entity.PageRecord{{PageNumber: 1, Text: text}}

	chunks := Chunk(pages, opts)
	require.Greater(t, len(chunks), 2)

	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].ChunkText
		cur := chunks[i].ChunkText

		tail := prev
		if len(tail) > opts.ChunkOverlap {
			tail = tail[len(tail)-opts.ChunkOverlap:]
		}
		tail = strings.TrimSpace(tail)
		require.NotEmpty(t, tail, "chunk %d has no usable overlap tail", i-1)
		require.Contains(t, cur, tail,
			"overlap region %q from chunk %d should appear verbatim in chunk %d", tail, i-1, i)
	}
}

func TestChunkNonEmptyAfterTrim(t *testing.T) {
	pages := []entity.PageRecord{{PageNumber: 1, Text: "   \n\n   "}}
	chunks := Chunk(pages, DefaultOptions())
	for _, c := range chunks {
		require.NotEmpty(t, strings.TrimSpace(c.ChunkText))
	}
}
