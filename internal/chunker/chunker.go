// Package chunker splits a per-page text stream into overlapping,
// metadata-tagged chunks. Prose uses a recursive-separator split in the
// style of langchaingo's textsplitter.RecursiveCharacter; tables are
// detected via [Table]...[/Table] markers and kept intact (or split at
// row boundaries) against a separate, larger budget so they never
// straddle a prose chunk.
package chunker

import (
	"strings"

	"github.com/pixell07/localrag/internal/entity"
)

// Options configures chunk budgets; defaults match spec.md §4.4.
type Options struct {
	ChunkSize      int
	ChunkOverlap   int
	TableChunkSize int
}

// DefaultOptions returns the specification's canonical defaults.
func DefaultOptions() Options {
	return Options{ChunkSize: 1024, ChunkOverlap: 205, TableChunkSize: 2048}
}

// separators tried in order, the first that produces all segments
// within budget wins — paragraph, line, sentence, word, character.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Chunk splits a page stream into ordered, metadata-tagged chunks.
func Chunk(pages []entity.PageRecord, opts Options) []entity.Chunk {
	if opts.ChunkSize <= 0 {
		opts = DefaultOptions()
	}

	var chunks []entity.Chunk
	chunkIndex := 0
	var carryOverlap string
	var carryPage int
	var carrySection *string

	for _, page := range pages {
		segments := splitPageIntoSegments(page.Text, opts)

		for _, seg := range segments {
			if seg.isTable {
				chunks = append(chunks, emitTableChunks(seg.text, page.PageNumber, page.SectionTitle, &chunkIndex, opts.TableChunkSize)...)
				carryOverlap = ""
				continue
			}

			text := carryOverlap + seg.text
			carryOverlap = ""

			prosePieces := recursiveSplit(text, opts.ChunkSize, 0)
			for pi, rawPiece := range prosePieces {
				pieceText := rawPiece
				if pi > 0 {
					// Seed this chunk with the tail of its predecessor so the
					// overlap region appears verbatim in both neighbors, same
					// as the cross-segment carryOverlap below.
					pieceText = overlapSuffix(prosePieces[pi-1], opts.ChunkOverlap) + rawPiece
				}
				piece := strings.TrimSpace(pieceText)
				if piece == "" {
					continue
				}

				section := page.SectionTitle
				if section == nil {
					section = carrySection
				}
				pageNum := page.PageNumber
				if pi == 0 && carryPage != 0 {
					pageNum = carryPage
				}

				chunks = append(chunks, entity.Chunk{
					ChunkIndex: chunkIndex,
					ChunkText:  piece,
					Metadata: entity.ChunkMetadata{
						PageNumber:   intPtr(pageNum),
						SectionTitle: section,
					},
				})
				chunkIndex++

				if section != nil {
					carrySection = section
				}
			}

			if len(prosePieces) > 0 {
				carryOverlap = overlapSuffix(prosePieces[len(prosePieces)-1], opts.ChunkOverlap)
				carryPage = page.PageNumber
			}
		}
	}

	return chunks
}

type pageSegment struct {
	text    string
	isTable bool
}

// splitPageIntoSegments separates [Table]...[/Table] blocks from the
// surrounding prose so tables never straddle a prose chunk boundary.
func splitPageIntoSegments(text string, opts Options) []pageSegment {
	var segments []pageSegment
	remaining := text

	for {
		start := strings.Index(remaining, "[Table]")
		if start == -1 {
			if remaining != "" {
				segments = append(segments, pageSegment{text: remaining})
			}
			break
		}
		end := strings.Index(remaining, "[/Table]")
		if end == -1 || end < start {
			segments = append(segments, pageSegment{text: remaining})
			break
		}
		end += len("[/Table]")

		if before := remaining[:start]; before != "" {
			segments = append(segments, pageSegment{text: before})
		}
		segments = append(segments, pageSegment{text: remaining[start:end], isTable: true})
		remaining = remaining[end:]
	}

	return segments
}

// emitTableChunks keeps a table intact if it fits the table budget;
// otherwise splits along row boundaries, repeating the header row.
func emitTableChunks(tableBlock string, pageNumber int, section *string, chunkIndex *int, budget int) []entity.Chunk {
	inner := strings.TrimSuffix(strings.TrimPrefix(tableBlock, "\n[Table]\n"), "\n[/Table]\n")
	inner = strings.TrimPrefix(inner, "[Table]\n")
	inner = strings.TrimSuffix(inner, "\n[/Table]")
	rows := strings.Split(strings.TrimSpace(inner), "\n")
	if len(rows) == 0 || (len(rows) == 1 && rows[0] == "") {
		return nil
	}
	if budget <= 0 {
		budget = 2048
	}

	return emitTableChunksWithBudget(rows, pageNumber, section, chunkIndex, budget)
}

func emitTableChunksWithBudget(rows []string, pageNumber int, section *string, chunkIndex *int, budget int) []entity.Chunk {
	header := rows[0]
	full := "[Table]\n" + strings.Join(rows, "\n") + "\n[/Table]"

	if len(full) <= budget {
		c := entity.Chunk{
			ChunkIndex: *chunkIndex,
			ChunkText:  full,
			Metadata: entity.ChunkMetadata{
				PageNumber:   intPtr(pageNumber),
				SectionTitle: section,
				HasTable:     true,
			},
		}
		*chunkIndex++
		return []entity.Chunk{c}
	}

	var chunks []entity.Chunk
	var body []string
	bodyLen := len(header) + len("[Table]\n[/Table]\n")

	flush := func() {
		if len(body) == 0 {
			return
		}
		text := "[Table]\n" + header + "\n" + strings.Join(body, "\n") + "\n[/Table]"
		chunks = append(chunks, entity.Chunk{
			ChunkIndex: *chunkIndex,
			ChunkText:  text,
			Metadata: entity.ChunkMetadata{
				PageNumber:   intPtr(pageNumber),
				SectionTitle: section,
				HasTable:     true,
			},
		})
		*chunkIndex++
		body = nil
		bodyLen = len(header) + len("[Table]\n[/Table]\n")
	}

	for _, row := range rows[1:] {
		if bodyLen+len(row)+1 > budget && len(body) > 0 {
			flush()
		}
		body = append(body, row)
		bodyLen += len(row) + 1
	}
	flush()

	return chunks
}

// recursiveSplit tries separators in order, picking the first whose
// resulting segments all fit within budget; falls back to hard
// character slicing if none do.
func recursiveSplit(text string, budget int, depth int) []string {
	if len(text) <= budget {
		return []string{text}
	}
	if depth >= len(separators) {
		return hardSplit(text, budget)
	}

	sep := separators[depth]
	var parts []string
	if sep == "" {
		return hardSplit(text, budget)
	}
	parts = strings.Split(text, sep)

	allFit := true
	for _, p := range parts {
		if len(p) > budget {
			allFit = false
			break
		}
	}
	if !allFit {
		// Recurse into the next separator on each oversized part, then
		// repack everything under budget.
		var expanded []string
		for _, p := range parts {
			if len(p) > budget {
				expanded = append(expanded, recursiveSplit(p, budget, depth+1)...)
			} else {
				expanded = append(expanded, p)
			}
		}
		parts = expanded
	}

	return repack(parts, sep, budget)
}

// repack greedily concatenates adjacent small parts (reinserting the
// separator) up to budget, so we don't emit a flood of tiny chunks.
func repack(parts []string, sep string, budget int) []string {
	var out []string
	var cur strings.Builder
	for _, p := range parts {
		candidate := p
		if cur.Len() > 0 {
			candidate = cur.String() + sep + p
		}
		if len(candidate) > budget && cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
			cur.WriteString(p)
			continue
		}
		cur.Reset()
		cur.WriteString(candidate)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

func hardSplit(text string, budget int) []string {
	if budget <= 0 {
		return []string{text}
	}
	var out []string
	runes := []rune(text)
	for i := 0; i < len(runes); i += budget {
		end := i + budget
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}

// overlapSuffix returns the trailing n characters of s, used as the
// verbatim overlap region seeded into the next chunk.
func overlapSuffix(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return ""
	}
	return s[len(s)-n:]
}

func intPtr(v int) *int { return &v }
