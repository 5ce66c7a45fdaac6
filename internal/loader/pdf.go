package loader

import (
	"bytes"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/pixell07/localrag/internal/apperr"
	"github.com/pixell07/localrag/internal/entity"
)

// loadPDF extracts text page-by-page, detecting simple aligned-column
// tables within each page and embedding them as [Table]...[/Table]
// blocks alongside the surrounding prose.
func loadPDF(data []byte) ([]entity.PageRecord, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDocumentProcess, "open pdf", err)
	}

	numPages := reader.NumPage()
	pages := make([]entity.PageRecord, 0, numPages)

	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		rows, err := page.GetTextByRow()
		if err != nil {
			// A single unreadable page shouldn't sink the whole document;
			// record it as blank and let the overall-empty check catch
			// genuinely image-only PDFs.
			pages = append(pages, entity.PageRecord{PageNumber: i, Text: ""})
			continue
		}

		pages = append(pages, entity.PageRecord{PageNumber: i, Text: renderPDFPage(rows)})
	}

	return pages, nil
}

// renderPDFPage reconstructs paragraph text from text rows, folding
// rows that look like aligned table columns into [Table] blocks.
func renderPDFPage(rows pdf.Rows) string {
	var out strings.Builder
	var tableRows [][]string
	flushTable := func() {
		if len(tableRows) == 0 {
			return
		}
		out.WriteString(tableOpen)
		for _, r := range tableRows {
			out.WriteString(strings.Join(r, " | "))
			out.WriteString("\n")
		}
		out.WriteString(tableClose)
		tableRows = nil
	}

	for _, row := range rows {
		cells := rowCells(row)
		if isTableRow(cells) {
			tableRows = append(tableRows, cells)
			continue
		}
		flushTable()

		line := strings.TrimSpace(strings.Join(cells, " "))
		if line != "" {
			out.WriteString(line)
			out.WriteString("\n")
		}
	}
	flushTable()

	return out.String()
}

func rowCells(row pdf.Row) []string {
	cells := make([]string, 0, len(row.Content))
	for _, word := range row.Content {
		if s := strings.TrimSpace(word.S); s != "" {
			cells = append(cells, s)
		}
	}
	return cells
}

// isTableRow is a light heuristic: three or more distinct whitespace-
// separated fields on one row, at least half of them short (20 bytes or
// less) single-word fields, reads as a tabular row rather than a prose
// line.
func isTableRow(cells []string) bool {
	if len(cells) < 3 {
		return false
	}
	shortFields := 0
	for _, c := range cells {
		if len(c) <= 20 && !strings.Contains(c, " ") {
			shortFields++
		}
	}
	return shortFields >= len(cells)/2
}
