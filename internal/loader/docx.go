package loader

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/nguyenthenguyen/docx"

	"github.com/pixell07/localrag/internal/apperr"
	"github.com/pixell07/localrag/internal/entity"
)

// docx.ReadDocxFromMemory hands back the raw word/document.xml markup via
// GetContent(); nguyenthenguyen/docx has no structure-aware text API (its
// Replace/WriteToFile pair is built for templating, not extraction), so
// we walk the markup ourselves to keep paragraphs and tables in document
// order the way spec requires.
var (
	tagRun      = regexp.MustCompile(`<w:t[^>]*>(.*?)</w:t>`)
	tagParaOpen = regexp.MustCompile(`<w:p[ />]`)
	tagTblOpen  = regexp.MustCompile(`<w:tbl[ >]`)
	tagTblClose = regexp.MustCompile(`</w:tbl>`)
	tagTrOpen   = regexp.MustCompile(`<w:tr[ >]`)
	tagTrClose  = regexp.MustCompile(`</w:tr>`)
)

// loadDocx extracts the full document body as page 1, rendering tables
// as pipe-delimited [Table]...[/Table] blocks in document order.
func loadDocx(data []byte) ([]entity.PageRecord, error) {
	reader, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDocumentProcess, "open docx archive", err)
	}
	defer reader.Close()

	raw := reader.Editable().GetContent()
	text := extractDocxBody(raw)

	return []entity.PageRecord{{PageNumber: 1, Text: text}}, nil
}

// extractDocxBody walks word/document.xml markup in document order,
// splicing rendered tables in between runs of paragraph text.
func extractDocxBody(xmlBody string) string {
	var out strings.Builder

	tblOpenIdx := tagTblOpen.FindAllStringIndex(xmlBody, -1)
	tblCloseIdx := tagTblClose.FindAllStringIndex(xmlBody, -1)

	if len(tblOpenIdx) == 0 {
		return extractParagraphs(xmlBody)
	}

	cursor := 0
	for i := range tblOpenIdx {
		if i >= len(tblCloseIdx) {
			break
		}
		start, end := tblOpenIdx[i][0], tblCloseIdx[i][1]

		out.WriteString(extractParagraphs(xmlBody[cursor:start]))
		out.WriteString(renderDocxTable(xmlBody[start:end]))
		cursor = end
	}
	out.WriteString(extractParagraphs(xmlBody[cursor:]))

	return out.String()
}

// extractParagraphs pulls run text (<w:t>) out of non-table markup,
// joining paragraphs (<w:p>) with blank lines.
func extractParagraphs(xmlBody string) string {
	paraBounds := tagParaOpen.FindAllStringIndex(xmlBody, -1)
	if len(paraBounds) == 0 {
		return joinRuns(xmlBody)
	}

	var paragraphs []string
	for i, b := range paraBounds {
		end := len(xmlBody)
		if i+1 < len(paraBounds) {
			end = paraBounds[i+1][0]
		}
		if text := joinRuns(xmlBody[b[0]:end]); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}
	return strings.Join(paragraphs, "\n\n")
}

func joinRuns(xmlBody string) string {
	matches := tagRun.FindAllStringSubmatch(xmlBody, -1)
	var sb strings.Builder
	for _, m := range matches {
		sb.WriteString(unescapeXML(m[1]))
	}
	return strings.TrimSpace(sb.String())
}

// renderDocxTable converts a <w:tbl>...</w:tbl> fragment into the
// pipe-delimited [Table]...[/Table] block spec.md requires.
func renderDocxTable(tblXML string) string {
	rowBounds := tagTrOpen.FindAllStringIndex(tblXML, -1)
	rowCloseBounds := tagTrClose.FindAllStringIndex(tblXML, -1)

	var sb strings.Builder
	sb.WriteString(tableOpen)
	for i := range rowBounds {
		if i >= len(rowCloseBounds) {
			break
		}
		rowXML := tblXML[rowBounds[i][0]:rowCloseBounds[i][1]]
		cells := tagRun.FindAllStringSubmatch(rowXML, -1)
		vals := make([]string, 0, len(cells))
		for _, c := range cells {
			vals = append(vals, unescapeXML(c[1]))
		}
		sb.WriteString(strings.Join(vals, " | "))
		sb.WriteString("\n")
	}
	sb.WriteString(tableClose)
	return sb.String()
}

func unescapeXML(s string) string {
	replacer := strings.NewReplacer(
		"&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'",
	)
	return replacer.Replace(s)
}
