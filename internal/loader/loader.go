// Package loader extracts a sequence of page records from heterogeneous
// document formats. Each loader emits (page_number, text, section_title?)
// records; tables are preserved as pipe-delimited [Table]...[/Table]
// blocks embedded in the page text.
package loader

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pixell07/localrag/internal/apperr"
	"github.com/pixell07/localrag/internal/entity"
)

const (
	tableOpen  = "\n[Table]\n"
	tableClose = "\n[/Table]\n"
)

// Load dispatches to a format-specific extractor based on the filename
// extension, then validates that some text was extracted.
func Load(filename string, data []byte) ([]entity.PageRecord, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	var pages []entity.PageRecord
	var err error

	switch ext {
	case ".txt":
		pages, err = loadPlainText(data)
	case ".md":
		pages, err = loadMarkdown(data)
	case ".docx":
		pages, err = loadDocx(data)
	case ".pdf":
		pages, err = loadPDF(data)
	default:
		return nil, apperr.New(apperr.KindDocumentProcess, fmt.Sprintf("unsupported file extension %q", ext))
	}
	if err != nil {
		return nil, err
	}

	if totalExtractedChars(pages) == 0 {
		reason := "no extractable text"
		if ext == ".pdf" {
			reason += " (if this is an image-only PDF, OCR it first)"
		}
		return nil, apperr.New(apperr.KindDocumentProcess, reason)
	}

	withSections(pages)
	return pages, nil
}

func totalExtractedChars(pages []entity.PageRecord) int {
	n := 0
	for _, p := range pages {
		n += len(strings.TrimSpace(p.Text))
	}
	return n
}

// withSections fills in SectionTitle heuristically for pages that don't
// already have one, per spec.md §4.3: derive it from the first ~5
// non-empty lines, preferring short, title-case/all-caps, or
// colon-terminated lines, rejecting enumerated lines.
func withSections(pages []entity.PageRecord) {
	for i := range pages {
		if pages[i].SectionTitle != nil {
			continue
		}
		if title := detectSectionTitle(pages[i].Text); title != "" {
			pages[i].SectionTitle = &title
		}
	}
}

func detectSectionTitle(text string) string {
	lines := strings.Split(text, "\n")
	checked := 0
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		checked++
		if checked > 5 {
			break
		}
		if isEnumerated(line) {
			continue
		}
		if len(line) > 100 {
			continue
		}
		if isTitleCaseOrUpper(line) || strings.HasSuffix(line, ":") {
			return strings.TrimSuffix(line, ":")
		}
	}
	return ""
}

func isEnumerated(line string) bool {
	if len(line) == 0 {
		return false
	}
	switch line[0] {
	case '-', '*':
		return true
	}
	if strings.HasPrefix(line, "•") {
		return true
	}
	// "1.", "2)" style markers
	i := 0
	for i < len(line) && (line[i] >= '0' && line[i] <= '9') {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		return true
	}
	return false
}

func isTitleCaseOrUpper(line string) bool {
	hasLetter := false
	hasLower := false
	for _, r := range line {
		if r >= 'a' && r <= 'z' {
			hasLower = true
			hasLetter = true
		} else if r >= 'A' && r <= 'Z' {
			hasLetter = true
		}
	}
	if !hasLetter {
		return false
	}
	if !hasLower {
		return true // ALL CAPS
	}
	// Title Case: every word starts with an uppercase letter.
	words := strings.Fields(line)
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		r := []rune(w)
		if len(r) == 0 {
			continue
		}
		if r[0] < 'A' || r[0] > 'Z' {
			return false
		}
	}
	return true
}
