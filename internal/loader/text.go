package loader

import (
	"bufio"
	"bytes"

	"github.com/pixell07/localrag/internal/entity"
)

// loadPlainText treats the whole file as a single page.
func loadPlainText(data []byte) ([]entity.PageRecord, error) {
	return []entity.PageRecord{{PageNumber: 1, Text: string(data)}}, nil
}

// loadMarkdown treats the whole file as a single page; heading
// detection is handled generically by detectSectionTitle, but a
// leading "# Heading" is preferred verbatim when present.
func loadMarkdown(data []byte) ([]entity.PageRecord, error) {
	text := string(data)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	var heading string
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := bytes.TrimSpace([]byte(line))
		if len(trimmed) == 0 {
			continue
		}
		if trimmed[0] == '#' {
			heading = string(bytes.TrimLeft(trimmed, "# "))
		}
		break
	}

	page := entity.PageRecord{PageNumber: 1, Text: text}
	if heading != "" {
		page.SectionTitle = &heading
	}
	return []entity.PageRecord{page}, nil
}
