package vectorstore

import (
	"encoding/json"

	"github.com/pixell07/localrag/internal/entity"
)

// metadataJSON renders the on-disk JSON shape for entity.ChunkMetadata: known
// fields promoted to top-level keys, everything else flattened from
// Extra so unknown/forward-compatible keys round-trip untouched.
func metadataJSON(m entity.ChunkMetadata) ([]byte, error) {
	obj := map[string]any{}
	for k, v := range m.Extra {
		obj[k] = v
	}
	if m.PageNumber != nil {
		obj["page_number"] = *m.PageNumber
	}
	if m.SectionTitle != nil {
		obj["section_title"] = *m.SectionTitle
	}
	if m.HasTable {
		obj["has_table"] = true
	}
	return json.Marshal(obj)
}

func metadataFromJSON(raw []byte) (entity.ChunkMetadata, error) {
	var obj map[string]any
	if len(raw) == 0 {
		return entity.ChunkMetadata{}, nil
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return entity.ChunkMetadata{}, err
	}

	meta := entity.ChunkMetadata{Extra: map[string]any{}}
	for k, v := range obj {
		switch k {
		case "page_number":
			if f, ok := v.(float64); ok {
				n := int(f)
				meta.PageNumber = &n
			}
		case "section_title":
			if s, ok := v.(string); ok {
				meta.SectionTitle = &s
			}
		case "has_table":
			if b, ok := v.(bool); ok {
				meta.HasTable = b
			}
		default:
			meta.Extra[k] = v
		}
	}
	if len(meta.Extra) == 0 {
		meta.Extra = nil
	}
	return meta, nil
}
