package api

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/pixell07/localrag/internal/apperr"
)

var allowedUploadExtensions = map[string]bool{
	".pdf":  true,
	".txt":  true,
	".docx": true,
	".md":   true,
}

func (h *handlers) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.deps.Store.GetAllDocuments(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// uploadEvent is the SSE payload shape for document upload progress,
// per spec.md §6 `{message|result|done}` events.
type uploadEvent struct {
	Message string      `json:"message,omitempty"`
	Result  *uploadItem `json:"result,omitempty"`
	Done    bool        `json:"done,omitempty"`
}

type uploadItem struct {
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunk_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (h *handlers) uploadDocuments(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.deps.MaxUploadBytes * 4); err != nil {
		writeAppError(w, apperr.New(apperr.KindFileUpload, "could not parse multipart form"))
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeAppError(w, apperr.New(apperr.KindValidation, "at least one file is required"))
		return
	}

	flusher, ok := setSSEHeaders(w)
	if !ok {
		writeAppError(w, apperr.New(apperr.KindConfiguration, "streaming not supported"))
		return
	}

	ingested := 0
	for _, fh := range files {
		ext := strings.ToLower(filepath.Ext(fh.Filename))
		if !allowedUploadExtensions[ext] {
			writeSSE(w, flusher, uploadEvent{Result: &uploadItem{Filename: fh.Filename, Error: "unsupported file extension"}})
			continue
		}
		if fh.Size > h.deps.MaxUploadBytes {
			writeSSE(w, flusher, uploadEvent{Result: &uploadItem{Filename: fh.Filename, Error: "file exceeds maximum upload size"}})
			continue
		}

		writeSSE(w, flusher, uploadEvent{Message: "processing " + fh.Filename})

		f, err := fh.Open()
		if err != nil {
			writeSSE(w, flusher, uploadEvent{Result: &uploadItem{Filename: fh.Filename, Error: err.Error()}})
			continue
		}
		data, readErr := io.ReadAll(f)
		f.Close()
		if readErr != nil {
			writeSSE(w, flusher, uploadEvent{Result: &uploadItem{Filename: fh.Filename, Error: readErr.Error()}})
			continue
		}

		result, err := h.deps.Ingest.Ingest(r.Context(), fh.Filename, data)
		if err != nil {
			writeSSE(w, flusher, uploadEvent{Result: &uploadItem{Filename: fh.Filename, Error: err.Error()}})
			continue
		}

		ingested++
		writeSSE(w, flusher, uploadEvent{Result: &uploadItem{Filename: fh.Filename, ChunkCount: result.ChunkCount}})
	}

	if ingested > 0 {
		if count, err := h.deps.Store.GetDocumentCount(r.Context()); err == nil {
			h.deps.State.SetDocumentCount(count)
		}
	}

	writeSSE(w, flusher, uploadEvent{Done: true})
}

type documentTestRequest struct {
	Query    string `json:"query"`
	TopK     int    `json:"top_k"`
	FileType string `json:"file_type"`
}

type documentTestResult struct {
	Filename     string  `json:"filename"`
	ChunkIndex   int     `json:"chunk_index"`
	Similarity   float64 `json:"similarity"`
	Preview      string  `json:"preview"`
	Length       int     `json:"length"`
	PageNumber   *int    `json:"page_number,omitempty"`
	SectionTitle *string `json:"section_title,omitempty"`
}

const previewLength = 200

func (h *handlers) testDocuments(w http.ResponseWriter, r *http.Request) {
	var body documentTestRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAppError(w, apperr.New(apperr.KindValidation, "invalid request body"))
		return
	}
	if body.TopK != 0 && (body.TopK < 1 || body.TopK > 100) {
		writeAppError(w, apperr.New(apperr.KindValidation, "top_k must be between 1 and 100"))
		return
	}

	results, err := h.deps.Retriever.Retrieve(r.Context(), body.Query, body.TopK, 0, body.FileType)
	if err != nil {
		writeAppError(w, err)
		return
	}

	out := make([]documentTestResult, 0, len(results))
	for _, res := range results {
		preview := res.ChunkText
		if len(preview) > previewLength {
			preview = preview[:previewLength]
		}
		out = append(out, documentTestResult{
			Filename:     res.Filename,
			ChunkIndex:   res.ChunkIndex,
			Similarity:   res.Similarity,
			Preview:      preview,
			Length:       len(res.ChunkText),
			PageNumber:   res.Metadata.PageNumber,
			SectionTitle: res.Metadata.SectionTitle,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": out})
}

func (h *handlers) clearDocuments(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Store.DeleteAllDocuments(r.Context()); err != nil {
		writeAppError(w, err)
		return
	}
	h.deps.State.SetDocumentCount(0)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
