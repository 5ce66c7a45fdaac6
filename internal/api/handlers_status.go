package api

import (
	"net/http"
	"time"
)

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   serverVersion,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	ollamaOK, _ := h.deps.LLM.CheckConnection(r.Context())

	dbOK := true
	docCount, err := h.deps.Store.GetDocumentCount(r.Context())
	if err != nil {
		dbOK = false
		docCount = 0
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ollama_ok":      ollamaOK,
		"db_ok":          dbOK,
		"active_model":   h.deps.State.ActiveModel(),
		"document_count": docCount,
	})
}
