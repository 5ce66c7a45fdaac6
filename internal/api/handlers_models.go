package api

import (
	"encoding/json"
	"net/http"

	"github.com/pixell07/localrag/internal/apperr"
	"github.com/pixell07/localrag/internal/entity"
	"github.com/pixell07/localrag/internal/llmclient"
)

func (h *handlers) listModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.deps.LLM.ListModels(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

type modelRequest struct {
	Model string `json:"model"`
}

func (h *handlers) setActiveModel(w http.ResponseWriter, r *http.Request) {
	var body modelRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Model == "" {
		writeAppError(w, apperr.New(apperr.KindValidation, "model is required"))
		return
	}

	h.deps.State.SetActiveModel(body.Model)
	writeJSON(w, http.StatusOK, map[string]string{"active_model": body.Model})
}

// pullEvent is the SSE payload shape for a model pull, per spec.md §6
// `{status,...}` events.
type pullEvent struct {
	Status    string `json:"status"`
	Completed int64  `json:"completed,omitempty"`
	Total     int64  `json:"total,omitempty"`
	Error     string `json:"error,omitempty"`
	Done      bool   `json:"done,omitempty"`
}

func (h *handlers) pullModel(w http.ResponseWriter, r *http.Request) {
	var body modelRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Model == "" {
		writeAppError(w, apperr.New(apperr.KindValidation, "model is required"))
		return
	}

	flusher, ok := setSSEHeaders(w)
	if !ok {
		writeAppError(w, apperr.New(apperr.KindConfiguration, "streaming not supported"))
		return
	}

	progress := make(chan llmclient.PullProgress, 32)
	errCh := make(chan error, 1)
	go func() {
		errCh <- h.deps.LLM.PullModel(r.Context(), body.Model, progress)
	}()

	for update := range progress {
		writeSSE(w, flusher, pullEvent{Status: update.Status, Completed: update.Completed, Total: update.Total})
	}

	if err := <-errCh; err != nil {
		writeSSE(w, flusher, pullEvent{Status: "error", Error: err.Error()})
		return
	}
	writeSSE(w, flusher, pullEvent{Status: "done", Done: true})
}

func (h *handlers) deleteModel(w http.ResponseWriter, r *http.Request) {
	var body modelRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Model == "" {
		writeAppError(w, apperr.New(apperr.KindValidation, "model is required"))
		return
	}

	if err := h.deps.LLM.DeleteModel(r.Context(), body.Model); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *handlers) testModel(w http.ResponseWriter, r *http.Request) {
	var body modelRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Model == "" {
		writeAppError(w, apperr.New(apperr.KindValidation, "model is required"))
		return
	}

	out := make(chan string, 8)
	errCh := make(chan error, 1)
	go func() {
		errCh <- h.deps.LLM.GenerateChatResponse(r.Context(), body.Model, []entity.ChatMessage{
			{Role: entity.RoleUser, Content: "Reply with a short greeting to confirm you're working."},
		}, 0.0, out)
	}()

	var sample string
	for fragment := range out {
		sample += fragment
	}

	if err := <-errCh; err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "sample": sample})
}
