package api

import (
	"encoding/json"
	"net/http"

	"github.com/pixell07/localrag/internal/apperr"
	"github.com/pixell07/localrag/internal/chat"
	"github.com/pixell07/localrag/internal/entity"
)

const (
	maxMessageChars = 5000
	maxHistoryTurns = 50
	maxHistoryChars = 10000
)

type chatHistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Message string            `json:"message"`
	UseRAG  bool              `json:"use_rag"`
	TopK    int               `json:"top_k"`
	History []chatHistoryTurn `json:"history"`
}

func (h *handlers) chat(w http.ResponseWriter, r *http.Request) {
	var body chatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAppError(w, apperr.New(apperr.KindValidation, "invalid request body"))
		return
	}

	if err := validateChatRequest(body); err != nil {
		writeAppError(w, err)
		return
	}

	flusher, ok := setSSEHeaders(w)
	if !ok {
		writeAppError(w, apperr.New(apperr.KindConfiguration, "streaming not supported"))
		return
	}

	history := make([]entity.ChatMessage, 0, len(body.History))
	for _, turn := range body.History {
		history = append(history, entity.ChatMessage{Role: turn.Role, Content: turn.Content})
	}

	events := make(chan chat.Event, 64)
	go h.deps.Orchestrator.Stream(r.Context(), chat.Request{
		Message:      body.Message,
		History:      history,
		UseRetrieval: body.UseRAG,
		TopK:         body.TopK,
	}, events)

	for event := range events {
		writeSSE(w, flusher, event)
	}
}

func validateChatRequest(body chatRequest) error {
	if len(body.Message) == 0 || len(body.Message) > maxMessageChars {
		return apperr.New(apperr.KindValidation, "message must be 1..5000 characters")
	}
	if len(body.History) > maxHistoryTurns {
		return apperr.New(apperr.KindValidation, "history must contain at most 50 entries")
	}
	if body.TopK != 0 && (body.TopK < 1 || body.TopK > 100) {
		return apperr.New(apperr.KindValidation, "top_k must be between 1 and 100")
	}
	for _, turn := range body.History {
		if turn.Role != entity.RoleUser && turn.Role != entity.RoleAssistant {
			return apperr.New(apperr.KindValidation, "history role must be user or assistant")
		}
		if len(turn.Content) == 0 || len(turn.Content) > maxHistoryChars {
			return apperr.New(apperr.KindValidation, "history content must be 1..10000 characters")
		}
	}
	return nil
}
