// Package chat assembles the final message list for an LLM turn and
// streams the response as Server-Sent Events. It generalizes the
// teacher's inline RAGService.Query + SSE handler into the full
// message-assembly and streaming contract of the specification.
package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pixell07/localrag/internal/contextfmt"
	"github.com/pixell07/localrag/internal/entity"
	"github.com/pixell07/localrag/internal/retrieval"
)

// ragSystemPrompt is the fixed system preamble used whenever retrieval
// produced at least one chunk. It forbids outside knowledge, mandates
// the exact "insufficient information" phrase, requires citations, and
// preserves numeric values verbatim.
const ragSystemPrompt = `You are a document assistant. Answer the user's question using ONLY the information in the provided context below. Do not use any knowledge you have outside of this context.

If the answer is not contained in the context, respond exactly with: "I don't have that information in the provided documents."

When you use information from the context, cite its source like this: [Source: <filename>].

Preserve all numbers, dates, and other numeric values exactly as they appear in the context — do not round, reformat, or approximate them.`

// noContextSystemPrompt is substituted when retrieval is requested but
// returns zero chunks.
const noContextSystemPrompt = `You are a document assistant. No relevant documents were found for this question. Politely tell the user that you don't have any matching information in the document store, without guessing at an answer.`

// ragTemperature is fixed for RAG-mode requests regardless of the
// request's requested temperature, per the specification.
const ragTemperature = 0.0

// llmClient is the subset of llmclient.Client the orchestrator depends
// on.
type llmClient interface {
	GenerateChatResponse(ctx context.Context, model string, messages []entity.ChatMessage, temperature float64, out chan<- string) error
}

// retriever is the subset of retrieval.Retriever the orchestrator
// depends on.
type retriever interface {
	Retrieve(ctx context.Context, query string, topK int, minSimilarity float64, fileTypeFilter string) ([]entity.RetrievalResult, error)
}

// Orchestrator wires retrieval, context packing, and streaming
// generation together for one chat turn.
type Orchestrator struct {
	llm              llmClient
	retriever        retriever
	chatModel        string
	contextFmtOpts   contextfmt.Options
	defaultTemp      float64
	logger           *slog.Logger
}

// New constructs an Orchestrator.
func New(llm llmClient, ret retriever, chatModel string, fmtOpts contextfmt.Options, defaultTemp float64, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{llm: llm, retriever: ret, chatModel: chatModel, contextFmtOpts: fmtOpts, defaultTemp: defaultTemp, logger: logger}
}

// Request is one chat turn's input.
type Request struct {
	Message        string
	History        []entity.ChatMessage
	UseRetrieval   bool
	TopK           int
	MinSimilarity  float64
	FileTypeFilter string
}

// Event is one SSE payload emitted by Stream.
type Event struct {
	Content string `json:"content,omitempty"`
	Done    bool   `json:"done,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Stream runs one chat turn: optionally retrieves and packs context,
// assembles the message list, and streams fragments onto events. The
// channel is always closed by Stream. When the turn completes or fails,
// the final event on the channel carries Done or Error; when ctx is
// cancelled while fragments are being forwarded, the channel is closed
// with no final event.
//
// All dependency handles used here (llm, retriever) are captured at
// Orchestrator construction time, not resolved from request-scoped
// state, so a client disconnect (ctx cancellation) only stops the
// in-flight call — it never invalidates the handles themselves.
func (o *Orchestrator) Stream(ctx context.Context, req Request, events chan<- Event) {
	defer close(events)

	messages, temperature, err := o.assembleMessages(ctx, req)
	if err != nil {
		events <- Event{Error: "retrieval_failed", Message: err.Error()}
		return
	}

	fragments := make(chan string, 64)
	done := make(chan error, 1)

	go func() {
		done <- o.llm.GenerateChatResponse(ctx, o.chatModel, messages, temperature, fragments)
	}()

	for fragment := range fragments {
		if fragment == "" {
			continue
		}
		select {
		case events <- Event{Content: fragment}:
		case <-ctx.Done():
			return
		}
	}

	if err := <-done; err != nil {
		events <- Event{Error: "upstream_error", Message: err.Error()}
		return
	}

	events <- Event{Done: true}
}

func (o *Orchestrator) assembleMessages(ctx context.Context, req Request) ([]entity.ChatMessage, float64, error) {
	if !req.UseRetrieval {
		messages := append(append([]entity.ChatMessage{}, req.History...), entity.ChatMessage{
			Role:    entity.RoleUser,
			Content: req.Message,
		})
		return messages, o.defaultTemp, nil
	}

	results, err := o.retriever.Retrieve(ctx, req.Message, req.TopK, req.MinSimilarity, req.FileTypeFilter)
	if err != nil {
		return nil, 0, err
	}

	if len(results) == 0 {
		o.logger.Info("chat: no retrieval results", "message", req.Message)
		messages := append([]entity.ChatMessage{{Role: entity.RoleSystem, Content: noContextSystemPrompt}}, req.History...)
		messages = append(messages, entity.ChatMessage{Role: entity.RoleUser, Content: req.Message})
		return messages, ragTemperature, nil
	}

	packed := contextfmt.Format(results, o.contextFmtOpts)
	userTurn := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", packed, req.Message)

	messages := append([]entity.ChatMessage{{Role: entity.RoleSystem, Content: ragSystemPrompt}}, req.History...)
	messages = append(messages, entity.ChatMessage{Role: entity.RoleUser, Content: userTurn})
	return messages, ragTemperature, nil
}
