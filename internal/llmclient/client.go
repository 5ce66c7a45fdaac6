// Package llmclient adapts a local Ollama-style HTTP server: listing
// models, generating embeddings, streaming chat completions, and
// pulling/deleting models. Nothing here is retried; callers decide
// retry policy.
package llmclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pixell07/localrag/internal/apperr"
	"github.com/pixell07/localrag/internal/entity"
)

// Client talks to a local Ollama-compatible server over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// New constructs a Client. timeout bounds each call as a whole,
// including reading a streamed chat response to its end; PullModel is
// the one call it does not bound.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// CheckConnection verifies the server is reachable.
func (c *Client) CheckConnection(ctx context.Context) (bool, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false, err.Error()
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, err.Error()
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}
	return true, "ok"
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
		Size int64  `json:"size"`
	} `json:"models"`
}

// ListModels returns every model the server currently has pulled.
func (c *Client) ListModels(ctx context.Context) ([]entity.ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindOllamaConn, "build list-models request", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindOllamaConn, "list models", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.New(apperr.KindOllamaConn, fmt.Sprintf("list models: status %d", resp.StatusCode))
	}

	var parsed tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperr.Wrap(apperr.KindOllamaConn, "decode list-models response", err)
	}

	models := make([]entity.ModelInfo, 0, len(parsed.Models))
	for _, m := range parsed.Models {
		models = append(models, entity.ModelInfo{Name: m.Name, Size: m.Size})
	}
	return models, nil
}

// PickEmbeddingModel prefers an exact match from preferred, then a
// prefix match, then any model whose name contains "embed".
func PickEmbeddingModel(models []entity.ModelInfo, preferred []string) string {
	byName := make(map[string]entity.ModelInfo, len(models))
	for _, m := range models {
		byName[m.Name] = m
	}

	for _, p := range preferred {
		if _, ok := byName[p]; ok {
			return p
		}
	}
	for _, p := range preferred {
		for _, m := range models {
			if strings.HasPrefix(m.Name, p) {
				return m.Name
			}
		}
	}
	for _, m := range models {
		if strings.Contains(strings.ToLower(m.Name), "embed") {
			return m.Name
		}
	}
	return ""
}

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

// GenerateEmbedding requests a single embedding vector. Empty text is
// permitted and yields ok=false with no vector, matching the upstream
// server's behavior for blank prompts.
func (c *Client) GenerateEmbedding(ctx context.Context, model, text string) (bool, []float32, error) {
	if strings.TrimSpace(text) == "" {
		return false, nil, nil
	}

	body, err := json.Marshal(embeddingRequest{Model: model, Prompt: text})
	if err != nil {
		return false, nil, apperr.Wrap(apperr.KindEmbeddingGen, "encode embedding request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return false, nil, apperr.Wrap(apperr.KindEmbeddingGen, "build embedding request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, nil, apperr.Wrap(apperr.KindOllamaConn, "embedding request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil, apperr.New(apperr.KindEmbeddingGen, fmt.Sprintf("embedding request: status %d", resp.StatusCode))
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return false, nil, apperr.Wrap(apperr.KindEmbeddingGen, "decode embedding response", err)
	}
	if len(parsed.Embedding) == 0 {
		return false, nil, nil
	}
	return true, parsed.Embedding, nil
}

type chatRequest struct {
	Model    string             `json:"model"`
	Messages []ollamaChatTurn   `json:"messages"`
	Stream   bool               `json:"stream"`
	Options  map[string]float64 `json:"options,omitempty"`
}

type ollamaChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatStreamLine struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

// GenerateChatResponse streams content fragments onto out, closing it
// when the response completes or the upstream call fails. On upstream
// error, no further fragments are yielded and the error is returned;
// callers decide how to surface that to their own consumer.
func (c *Client) GenerateChatResponse(ctx context.Context, model string, messages []entity.ChatMessage, temperature float64, out chan<- string) error {
	defer close(out)

	turns := make([]ollamaChatTurn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, ollamaChatTurn{Role: m.Role, Content: m.Content})
	}

	body, err := json.Marshal(chatRequest{
		Model:    model,
		Messages: turns,
		Stream:   true,
		Options:  map[string]float64{"temperature": temperature},
	})
	if err != nil {
		return apperr.Wrap(apperr.KindOllamaConn, "encode chat request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return apperr.Wrap(apperr.KindOllamaConn, "build chat request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindOllamaConn, "chat request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apperr.New(apperr.KindOllamaConn, fmt.Sprintf("chat request: status %d", resp.StatusCode))
	}

	// Ollama frames one JSON object per line (NDJSON), not SSE.
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var parsed chatStreamLine
		if err := json.Unmarshal(line, &parsed); err != nil {
			continue
		}
		if parsed.Error != "" {
			return apperr.New(apperr.KindOllamaConn, parsed.Error)
		}
		if parsed.Message.Content != "" {
			select {
			case out <- parsed.Message.Content:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if parsed.Done {
			break
		}
	}
	return scanner.Err()
}

type pullStreamLine struct {
	Status    string `json:"status"`
	Completed int64  `json:"completed"`
	Total     int64  `json:"total"`
}

// PullProgress is one progress update from a model pull.
type PullProgress struct {
	Status    string
	Completed int64
	Total     int64
}

// PullModel streams progress updates onto out while the server downloads
// model. The connection is indefinite; cancel ctx to abort.
func (c *Client) PullModel(ctx context.Context, model string, out chan<- PullProgress) error {
	defer close(out)

	body, _ := json.Marshal(map[string]string{"name": model})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return apperr.Wrap(apperr.KindOllamaConn, "build pull request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// Same transport, no overall timeout: only ctx ends a pull.
	pullClient := &http.Client{Transport: c.http.Transport}
	resp, err := pullClient.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindOllamaConn, "pull request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apperr.New(apperr.KindOllamaConn, fmt.Sprintf("pull request: status %d", resp.StatusCode))
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var parsed pullStreamLine
		if err := json.Unmarshal(line, &parsed); err != nil {
			continue
		}
		select {
		case out <- PullProgress{Status: parsed.Status, Completed: parsed.Completed, Total: parsed.Total}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return scanner.Err()
}

// DeleteModel removes a model from the server.
func (c *Client) DeleteModel(ctx context.Context, model string) error {
	body, _ := json.Marshal(map[string]string{"name": model})
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/delete", bytes.NewReader(body))
	if err != nil {
		return apperr.Wrap(apperr.KindOllamaConn, "build delete request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindOllamaConn, "delete request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apperr.New(apperr.KindOllamaConn, fmt.Sprintf("delete request: status %d", resp.StatusCode))
	}
	return nil
}
