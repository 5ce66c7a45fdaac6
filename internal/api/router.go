// Package api implements the HTTP surface described by the
// specification's endpoint table: health/status, model management,
// document ingestion and search, and chat. It generalizes the
// teacher's stdlib-ServeMux router — logging middleware,
// responseWriter wrapper, writeJSON/writeError helpers — to the new
// endpoint set, with the JWT auth middleware kept as an optional hook
// instead of a hard requirement.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pixell07/localrag/internal/appstate"
	"github.com/pixell07/localrag/internal/auth"
	"github.com/pixell07/localrag/internal/chat"
	"github.com/pixell07/localrag/internal/ingest"
	"github.com/pixell07/localrag/internal/llmclient"
	"github.com/pixell07/localrag/internal/retrieval"
	"github.com/pixell07/localrag/internal/vectorstore"
)

// serverVersion is reported on /health. Bumped by hand on releases.
const serverVersion = "0.1.0"

// Deps bundles every collaborator the router's handlers call into.
type Deps struct {
	Store        *vectorstore.Store
	LLM          *llmclient.Client
	Retriever    *retrieval.Retriever
	Ingest       *ingest.Pipeline
	Orchestrator *chat.Orchestrator
	State        *appstate.State
	JWTManager   *auth.JWTManager // nil disables the auth middleware entirely
	Logger       *slog.Logger

	MaxUploadBytes int64
}

type contextKey string

const claimsKey contextKey = "claims"

type handlers struct {
	deps Deps
}

// NewRouter builds the full mux: public health/status/models/documents
// routes, plus an admin-only delete-all-documents route gated by the
// optional JWT middleware.
func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 16 << 20
	}

	h := &handlers{deps: deps}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /api/status", h.status)
	mux.HandleFunc("GET /api/models", h.listModels)
	mux.HandleFunc("POST /api/models/active", h.setActiveModel)
	mux.HandleFunc("POST /api/models/pull", h.pullModel)
	mux.HandleFunc("DELETE /api/models/delete", h.deleteModel)
	mux.HandleFunc("POST /api/models/test", h.testModel)
	mux.HandleFunc("GET /api/documents/list", h.listDocuments)
	mux.HandleFunc("POST /api/documents/upload", h.uploadDocuments)
	mux.HandleFunc("POST /api/documents/test", h.testDocuments)
	mux.HandleFunc("DELETE /api/documents/clear", h.adminOnly(h.clearDocuments))
	mux.HandleFunc("POST /api/chat", h.chat)

	return h.loggingMiddleware(mux)
}

// adminOnly wraps a handler with the JWT middleware, requiring the
// admin role. When no JWTManager is configured, auth is skipped
// entirely — authentication is an optional layer, not a hard
// requirement of the server.
func (h *handlers) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.deps.JWTManager == nil {
			next(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeAppError(w, apperrUnauthorized("missing bearer token"))
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := h.deps.JWTManager.Verify(token)
		if err != nil {
			writeAppError(w, apperrUnauthorized("invalid or expired token"))
			return
		}
		if !auth.IsAdmin(claims) {
			writeAppError(w, apperrForbidden("admin role required"))
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next(w, r.WithContext(ctx))
	}
}

func (h *handlers) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		h.deps.Logger.Info("request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func setSSEHeaders(w http.ResponseWriter) (http.Flusher, bool) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	flusher, ok := w.(http.Flusher)
	return flusher, ok
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = w.Write([]byte("data: "))
	_, _ = w.Write(payload)
	_, _ = w.Write([]byte("\n\n"))
	flusher.Flush()
}
