package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pixell07/localrag/internal/api"
	"github.com/pixell07/localrag/internal/appstate"
	"github.com/pixell07/localrag/internal/auth"
	"github.com/pixell07/localrag/internal/cache"
	"github.com/pixell07/localrag/internal/chat"
	"github.com/pixell07/localrag/internal/chunker"
	"github.com/pixell07/localrag/internal/config"
	"github.com/pixell07/localrag/internal/contextfmt"
	"github.com/pixell07/localrag/internal/embedding"
	"github.com/pixell07/localrag/internal/ingest"
	"github.com/pixell07/localrag/internal/llmclient"
	"github.com/pixell07/localrag/internal/retrieval"
	"github.com/pixell07/localrag/internal/vectorstore"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := vectorstore.NewPool(ctx, cfg.DatabaseURL, cfg.DBPoolMin, cfg.DBPoolMax)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	slog.Info("connected to database")

	store := vectorstore.New(pool)
	created, reason, err := store.Initialize(ctx)
	if err != nil {
		slog.Error("failed to initialize schema", "error", err)
		os.Exit(1)
	}
	slog.Info("schema ready", "created", created, "detail", reason)

	llmClient := llmclient.New(cfg.LLMBaseURL, cfg.RequestTimeout)

	embeddingModel := cfg.EmbeddingModel
	if ok, _ := llmClient.CheckConnection(ctx); ok {
		if models, err := llmClient.ListModels(ctx); err == nil {
			if picked := llmclient.PickEmbeddingModel(models, []string{cfg.EmbeddingModel}); picked != "" {
				embeddingModel = picked
			}
		}
	} else {
		slog.Warn("llm server unreachable at startup, continuing with configured defaults")
	}

	embedder := embedding.New(llmClient, embeddingModel)

	kvCache, err := cache.NewWithFallback(ctx, cfg.RedisEnabled, cfg.RedisHost, cfg.RedisPort, cfg.RedisDB, cfg.RedisPassword, cfg.ResultCacheSize, logger)
	if err != nil {
		slog.Error("failed to construct cache", "error", err)
		os.Exit(1)
	}

	retriever := retrieval.New(store, embedder, kvCache, retrieval.Options{
		TopK:            cfg.TopKResults,
		RerankTopK:      cfg.RerankTopK,
		MinSimilarity:   cfg.MinSimilarity,
		DiversityThresh: 0.90,
		EnableExpansion: true,
		EmbedCacheTTL:   int64(cfg.EmbedCacheTTL.Seconds()),
		ResultCacheTTL:  int64(cfg.RetrievalCacheTTL.Seconds()),
		Weights: retrieval.Weights{
			Similarity: cfg.SimilarityWeight,
			Keyword:    cfg.KeywordWeight,
			BM25:       cfg.BM25Weight,
			Position:   cfg.PositionWeight,
			Length:     cfg.LengthWeight,
		},
	}, logger)

	orchestrator := chat.New(llmClient, retriever, cfg.ChatModel, contextfmt.Options{MaxContextChars: cfg.MaxContextChars}, cfg.DefaultTemp, logger)

	ingestPipeline := ingest.New(store, embedder, ingest.Options{
		ChunkerOptions: chunker.Options{
			ChunkSize:      cfg.ChunkSize,
			ChunkOverlap:   cfg.ChunkOverlap,
			TableChunkSize: cfg.TableChunkSize,
		},
		MaxWorkers: cfg.MaxWorkers,
		BatchSize:  cfg.BatchSize,
	}, logger)

	state := appstate.New(cfg.StateFilePath)
	if state.ActiveModel() == "" {
		state.SetActiveModel(cfg.ChatModel)
	}
	if count, err := store.GetDocumentCount(ctx); err == nil {
		state.SetDocumentCount(count)
	}

	var jwtManager *auth.JWTManager
	if cfg.JWTSecret != "" {
		jwtManager = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiry)
	}

	router := api.NewRouter(api.Deps{
		Store:        store,
		LLM:          llmClient,
		Retriever:    retriever,
		Ingest:       ingestPipeline,
		Orchestrator: orchestrator,
		State:        state,
		JWTManager:   jwtManager,
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // unbounded for SSE streaming
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	slog.Info("shutting down server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}
	store.Close(shutdownCtx)
	slog.Info("server stopped")
}
