package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"

	"docchat/internal/config"
	"docchat/internal/http"
	"docchat/internal/indexer"
	"docchat/internal/llm"
	"docchat/internal/rag"
	"docchat/internal/storage"
	"docchat/internal/vectorstore"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	// Create repository instances
	docRepo := storage.NewDocumentRepo(db)
	chunkRepo := storage.NewChunkRepo(db)
	sessionRepo := storage.NewSessionRepo(db)

	ctx := context.Background()

	// The local exact-scan index always exists; it reads vectors straight
	// from storage, so it never needs its own persistence.
	localIndex := vectorstore.NewLocalIndex(chunkRepo, cfg.VectorSize)

	// The Qdrant index is optional. Without it the service runs local-only.
	var primary *vectorstore.QdrantIndex
	if cfg.QdrantURL != "" {
		primary, err = vectorstore.NewQdrantIndex(cfg.QdrantURL, cfg.QdrantCollection, cfg.VectorSize)
		if err != nil {
			log.Fatalf("Failed to create Qdrant client: %v", err)
		}
		if err := primary.EnsureCollection(ctx); err != nil {
			log.Fatalf("Failed to ensure Qdrant collection: %v", err)
		}
		slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.VectorSize)
	} else {
		slog.Info("No Qdrant URL configured, running with local index only")
	}

	// Validate embedding client vector size (fail-fast)
	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.VectorSize, cfg.EmbeddingBatchSize)
	testEmbeddings, err := embedder.EmbedTexts(ctx, []string{"test"})
	if err != nil {
		log.Fatalf("Failed to validate embedding client: %v", err)
	}
	if len(testEmbeddings) == 0 || len(testEmbeddings[0]) != cfg.VectorSize {
		log.Fatalf("Embedding vector size mismatch: expected %d, got %d", cfg.VectorSize, len(testEmbeddings[0]))
	}
	slog.Info("Embedding client validated", "vector_size", cfg.VectorSize)

	chunker, err := indexer.NewWindowChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		log.Fatalf("Failed to create chunker: %v", err)
	}

	// The pipeline writes to whichever index is primary; the local index
	// reads from storage directly, so local-only mode indexes through it.
	var indexTarget vectorstore.VectorIndex = localIndex
	if primary != nil {
		indexTarget = primary
	}
	pipeline := indexer.NewPipeline(docRepo, chunkRepo, embedder, indexTarget, chunker, cfg.VectorSize)

	// Create LLM client (external service layer)
	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName)

	// Create RAG engine
	retriever := rag.NewRetriever(embedder, qdrantOrNil(primary), localIndex, chunkRepo, docRepo, cfg.TopK, cfg.MaxTopK)
	prompts := rag.PromptBuilder{
		MaxHistoryTurns: cfg.MaxHistoryTurns,
		MaxHistoryRunes: cfg.MaxHistoryRunes,
	}
	engine := rag.NewEngine(retriever, prompts, llmClient, sessionRepo, rag.EngineConfig{
		TopK:          cfg.TopK,
		MinScore:      float32(cfg.MinScore),
		ContextBudget: cfg.ContextBudget,
		SessionTTL:    cfg.SessionTTL,
		ChatParams:    llm.ChatParams{Model: cfg.LLMModelName},
	})
	slog.Info("RAG engine initialized")

	// Create router with dependencies
	deps := &http.Deps{
		Engine:     engine,
		Sessions:   sessionRepo,
		Pipeline:   pipeline,
		Primary:    primary,
		SessionTTL: cfg.SessionTTL,
	}
	router := http.NewRouter(deps)

	// Rebuild the vector index from storage in the background so a fresh
	// or recovered Qdrant instance converges without blocking startup.
	go func() {
		reindexCtx := context.Background()
		slog.Info("Starting background reindex from storage")
		if err := pipeline.ReindexAll(reindexCtx); err != nil {
			slog.Error("Reindex completed with errors", "error", err)
		} else {
			slog.Info("Reindex completed successfully")
		}
	}()

	// Start API server
	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModelName)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}

// qdrantOrNil converts a possibly-nil concrete index into the interface
// without producing a non-nil interface wrapping a nil pointer.
func qdrantOrNil(q *vectorstore.QdrantIndex) vectorstore.VectorIndex {
	if q == nil {
		return nil
	}
	return q
}
