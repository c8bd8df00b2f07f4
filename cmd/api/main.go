package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"

	"docuchat/internal/config"
	"docuchat/internal/contextutil"
	"docuchat/internal/http"
	"docuchat/internal/ingest"
	"docuchat/internal/ledger"
	"docuchat/internal/llm"
	"docuchat/internal/loader"
	"docuchat/internal/service"
	"docuchat/internal/splitter"
	"docuchat/internal/vectorindex"
	"docuchat/internal/vectorstore"
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

	ctx := contextutil.WithLogger(context.Background(), logger)

	// Embedding client, validated before anything depends on it
	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel, cfg.EmbeddingVectorSize)
	testEmbeddings, err := embedder.EmbedTexts(ctx, []string{"test"})
	if err != nil {
		log.Fatalf("Failed to validate embedding client: %v", err)
	}
	if len(testEmbeddings) == 0 || len(testEmbeddings[0]) != cfg.EmbeddingVectorSize {
		log.Fatalf("Embedding vector size mismatch: expected %d", cfg.EmbeddingVectorSize)
	}
	slog.Info("Embedding client validated", "model", cfg.EmbeddingModel, "vector_size", cfg.EmbeddingVectorSize)

	// Similarity-search backend
	var backend vectorstore.Index
	switch cfg.VectorBackend {
	case "qdrant":
		qdrant, err := vectorstore.NewQdrant(cfg.QdrantURL, cfg.QdrantCollection, cfg.EmbeddingVectorSize)
		if err != nil {
			log.Fatalf("Failed to create Qdrant client: %v", err)
		}
		if err := qdrant.EnsureCollection(ctx); err != nil {
			log.Fatalf("Failed to ensure Qdrant collection: %v", err)
		}
		slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection)
		backend = qdrant
	default:
		backend = vectorstore.NewFlat()
	}

	// Vector index engine over backend + document store
	engine, err := vectorindex.Open(ctx, vectorindex.Options{
		Embedder:    embedder,
		Index:       backend,
		SnapshotDir: cfg.IndexDir,
		BatchSize:   cfg.InsertBatchSize,
		TopK:        cfg.TopK,
	})
	if err != nil {
		log.Fatalf("Failed to open vector index: %v", err)
	}
	defer func() {
		_ = engine.Close()
	}()
	slog.Info("Vector index ready", "backend", cfg.VectorBackend, "dir", cfg.IndexDir)

	// Ingestion: ledger, loader, pipeline
	led := ledger.Open(cfg.LedgerPath)
	docLoader := loader.New(splitter.New(cfg.ChunkSize, cfg.ChunkOverlap), led)
	pipeline := ingest.New(docLoader, engine)

	// Sweep the documents directory in the background after startup
	go func() {
		sweepCtx := contextutil.WithLogger(context.Background(), logger)
		if _, err := pipeline.IngestDir(sweepCtx, cfg.UploadsDir); err != nil {
			slog.Error("Document sweep finished with errors", "error", err)
		}
	}()

	// Chat model and conversational service
	chatModel := llm.NewClient(cfg.ChatBaseURL, cfg.ChatAPIKey, cfg.ChatModel, cfg.ChatTemperature, cfg.ChatMaxTokens)
	chatService := service.NewChatService(engine.Retriever(cfg.TopK), chatModel, cfg.MaxHistoryTurns)

	// Router with explicit dependencies
	router := http.NewRouter(&http.Deps{
		ChatService: chatService,
		Searcher:    engine,
		Ingester:    pipeline,
		IndexAdmin:  engine,
		IndexStatus: engine,
		UploadsDir:  cfg.UploadsDir,
	})

	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}
