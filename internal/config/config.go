package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Embedding provider (OpenAI-compatible /v1/embeddings endpoint).
	EmbeddingBaseURL    string
	EmbeddingAPIKey     string
	EmbeddingModel      string
	EmbeddingVectorSize int

	// Chat model provider (Anthropic-style /v1/messages endpoint).
	ChatBaseURL     string
	ChatAPIKey      string
	ChatModel       string
	ChatTemperature float64
	ChatMaxTokens   int

	// Chunking and retrieval.
	ChunkSize       int
	ChunkOverlap    int
	TopK            int
	MaxHistoryTurns int
	InsertBatchSize int

	// Persisted state layout.
	IndexDir   string
	LedgerPath string
	UploadsDir string

	// Vector backend: "flat" (local snapshot index) or "qdrant".
	VectorBackend    string
	QdrantURL        string
	QdrantCollection string

	APIPort   string
	LogLevel  slog.Level
	LogFormat string
}

// Load reads configuration from environment variables and returns a Config.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or a parent directory, it
// is loaded first; variables already set in the environment take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	// Walk up a few levels so the binary can run from cmd/ subdirectories.
	if wd, err := os.Getwd(); err == nil {
		dir := wd
		for i := 0; i < 5; i++ {
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	cfg := &Config{
		EmbeddingBaseURL: getEnv("EMBEDDING_BASE_URL", "https://api.openai.com"),
		EmbeddingAPIKey:  getEnv("EMBEDDING_API_KEY", ""),
		EmbeddingModel:   getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		ChatBaseURL:      getEnv("CHAT_BASE_URL", "https://api.anthropic.com"),
		ChatAPIKey:       getEnv("CHAT_API_KEY", ""),
		ChatModel:        getEnv("CHAT_MODEL", "claude-sonnet-4-5"),
		IndexDir:         getEnv("INDEX_DIR", "./data/index"),
		LedgerPath:       getEnv("LEDGER_PATH", "./data/processed_docs.txt"),
		UploadsDir:       getEnv("UPLOADS_DIR", "./data/documents"),
		VectorBackend:    getEnv("VECTOR_BACKEND", "flat"),
		QdrantURL:        getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "documents"),
		APIPort:          getEnv("API_PORT", "9000"),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.ChatTemperature, err = getEnvFloat("CHAT_TEMPERATURE", 0.7); err != nil {
		return nil, err
	}
	if cfg.ChatMaxTokens, err = getEnvInt("CHAT_MAX_TOKENS", 1024); err != nil {
		return nil, err
	}
	if cfg.ChunkSize, err = getEnvInt("CHUNK_SIZE", 1000); err != nil {
		return nil, err
	}
	if cfg.ChunkOverlap, err = getEnvInt("CHUNK_OVERLAP", 100); err != nil {
		return nil, err
	}
	if cfg.TopK, err = getEnvInt("TOP_K", 5); err != nil {
		return nil, err
	}
	if cfg.MaxHistoryTurns, err = getEnvInt("MAX_HISTORY_TURNS", 10); err != nil {
		return nil, err
	}
	if cfg.InsertBatchSize, err = getEnvInt("INSERT_BATCH_SIZE", 10); err != nil {
		return nil, err
	}

	// The vector size must match the embedding model's output dimension.
	// There is no safe default: a mismatch silently corrupts the index.
	vectorSizeStr := getEnv("EMBEDDING_VECTOR_SIZE", "")
	if vectorSizeStr == "" {
		return nil, fmt.Errorf("EMBEDDING_VECTOR_SIZE is required")
	}
	vectorSize, err := strconv.Atoi(vectorSizeStr)
	if err != nil {
		return nil, fmt.Errorf("EMBEDDING_VECTOR_SIZE must be a valid integer: %w", err)
	}
	if vectorSize <= 0 {
		return nil, fmt.Errorf("EMBEDDING_VECTOR_SIZE must be greater than 0")
	}
	cfg.EmbeddingVectorSize = vectorSize

	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("CHUNK_SIZE must be greater than 0")
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE)")
	}
	if cfg.InsertBatchSize <= 0 {
		return nil, fmt.Errorf("INSERT_BATCH_SIZE must be greater than 0")
	}
	if cfg.VectorBackend != "flat" && cfg.VectorBackend != "qdrant" {
		return nil, fmt.Errorf("VECTOR_BACKEND must be \"flat\" or \"qdrant\", got %q", cfg.VectorBackend)
	}

	switch level := getEnv("LOG_LEVEL", "info"); level {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "info":
		cfg.LogLevel = slog.LevelInfo
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error; got %q", level)
	}

	// Create parent directories for the persisted state up front.
	for _, dir := range []string{cfg.IndexDir, cfg.UploadsDir, filepath.Dir(cfg.LedgerPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
		}
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid number: %w", key, err)
	}
	return f, nil
}
