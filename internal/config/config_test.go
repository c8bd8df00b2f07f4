package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

// setEnv sets an environment variable, ignoring errors (for test setup)
func setEnv(key, value string) {
	_ = os.Setenv(key, value)
}

// unsetEnv unsets an environment variable, ignoring errors (for test cleanup)
func unsetEnv(key string) {
	_ = os.Unsetenv(key)
}

func TestLoad(t *testing.T) {
	// Save original env vars
	originalEnv := make(map[string]string)
	envVars := []string{
		"EMBEDDING_BASE_URL", "EMBEDDING_API_KEY", "EMBEDDING_MODEL", "EMBEDDING_VECTOR_SIZE",
		"CHAT_BASE_URL", "CHAT_API_KEY", "CHAT_MODEL", "CHAT_TEMPERATURE", "CHAT_MAX_TOKENS",
		"CHUNK_SIZE", "CHUNK_OVERLAP", "TOP_K", "MAX_HISTORY_TURNS", "INSERT_BATCH_SIZE",
		"INDEX_DIR", "LEDGER_PATH", "UPLOADS_DIR",
		"VECTOR_BACKEND", "QDRANT_URL", "QDRANT_COLLECTION",
		"API_PORT", "LOG_LEVEL", "LOG_FORMAT",
	}
	for _, key := range envVars {
		originalEnv[key] = os.Getenv(key)
		unsetEnv(key)
	}
	defer func() {
		for key, value := range originalEnv {
			if value != "" {
				setEnv(key, value)
			} else {
				unsetEnv(key)
			}
		}
	}()

	setDataDirs := func(t *testing.T) {
		base := t.TempDir()
		setEnv("INDEX_DIR", filepath.Join(base, "index"))
		setEnv("LEDGER_PATH", filepath.Join(base, "processed_docs.txt"))
		setEnv("UPLOADS_DIR", filepath.Join(base, "documents"))
	}

	tests := []struct {
		name        string
		setupEnv    func(*testing.T)
		wantErr     bool
		checkConfig func(*Config) bool
	}{
		{
			name: "valid config with required fields",
			setupEnv: func(t *testing.T) {
				setDataDirs(t)
				setEnv("EMBEDDING_VECTOR_SIZE", "1536")
			},
			wantErr: false,
			checkConfig: func(cfg *Config) bool {
				return cfg.EmbeddingVectorSize == 1536 &&
					cfg.ChunkSize == 1000 &&
					cfg.ChunkOverlap == 100 &&
					cfg.TopK == 5 &&
					cfg.VectorBackend == "flat" &&
					cfg.LogLevel == slog.LevelInfo
			},
		},
		{
			name: "missing vector size",
			setupEnv: func(t *testing.T) {
				setDataDirs(t)
			},
			wantErr: true,
		},
		{
			name: "non-numeric vector size",
			setupEnv: func(t *testing.T) {
				setDataDirs(t)
				setEnv("EMBEDDING_VECTOR_SIZE", "abc")
			},
			wantErr: true,
		},
		{
			name: "overlap must be smaller than chunk size",
			setupEnv: func(t *testing.T) {
				setDataDirs(t)
				setEnv("EMBEDDING_VECTOR_SIZE", "1536")
				setEnv("CHUNK_SIZE", "100")
				setEnv("CHUNK_OVERLAP", "100")
			},
			wantErr: true,
		},
		{
			name: "unknown vector backend",
			setupEnv: func(t *testing.T) {
				setDataDirs(t)
				setEnv("EMBEDDING_VECTOR_SIZE", "1536")
				setEnv("VECTOR_BACKEND", "faiss")
			},
			wantErr: true,
		},
		{
			name: "invalid log level",
			setupEnv: func(t *testing.T) {
				setDataDirs(t)
				setEnv("EMBEDDING_VECTOR_SIZE", "1536")
				setEnv("LOG_LEVEL", "verbose")
			},
			wantErr: true,
		},
		{
			name: "custom chunking and qdrant backend",
			setupEnv: func(t *testing.T) {
				setDataDirs(t)
				setEnv("EMBEDDING_VECTOR_SIZE", "768")
				setEnv("CHUNK_SIZE", "500")
				setEnv("CHUNK_OVERLAP", "50")
				setEnv("VECTOR_BACKEND", "qdrant")
				setEnv("LOG_LEVEL", "debug")
			},
			wantErr: false,
			checkConfig: func(cfg *Config) bool {
				return cfg.ChunkSize == 500 &&
					cfg.ChunkOverlap == 50 &&
					cfg.VectorBackend == "qdrant" &&
					cfg.LogLevel == slog.LevelDebug
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range envVars {
				unsetEnv(key)
			}
			tt.setupEnv(t)

			cfg, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("Load() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() unexpected error: %v", err)
			}
			if tt.checkConfig != nil && !tt.checkConfig(cfg) {
				t.Errorf("Load() config validation failed: %+v", cfg)
			}
		})
	}
}

func TestLoad_CreatesDataDirectories(t *testing.T) {
	base := t.TempDir()
	setEnv("INDEX_DIR", filepath.Join(base, "index"))
	setEnv("LEDGER_PATH", filepath.Join(base, "state", "processed_docs.txt"))
	setEnv("UPLOADS_DIR", filepath.Join(base, "documents"))
	setEnv("EMBEDDING_VECTOR_SIZE", "1536")
	defer func() {
		for _, key := range []string{"INDEX_DIR", "LEDGER_PATH", "UPLOADS_DIR", "EMBEDDING_VECTOR_SIZE"} {
			unsetEnv(key)
		}
	}()

	if _, err := Load(); err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	for _, dir := range []string{
		filepath.Join(base, "index"),
		filepath.Join(base, "state"),
		filepath.Join(base, "documents"),
	} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("expected directory %s to exist, err=%v", dir, err)
		}
	}
}
