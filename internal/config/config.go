package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// It is built once at startup and threaded explicitly through component
// constructors; nothing reads the environment after Load.
type Config struct {
	LLMBaseURL         string
	LLMModelName       string
	LLMAPIKey          string
	EmbeddingBaseURL   string
	EmbeddingModelName string
	EmbeddingBatchSize int

	DBPath string

	// QdrantURL is optional. When empty the service runs with the local
	// exact-scan index only.
	QdrantURL        string
	QdrantCollection string
	VectorSize       int

	ChunkSize    int
	ChunkOverlap int

	TopK          int
	MaxTopK       int
	MinScore      float64
	ContextBudget int

	MaxHistoryTurns int
	MaxHistoryRunes int
	SessionTTL      time.Duration

	APIPort   string
	LogLevel  slog.Level
	LogFormat string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or project root, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	// Check current directory first, then walk up to find project root (where go.mod is)
	_ = godotenv.Load() // Try current directory

	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ { // Limit search depth
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break // Reached filesystem root
			}
			dir = parent
		}
	}

	cfg := &Config{
		LLMBaseURL:         getEnv("LLM_BASE_URL", "http://localhost:8080"),
		LLMModelName:       getEnv("LLM_MODEL", "gemini-2.0-flash"),
		LLMAPIKey:          getEnv("LLM_API_KEY", "dummy-key"),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "text-embedding-004"),
		DBPath:             getEnv("DB_PATH", "./data/docchat.db"),
		QdrantURL:          getEnv("QDRANT_URL", ""),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "doc_chunks"),
		APIPort:            getEnv("API_PORT", "9000"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
	}

	// VECTOR_SIZE must match the output dimension of the embeddings model.
	// For text-embedding-004 this is 768. If the model dimension changes,
	// the Qdrant collection must be recreated and chunk vectors recomputed.
	vectorSize, err := getEnvInt("VECTOR_SIZE", 0)
	if err != nil {
		return nil, err
	}
	if vectorSize <= 0 {
		return nil, fmt.Errorf("VECTOR_SIZE is required and must be greater than 0")
	}
	cfg.VectorSize = vectorSize

	if cfg.EmbeddingBatchSize, err = getEnvInt("EMBEDDING_BATCH_SIZE", 32); err != nil {
		return nil, err
	}
	if cfg.ChunkSize, err = getEnvInt("CHUNK_SIZE", 1000); err != nil {
		return nil, err
	}
	if cfg.ChunkOverlap, err = getEnvInt("CHUNK_OVERLAP", 200); err != nil {
		return nil, err
	}
	if cfg.TopK, err = getEnvInt("RETRIEVAL_TOP_K", 5); err != nil {
		return nil, err
	}
	if cfg.MaxTopK, err = getEnvInt("RETRIEVAL_MAX_TOP_K", 20); err != nil {
		return nil, err
	}
	if cfg.ContextBudget, err = getEnvInt("CONTEXT_BUDGET", 6000); err != nil {
		return nil, err
	}
	if cfg.MaxHistoryTurns, err = getEnvInt("MAX_HISTORY_TURNS", 20); err != nil {
		return nil, err
	}
	if cfg.MaxHistoryRunes, err = getEnvInt("MAX_HISTORY_RUNES", 8000); err != nil {
		return nil, err
	}

	minScoreStr := getEnv("RETRIEVAL_MIN_SCORE", "0.25")
	minScore, err := strconv.ParseFloat(minScoreStr, 64)
	if err != nil {
		return nil, fmt.Errorf("RETRIEVAL_MIN_SCORE must be a valid float: %w", err)
	}
	cfg.MinScore = minScore

	ttlSecs, err := getEnvInt("SESSION_TTL_SECONDS", 1800)
	if err != nil {
		return nil, err
	}
	if ttlSecs <= 0 {
		return nil, fmt.Errorf("SESSION_TTL_SECONDS must be greater than 0")
	}
	cfg.SessionTTL = time.Duration(ttlSecs) * time.Second

	if cfg.ChunkSize <= 0 || cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("invalid chunking config: CHUNK_SIZE=%d CHUNK_OVERLAP=%d (overlap must be non-negative and smaller than size)", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.ContextBudget <= 0 {
		return nil, fmt.Errorf("CONTEXT_BUDGET must be greater than 0")
	}
	if cfg.EmbeddingBatchSize <= 0 {
		return nil, fmt.Errorf("EMBEDDING_BATCH_SIZE must be greater than 0")
	}
	if cfg.TopK <= 0 || cfg.MaxTopK <= 0 {
		return nil, fmt.Errorf("RETRIEVAL_TOP_K and RETRIEVAL_MAX_TOP_K must be greater than 0")
	}

	switch getEnv("LOG_LEVEL", "info") {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "info":
		cfg.LogLevel = slog.LevelInfo
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error")
	}

	// Create ./data directory if it doesn't exist (for the DB file)
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
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

// getEnvInt gets an integer environment variable or returns a default value.
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
