package config

import (
	"os"
	"strconv"
	"strings"
)

// Config is the full environment-derived configuration.
type Config struct {
	Env  string
	Port string

	Embedder  EmbedderConfig
	Dense     DenseConfig
	Sparse    SparseConfig
	Rerank    RerankConfig
	LLM       LLMConfig
	Retrieval RetrievalConfig
	Agentic   AgenticConfig
	Prefetch  PrefetchConfig
	Cache     CacheConfig

	// StageBudgetsFile optionally overrides the built-in stage budget table.
	StageBudgetsFile string
}

// EmbedderConfig points at the embedding inference service.
type EmbedderConfig struct {
	URL     string
	Model   string
	Timeout int // seconds
}

// DenseConfig selects and configures the dense search backend.
type DenseConfig struct {
	// Backend is "qdrant" or "postgres".
	Backend    string
	QdrantAddr string
	Collection string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
}

// SparseConfig points at the keyword search service.
type SparseConfig struct {
	URL     string
	Timeout int // seconds
}

// RerankConfig points at the cross-encoder service and holds cascade knobs.
type RerankConfig struct {
	URL     string
	Model   string
	Timeout int // seconds

	PrefilterThreshold  float64
	MaxFullModelDocs    int
	EarlyExitThreshold  float64
	EarlyExitMinResults int
}

// LLMConfig points at the generation service used by the rewriter and judge.
type LLMConfig struct {
	URL          string
	Model        string
	Timeout      int // seconds
	JudgeEnabled bool
}

// RetrievalConfig holds hybrid search knobs.
type RetrievalConfig struct {
	DenseTopK       int
	SparseTopK      int
	FinalTopK       int
	DenseWeight     float64
	SparseWeight    float64
	RRFK            float64
	MinScore        float64
	SearchTimeoutMS int
}

// AgenticConfig holds loop knobs.
type AgenticConfig struct {
	MaxIterations         int
	SufficiencyThreshold  float64
	QueryRewritingEnabled bool
}

// PrefetchConfig holds speculative retrieval knobs.
type PrefetchConfig struct {
	ConfidenceThreshold float64
	MinWords            int
}

// CacheConfig holds embedding cache knobs.
type CacheConfig struct {
	Capacity int
}

// Load reads configuration from the environment, applying production
// defaults for anything unset.
func Load() *Config {
	return &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "9020"),
		Embedder: EmbedderConfig{
			URL:     getEnv("EMBEDDER_URL", "http://embedder:11434"),
			Model:   getEnv("EMBEDDING_MODEL", "embeddinggemma"),
			Timeout: getEnvInt("EMBEDDER_TIMEOUT", 10),
		},
		Dense: DenseConfig{
			Backend:    getEnv("DENSE_BACKEND", "qdrant"),
			QdrantAddr: getEnv("QDRANT_ADDR", "qdrant:6334"),
			Collection: getEnv("QDRANT_COLLECTION", "documents"),
			DBHost:     getEnv("DB_HOST", "retrieval-db"),
			DBPort:     getEnv("DB_PORT", "5432"),
			DBUser:     getEnv("DB_USER", "retrieval_user"),
			DBPassword: getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", "retrieval_password"),
			DBName:     getEnv("DB_NAME", "retrieval_db"),
		},
		Sparse: SparseConfig{
			URL:     getEnv("SPARSE_INDEX_URL", "http://search-indexer:9300"),
			Timeout: getEnvInt("SPARSE_INDEX_TIMEOUT", 5),
		},
		Rerank: RerankConfig{
			URL:                 getEnv("RERANKER_URL", "http://reranker:8001"),
			Model:               getEnv("RERANKER_MODEL", "bge-reranker-v2-m3"),
			Timeout:             getEnvInt("RERANKER_TIMEOUT", 10),
			PrefilterThreshold:  getEnvFloat("PREFILTER_THRESHOLD", 0.1),
			MaxFullModelDocs:    getEnvInt("MAX_FULL_MODEL_DOCS", 10),
			EarlyExitThreshold:  getEnvFloat("EARLY_EXIT_THRESHOLD", 0.9),
			EarlyExitMinResults: getEnvInt("EARLY_EXIT_MIN_RESULTS", 3),
		},
		LLM: LLMConfig{
			URL:          getEnv("LLM_URL", "http://llm:11434"),
			Model:        getEnv("LLM_MODEL", "gpt-oss20b-cpu"),
			Timeout:      getEnvInt("LLM_TIMEOUT", 15),
			JudgeEnabled: getEnvBool("SUFFICIENCY_JUDGE_ENABLED", false),
		},
		Retrieval: RetrievalConfig{
			DenseTopK:       getEnvInt("DENSE_TOP_K", 20),
			SparseTopK:      getEnvInt("SPARSE_TOP_K", 20),
			FinalTopK:       getEnvInt("FINAL_TOP_K", 5),
			DenseWeight:     getEnvFloat("DENSE_WEIGHT", 0.7),
			SparseWeight:    getEnvFloat("SPARSE_WEIGHT", 0.3),
			RRFK:            getEnvFloat("RRF_K", 60.0),
			MinScore:        getEnvFloat("MIN_SCORE", 0.0),
			SearchTimeoutMS: getEnvInt("SEARCH_TIMEOUT_MS", 80),
		},
		Agentic: AgenticConfig{
			MaxIterations:         getEnvInt("MAX_ITERATIONS", 3),
			SufficiencyThreshold:  getEnvFloat("SUFFICIENCY_THRESHOLD", 0.8),
			QueryRewritingEnabled: getEnvBool("QUERY_REWRITING_ENABLED", true),
		},
		Prefetch: PrefetchConfig{
			ConfidenceThreshold: getEnvFloat("PREFETCH_CONFIDENCE_THRESHOLD", 0.6),
			MinWords:            getEnvInt("PREFETCH_MIN_WORDS", 2),
		},
		Cache: CacheConfig{
			Capacity: getEnvInt("CACHE_CAPACITY", 1000),
		},
		StageBudgetsFile: getEnv("STAGE_BUDGETS_FILE", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getSecret(envKey, fileEnvKey, fallback string) string {
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}
	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		content, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
