package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Storage drivers
const (
	StorageDriverMongo  = "mongo"
	StorageDriverMemory = "memory"
)

// LLM providers
const (
	LLMProviderDeepSeek = "deepseek"
	LLMProviderGemini   = "gemini"
)

// maxBlobChunkSize keeps a single chunk document well under the 16MB BSON limit
const maxBlobChunkSize = 15 * 1024 * 1024

type Config struct {
	MongoURI    string
	DBName      string
	Port        string
	GinMode     string
	Environment string
	CORSOrigins []string
	MaxFileSize int64

	// Blob storage
	BlobChunkSize        int
	BlobWriteConcurrency int
	StorageDriver        string

	StrictStatusTransitions bool

	// Redis Configuration
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RateLimitReqs   int
	RateLimitWindow int

	// Auth
	AccessSecret string
	AuthRequired bool

	// LLM providers
	LLMProvider          string
	DeepSeekAPIKey       string
	DeepSeekBaseURL      string
	DeepSeekModel        string
	GeminiAPIKey         string
	GeminiModel          string
	LLMRequestsPerSecond float64

	// Embeddings and precedent search
	GoogleEmbeddingsModel string
	VectorIndexName       string
	VectorDimensions      int
	PrecedentCollection   string
	PrecedentTopK         int

	// Observability
	TracingEnabled       bool
	OTelExporterEndpoint string
	TraceSampleRatio     float64

	// Worker
	WorkerConcurrency int
	IntegrityCron     string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:      getEnv("DB_NAME", "claims-management"),
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		Environment: getEnv("ENVIRONMENT", "development"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),
		MaxFileSize: getEnvInt64("MAX_FILE_SIZE", 52428800), // 50MB

		BlobChunkSize:        getEnvInt("BLOB_CHUNK_SIZE", 261120),
		BlobWriteConcurrency: getEnvInt("BLOB_WRITE_CONCURRENCY", 4),
		StorageDriver:        strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverMongo)),

		StrictStatusTransitions: getEnvBool("STRICT_STATUS_TRANSITIONS", false),

		// Redis Configuration
		RedisURL:        getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		AccessSecret: getEnv("ACCESS_SECRET", ""),
		AuthRequired: getEnvBool("AUTH_REQUIRED", false),

		LLMProvider:          strings.ToLower(getEnv("LLM_PROVIDER", LLMProviderDeepSeek)),
		DeepSeekAPIKey:       getEnv("DEEPSEEK_API_KEY", ""),
		DeepSeekBaseURL:      getEnv("DEEPSEEK_BASE_URL", "https://api.deepseek.com/v1"),
		DeepSeekModel:        getEnv("DEEPSEEK_MODEL", "deepseek-chat"),
		GeminiAPIKey:         getEnv("GEMINI_API_KEY", ""),
		GeminiModel:          getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		LLMRequestsPerSecond: getEnvFloat64("LLM_REQUESTS_PER_SECOND", 10),

		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		VectorIndexName:       getEnv("VECTOR_INDEX_NAME", "precedent_vector"),
		VectorDimensions:      getEnvInt("VECTOR_DIM", 768),
		PrecedentCollection:   getEnv("PRECEDENT_COLLECTION", "precedents"),
		PrecedentTopK:         getEnvInt("PRECEDENT_TOP_K", 3),

		TracingEnabled:       getEnvBool("TRACING_ENABLED", false),
		OTelExporterEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
		TraceSampleRatio:     getEnvFloat64("TRACE_SAMPLE_RATIO", 0.1),

		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 10),
		IntegrityCron:     getEnv("INTEGRITY_CRON", "0 3 * * *"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that would otherwise fail later at runtime
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverMongo, StorageDriverMemory:
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StorageDriverMongo, StorageDriverMemory, c.StorageDriver)
	}

	if c.BlobChunkSize <= 0 || c.BlobChunkSize > maxBlobChunkSize {
		return fmt.Errorf("BLOB_CHUNK_SIZE must be between 1 and %d", maxBlobChunkSize)
	}

	switch c.LLMProvider {
	case LLMProviderDeepSeek, LLMProviderGemini:
	default:
		return fmt.Errorf("LLM_PROVIDER must be %q or %q, got %q", LLMProviderDeepSeek, LLMProviderGemini, c.LLMProvider)
	}

	if c.AuthRequired && c.AccessSecret == "" {
		return fmt.Errorf("ACCESS_SECRET is required when AUTH_REQUIRED=true - set it in .env file")
	}

	if c.PrecedentTopK <= 0 {
		return fmt.Errorf("PRECEDENT_TOP_K must be positive")
	}

	return nil
}
