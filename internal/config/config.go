package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI string
	DBName   string

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Gemini Configuration
	GeminiAPIKey          string
	GeminiChatModel       string
	GoogleEmbeddingsModel string
	EmbedBatchSize        int
	GeminiRPS             float64

	// Judicial portal
	PortalURL      string
	PortalHeadless bool

	// Ingestion
	ChunkSize    int
	ChunkOverlap int

	// Hybrid search
	LexicalK int
	RerankK  int

	// Local storage
	DownloadDir string
	StoreRoot   string
	TraceDir    string

	// HTTP server
	Port        string
	GinMode     string
	CORSOrigins []string

	// Telemetry
	OTLPEndpoint string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/ai_assist_attorney"),
		DBName:   getEnv("DB_NAME", "ai_assist_attorney"),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GeminiChatModel:       getEnv("GEMINI_CHAT_MODEL", "gemini-2.0-flash"),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		EmbedBatchSize:        getEnvInt("EMBED_BATCH_SIZE", 64),
		GeminiRPS:             getEnvFloat64("GEMINI_RPS", 1),

		PortalURL:      getEnv("PORTAL_URL", "https://oficinajudicialvirtual.pjud.cl/indexN.php"),
		PortalHeadless: getEnvBool("PORTAL_HEADLESS", true),

		ChunkSize:    getEnvInt("CHUNK_SIZE", 1200),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 150),

		LexicalK: getEnvInt("LEXICAL_K", 40),
		RerankK:  getEnvInt("RERANK_K", 8),

		DownloadDir: getEnv("DOWNLOAD_DIR", "./downloads"),
		StoreRoot:   getEnv("STORE_ROOT", "./stores"),
		TraceDir:    getEnv("TRACE_DIR", "./traces"),

		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		OTLPEndpoint: getEnv("OTLP_ENDPOINT", "localhost:4317"),
	}

	// Validate required fields
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", cfg.ChunkOverlap, cfg.ChunkSize)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
