package config

import (
	"os"
	"strconv"
	"strings"
)

// Config is the process-wide settings object. It is built once at startup
// and passed by reference into each component's constructor; components
// never read the environment themselves.
type Config struct {
	Port            string
	DatabaseURL     string
	GoogleApiKey    string
	CompletionModel string
	EmbeddingModel  string
	CollectionName  string

	// Backend fan-out settings.
	EnabledBackends      []string
	WriteBackend         string
	BackendTimeoutSecs   int
	MaxConcurrentQueries int
	DedupEnabled         bool

	// Orchestration settings.
	ToolRoutingEnabled bool
	MaxResultsPerQuery int
	DefaultMode        string
	MaxQueryLength     int
}

func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "8081"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		GoogleApiKey:    getEnv("GOOGLE_API_KEY", ""),
		CompletionModel: getEnv("COMPLETION_MODEL", "gemini-3-flash-preview"),
		EmbeddingModel:  getEnv("EMBEDDING_MODEL", "gemini-embedding-001"),
		CollectionName:  getEnv("COLLECTION_NAME", "documents"),

		EnabledBackends:      getEnvAsList("ENABLED_BACKENDS", []string{"memory"}),
		WriteBackend:         getEnv("WRITE_BACKEND", ""),
		BackendTimeoutSecs:   getEnvAsInt("BACKEND_TIMEOUT_SECONDS", 10),
		MaxConcurrentQueries: getEnvAsInt("MAX_CONCURRENT_QUERIES", 4),
		DedupEnabled:         getEnvAsBool("DEDUP_ENABLED", true),

		ToolRoutingEnabled: getEnvAsBool("TOOL_ROUTING_ENABLED", true),
		MaxResultsPerQuery: getEnvAsInt("MAX_RESULTS_PER_QUERY", 20),
		DefaultMode:        getEnv("DEFAULT_MODE", "list"),
		MaxQueryLength:     getEnvAsInt("MAX_QUERY_LENGTH", 1000),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, part := range strings.Split(valueStr, ",") {
		if v := strings.TrimSpace(part); v != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
