package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Keys     APIKeys
	Ai       AIConfig
	Session  SessionConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	InstanceID         string
	JWTSecret          string
	OtelEnabled        bool
	OtelEndpoint       string
}

type DatabaseConfig struct {
	Connection string
	LogLevel   string // "silent", "error", "warn" or "info"
}

type APIKeys struct {
	OpenAI       string
	HuggingFace  string
	GoogleGemini string
}

type AIConfig struct {
	LLMProvider          string // "ollama", "openai", "huggingface" or "gemini"
	LLMModel             string
	OllamaBaseURL        string
	OpenAIBaseURL        string
	HuggingFaceBaseURL   string
	AttemptTimeout       time.Duration
	RetryBackoff         time.Duration
	OrchestrationTimeout time.Duration
}

type SessionConfig struct {
	TTL             time.Duration
	CleanupInterval time.Duration
	HistoryWindow   int
	ContextBudget   int
	DocCacheTTL     time.Duration
	TurnTopic       string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	hostname, _ := os.Hostname()

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			InstanceID:         getEnv("INSTANCE_ID", hostname),
			JWTSecret:          getEnv("JWT_SECRET", ""),
			OtelEnabled:        getEnv("OTEL_ENABLED", "false") == "true",
			OtelEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
			LogLevel:   getEnv("DB_LOG_LEVEL", "warn"),
		},
		Keys: APIKeys{
			OpenAI:       getEnv("OPENAI_API_KEY", ""),
			HuggingFace:  getEnv("HUGGINGFACE_API_KEY", ""),
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
		},
		Ai: AIConfig{
			LLMProvider:          getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:             getEnv("LLM_MODEL", "llama3"),
			OllamaBaseURL:        getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OpenAIBaseURL:        getEnv("OPENAI_BASE_URL", ""),
			HuggingFaceBaseURL:   getEnv("HUGGINGFACE_BASE_URL", ""),
			AttemptTimeout:       getEnvAsDuration("LLM_ATTEMPT_TIMEOUT", 30*time.Second),
			RetryBackoff:         getEnvAsDuration("LLM_RETRY_BACKOFF", 500*time.Millisecond),
			OrchestrationTimeout: getEnvAsDuration("ORCHESTRATION_TIMEOUT", 2*time.Minute),
		},
		Session: SessionConfig{
			TTL:             getEnvAsDuration("SESSION_TTL", time.Hour),
			CleanupInterval: getEnvAsDuration("SESSION_CLEANUP_INTERVAL", 10*time.Minute),
			HistoryWindow:   getEnvAsInt("HISTORY_WINDOW", 10),
			ContextBudget:   getEnvAsInt("CONTEXT_BUDGET", 24000),
			DocCacheTTL:     getEnvAsDuration("DOC_CACHE_TTL", 30*time.Minute),
			TurnTopic:       getEnv("TURN_EVENTS_TOPIC", "chat.turn.appended"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("45s", "2m")
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil && value > 0 {
		return value
	}
	return fallback
}
