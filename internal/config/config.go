package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App   AppConfig
	Chat  ChatConfig
	Cache CacheConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	SessionEventsTopic string
}

type ChatConfig struct {
	StreamEndpoint     string // message-send endpoint returning a chunked NDJSON response
	APIToken           string // credential for the inference backend
	SessionAPIEndpoint string // external session-lifecycle API
}

type CacheConfig struct {
	ExtractionTTL time.Duration
	ProbeTimeout  time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			SessionEventsTopic: getEnv("SESSION_EVENTS_TOPIC_NAME", "SESSION_EVENTS"),
		},
		Chat: ChatConfig{
			StreamEndpoint:     getEnv("STREAM_ENDPOINT", "http://localhost:11434/api/chat"),
			APIToken:           getEnv("STREAM_API_TOKEN", ""),
			SessionAPIEndpoint: getEnv("SESSION_API_ENDPOINT", "http://localhost:8081/api/sessions"),
		},
		Cache: CacheConfig{
			ExtractionTTL: time.Duration(getEnvAsInt("EXTRACTION_TTL_MINUTES", 30)) * time.Minute,
			ProbeTimeout:  time.Duration(getEnvAsInt("PROBE_TIMEOUT_SECONDS", 3)) * time.Second,
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
