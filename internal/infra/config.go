package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// History backends selectable through HISTORY_BACKEND.
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	GeminiAPIKey     string
	ImagenModel      string
	HistoryBackend   string
	HistoryPath      string
	HistoryKey       string
	RedisURL         string
	DatabaseURL      string
	AllowedOrigins   []string
	RateLimitPerMin  int
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
// The Gemini API key is mandatory; the process must not start without it.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		GeminiAPIKey:     strings.TrimSpace(getEnv("GEMINI_API_KEY", os.Getenv("API_KEY"))),
		ImagenModel:      getEnv("IMAGEN_MODEL", "imagen-4.0-generate-001"),
		HistoryBackend:   strings.ToLower(getEnv("HISTORY_BACKEND", BackendFile)),
		HistoryPath:      getEnv("HISTORY_PATH", "./data"),
		HistoryKey:       getEnv("HISTORY_KEY", "imageGenerationHistory"),
		RedisURL:         os.Getenv("REDIS_URL"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		AllowedOrigins:   getEnvList("CORS_ALLOWED_ORIGINS"),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 10),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	switch cfg.HistoryBackend {
	case BackendFile:
	case BackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required for the %s history backend", BackendRedis)
		}
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the %s history backend", BackendPostgres)
		}
	default:
		return nil, fmt.Errorf("unsupported HISTORY_BACKEND %q", cfg.HistoryBackend)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
