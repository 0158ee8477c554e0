package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	Env            string
	APIBaseURL     string
	RequestTimeout time.Duration

	BasketStore string
	RedisURL    string
	MongoURI    string
	MongoDB     string
	BasketTTL   time.Duration

	CategoryCacheTTL time.Duration
	SuggestCacheTTL  time.Duration
	SuggestMinChars  int
	PageSize         int
	DealsLimit       int

	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
	SessionCookie  string
	TracingEnabled bool
	InternalAPIKey string
}

// LoadConfig reads the environment, loading .env first when one exists.
func LoadConfig() *Config {
	// Only local development ships a .env file
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			log.Println("error loading .env file:", err)
		} else {
			log.Println(".env file loaded")
		}
	}

	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("APP_ENV", "development"),
		APIBaseURL:     strings.TrimSuffix(getEnv("API_BASE_URL", "http://localhost:8000"), "/"),
		RequestTimeout: getDuration("REQUEST_TIMEOUT", 10*time.Second),

		BasketStore: strings.ToLower(getEnv("BASKET_STORE", "memory")),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),
		MongoURI:    getEnv("MONGO_URI", ""),
		MongoDB:     getEnv("MONGO_DB", "priskombo"),
		BasketTTL:   getDuration("BASKET_TTL", 30*24*time.Hour),

		CategoryCacheTTL: getDuration("CATEGORY_CACHE_TTL", 5*time.Minute),
		SuggestCacheTTL:  getDuration("SUGGEST_CACHE_TTL", 30*time.Second),
		SuggestMinChars:  getInt("SUGGEST_MIN_CHARS", 2),
		PageSize:         getInt("PAGE_SIZE", 24),
		DealsLimit:       getInt("DEALS_LIMIT", 8),

		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		RateLimitRPS:   getFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getInt("RATE_LIMIT_BURST", 40),
		SessionCookie:  getEnv("SESSION_COOKIE", "priskombo_session"),
		TracingEnabled: getEnv("TRACING_ENABLED", "false") == "true",
		InternalAPIKey: getEnv("INTERNAL_API_KEY", ""),
	}
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(part), "/"))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
