package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the exchange core.
type Config struct {
	Port string

	// Database
	DBPath string

	// Account & Position Service
	UserServiceURL string

	// Execution
	TickInterval time.Duration
	FillSeed     int64

	// Market data
	UseMockFeed      bool
	MockFeedInterval time.Duration
	RefDataPath      string

	// Settlement
	JWTSecret          string
	SettlementTokenTTL time.Duration

	// API
	RateLimitPerSecond float64
	RequestTimeout     time.Duration
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:               getEnv("PORT", "8080"),
		DBPath:             getEnv("DB_PATH", "./data/exchange.db"),
		UserServiceURL:     getEnv("USER_SERVICE_URL", "http://localhost:8081/api"),
		TickInterval:       getEnvDuration("TICK_INTERVAL", 10*time.Second),
		FillSeed:           getEnvInt64("FILL_SEED", time.Now().UnixNano()),
		UseMockFeed:        getEnv("USE_MOCK_FEED", "true") == "true",
		MockFeedInterval:   getEnvDuration("MOCK_FEED_INTERVAL", 5*time.Second),
		RefDataPath:        getEnv("REFDATA_PATH", "./refdata.yaml"),
		JWTSecret:          getEnv("JWT_SECRET", "dev-secret"),
		SettlementTokenTTL: getEnvDuration("SETTLEMENT_TOKEN_TTL", 30*time.Minute),
		RateLimitPerSecond: getEnvFloat("RATE_LIMIT_PER_SECOND", 50),
		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
