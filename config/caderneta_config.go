package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"caderneta_server/pkg/apperr"
)

// Config holds all application configuration
type Config struct {
	Port        string
	Environment string
	LogLevel    string
	Timezone    *time.Location

	// Database
	DatabaseURL string
	MongoDBURL  string
	MongoDBName string
	RedisURL    string

	// WhatsApp Cloud API
	WhatsAppAPIURL      string
	WhatsAppToken       string
	WhatsAppPhoneID     string
	WhatsAppVerifyToken string
	WhatsAppAppSecret   string
	WhatsAppTimeoutSec  int

	// Onboarding
	OnboardingTTL          time.Duration
	OnboardingCodeAttempts int

	// Classifier
	ClassifierThreshold float64
	ClassifierModelKey  string
	CorpusMinConfidence float64
	RetrainHoldout      float64

	// Classifier reload
	ModelReloadInterval time.Duration

	// Bot
	CommandPrefix      string
	DedupWindow        time.Duration
	RateLimitPerMinute int
	ChatPhone          string

	// Worker
	WorkerCount  int
	WorkerID     string
	StreamGroup  string
	StreamMaxLen int64
	NodeID       int64

	// Reports
	ChartBaseURL  string
	ExportBaseURL string

	// CORS
	AllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	tzName := getEnv("TIMEZONE", "America/Sao_Paulo")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tzName, err)
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", ""),
		Timezone:    loc,

		// Database
		DatabaseURL: getEnv("DATABASE_URL", ""),
		MongoDBURL:  getEnv("MONGODB_URL", ""),
		MongoDBName: getEnv("MONGODB_DATABASE", "caderneta"),
		RedisURL:    getEnv("REDIS_URL", ""),

		// WhatsApp Cloud API
		WhatsAppAPIURL:      getEnv("WHATSAPP_API_URL", "https://graph.facebook.com/v19.0"),
		WhatsAppToken:       getEnv("WHATSAPP_TOKEN", ""),
		WhatsAppPhoneID:     getEnv("WHATSAPP_PHONE_ID", ""),
		WhatsAppVerifyToken: getEnv("WHATSAPP_VERIFY_TOKEN", ""),
		WhatsAppAppSecret:   getEnv("WHATSAPP_APP_SECRET", ""),
		WhatsAppTimeoutSec:  getEnvInt("WHATSAPP_TIMEOUT_SEC", 15),

		// Onboarding
		OnboardingTTL:          time.Duration(getEnvInt("ONBOARDING_TTL_SEC", 900)) * time.Second,
		OnboardingCodeAttempts: getEnvInt("ONBOARDING_CODE_ATTEMPTS", 5),

		// Classifier
		ClassifierThreshold: getEnvFloat("CLASSIFIER_THRESHOLD", 0.7),
		ClassifierModelKey:  getEnv("CLASSIFIER_MODEL_KEY", "classifier:model"),
		CorpusMinConfidence: getEnvFloat("CORPUS_MIN_CONFIDENCE", 0.7),
		RetrainHoldout:      getEnvFloat("RETRAIN_HOLDOUT", 0.2),
		ModelReloadInterval: time.Duration(getEnvInt("MODEL_RELOAD_INTERVAL_SEC", 3600)) * time.Second,

		// Bot
		CommandPrefix:      getEnv("COMMAND_PREFIX", "!"),
		DedupWindow:        time.Duration(getEnvInt("DEDUP_WINDOW_SEC", 86400)) * time.Second,
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		ChatPhone:          getEnv("CHAT_PHONE", "5511999990000"),

		// Worker
		WorkerCount:  getEnvInt("WORKER_COUNT", 8),
		WorkerID:     getEnv("WORKER_ID", hostname()),
		StreamGroup:  getEnv("STREAM_GROUP", "caderneta-workers"),
		StreamMaxLen: int64(getEnvInt("STREAM_MAX_LEN", 100000)),
		NodeID:       int64(getEnvInt("NODE_ID", 1)),

		// Reports
		ChartBaseURL:  getEnv("CHART_BASE_URL", "https://quickchart.io/chart"),
		ExportBaseURL: getEnv("EXPORT_BASE_URL", "http://localhost:8080/exportar"),

		// CORS
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"*"}),
	}

	if cfg.ClassifierThreshold <= 0 || cfg.ClassifierThreshold > 1 {
		return nil, configError("CLASSIFIER_THRESHOLD", "must be in (0, 1]", cfg.ClassifierThreshold)
	}
	if cfg.OnboardingCodeAttempts < 1 {
		return nil, configError("ONBOARDING_CODE_ATTEMPTS", "must be positive", cfg.OnboardingCodeAttempts)
	}
	if cfg.WorkerCount < 1 {
		return nil, configError("WORKER_COUNT", "must be positive", cfg.WorkerCount)
	}
	return cfg, nil
}

func configError(key, reason string, got any) error {
	return apperr.ConfigError(fmt.Sprintf("%s %s, got %v", key, reason, got)).WithDetail("key", key)
}

func hostname() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "worker-1"
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

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
