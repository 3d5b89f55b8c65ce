package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration loaded from environment variables
type Config struct {
	Env        string
	Port       string
	AdminToken string

	DatabaseURL string
	RedisURL    string

	LogLevel  string
	LogFormat string

	// Reddit content source
	RedditBaseURL   string
	RedditUserAgent string
	FetchPageSize   int
	ChannelDelay    time.Duration
	ReplyTreeDelay  time.Duration

	// Classifier
	ClassifierURL     string
	ClassifierSecret  string
	ClassifierStub    bool
	ClassifyBatchSize int
	BatchDelay        time.Duration
	BucketAcceptance  float64

	// Notification relay
	NotifyWebhookURL string
	NotifySecret     string
	NotifyStub       bool

	// Classification lease (one concurrent run per tenant)
	LeaseTTL time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Env:        getEnvWithDefault("ENV", "development"),
		Port:       getEnvWithDefault("PORT", "8080"),
		AdminToken: os.Getenv("ADMIN_TOKEN"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    getEnvWithDefault("REDIS_URL", "redis://localhost:6379/0"),

		LogLevel:  getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvWithDefault("LOG_FORMAT", "text"),

		RedditBaseURL:   getEnvWithDefault("REDDIT_BASE_URL", "https://www.reddit.com"),
		RedditUserAgent: getEnvWithDefault("REDDIT_USER_AGENT", "feedpulse/1.0"),
		FetchPageSize:   getEnvInt("FETCH_PAGE_SIZE", 25),
		ChannelDelay:    getEnvDuration("CHANNEL_DELAY", 2*time.Second),
		ReplyTreeDelay:  getEnvDuration("REPLY_TREE_DELAY", time.Second),

		ClassifierURL:     os.Getenv("CLASSIFIER_URL"),
		ClassifierSecret:  os.Getenv("CLASSIFIER_SECRET"),
		ClassifierStub:    getEnvBool("CLASSIFIER_STUB", false),
		ClassifyBatchSize: getEnvInt("CLASSIFY_BATCH_SIZE", 10),
		BatchDelay:        getEnvDuration("BATCH_DELAY", 2*time.Second),
		BucketAcceptance:  getEnvFloat("BUCKET_ACCEPTANCE", 0.6),

		NotifyWebhookURL: os.Getenv("NOTIFY_WEBHOOK_URL"),
		NotifySecret:     os.Getenv("NOTIFY_SECRET"),
		NotifyStub:       getEnvBool("NOTIFY_STUB", false),

		LeaseTTL: getEnvDuration("CLASSIFY_LEASE_TTL", 10*time.Minute),
	}
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
