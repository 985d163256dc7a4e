package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64
	RateLimitRPS   int
	RateLimitBurst int

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers       []string
	KafkaGroupID       string
	KafkaContentTopic  string
	KafkaCrawlTopic    string
	KafkaCrawlRequests string
	KafkaDLQTopic      string

	// Crawler
	InterSourceDelay      time.Duration
	DefaultMaxItems       int
	SourceLockTTL         time.Duration
	RateLimitRetryCeiling time.Duration
	StaleLogCutoff        time.Duration
	ConnectorLimitsPath   string
	FetchTimeout          time.Duration

	// Batch scheduling
	DefaultFrequencyHours int
	HourlySweepSpec       string
	DailySweepSpec        string

	// Webhook push ingestion
	WebhookSignatureHeader string
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 4*1024*1024)),
		RateLimitRPS:   getIntEnv("RATE_LIMIT_RPS", 50),
		RateLimitBurst: getIntEnv("RATE_LIMIT_BURST", 100),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "curatewise"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "curatewise123"),
		PostgresDB:       getEnv("POSTGRES_DB", "curatewise"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:       getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "curatewise-crawler"),
		KafkaContentTopic:  getEnv("KAFKA_CONTENT_TOPIC", "content.ingested"),
		KafkaCrawlTopic:    getEnv("KAFKA_CRAWL_TOPIC", "crawl.completed"),
		KafkaCrawlRequests: getEnv("KAFKA_CRAWL_REQUESTS_TOPIC", "crawl.requests"),
		KafkaDLQTopic:      getEnv("KAFKA_DLQ_TOPIC", ""),

		InterSourceDelay:      getDuration("CRAWL_INTER_SOURCE_DELAY", 2*time.Second),
		DefaultMaxItems:       getIntEnv("CRAWL_DEFAULT_MAX_ITEMS", 25),
		SourceLockTTL:         getDuration("CRAWL_SOURCE_LOCK_TTL", 10*time.Minute),
		RateLimitRetryCeiling: getDuration("CRAWL_RATE_LIMIT_RETRY_CEILING", 30*time.Second),
		StaleLogCutoff:        getDuration("CRAWL_STALE_LOG_CUTOFF", 1*time.Hour),
		ConnectorLimitsPath:   getEnv("CONNECTOR_LIMITS_PATH", ""),
		FetchTimeout:          getDuration("CRAWL_FETCH_TIMEOUT", 60*time.Second),

		DefaultFrequencyHours: getIntEnv("BATCH_DEFAULT_FREQUENCY_HOURS", 24),
		HourlySweepSpec:       getEnv("SWEEP_HOURLY_SPEC", "0 * * * *"),
		DailySweepSpec:        getEnv("SWEEP_DAILY_SPEC", "30 5 * * *"),

		WebhookSignatureHeader: getEnv("WEBHOOK_SIGNATURE_HEADER", "X-Hub-Signature-256"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
