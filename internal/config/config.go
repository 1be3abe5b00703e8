package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL          string
	RedisURL             string
	KafkaBrokers         string
	NatsURL              string
	JaegerEndpoint       string
	LogLevel             string
	TraceSampleRatio     float64
	Port                 string
	GRPCPort             string
	GatewaySubjectPrefix string
	GatewayTimeout       time.Duration
	RetryMax             int
	RetryBackoff         bool
	IdempotencyDBPath    string
	LockTTL              time.Duration
}

func Load() *Config {
	return &Config{
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		RedisURL:             os.Getenv("REDIS_URL"),
		KafkaBrokers:         os.Getenv("KAFKA_BROKERS"),
		NatsURL:              getEnv("NATS_URL", "nats://localhost:4222"),
		JaegerEndpoint:       getEnv("JAEGER_ENDPOINT", "jaeger:4318"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		TraceSampleRatio:     getFloat("TRACE_SAMPLE_RATIO", 1),
		Port:                 getEnv("PORT", "8084"),
		GRPCPort:             getEnv("GRPC_PORT", "9094"),
		GatewaySubjectPrefix: getEnv("GATEWAY_SUBJECT_PREFIX", "gateway"),
		GatewayTimeout:       getDuration("GATEWAY_TIMEOUT", 10*time.Second),
		RetryMax:             getInt("RETRY_MAX", 3),
		RetryBackoff:         getBool("RETRY_BACKOFF", true),
		IdempotencyDBPath:    getEnv("IDEMPOTENCY_DB_PATH", "idempotency.db"),
		LockTTL:              getDuration("LOCK_TTL", 60*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}
