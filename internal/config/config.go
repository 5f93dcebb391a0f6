package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	// HTTP
	HTTPPort string

	// Postgres
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBMaxConns int32

	// Redis state mirror (optional, off when addr is empty)
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	RedisStateTTLSeconds int

	// Kafka telemetry source (optional, off when brokers are empty)
	KafkaBrokers       []string
	KafkaTopic         string
	KafkaConsumerGroup string

	// AMQP alert fan-out (optional, off when URL is empty)
	AMQPURL string

	// Zone evaluation
	ZoneRefreshSeconds   int
	AlertCooldownSeconds int

	// Vehicle liveness
	InactiveAfterSeconds int

	// Telemetry validation
	MaxOccupancy int

	// Pipeline tuning
	PipelineWorkers   int
	PipelineQueueSize int

	// Hub / websocket
	HubBufferSize       int
	PingIntervalSeconds int
	PongGraceSeconds    int

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	return &Config{
		HTTPPort:             getEnv("HTTP_PORT", "8002"),
		DBHost:               getEnv("DB_HOST", "localhost"),
		DBPort:               getEnv("DB_PORT", "5432"),
		DBUser:               getEnv("DB_USER", "fleet_user"),
		DBPassword:           getEnv("DB_PASSWORD", "fleet_password"),
		DBName:               getEnv("DB_NAME", "fleet_monitor"),
		DBMaxConns:           int32(getEnvInt("DB_MAX_CONNS", 10)),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisStateTTLSeconds: getEnvInt("REDIS_STATE_TTL_SECONDS", 30),
		KafkaBrokers:         splitNonEmpty(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:           getEnv("KAFKA_TOPIC_TELEMETRY", "fleet-telemetry"),
		KafkaConsumerGroup:   getEnv("KAFKA_CONSUMER_GROUP", "fleet-realtime"),
		AMQPURL:              getEnv("AMQP_URL", ""),
		ZoneRefreshSeconds:   getEnvInt("ZONE_REFRESH_SECONDS", 30),
		AlertCooldownSeconds: getEnvInt("ALERT_COOLDOWN_SECONDS", 300),
		InactiveAfterSeconds: getEnvInt("INACTIVE_AFTER_SECONDS", 30),
		MaxOccupancy:         getEnvInt("MAX_OCCUPANCY", 10),
		PipelineWorkers:      getEnvInt("PIPELINE_WORKERS", 4),
		PipelineQueueSize:    getEnvInt("PIPELINE_QUEUE_SIZE", 4096),
		HubBufferSize:        getEnvInt("HUB_BUFFER_SIZE", 256),
		PingIntervalSeconds:  getEnvInt("PING_INTERVAL_SECONDS", 25),
		PongGraceSeconds:     getEnvInt("PONG_GRACE_SECONDS", 10),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "text"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
