package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverRedis    = "redis"
	StoreDriverMemory   = "memory"
)

// Config holds the environment settings shared by both services
type Config struct {
	Port        string
	ServiceName string
	Environment string

	DatabaseHost     string
	DatabasePort     string
	DatabaseUser     string
	DatabasePassword string
	DatabaseName     string

	StoreDriver string
	RedisAddr   string

	KafkaBrokers []string
	KafkaTopic   string

	ProductServiceURL     string
	ProductServiceTimeout time.Duration

	OTLPEndpoint string
	OTelEnabled  bool
}

// Load reads an optional .env file and then the environment. serviceName seeds the
// defaults that differ between the orders and products services.
func Load(serviceName string) (*Config, error) {
	_ = godotenv.Load()

	timeout, err := time.ParseDuration(getEnv("PRODUCT_SERVICE_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid PRODUCT_SERVICE_TIMEOUT: %w", err)
	}

	otelEnabled, err := strconv.ParseBool(getEnv("OTEL_ENABLED", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid OTEL_ENABLED: %w", err)
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		ServiceName: getEnv("SERVICE_NAME", serviceName),
		Environment: getEnv("ENVIRONMENT", "development"),

		DatabaseHost:     getEnv("DATABASE_HOST", "localhost"),
		DatabasePort:     getEnv("DATABASE_PORT", "5432"),
		DatabaseUser:     getEnv("DATABASE_USER", "root"),
		DatabasePassword: getEnv("DATABASE_PASSWORD", "pass"),
		DatabaseName:     getEnv("DATABASE_NAME", strings.TrimSuffix(serviceName, "-service")+"_db"),

		StoreDriver: getEnv("STORE_DRIVER", StoreDriverPostgres),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),

		KafkaBrokers: splitCSV(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "orders.events"),

		ProductServiceURL:     getEnv("PRODUCT_SERVICE_URL", "http://products-service:8080"),
		ProductServiceTimeout: timeout,

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		OTelEnabled:  otelEnabled,
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres, StoreDriverRedis, StoreDriverMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	return cfg, nil
}

// PostgresURL is the pgx connection string
func (c *Config) PostgresURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DatabaseUser, c.DatabasePassword, c.DatabaseHost, c.DatabasePort, c.DatabaseName,
	)
}

// PostgresDSN is the lib/pq key=value connection string
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DatabaseHost, c.DatabasePort, c.DatabaseUser, c.DatabasePassword, c.DatabaseName,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
