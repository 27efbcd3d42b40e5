package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Kafka    KafkaConfig
	Tracing  TracingConfig
	Orders   OrderConfig
	Sweep    SweepConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines bearer token verification parameters.
type AuthConfig struct {
	JWTSecret string
}

// KafkaConfig configures domain event publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	// QueueSize bounds the events waiting to be published.
	QueueSize int
}

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Endpoint string
	Insecure bool
}

// OrderConfig tunes the order lifecycle.
type OrderConfig struct {
	ReservationTTLMinutes      int
	DuplicateWindowSeconds     int
	PaymentIdempotencyTTLHours int
	LedgerMaxRetries           int
}

// SweepConfig tunes the expiration and escalation sweeps.
type SweepConfig struct {
	Enabled           bool
	IntervalSeconds   int
	BatchSize         int
	VendorConcurrency int
	LockTTLSeconds    int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "commerce-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", "dev-secret"),
		},
		Kafka: KafkaConfig{
			Brokers:   getEnvAsList("KAFKA_BROKERS"),
			Topic:     getEnv("KAFKA_TOPIC", "commerce.events"),
			QueueSize: getEnvAsInt("KAFKA_QUEUE_SIZE", 1024),
		},
		Tracing: TracingConfig{
			Endpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Insecure: getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		},
		Orders: OrderConfig{
			ReservationTTLMinutes:      getEnvAsInt("ORDER_RESERVATION_TTL_MINUTES", 30),
			DuplicateWindowSeconds:     getEnvAsInt("ORDER_DUPLICATE_WINDOW_SECONDS", 30),
			PaymentIdempotencyTTLHours: getEnvAsInt("PAYMENT_IDEMPOTENCY_TTL_HOURS", 24),
			LedgerMaxRetries:           getEnvAsInt("LEDGER_MAX_RETRIES", 5),
		},
		Sweep: SweepConfig{
			Enabled:           getEnvAsBool("SWEEP_ENABLED", true),
			IntervalSeconds:   getEnvAsInt("SWEEP_INTERVAL_SECONDS", 120),
			BatchSize:         getEnvAsInt("SWEEP_BATCH_SIZE", 500),
			VendorConcurrency: getEnvAsInt("SWEEP_VENDOR_CONCURRENCY", 4),
			LockTTLSeconds:    getEnvAsInt("SWEEP_LOCK_TTL_SECONDS", 60),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// ReservationTTL is how long a chat order holds stock before expiring.
func (o OrderConfig) ReservationTTL() time.Duration {
	return time.Duration(o.ReservationTTLMinutes) * time.Minute
}

// DuplicateWindow is the look-back window of the duplicate payment heuristic.
func (o OrderConfig) DuplicateWindow() time.Duration {
	return time.Duration(o.DuplicateWindowSeconds) * time.Second
}

// PaymentIdempotencyTTL is how long a gateway reference is remembered.
func (o OrderConfig) PaymentIdempotencyTTL() time.Duration {
	return time.Duration(o.PaymentIdempotencyTTLHours) * time.Hour
}

// Interval returns the sweep period.
func (s SweepConfig) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

// LockTTL returns how long a sweep holds its distributed lock.
func (s SweepConfig) LockTTL() time.Duration {
	return time.Duration(s.LockTTLSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
