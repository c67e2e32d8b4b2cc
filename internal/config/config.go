package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BrokerKafka    = "kafka"
	BrokerRabbitMQ = "rabbitmq"
)

type TariffServiceConfig struct {
	Port               string
	Environment        string
	BrokerDriver       string
	SentryDSN          string
	CORSOriginRegex    string
	EventFlushSchedule string
	ShutdownTimeout    time.Duration
	LogCfg             LogConfig
	PostgresCfg        PostgresConfig
	KafkaCfg           KafkaConfig
	RabbitMQCfg        RabbitMQConfig
	RedisCfg           RedisConfig
	MinioCfg           MinioConfig
}

type LogConfig struct {
	Level  string
	Format string
	Dir    string
}

type PostgresConfig struct {
	DSN            string
	DBname         string
	Username       string
	Password       string
	Host           string
	Port           string
	SSLMode        string
	MaxPoolSize    int
	ConnectRetries int
	RetryWait      time.Duration
}

type KafkaConfig struct {
	Host      string
	Port      string
	BatchSize int
	Topic     string
	ClientID  string
}

type RabbitMQConfig struct {
	Host     string
	Username string
	Password string
	Port     string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
	TTL      time.Duration
}

type MinioConfig struct {
	Enabled        bool
	MinioURL       string
	MinioAccessKey string
	MinioSecretKey string
	MinioLocation  string
	MinioSecure    string
	Bucket         string
}

// envFiles are loaded highest priority first; godotenv never overrides a
// variable that is already set, so the process environment always wins.
var envFiles = []string{".env", ".env.local", ".env.local.base"}

func New() *TariffServiceConfig {
	loadEnvFiles()

	return &TariffServiceConfig{
		Port:               getEnvOrDefault("PORT", "8000"),
		Environment:        getEnvOrDefault("ENVIRONMENT", "dev"),
		BrokerDriver:       strings.ToLower(getEnvOrDefault("BROKER_DRIVER", BrokerKafka)),
		SentryDSN:          getEnvOrDefault("SENTRY_DSN", ""),
		CORSOriginRegex:    getEnvOrDefault("CORS_ORIGIN_REGEX", `(http://|https://)?(.*\.)?(qa|stage|localhost|0.0.0.0)(\.ru)?(:\d+)?$`),
		EventFlushSchedule: getEnvOrDefault("EVENT_FLUSH_SCHEDULE", "@every 30s"),
		ShutdownTimeout:    getDurationOrDefault("SHUTDOWN_TIMEOUT", 15*time.Second),
		LogCfg: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
			Dir:    getEnvOrDefault("LOG_DIR", ""),
		},
		PostgresCfg: PostgresConfig{
			DSN:            getEnvOrDefault("POSTGRES_DSN", ""),
			DBname:         getEnvOrDefault("POSTGRES_DB", "tariff_service"),
			Username:       getEnvOrDefault("POSTGRES_USER", "postgres"),
			Password:       getEnvOrDefault("POSTGRES_PASSWORD", "postgres"),
			Host:           getEnvOrDefault("POSTGRES_HOST", "localhost"),
			Port:           getEnvOrDefault("POSTGRES_PORT", "5432"),
			SSLMode:        getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
			MaxPoolSize:    getIntOrDefault("POSTGRES_MAX_POOL_SIZE", 10),
			ConnectRetries: getIntOrDefault("POSTGRES_CONNECT_RETRIES", 5),
			RetryWait:      getDurationOrDefault("POSTGRES_RETRY_WAIT", 3*time.Second),
		},
		KafkaCfg: KafkaConfig{
			Host:      getEnvOrDefault("KAFKA_HOST", "localhost"),
			Port:      getEnvOrDefault("KAFKA_PORT", "9092"),
			BatchSize: getIntOrDefault("KAFKA_BATCH_SIZE", 5),
			Topic:     getEnvOrDefault("KAFKA_TOPIC", "default_actions"),
			ClientID:  getEnvOrDefault("KAFKA_CLIENT_ID", "tariff-service"),
		},
		RabbitMQCfg: RabbitMQConfig{
			Host:     getEnvOrDefault("RABBITMQ_HOST", "localhost"),
			Username: getEnvOrDefault("RABBITMQ_USER", "guest"),
			Password: getEnvOrDefault("RABBITMQ_PWD", "guest"),
			Port:     getEnvOrDefault("RABBITMQ_PORT", "5672"),
		},
		RedisCfg: RedisConfig{
			Enabled:  getBoolOrDefault("REDIS_ENABLED", false),
			Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			TTL:      getDurationOrDefault("REDIS_TARIFF_TTL", 10*time.Minute),
		},
		MinioCfg: MinioConfig{
			Enabled:        getBoolOrDefault("MINIO_ENABLED", false),
			MinioURL:       getEnvOrDefault("MINIO_ENDPOINT", "http://localhost:9000"),
			MinioAccessKey: getEnvOrDefault("MINIO_ACCESS_KEY", "minio"),
			MinioSecretKey: getEnvOrDefault("MINIO_SECRET_KEY", "minio123"),
			MinioLocation:  getEnvOrDefault("MINIO_LOCATION", "us-east-1"),
			MinioSecure:    getEnvOrDefault("MINIO_SECURE", "false"),
			Bucket:         getEnvOrDefault("MINIO_UPLOAD_BUCKET", "tariff-uploads"),
		},
	}
}

// Validate rejects settings the service cannot start with.
func (c *TariffServiceConfig) Validate() error {
	var errs []error
	if c.KafkaCfg.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("KAFKA_BATCH_SIZE must be >= 1, got %d", c.KafkaCfg.BatchSize))
	}
	if strings.TrimSpace(c.KafkaCfg.Topic) == "" {
		errs = append(errs, errors.New("KAFKA_TOPIC must not be empty"))
	}
	if c.BrokerDriver != BrokerKafka && c.BrokerDriver != BrokerRabbitMQ {
		errs = append(errs, fmt.Errorf("BROKER_DRIVER must be %q or %q, got %q", BrokerKafka, BrokerRabbitMQ, c.BrokerDriver))
	}
	if c.PostgresCfg.MaxPoolSize < 1 {
		errs = append(errs, fmt.Errorf("POSTGRES_MAX_POOL_SIZE must be >= 1, got %d", c.PostgresCfg.MaxPoolSize))
	}
	return errors.Join(errs...)
}

// BootstrapServers returns the broker address in host:port form.
func (k KafkaConfig) BootstrapServers() string {
	return k.Host + ":" + k.Port
}

// ConnString returns POSTGRES_DSN when set, otherwise a key/value DSN built from the parts.
func (p PostgresConfig) ConnString() string {
	if p.DSN != "" {
		return p.DSN
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.Username, p.Password, p.DBname, p.SSLMode)
}

func (r RabbitMQConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", r.Username, r.Password, r.Host, r.Port)
}

func loadEnvFiles() {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("failed to load env file", "file", file, "error", err)
		}
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", raw, "default", defaultValue)
		return defaultValue
	}
	return v
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		slog.Warn("invalid boolean in environment, using default", "key", key, "value", raw, "default", defaultValue)
		return defaultValue
	}
	return v
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", raw, "default", defaultValue)
		return defaultValue
	}
	return v
}
