package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"

	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config описывает настройки запуска сервиса маркетплейса.
type Config struct {
	HTTPAddr    string
	MetricsAddr string
	GRPCAddr    string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool
	// PostgresMaxConns: 0 оставляет лимит пула по умолчанию.
	PostgresMaxConns int

	KafkaBrokers  []string
	KafkaClientID string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	RedisURL       string
	UnreadCacheTTL time.Duration

	// Спорные места поведения заказов, по умолчанию выключены.
	RestoreStockOnCancel bool
	RepriceFromCatalog   bool

	LogLevel string
	// LogFormat: text для консоли, json для сборщиков логов.
	LogFormat string
}

// DefaultConfig возвращает конфигурацию для локального запуска на in-memory хранилище.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:            ":8080",
		MetricsAddr:         ":9090",
		GRPCAddr:            ":50051",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		KafkaClientID:       "marketplace",
		OutboxPollInterval:  time.Second,
		OutboxBatchSize:     100,
		OutboxMaxAttempts:   3,
		OutboxRetryDelay:    200 * time.Millisecond,
		UnreadCacheTTL:      time.Minute,
		LogLevel:            "info",
		LogFormat:           LogFormatText,
	}
}

// LoadConfig читает переменные MARKET_* поверх DefaultConfig. Файл .env необязателен.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return configFromEnv(os.Getenv)
}

func configFromEnv(getenv func(string) string) (Config, error) {
	cfg := DefaultConfig()
	p := envParser{getenv: getenv}

	cfg.HTTPAddr = p.str("MARKET_HTTP_ADDR", cfg.HTTPAddr)
	cfg.MetricsAddr = p.str("MARKET_METRICS_ADDR", cfg.MetricsAddr)
	cfg.GRPCAddr = p.str("MARKET_GRPC_ADDR", cfg.GRPCAddr)
	cfg.StorageDriver = strings.ToLower(p.str("MARKET_STORAGE_DRIVER", cfg.StorageDriver))
	cfg.PostgresDSN = p.str("MARKET_POSTGRES_DSN", cfg.PostgresDSN)
	cfg.PostgresAutoMigrate = p.boolean("MARKET_POSTGRES_AUTO_MIGRATE", cfg.PostgresAutoMigrate)
	cfg.PostgresMaxConns = p.integer("MARKET_POSTGRES_MAX_CONNS", cfg.PostgresMaxConns)
	cfg.KafkaBrokers = p.list("MARKET_KAFKA_BROKERS")
	cfg.KafkaClientID = p.str("MARKET_KAFKA_CLIENT_ID", cfg.KafkaClientID)
	cfg.OutboxPollInterval = p.duration("MARKET_OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.OutboxBatchSize = p.integer("MARKET_OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxMaxAttempts = p.integer("MARKET_OUTBOX_MAX_ATTEMPTS", cfg.OutboxMaxAttempts)
	cfg.OutboxRetryDelay = p.duration("MARKET_OUTBOX_RETRY_DELAY", cfg.OutboxRetryDelay)
	cfg.RedisURL = p.str("MARKET_REDIS_URL", cfg.RedisURL)
	cfg.UnreadCacheTTL = p.duration("MARKET_UNREAD_CACHE_TTL", cfg.UnreadCacheTTL)
	cfg.RestoreStockOnCancel = p.boolean("MARKET_RESTORE_STOCK_ON_CANCEL", cfg.RestoreStockOnCancel)
	cfg.RepriceFromCatalog = p.boolean("MARKET_REPRICE_FROM_CATALOG", cfg.RepriceFromCatalog)
	cfg.LogLevel = p.str("MARKET_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(p.str("MARKET_LOG_FORMAT", cfg.LogFormat))

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate отклоняет неработоспособные сочетания настроек.
func (c Config) Validate() error {
	var errs []error

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("MARKET_POSTGRES_DSN is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}

	if c.PostgresMaxConns < 0 {
		errs = append(errs, errors.New("postgres max conns must not be negative"))
	}
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http address must not be empty"))
	}
	if c.OutboxPollInterval <= 0 {
		errs = append(errs, errors.New("outbox poll interval must be positive"))
	}
	if c.OutboxBatchSize <= 0 {
		errs = append(errs, errors.New("outbox batch size must be positive"))
	}
	if c.OutboxMaxAttempts <= 0 {
		errs = append(errs, errors.New("outbox max attempts must be positive"))
	}
	if c.OutboxRetryDelay < 0 {
		errs = append(errs, errors.New("outbox retry delay must not be negative"))
	}
	if c.UnreadCacheTTL <= 0 {
		errs = append(errs, errors.New("unread cache ttl must be positive"))
	}
	if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		errs = append(errs, fmt.Errorf("invalid log format %q", c.LogFormat))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.LogLevel))
	}

	return errors.Join(errs...)
}

// envParser копит ошибки разбора, чтобы сообщить обо всех ключах сразу.
type envParser struct {
	getenv func(string) string
	errs   []error
}

func (p *envParser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *envParser) list(key string) []string {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (p *envParser) boolean(key string, def bool) bool {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (p *envParser) integer(key string, def int) int {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (p *envParser) duration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}
