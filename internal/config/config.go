// Package config reads the service configuration from the environment.
// A .env file in the working directory is loaded first when present.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"supplyhub/internal/core/numerator"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverLocal    = "local"
)

// Config is the typed service configuration.
type Config struct {
	Env      string
	LogLevel string
	Port     string

	Storage StorageConfig
	Redis   RedisConfig
	Orders  OrdersConfig
	Stock   StockConfig
	Outbox  OutboxConfig

	CORSAllowedOrigins []string
	IdempotencyTTL     time.Duration
}

type StorageConfig struct {
	Driver         string
	DatabaseURL    string
	MaxConns       int32
	MigrateOnStart bool
	LocalDataDir   string
}

type RedisConfig struct {
	// Address of the Redis server; empty selects the in-process locker.
	Address string
	LockTTL time.Duration
}

type OrdersConfig struct {
	NumberPrefix     string
	StatisticsWindow time.Duration
	// NumberStrategy is strict (gapless) or cached (ranges reserved in
	// memory, gaps after a restart).
	NumberStrategy  numerator.Strategy
	NumberRangeSize int64
}

// StockConfig tunes reconciliation.
type StockConfig struct {
	DirectPatchFallback bool
	PartialRemoval      bool
	AutoCreateProducts  bool
	AutoProductMargin   decimal.Decimal
	AutoProductCategory string
	// AddRule and RemoveRule are CEL expressions over old and new status.
	// Empty rules keep the built-in transition table.
	AddRule    string
	RemoveRule string
}

type OutboxConfig struct {
	Channel      string
	BatchSize    int
	PollInterval time.Duration
	Retention    time.Duration
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// UsesRedis reports whether a Redis address is configured.
func (c *Config) UsesRedis() bool {
	return c.Redis.Address != ""
}

// Load reads .env (if any) and the environment, then validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() (*Config, error) {
	p := &parser{}

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnv("APP_PORT", "8080"),
		Storage: StorageConfig{
			Driver:         strings.ToLower(getEnv("STORAGE_DRIVER", DriverPostgres)),
			DatabaseURL:    os.Getenv("DATABASE_URL"),
			MaxConns:       int32(p.int("DB_MAX_CONNS", 25)),
			MigrateOnStart: p.bool("MIGRATE_ON_START", false),
			LocalDataDir:   getEnv("LOCAL_DATA_DIR", "./data"),
		},
		Redis: RedisConfig{
			Address: os.Getenv("REDIS_ADDRESS"),
			LockTTL: p.duration("LOCK_TTL", 30*time.Second),
		},
		Orders: OrdersConfig{
			NumberPrefix:     getEnv("ORDER_NUMBER_PREFIX", "PO"),
			StatisticsWindow: p.duration("STATS_WINDOW", 30*24*time.Hour),
			NumberStrategy:   p.strategy("ORDER_NUMBER_STRATEGY", numerator.StrategyStrict),
			NumberRangeSize:  int64(p.int("ORDER_NUMBER_RANGE", 50)),
		},
		Stock: StockConfig{
			DirectPatchFallback: p.bool("DIRECT_PATCH_FALLBACK", true),
			PartialRemoval:      p.bool("PARTIAL_STOCK_REMOVAL", false),
			AutoCreateProducts:  p.bool("AUTO_CREATE_PRODUCTS", true),
			AutoProductMargin:   p.decimal("AUTO_PRODUCT_MARGIN", decimal.NewFromFloat(0.30)),
			AutoProductCategory: getEnv("AUTO_PRODUCT_CATEGORY", "Fournisseur"),
			AddRule:             os.Getenv("STOCK_ADD_RULE"),
			RemoveRule:          os.Getenv("STOCK_REMOVE_RULE"),
		},
		Outbox: OutboxConfig{
			Channel:      getEnv("OUTBOX_CHANNEL", "supplyhub:events"),
			BatchSize:    p.int("OUTBOX_BATCH_SIZE", 100),
			PollInterval: p.duration("OUTBOX_POLL_INTERVAL", time.Second),
			Retention:    p.duration("OUTBOX_RETENTION", 7*24*time.Hour),
		},
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		IdempotencyTTL:     p.duration("IDEMPOTENCY_TTL", 24*time.Hour),
	}

	if err := errors.Join(append(p.errs, cfg.Validate())...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	case DriverLocal:
		if c.Storage.LocalDataDir == "" {
			errs = append(errs, errors.New("LOCAL_DATA_DIR is required for the local driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER %q: want %s or %s", c.Storage.Driver, DriverPostgres, DriverLocal))
	}

	if c.Storage.MaxConns <= 0 {
		errs = append(errs, errors.New("DB_MAX_CONNS must be positive"))
	}
	if c.Redis.LockTTL <= 0 {
		errs = append(errs, errors.New("LOCK_TTL must be positive"))
	}
	if c.Orders.StatisticsWindow <= 0 {
		errs = append(errs, errors.New("STATS_WINDOW must be positive"))
	}
	if c.Orders.NumberRangeSize <= 0 {
		errs = append(errs, errors.New("ORDER_NUMBER_RANGE must be positive"))
	}
	if c.Stock.AutoProductMargin.IsNegative() {
		errs = append(errs, errors.New("AUTO_PRODUCT_MARGIN cannot be negative"))
	}
	if (c.Stock.AddRule == "") != (c.Stock.RemoveRule == "") {
		errs = append(errs, errors.New("STOCK_ADD_RULE and STOCK_REMOVE_RULE must be set together"))
	}
	if c.Outbox.BatchSize <= 0 {
		errs = append(errs, errors.New("OUTBOX_BATCH_SIZE must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parser collects malformed values instead of silently using defaults.
type parser struct {
	errs []error
}

func (p *parser) fail(key, value string, err error) {
	p.errs = append(p.errs, fmt.Errorf("%s=%q: %w", key, value, err))
}

func (p *parser) int(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return n
}

func (p *parser) bool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return b
}

func (p *parser) strategy(key string, defaultValue numerator.Strategy) numerator.Strategy {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	st, err := numerator.ParseStrategy(value)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return st
}

func (p *parser) duration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return d
}

func (p *parser) decimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return d
}
