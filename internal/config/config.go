package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/iudanet/gophsync/internal/audit"
	"github.com/iudanet/gophsync/internal/models"
)

// Переменные окружения, переопределяющие значения по умолчанию флагов
const (
	EnvAddress       = "GOPHSYNC_ADDRESS"
	EnvDBPath        = "GOPHSYNC_DB"
	EnvStrategies    = "GOPHSYNC_STRATEGIES"
	EnvJWTSecret     = "GOPHSYNC_JWT_SECRET"
	EnvBatchStrategy = "GOPHSYNC_BATCH_STRATEGY"
	EnvRetention     = "GOPHSYNC_RETENTION"
	EnvLogLevel      = "GOPHSYNC_LOG_LEVEL"
)

// ErrVersionRequested возвращается Parse, когда указан флаг -version
var ErrVersionRequested = errors.New("version requested")

// Config конфигурация сервера разбора конфликтов
type Config struct {
	Address        string          `validate:"required,hostname_port"`
	DBPath         string          `validate:"required"`
	StrategiesFile string          `validate:"omitempty,file"`
	JWTSecret      string          `validate:"required,min=32"`
	BatchStrategy  models.Strategy `validate:"required,oneof=auto_lww auto_merge local_wins remote_wins manual"`
	LogLevel       string          `validate:"oneof=debug info warn error"`
	Retention      time.Duration   `validate:"gte=0"`
}

// Parse читает конфигурацию из аргументов командной строки.
// Значение флага по умолчанию берется из переменной окружения, если она задана.
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("gophsync-server", flag.ContinueOnError)

	cfg := &Config{}
	showVersion := fs.Bool("version", false, "Show version information")
	fs.StringVar(&cfg.Address, "a", env(EnvAddress, "localhost:8080"), "HTTP listen address")
	fs.StringVar(&cfg.DBPath, "d", env(EnvDBPath, "gophsync.db"), "Path to SQLite database")
	fs.StringVar(&cfg.StrategiesFile, "s", env(EnvStrategies, ""), "Path to merge strategies YAML (built-in defaults if empty)")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", env(EnvJWTSecret, ""), "HMAC secret for reviewer tokens")
	fs.StringVar(&cfg.LogLevel, "log-level", env(EnvLogLevel, "info"), "Log level: debug, info, warn, error")

	batch := fs.String("strategy", env(EnvBatchStrategy, string(models.StrategyManual)), "Strategy applied to conflicts found by reconcile")

	retention, err := durationEnv(EnvRetention, audit.DefaultRetention)
	if err != nil {
		return nil, err
	}
	fs.DurationVar(&cfg.Retention, "retention", retention, "How long resolved history entries are kept")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}
	if *showVersion {
		return nil, ErrVersionRequested
	}
	cfg.BatchStrategy = models.Strategy(*batch)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет значения конфигурации
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func env(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
