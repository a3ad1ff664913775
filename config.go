package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Host                string        `env:"HOST,default=localhost"`
	Port                int           `env:"PORT,default=8080" validate:"gt=0,lte=65535"`
	LogLevel            string        `env:"LOG_LEVEL,default=info" validate:"oneof=debug info warn error DEBUG INFO WARN ERROR"`
	EventServiceURL     string        `env:"EVENT_SERVICE_URL,required=true" validate:"required,url"`
	EventServiceTimeout time.Duration `env:"EVENT_SERVICE_TIMEOUT,default=10s" validate:"gt=0"`
	ReplyDelay          time.Duration `env:"REPLY_DELAY,default=1s" validate:"gte=0"`
	InitialYear         int           `env:"INITIAL_YEAR,default=2025" validate:"gt=0"`
	MaxStats            int           `env:"MAX_STATS,default=20" validate:"gt=0"`
	DBDialect           string        `env:"DB_DIALECT,default=sqlite" validate:"oneof=sqlite postgres memory"`
	DBSQLitePath        string        `env:"DB_SQLITE_PATH,default=tmp/life_sim.sqlite"`
	DBPostgresDSN       string        `env:"DB_POSTGRES_DSN"`
	DatabaseURL         string        `env:"DATABASE_URL"`
	AdminToken          string        `env:"ADMIN_TOKEN"`
}

// loadConfig reads an optional .env file, then the process environment.
func loadConfig() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) storeSettings() storeSettings {
	return storeSettings{
		InitialYear:  c.InitialYear,
		MaxStats:     c.MaxStats,
		ReplyDelay:   c.ReplyDelay,
		FetchTimeout: c.EventServiceTimeout,
	}
}

func (c Config) postgresDSN() string {
	if dsn := strings.TrimSpace(c.DBPostgresDSN); dsn != "" {
		return dsn
	}
	return strings.TrimSpace(c.DatabaseURL)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
