package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/musicmind/academy/go/internal/dbconfig"
)

// ErrUnknownStore is returned for a STORE_BACKEND value nothing implements.
var ErrUnknownStore = errors.New("unknown store backend")

// StoreBackend names where session records live.
type StoreBackend string

const (
	StoreMemory   StoreBackend = "memory"
	StoreNATS     StoreBackend = "nats"
	StorePostgres StoreBackend = "postgres"
	StoreSQLite   StoreBackend = "sqlite"
)

// Config is the process configuration shared by every presenter command.
type Config struct {
	Port     string       `env:"PORT" envDefault:"8081"`
	LogLevel string       `env:"LOG_LEVEL" envDefault:"info"`
	Store    StoreBackend `env:"STORE_BACKEND" envDefault:"memory"`

	NATS     NATSConfig
	Postgres PostgresConfig
	SQLite   SQLiteConfig
	DB       dbconfig.Config
	Timer    TimerConfig

	StagesFile string `env:"STAGES_FILE"`
	GatewayURL string `env:"GATEWAY_URL" envDefault:"http://localhost:8081"`
}

type NATSConfig struct {
	URL           string        `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	Bucket        string        `env:"NATS_BUCKET" envDefault:"SESSIONS"`
	MaxReconnects int           `env:"NATS_MAX_RECONNECTS" envDefault:"-1"`
	ReconnectWait time.Duration `env:"NATS_RECONNECT_WAIT" envDefault:"2s"`
}

type PostgresConfig struct {
	NotifyChannel string        `env:"PG_NOTIFY_CHANNEL" envDefault:"session_records"`
	PingInterval  time.Duration `env:"PG_PING_INTERVAL" envDefault:"90s"`
}

type SQLiteConfig struct {
	Path string `env:"SQLITE_PATH" envDefault:"presentation.db"`
}

// TimerConfig holds the countdown colour cutoffs in seconds.
type TimerConfig struct {
	CalmAbove    int `env:"TIMER_CALM_ABOVE" envDefault:"120"`
	WarningAbove int `env:"TIMER_WARNING_ABOVE" envDefault:"60"`
}

// Load reads a .env file when present, then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("could not load .env file")
	}
	return Parse()
}

// Parse reads the configuration from the environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values the parser cannot.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreNATS, StorePostgres, StoreSQLite:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStore, c.Store)
	}
	if c.Timer.CalmAbove < c.Timer.WarningAbove {
		return fmt.Errorf("TIMER_CALM_ABOVE (%d) must not be below TIMER_WARNING_ABOVE (%d)",
			c.Timer.CalmAbove, c.Timer.WarningAbove)
	}
	return nil
}

// SetupLogging points the global logger at a console writer on stderr with
// the configured level.
func SetupLogging(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
