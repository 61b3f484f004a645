// Package config loads draftroom settings from a YAML file, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcdev12/draftroom/go/internal/dbconfig"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Database dbconfig.Config `yaml:"database"`
	Storage  StorageConfig   `yaml:"storage"`
	Auth     AuthConfig      `yaml:"auth"`
	Draft    DraftConfig     `yaml:"draft"`
	Sleeper  SleeperConfig   `yaml:"sleeper"`
	NATS     NATSConfig      `yaml:"nats"`
	Outbox   OutboxConfig    `yaml:"outbox"`
	Discord  DiscordConfig   `yaml:"discord"`
	Log      LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"`
}

type AuthConfig struct {
	Secret   string        `yaml:"secret"`
	Disabled bool          `yaml:"disabled"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

type DraftConfig struct {
	RecentPicks        int             `yaml:"recent_picks"`
	UpcomingSlots      int             `yaml:"upcoming_slots"`
	DraftablePositions []string        `yaml:"draftable_positions"`
	Scheduler          SchedulerConfig `yaml:"scheduler"`
}

type SchedulerConfig struct {
	Enabled   bool          `yaml:"enabled"`
	BatchSize int32         `yaml:"batch_size"`
	Workers   int           `yaml:"workers"`
	MaxSleep  time.Duration `yaml:"max_sleep"`
}

type SleeperConfig struct {
	Enabled    bool          `yaml:"enabled"`
	BaseURL    string        `yaml:"base_url"`
	CatalogTTL time.Duration `yaml:"catalog_ttl"`
	Timeout    time.Duration `yaml:"timeout"`
}

type NATSConfig struct {
	URL    string `yaml:"url"`
	Stream string `yaml:"stream"`
}

type OutboxConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Channel          string        `yaml:"channel"`
	FallbackInterval time.Duration `yaml:"fallback_interval"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	BatchSize        int32         `yaml:"batch_size"`
}

type DiscordConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns a config that runs a single in-memory process with auth disabled.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: 10 * time.Second,
		},
		Database: dbconfig.NewConfigFromEnv(),
		Storage:  StorageConfig{Driver: StorageMemory},
		Auth: AuthConfig{
			Disabled: true,
			TokenTTL: 24 * time.Hour,
		},
		Draft: DraftConfig{
			RecentPicks:        10,
			UpcomingSlots:      12,
			DraftablePositions: []string{"QB", "RB", "WR", "TE", "K", "DEF"},
			Scheduler: SchedulerConfig{
				Enabled:   true,
				BatchSize: 50,
				Workers:   4,
				MaxSleep:  30 * time.Second,
			},
		},
		Sleeper: SleeperConfig{
			BaseURL:    "https://api.sleeper.app",
			CatalogTTL: 6 * time.Hour,
			Timeout:    30 * time.Second,
		},
		NATS: NATSConfig{Stream: "DRAFT_EVENTS"},
		Outbox: OutboxConfig{
			Channel:          "draft_outbox_events",
			FallbackInterval: 10 * time.Second,
			PingInterval:     90 * time.Second,
			BatchSize:        100,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds the config from defaults, then the YAML file at path (if any), then the environment.
// A missing .env file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Storage.Driver = getEnv("STORAGE_DRIVER", c.Storage.Driver)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvAsInt("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Database = getEnv("DB_NAME", c.Database.Database)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)

	c.Auth.Secret = getEnv("JWT_SECRET", c.Auth.Secret)
	c.Auth.Disabled = getEnvAsBool("AUTH_DISABLED", c.Auth.Disabled)

	c.Sleeper.BaseURL = getEnv("SLEEPER_BASE_URL", c.Sleeper.BaseURL)
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.Discord.WebhookURL = getEnv("DISCORD_WEBHOOK_URL", c.Discord.WebhookURL)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
}

// Validate reports every problem in the config at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case StorageMemory, StoragePostgres:
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be %q or %q, got %q", StorageMemory, StoragePostgres, c.Storage.Driver))
	}
	if !c.Auth.Disabled && c.Auth.Secret == "" {
		errs = append(errs, errors.New("auth.secret (JWT_SECRET) is required unless auth.disabled"))
	}
	if c.Outbox.Enabled && c.Storage.Driver != StoragePostgres {
		errs = append(errs, errors.New("outbox.enabled requires storage.driver postgres"))
	}
	if c.Outbox.Enabled && c.NATS.URL == "" {
		errs = append(errs, errors.New("outbox.enabled requires nats.url"))
	}
	if c.Outbox.Enabled && (c.Outbox.FallbackInterval <= 0 || c.Outbox.PingInterval <= 0) {
		errs = append(errs, errors.New("outbox fallback_interval and ping_interval must be positive"))
	}
	if c.Draft.RecentPicks < 1 || c.Draft.UpcomingSlots < 1 {
		errs = append(errs, errors.New("draft.recent_picks and draft.upcoming_slots must be positive"))
	}
	if c.Draft.Scheduler.Enabled && (c.Draft.Scheduler.Workers < 1 || c.Draft.Scheduler.BatchSize < 1) {
		errs = append(errs, errors.New("draft.scheduler workers and batch_size must be positive"))
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

// SetupLogger configures the global zerolog logger.
func SetupLogger(c LogConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.Level))
	if err != nil || c.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
