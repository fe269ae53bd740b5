package config

import (
	"log/slog"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on hosts without a zoneinfo database

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// -----------------------------------------------------------------------------
// Every key has a default so the server starts with an empty environment.
// A .env file in the working directory, if present, is loaded first; real
// environment variables win over it.
// -----------------------------------------------------------------------------

type Config struct {
	Server  ServerConfig
	DB      DBConfig
	CORS    CORSConfig
	Log     LogConfig
	Metrics MetricsConfig
	Admin   AdminConfig
	Expiry  ExpiryConfig
	Demo    DemoConfig
}

type ServerConfig struct {
	Port     string `envconfig:"PORT" default:"8080"`
	TimeZone string `envconfig:"TIMEZONE" default:"Asia/Seoul"`
}

type DBConfig struct {
	Path string `envconfig:"DB_PATH" default:"gym.db"`
}

type CORSConfig struct {
	AllowOrigins []string      `envconfig:"CORS_ALLOW_ORIGINS" default:"*"`
	AllowMethods []string      `envconfig:"CORS_ALLOW_METHODS" default:"GET,POST,OPTIONS"`
	AllowHeaders []string      `envconfig:"CORS_ALLOW_HEADERS" default:"Accept,Content-Type,X-User-ID"`
	MaxAge       time.Duration `envconfig:"CORS_MAX_AGE" default:"5m"`
}

type LogConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
}

type MetricsConfig struct {
	Enabled bool `envconfig:"METRICS_ENABLED" default:"true"`
}

type AdminConfig struct {
	Username string `envconfig:"ADMIN_USERNAME" default:"admin"`
}

type ExpiryConfig struct {
	// SweepInterval is how often every user's lots are swept in the
	// background. 0 leaves expiry to the sweep that runs on every read.
	SweepInterval time.Duration `envconfig:"EXPIRY_SWEEP_INTERVAL" default:"0"`
}

type DemoConfig struct {
	Enabled bool `envconfig:"DEMO_SCENARIOS" default:"false"`
}

// Location resolves the configured timezone.
func (c ServerConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, errors.Wrapf(err, "load timezone %q", c.TimeZone)
	}
	return loc, nil
}

// SlogLevel maps LOG_LEVEL to a slog level. Unknown values mean info.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, errors.Wrap(err, "load .env")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, errors.Wrap(err, "process env config")
	}
	return cfg, nil
}

func NewTestConfig() Config {
	return Config{
		Server: ServerConfig{Port: "8889", TimeZone: "Asia/Seoul"},
		DB:     DBConfig{Path: ":memory:"},
		CORS: CORSConfig{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Accept", "Content-Type", "X-User-ID"},
			MaxAge:       5 * time.Minute,
		},
		Log:     LogConfig{Level: "error"},
		Metrics: MetricsConfig{Enabled: false},
		Admin:   AdminConfig{Username: "admin"},
		Expiry:  ExpiryConfig{SweepInterval: 0},
		Demo:    DemoConfig{Enabled: true},
	}
}
