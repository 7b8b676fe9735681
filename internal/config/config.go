package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"schedule-tracker/internal/telemetry"
	"schedule-tracker/pkg/snapshot"
)

type StorageConfig struct {
	Backend string `yaml:"backend"` // memory, csv, postgres, sqlite
	Path    string `yaml:"path"`    // csv file or sqlite database
	DSN     string `yaml:"dsn"`     // postgres only
}

type Config struct {
	BindAddr               string `yaml:"bind_addr"`
	LogLevel               string `yaml:"log_level"`
	LogFormat              string `yaml:"log_format"` // json or text
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`

	Storage   StorageConfig    `yaml:"storage"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// ShutdownTimeout is the grace period for in-flight requests on exit.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// Snapshot converts the storage section for snapshot.Open.
func (c Config) Snapshot() snapshot.Config {
	return snapshot.Config{Backend: c.Storage.Backend, Path: c.Storage.Path, DSN: c.Storage.DSN}
}

func defaultConfig() Config {
	return Config{
		BindAddr:               ":8080",
		LogLevel:               "info",
		LogFormat:              "json",
		ShutdownTimeoutSeconds: 10,
		Storage: StorageConfig{
			Backend: snapshot.BackendCSV,
			Path:    "tasks.csv",
		},
		Telemetry: telemetry.Config{
			Exporter:    "none",
			ServiceName: "schedule-tracker",
			SampleRate:  1.0,
		},
	}
}

// Load builds the configuration from defaults, an optional .env file, the
// YAML file at path (skipped when empty or missing) and TRACKER_* variables,
// in that order.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	// .env only fills variables that are not already set
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("read .env: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read %s: %w", path, err)
		case len(data) > 0:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	normalize(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if raw := os.Getenv("TRACKER_BIND_ADDR"); raw != "" {
		cfg.BindAddr = raw
	}
	if raw := os.Getenv("PORT"); raw != "" && os.Getenv("TRACKER_BIND_ADDR") == "" {
		cfg.BindAddr = ":" + raw
	}
	if raw := os.Getenv("TRACKER_LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}
	if raw := os.Getenv("TRACKER_LOG_FORMAT"); raw != "" {
		cfg.LogFormat = raw
	}
	if raw := os.Getenv("TRACKER_SHUTDOWN_TIMEOUT_SECONDS"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			cfg.ShutdownTimeoutSeconds = v
		}
	}
	if raw := os.Getenv("TRACKER_STORAGE_BACKEND"); raw != "" {
		cfg.Storage.Backend = raw
	}
	if raw := os.Getenv("TRACKER_STORAGE_PATH"); raw != "" {
		cfg.Storage.Path = raw
	}
	if raw := os.Getenv("TRACKER_STORAGE_DSN"); raw != "" {
		cfg.Storage.DSN = raw
	} else if raw := os.Getenv("DATABASE_URL"); raw != "" && cfg.Storage.DSN == "" {
		cfg.Storage.DSN = raw
	}
	if raw := os.Getenv("TRACKER_TELEMETRY_ENABLED"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			cfg.Telemetry.Enabled = v
		}
	}
	if raw := os.Getenv("TRACKER_TELEMETRY_EXPORTER"); raw != "" {
		cfg.Telemetry.Exporter = raw
	}
	if raw := os.Getenv("TRACKER_TELEMETRY_ENDPOINT"); raw != "" {
		cfg.Telemetry.Endpoint = raw
	}
}

func normalize(cfg *Config) {
	if cfg.BindAddr == "" {
		cfg.BindAddr = ":8080"
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}
	if cfg.ShutdownTimeoutSeconds <= 0 {
		cfg.ShutdownTimeoutSeconds = 10
	}
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = snapshot.BackendMemory
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "schedule-tracker"
	}
	if cfg.Telemetry.SampleRate <= 0 || cfg.Telemetry.SampleRate > 1 {
		cfg.Telemetry.SampleRate = 1.0
	}
}

func validate(cfg Config) error {
	switch cfg.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("log_format must be json or text, got %q", cfg.LogFormat)
	}
	switch cfg.Storage.Backend {
	case snapshot.BackendMemory:
	case snapshot.BackendCSV, snapshot.BackendSQLite:
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the %s backend", cfg.Storage.Backend)
		}
	case snapshot.BackendPostgres:
		if cfg.Storage.DSN == "" {
			return errors.New("storage.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", cfg.Storage.Backend)
	}
	return nil
}
