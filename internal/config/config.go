package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation error.
var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Baseline   BaselineConfig   `yaml:"baseline"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
	Plot       PlotConfig       `yaml:"plot"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Environment    string   `yaml:"environment"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type BaselineConfig struct {
	WindowSize int     `yaml:"window_size"`
	Threshold  float64 `yaml:"threshold"`
	// Timezone is the IANA zone samples are bucketed in.
	Timezone string `yaml:"timezone"`
}

type EvaluationConfig struct {
	Step float64 `yaml:"step"`
}

type AlertsConfig struct {
	// Recent is how many alerting checks the API keeps.
	Recent int `yaml:"recent"`
}

type StorageConfig struct {
	Path      string        `yaml:"path"`
	Retention time.Duration `yaml:"retention"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // json, console
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"` // megabytes
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"` // days
	Compress   bool   `yaml:"compress"`
}

type PlotConfig struct {
	Output string `yaml:"output"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func LoadFromEnv() (*Config, error) {
	cfg := &Config{}
	setDefaults(cfg)

	// Override from environment
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("%w: PORT %q: %w", ErrInvalidConfig, port, err)
		}
		cfg.Server.Port = p
	}
	if window := os.Getenv("BASEWATCH_WINDOW_SIZE"); window != "" {
		w, err := strconv.Atoi(window)
		if err != nil {
			return nil, fmt.Errorf("%w: BASEWATCH_WINDOW_SIZE %q: %w", ErrInvalidConfig, window, err)
		}
		cfg.Baseline.WindowSize = w
	}
	if tz := os.Getenv("BASEWATCH_TIMEZONE"); tz != "" {
		cfg.Baseline.Timezone = tz
	}
	if dbPath := os.Getenv("BASEWATCH_DB"); dbPath != "" {
		cfg.Storage.Path = dbPath
	}
	if level := os.Getenv("BASEWATCH_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3002
	}
	if cfg.Server.Environment == "" {
		cfg.Server.Environment = "development"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"*"}
	}
	if cfg.Baseline.WindowSize == 0 {
		cfg.Baseline.WindowSize = 3
	}
	if cfg.Baseline.Threshold == 0 {
		cfg.Baseline.Threshold = 0.99
	}
	if cfg.Baseline.Timezone == "" {
		cfg.Baseline.Timezone = "UTC"
	}
	if cfg.Evaluation.Step == 0 {
		cfg.Evaluation.Step = 0.001
	}
	if cfg.Alerts.Recent == 0 {
		cfg.Alerts.Recent = 100
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "./data/samples.db"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
	if cfg.Logging.MaxSize == 0 {
		cfg.Logging.MaxSize = 100
	}
	if cfg.Logging.MaxBackups == 0 {
		cfg.Logging.MaxBackups = 3
	}
	if cfg.Logging.MaxAge == 0 {
		cfg.Logging.MaxAge = 28
	}
	if cfg.Plot.Output == "" {
		cfg.Plot.Output = "basewatch.html"
	}
}

// Validate checks value ranges that defaults cannot fix.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.Baseline.WindowSize <= 0 {
		return fmt.Errorf("%w: baseline.window_size must be positive, got %d", ErrInvalidConfig, c.Baseline.WindowSize)
	}
	if c.Baseline.Threshold < 0 || c.Baseline.Threshold > 1 {
		return fmt.Errorf("%w: baseline.threshold must be in [0, 1], got %v", ErrInvalidConfig, c.Baseline.Threshold)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Evaluation.Step <= 0 || c.Evaluation.Step > 1 {
		return fmt.Errorf("%w: evaluation.step must be in (0, 1], got %v", ErrInvalidConfig, c.Evaluation.Step)
	}
	if c.Alerts.Recent < 0 {
		return fmt.Errorf("%w: alerts.recent must not be negative, got %d", ErrInvalidConfig, c.Alerts.Recent)
	}
	if c.Storage.Retention < 0 {
		return fmt.Errorf("%w: storage.retention must not be negative, got %s", ErrInvalidConfig, c.Storage.Retention)
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("%w: logging.format must be json or console, got %q", ErrInvalidConfig, c.Logging.Format)
	}

	return nil
}

// Location resolves Baseline.Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Baseline.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: baseline.timezone %q: %w", ErrInvalidConfig, c.Baseline.Timezone, err)
	}

	return loc, nil
}
