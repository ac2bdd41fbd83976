package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultPath is the YAML file read by Load when it exists.
const DefaultPath = "config.yaml"

// Config holds all configuration for tabula.
// Configuration can come from a YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"5000"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// ShutdownTimeout bounds graceful shutdown of the HTTP server and the work queue.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"30s"`

	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Tasks    TasksConfig    `yaml:"tasks"`
	Plot     PlotConfig     `yaml:"plot"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"tabula"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"tabula"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	MaxIdleConns   int32  `yaml:"max_idle_conns" env:"PGMAX_IDLE_CONNS" env-default:"5"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// StorageConfig controls where uploaded and cleaned files are kept.
type StorageConfig struct {
	UploadDir string `yaml:"upload_dir" env:"UPLOAD_DIR" env-default:"uploads"`
	// MaxUploadBytes caps the size of a single upload request body.
	MaxUploadBytes int64 `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES" env-default:"16777216"`
}

// TasksConfig controls background task execution.
type TasksConfig struct {
	MaxAttempts   int           `yaml:"max_attempts" env:"TASK_MAX_ATTEMPTS" env-default:"3"`
	RetryDelay    time.Duration `yaml:"retry_delay" env:"TASK_RETRY_DELAY" env-default:"60s"`
	MaxConcurrent int           `yaml:"max_concurrent" env:"TASK_MAX_CONCURRENT" env-default:"2"`
	// Retention is how long finished tasks stay queryable.
	Retention time.Duration `yaml:"retention" env:"TASK_RETENTION" env-default:"1h"`
}

// PlotConfig sets the chart canvas. Sizes are in inches.
type PlotConfig struct {
	Width         float64 `yaml:"width" env:"PLOT_WIDTH" env-default:"6"`
	Height        float64 `yaml:"height" env:"PLOT_HEIGHT" env-default:"4"`
	HistogramBins int     `yaml:"histogram_bins" env:"PLOT_HISTOGRAM_BINS" env-default:"10"`
}

// Load reads configuration from path with environment variable overrides. When path does
// not exist only the environment and defaults are used.
// The version parameter is injected at build time and set on the returned Config.
func Load(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	case errors.Is(statErr, fs.ErrNotExist):
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to stat %s: %w", path, statErr)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks values that defaults cannot make safe.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Storage.UploadDir) == "" {
		errs = append(errs, errors.New("storage.upload_dir must not be empty"))
	}
	if c.Storage.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("storage.max_upload_bytes must be positive"))
	}
	if c.Tasks.MaxAttempts < 1 {
		errs = append(errs, errors.New("tasks.max_attempts must be at least 1"))
	}
	if c.Tasks.RetryDelay < 0 {
		errs = append(errs, errors.New("tasks.retry_delay must not be negative"))
	}
	if c.Tasks.MaxConcurrent < 1 {
		errs = append(errs, errors.New("tasks.max_concurrent must be at least 1"))
	}
	if c.Plot.Width <= 0 || c.Plot.Height <= 0 {
		errs = append(errs, errors.New("plot.width and plot.height must be positive"))
	}
	if c.Plot.HistogramBins < 1 {
		errs = append(errs, errors.New("plot.histogram_bins must be at least 1"))
	}
	return errors.Join(errs...)
}

// IsLocal reports whether the server runs in a developer environment.
func (c *Config) IsLocal() bool {
	return c.Env == "local" || c.Env == "dev"
}

// ListenAddr returns the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return c.BindAddr + ":" + c.Port
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
