package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/alkime/rapidvoice/internal/storage"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvProduction represents the production environment.
	EnvProduction = "production"
	// EnvDevelopment is the default environment.
	EnvDevelopment = "development"

	dbFileName = "messages.sqlite"
)

// Config holds all application configuration.
type Config struct {
	Env      string `envconfig:"ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// HTTP control surface
	Port       string `envconfig:"PORT" default:"8080"`
	HSTSMaxAge int    `envconfig:"HSTS_MAX_AGE" default:"31536000"`
	CSPMode    string `envconfig:"CSP_MODE" default:"relaxed"`

	// Voice pipeline
	CacheDir     string        `envconfig:"VOICE_CACHE_DIR"`
	DBPath       string        `envconfig:"VOICE_DB_PATH"`
	TickInterval time.Duration `envconfig:"VOICE_TICK_INTERVAL" default:"100ms"`
	SampleRate   int           `envconfig:"VOICE_SAMPLE_RATE" default:"16000"`
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("error loading .env file", "error", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) resolvePaths() error {
	if c.CacheDir == "" {
		root, err := storage.DefaultRoot()
		if err != nil {
			return err
		}
		c.CacheDir = root
	}

	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.CacheDir, dbFileName)
	}

	return nil
}

// Validate reports configuration values that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if c.TickInterval <= 0 {
		errs = append(errs, errors.New("VOICE_TICK_INTERVAL must be positive"))
	}
	if c.SampleRate <= 0 {
		errs = append(errs, errors.New("VOICE_SAMPLE_RATE must be positive"))
	}
	if c.CSPMode != "strict" && c.CSPMode != "relaxed" {
		errs = append(errs, fmt.Errorf("CSP_MODE must be strict or relaxed, got %q", c.CSPMode))
	}

	return errors.Join(errs...)
}

// IsProduction reports whether ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// BuildCSP constructs the Content Security Policy for mode. The control
// surface serves JSON only, so even the relaxed policy allows no scripts
// from elsewhere.
func BuildCSP(mode string) string {
	if mode == "strict" {
		return "default-src 'none'; " +
			"frame-ancestors 'none'; " +
			"base-uri 'none'; " +
			"form-action 'none'"
	}

	return "default-src 'self'; " +
		"style-src 'self' 'unsafe-inline'; " +
		"img-src 'self' data:"
}
