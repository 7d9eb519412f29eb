package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Transport names accepted by Server.Transport.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config holds all configuration for datascope-engine.
// Configuration can come from a YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values. Secrets (the database
// password) must only come from environment variables.
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Target database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Analysis tuning knobs
	Analysis AnalysisConfig `yaml:"analysis"`

	// Env selects logger behavior ("local" uses a development logger).
	Env string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`

	// Version is set at load time, not from config.
	Version string `yaml:"-"`
}

// ServerConfig holds transport settings.
type ServerConfig struct {
	// Transport selects how tool calls reach the engine: "stdio" or "http".
	Transport string `yaml:"transport" env:"TRANSPORT" env-default:"stdio"`
	BindAddr  string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port      string `yaml:"port" env:"PORT" env-default:"8090"`
}

// DatabaseConfig holds PostgreSQL connection configuration for the analyzed
// database. Pool sizing is fixed at construction; the pool never grows past
// MaxConnections.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"postgres"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"postgres"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MinConnections int32  `yaml:"min_connections" env:"PGMIN_CONNECTIONS" env-default:"1"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
}

// AnalysisConfig holds tuning parameters for the analytical tools.
type AnalysisConfig struct {
	// SampleLimit is the default row limit for get_table_sample.
	SampleLimit int `yaml:"sample_limit" env:"ANALYSIS_SAMPLE_LIMIT" env-default:"10"`
	// QueryRowCap bounds the rows returned by run_query.
	QueryRowCap int `yaml:"query_row_cap" env:"ANALYSIS_QUERY_ROW_CAP" env-default:"1000"`
	// ZScoreThreshold is the |z| cutoff for z-score anomaly detection.
	ZScoreThreshold float64 `yaml:"zscore_threshold" env:"ANALYSIS_ZSCORE_THRESHOLD" env-default:"3.0"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// A missing config.yaml is not an error; the engine then runs on environment
// variables and defaults alone, which is the common stdio deployment.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Transport != TransportStdio && c.Server.Transport != TransportHTTP {
		return fmt.Errorf("unknown transport %q (want %q or %q)", c.Server.Transport, TransportStdio, TransportHTTP)
	}
	if c.Database.MinConnections < 1 {
		return fmt.Errorf("min_connections must be at least 1, got %d", c.Database.MinConnections)
	}
	if c.Database.MaxConnections < c.Database.MinConnections {
		return fmt.Errorf("max_connections (%d) must be >= min_connections (%d)",
			c.Database.MaxConnections, c.Database.MinConnections)
	}
	if c.Analysis.ZScoreThreshold <= 0 {
		return fmt.Errorf("zscore_threshold must be positive, got %g", c.Analysis.ZScoreThreshold)
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
