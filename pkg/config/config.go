// Package config provides configuration management for the prime sieve.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "github.com/prime-sieve/pkg/errors"
)

// EnvPrefix is the prefix of environment overrides, e.g. SIEVE_SIEVE_WORKERS.
const EnvPrefix = "SIEVE"

// DefaultWindowSize is the largest bound sieved in a single window. Above it
// the segmented path slides windows of this width.
const DefaultWindowSize = 7864320

// Config holds all configuration for the application.
type Config struct {
	Sieve    SieveConfig    `mapstructure:"sieve"`
	Output   OutputConfig   `mapstructure:"output"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Pprof    PprofConfig    `mapstructure:"pprof"`
}

// SieveConfig tunes the engine.
type SieveConfig struct {
	WindowSize      uint64        `mapstructure:"window_size"`
	Workers         int           `mapstructure:"workers"`    // 0 = runtime.NumCPU()
	BatchSize       int           `mapstructure:"batch_size"` // tasks dispatched between forced barriers
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// OutputConfig controls how results are written.
type OutputConfig struct {
	Format      string `mapstructure:"format"`      // text or json
	Compression string `mapstructure:"compression"` // none, gzip or zstd
	Path        string `mapstructure:"path"`        // empty = stdout
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"` // stderr, stdout, discard or a file path
}

// DatabaseConfig holds run-history database configuration.
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Type     string `mapstructure:"type"` // sqlite, postgres or mysql
	Path     string `mapstructure:"path"` // sqlite file
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	MaxConns int    `mapstructure:"max_conns"`
}

// PprofConfig holds runtime profiling configuration.
type PprofConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Dir      string `mapstructure:"dir"`
	Profiles string `mapstructure:"profiles"` // comma-separated profile types
}

// Load reads configuration from the specified file path. An empty path
// searches the standard locations; a missing file falls back to defaults.
func Load(configPath string) (*Config, error) {
	v := newViper()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("sieve")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/prime-sieve")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to read config file", err)
		}
	}

	return decode(v)
}

// LoadFromReader loads configuration from an in-memory document (useful for testing).
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := newViper()
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to read config", err)
	}
	return decode(v)
}

// Default returns the configuration used when no file or environment is set.
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(err)
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to unmarshal config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Sieve defaults
	v.SetDefault("sieve.window_size", DefaultWindowSize)
	v.SetDefault("sieve.workers", 0)
	v.SetDefault("sieve.batch_size", 4096)
	v.SetDefault("sieve.shutdown_timeout", 10*time.Second)

	// Output defaults
	v.SetDefault("output.format", "text")
	v.SetDefault("output.compression", "none")
	v.SetDefault("output.path", "")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stderr")

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.path", "./sieve-history.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.max_conns", 10)

	// Pprof defaults
	v.SetDefault("pprof.enabled", false)
	v.SetDefault("pprof.dir", "./pprof")
	v.SetDefault("pprof.profiles", "cpu,heap")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Sieve.WindowSize < 64 {
		return configError("sieve.window_size must be at least 64, got %d", c.Sieve.WindowSize)
	}
	if c.Sieve.Workers < 0 {
		return configError("sieve.workers must not be negative")
	}
	if c.Sieve.BatchSize < 1 {
		return configError("sieve.batch_size must be at least 1")
	}

	switch c.Output.Format {
	case "text", "json":
	default:
		return configError("unsupported output format: %s", c.Output.Format)
	}
	switch c.Output.Compression {
	case "none", "gzip", "zstd":
	default:
		return configError("unsupported output compression: %s", c.Output.Compression)
	}

	if c.Database.Enabled {
		switch c.Database.Type {
		case "sqlite":
			if c.Database.Path == "" {
				return configError("database.path is required for sqlite")
			}
		case "postgres", "mysql":
			if c.Database.Host == "" {
				return configError("database host is required")
			}
		default:
			return configError("unsupported database type: %s", c.Database.Type)
		}
	}

	return nil
}

func configError(format string, args ...interface{}) error {
	return apperrors.New(apperrors.CodeConfigError, fmt.Sprintf(format, args...))
}
