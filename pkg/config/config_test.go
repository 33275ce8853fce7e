package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/prime-sieve/pkg/errors"
)

func TestLoad_DefaultValues(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "sieve.yaml")
	content := `
log:
  level: debug
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0644))

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, uint64(DefaultWindowSize), cfg.Sieve.WindowSize)
	assert.Equal(t, 0, cfg.Sieve.Workers)
	assert.Equal(t, 4096, cfg.Sieve.BatchSize)
	assert.Equal(t, 10*time.Second, cfg.Sieve.ShutdownTimeout)
	assert.Equal(t, "text", cfg.Output.Format)
	assert.Equal(t, "none", cfg.Output.Compression)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.False(t, cfg.Pprof.Enabled)
}

func TestLoad_CustomValues(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "sieve.yaml")
	content := `
sieve:
  window_size: 1000
  workers: 3
  batch_size: 16
  shutdown_timeout: 2s
output:
  format: json
  compression: zstd
  path: /tmp/primes.json.zst
database:
  enabled: true
  type: postgres
  host: db.example.com
  port: 5433
  database: sieve
  user: admin
  password: secret
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0644))

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, uint64(1000), cfg.Sieve.WindowSize)
	assert.Equal(t, 3, cfg.Sieve.Workers)
	assert.Equal(t, 16, cfg.Sieve.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Sieve.ShutdownTimeout)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, "zstd", cfg.Output.Compression)
	assert.Equal(t, "/tmp/primes.json.zst", cfg.Output.Path)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "sieve", cfg.Database.Database)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, uint64(DefaultWindowSize), cfg.Sieve.WindowSize)
}

func TestLoad_MalformedFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "sieve.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("sieve: [unclosed"), 0644))

	_, err := Load(configFile)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConfigError, apperrors.GetErrorCode(err))
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SIEVE_SIEVE_WORKERS", "7")
	t.Setenv("SIEVE_OUTPUT_FORMAT", "json")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Sieve.Workers)
	assert.Equal(t, "json", cfg.Output.Format)
}

func TestLoadFromReader(t *testing.T) {
	content := []byte(`
sieve:
  window_size: 300
output:
  compression: gzip
`)
	cfg, err := LoadFromReader("yaml", content)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), cfg.Sieve.WindowSize)
	assert.Equal(t, "gzip", cfg.Output.Compression)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "stderr", cfg.Log.Output)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "window too small",
			mutate:  func(c *Config) { c.Sieve.WindowSize = 10 },
			wantErr: true,
		},
		{
			name:    "negative workers",
			mutate:  func(c *Config) { c.Sieve.Workers = -1 },
			wantErr: true,
		},
		{
			name:    "zero batch",
			mutate:  func(c *Config) { c.Sieve.BatchSize = 0 },
			wantErr: true,
		},
		{
			name:    "unknown format",
			mutate:  func(c *Config) { c.Output.Format = "xml" },
			wantErr: true,
		},
		{
			name:    "unknown compression",
			mutate:  func(c *Config) { c.Output.Compression = "lz4" },
			wantErr: true,
		},
		{
			name: "unknown database type ignored when disabled",
			mutate: func(c *Config) {
				c.Database.Type = "oracle"
			},
			wantErr: false,
		},
		{
			name: "unknown database type",
			mutate: func(c *Config) {
				c.Database.Enabled = true
				c.Database.Type = "oracle"
			},
			wantErr: true,
		},
		{
			name: "sqlite without path",
			mutate: func(c *Config) {
				c.Database.Enabled = true
				c.Database.Path = ""
			},
			wantErr: true,
		},
		{
			name: "mysql without host",
			mutate: func(c *Config) {
				c.Database.Enabled = true
				c.Database.Type = "mysql"
				c.Database.Host = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperrors.CodeConfigError, apperrors.GetErrorCode(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_ShippedExample(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "sieve.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
