package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// envVars are the variables the tests touch. envconfig also falls back to
// the bare tag name, so those are cleared too.
var envVars = []string{
	"COT_CONFIG",
	"COT_SERVER_PORT", "PORT",
	"COT_SERVER_HOST", "HOST",
	"COT_SERVER_READ_TIMEOUT", "READ_TIMEOUT",
	"COT_LOGGING_LEVEL", "LEVEL",
	"COT_LOGGING_FORMAT", "FORMAT",
	"COT_PATHS_DATA_DIR", "DATA_DIR",
	"COT_INGEST_INSTRUMENTS", "INSTRUMENTS",
	"COT_INGEST_PARALLELISM", "PARALLELISM",
	"COT_INGEST_TOLERANCE", "TOLERANCE",
	"COT_INGEST_DATA_START_COLUMN", "DATA_START_COLUMN",
	"COT_INGEST_TIMEOUT", "TIMEOUT",
}

// clearEnv unsets envVars for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envVars {
		if val, ok := os.LookupEnv(key); ok {
			os.Unsetenv(key)
			t.Cleanup(func() { os.Setenv(key, val) })
		}
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFrom(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults with no file and no env",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, int64(DefaultMaxUploadBytes), cfg.Server.MaxUploadBytes)
				assert.True(t, cfg.Server.RateLimit.Enabled)

				assert.Equal(t, "info", cfg.Logging.Level)
				assert.Equal(t, "json", cfg.Logging.Format)
				assert.Equal(t, DefaultLogFile, cfg.Logging.FilePath)

				assert.Equal(t, "data", cfg.Paths.DataDir)
				assert.Equal(t, []string{"DEBM", "DEPM"}, cfg.Ingest.Instruments)
				assert.Equal(t, 4, cfg.Ingest.Parallelism)
				assert.Equal(t, 0.5, cfg.Ingest.Tolerance)
				assert.Equal(t, DefaultSheetName, cfg.Ingest.SheetName)
				assert.Equal(t, 2, cfg.Ingest.DataStartColumn)
				assert.Equal(t, AppName, cfg.Telemetry.ServiceName)
			},
		},
		{
			name: "file overrides defaults and keeps unset keys",
			file: `
server:
  port: 9090
ingest:
  instruments: [debm, F7BM]
  tolerance: 1.5
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, []string{"DEBM", "F7BM"}, cfg.Ingest.Instruments)
				assert.Equal(t, 1.5, cfg.Ingest.Tolerance)
				assert.Equal(t, 4, cfg.Ingest.Parallelism)
			},
		},
		{
			name: "env overrides file",
			file: `
server:
  port: 9090
logging:
  level: warn
`,
			env: map[string]string{
				"COT_SERVER_PORT":        "7070",
				"COT_INGEST_INSTRUMENTS": "DEBM,DEPM,F7BM",
				"COT_INGEST_TIMEOUT":     "30s",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7070, cfg.Server.Port)
				assert.Equal(t, "warn", cfg.Logging.Level)
				assert.Equal(t, []string{"DEBM", "DEPM", "F7BM"}, cfg.Ingest.Instruments)
				assert.Equal(t, 30*time.Second, cfg.Ingest.Timeout)
			},
		},
		{
			name:    "invalid port number",
			env:     map[string]string{"COT_SERVER_PORT": "99999"},
			wantErr: true,
		},
		{
			name:    "invalid log level",
			file:    "logging:\n  level: verbose\n",
			wantErr: true,
		},
		{
			name:    "invalid instrument code",
			env:     map[string]string{"COT_INGEST_INSTRUMENTS": "DEBM,DE-PM"},
			wantErr: true,
		},
		{
			name:    "no instruments",
			file:    "ingest:\n  instruments: []\n",
			wantErr: true,
		},
		{
			name:    "zero parallelism",
			env:     map[string]string{"COT_INGEST_PARALLELISM": "0"},
			wantErr: true,
		},
		{
			name:    "negative tolerance",
			env:     map[string]string{"COT_INGEST_TOLERANCE": "-1"},
			wantErr: true,
		},
		{
			name: "zero tolerance is kept",
			env:  map[string]string{"COT_INGEST_TOLERANCE": "0"},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Zero(t, cfg.Ingest.Tolerance)
			},
		},
		{
			name:    "data start column on a label column",
			env:     map[string]string{"COT_INGEST_DATA_START_COLUMN": "0"},
			wantErr: true,
		},
		{
			name:    "data start column on the position type column",
			file:    "ingest:\n  data_start_column: 1\n",
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			file:    "server: [port",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			path := ""
			if tt.file != "" {
				path = writeConfigFile(t, tt.file)
			}

			cfg, err := LoadFrom(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestLoadUsesConfigEnvVar(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, "paths:\n  data_dir: /srv/cot\n")
	t.Setenv("COT_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/srv/cot", cfg.Paths.DataDir)
}

func TestLoadFromMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateRateLimit(t *testing.T) {
	cfg := Default()
	cfg.Server.RateLimit.RPS = 0
	assert.Error(t, cfg.Validate())

	cfg.Server.RateLimit.Enabled = false
	assert.NoError(t, cfg.Validate())
}

func TestServerAddress(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 8081}
	assert.Equal(t, "127.0.0.1:8081", s.Address())
	assert.Equal(t, ":8080", Default().Server.Address())
}
