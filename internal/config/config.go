package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"eexcot/internal/validation"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Ingest    IngestConfig    `yaml:"ingest" envconfig:"INGEST"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string          `yaml:"host" envconfig:"HOST"`
	Port            int             `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" validate:"gt=0"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	MaxUploadBytes  int64           `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" validate:"gt=0"`
	AllowedOrigins  []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// Address returns the listen address
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RateLimitConfig contains rate limiting configuration for snapshot uploads
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"gte=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"gte=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	// FilePath is placed inside the logs directory when relative
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// PathsConfig contains file system paths configuration. Relative paths are
// resolved against the working directory.
type PathsConfig struct {
	DataDir string `yaml:"data_dir" envconfig:"DATA_DIR" validate:"required"`
	LogsDir string `yaml:"logs_dir" envconfig:"LOGS_DIR" validate:"required"`
	// HistoryDir overrides <data_dir>/history
	HistoryDir string `yaml:"history_dir" envconfig:"HISTORY_DIR"`
}

// IngestConfig controls snapshot parsing and the batch pipeline
type IngestConfig struct {
	Instruments []string `yaml:"instruments" envconfig:"INSTRUMENTS" validate:"min=1,dive,instrument"`
	Parallelism int      `yaml:"parallelism" envconfig:"PARALLELISM" validate:"min=1,max=64"`
	// Tolerance is the accepted |total - (risk_reducing + other)|; 0 is exact
	Tolerance float64 `yaml:"tolerance" envconfig:"TOLERANCE" validate:"gte=0"`
	SheetName string  `yaml:"sheet_name" envconfig:"SHEET_NAME"`
	// DataStartColumn is 0-based and must lie right of the two label columns
	DataStartColumn int           `yaml:"data_start_column" envconfig:"DATA_START_COLUMN" validate:"min=2"`
	Timeout         time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
}

// TelemetryConfig controls OpenTelemetry tracing and metrics
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME" validate:"required"`
	MetricsEnabled bool   `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
	TraceStdout    bool   `yaml:"trace_stdout" envconfig:"TRACE_STDOUT"`
}

// Load builds the configuration from defaults, the optional YAML file and
// COT_* environment variables, in increasing order of precedence. The file
// is taken from COT_CONFIG when set, otherwise from the usual locations.
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom is Load with an explicit config file. An empty path skips the file.
func LoadFrom(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Environment variables override file values; unset variables leave
	// the current value untouched
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg; keys absent from the file
// keep their current value
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%s: %w", filePath, err)
	}
	return nil
}

func (c *Config) normalize() {
	for i, code := range c.Ingest.Instruments {
		c.Ingest.Instruments[i] = validation.NormalizeInstrument(code)
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = DefaultLogFile
	}
}

// Validate checks the configuration against its struct tags
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return err
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RPS <= 0 {
		return fmt.Errorf("rate limit enabled with non-positive rps %v", c.Server.RateLimit.RPS)
	}
	return nil
}

// getConfigFilePath returns the path to the config file, or "" when none exists
func getConfigFilePath() string {
	if path := os.Getenv(EnvPrefix + "_CONFIG"); path != "" {
		return path
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxUploadBytes:  DefaultMaxUploadBytes,
			AllowedOrigins:  []string{"http://localhost:8080"},
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     DefaultRateLimit,
				Burst:   DefaultBurstSize,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: DefaultLogFile,
		},
		Paths: PathsConfig{
			DataDir: DefaultDataDir,
			LogsDir: DefaultLogsDir,
		},
		Ingest: IngestConfig{
			Instruments:     []string{"DEBM", "DEPM"},
			Parallelism:     4,
			Tolerance:       0.5,
			SheetName:       DefaultSheetName,
			DataStartColumn: 2,
			Timeout:         DefaultIngestTimeout,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    AppName,
			MetricsEnabled: true,
		},
	}
}
