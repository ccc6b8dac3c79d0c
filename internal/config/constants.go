package config

import (
	"time"

	"eexcot/pkg/contracts"
)

// Application constants
const (
	AppName    = "eexcot"
	AppVersion = contracts.Version

	// EnvPrefix namespaces every environment variable, e.g. COT_SERVER_PORT
	EnvPrefix = "COT"

	// File Paths (relative to the working directory)
	DefaultDataDir  = "data"
	DefaultLogsDir  = "logs"
	DefaultLogFile  = "logs/cot.log"
	DownloadsSubdir = "downloads"
	HistorySubdir   = "history"
	ReportsSubdir   = "reports"

	// Workbook layout
	DefaultSheetName = "Weekly_Report"

	// Rate Limiting
	DefaultRateLimit = 5 // snapshot uploads per second
	DefaultBurstSize = 10

	// Uploads
	DefaultMaxUploadBytes = 16 << 20

	// Operation Timeouts
	DefaultIngestTimeout = 2 * time.Minute

	// API Endpoints
	APIBasePath     = "/api"
	HealthEndpoint  = "/healthz"
	MetricsEndpoint = "/metrics"
)
