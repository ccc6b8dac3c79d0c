// Package config provides centralized configuration management for the
// Commitment of Traders history engine. It loads configuration from multiple
// sources, validates it, and resolves the directory layout.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//  1. Environment variables (highest priority)
//  2. YAML configuration file
//  3. Default values (lowest priority)
//
// The YAML file is read from $COT_CONFIG when set, otherwise from
// config.yaml or configs/config.yaml in the working directory.
//
// # Environment Variables
//
// All environment variables follow the pattern COT_<SECTION>_<FIELD>:
//
//	COT_SERVER_PORT=8080
//	COT_LOGGING_LEVEL=debug
//	COT_PATHS_DATA_DIR=/var/lib/cot
//	COT_INGEST_INSTRUMENTS=DEBM,DEPM,F7BM
//	COT_INGEST_TOLERANCE=0.5
//
// # Path Management
//
// Paths resolves every directory once:
//
//	paths, err := cfg.ResolvePaths()
//	historyFile := paths.GetHistoryPath("DEBM_history.csv")
//	report := paths.GetReportPath("DEBM_report.xlsx")
//
// # Validation
//
// Struct tags are checked with go-playground/validator. Instrument codes use
// the custom "instrument" tag registered by the validation package.
//
// # Testing
//
// Use Default() for a configuration that needs no environment or files, or
// LoadFrom with a temporary YAML file.
package config
