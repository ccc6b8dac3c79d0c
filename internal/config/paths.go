package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains all the application paths
// This is the single source of truth for ALL file paths in the application
type Paths struct {
	DataDir      string
	DownloadsDir string // source workbooks, WPR_<date>_<CODE>_COMB_<ts>.xlsx
	HistoryDir   string // <CODE>_history.csv and <CODE>_revisions.csv
	ReportsDir   string // exported CSV and XLSX reports
	LogsDir      string
}

// NewPaths resolves the configured directories to absolute paths.
//
//	data/
//	  ├── downloads/
//	  ├── history/
//	  └── reports/
//	logs/
func NewPaths(cfg PathsConfig) (*Paths, error) {
	dataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory %q: %w", cfg.DataDir, err)
	}
	logsDir, err := filepath.Abs(cfg.LogsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve logs directory %q: %w", cfg.LogsDir, err)
	}

	historyDir := filepath.Join(dataDir, HistorySubdir)
	if cfg.HistoryDir != "" {
		if historyDir, err = filepath.Abs(cfg.HistoryDir); err != nil {
			return nil, fmt.Errorf("failed to resolve history directory %q: %w", cfg.HistoryDir, err)
		}
	}

	return &Paths{
		DataDir:      dataDir,
		DownloadsDir: filepath.Join(dataDir, DownloadsSubdir),
		HistoryDir:   historyDir,
		ReportsDir:   filepath.Join(dataDir, ReportsSubdir),
		LogsDir:      logsDir,
	}, nil
}

// ResolvePaths resolves the configured directories
func (c *Config) ResolvePaths() (*Paths, error) {
	return NewPaths(c.Paths)
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.DataDir,
		p.DownloadsDir,
		p.HistoryDir,
		p.ReportsDir,
		p.LogsDir,
	}

	logger := slog.Default()
	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		logger.Debug("Ensured directory exists",
			slog.String("directory", dir))
	}
	return nil
}

// GetDownloadPath returns the path for a downloaded source workbook
func (p *Paths) GetDownloadPath(filename string) string {
	return filepath.Join(p.DownloadsDir, filename)
}

// GetHistoryPath returns the path for a history store file
func (p *Paths) GetHistoryPath(filename string) string {
	return filepath.Join(p.HistoryDir, filename)
}

// GetReportPath returns the path for a report file
func (p *Paths) GetReportPath(filename string) string {
	return filepath.Join(p.ReportsDir, filename)
}

// GetLogPath returns the path for a log file
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// LogPathResolution logs the resolved directories
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("data", p.DataDir),
			slog.String("downloads", p.DownloadsDir),
			slog.String("history", p.HistoryDir),
			slog.String("reports", p.ReportsDir),
			slog.String("logs", p.LogsDir),
		))
}
