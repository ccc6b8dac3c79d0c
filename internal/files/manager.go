package files

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"eexcot/internal/config"
	"eexcot/internal/infrastructure"
)

// Manager keeps the downloads directory: every ingested workbook is archived
// there under its canonical report name
type Manager struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewManager creates a new file manager instance
func NewManager(paths *config.Paths, logger *slog.Logger) *Manager {
	return &Manager{
		paths:  paths,
		logger: infrastructure.WithComponent(logger, "files"),
	}
}

// ArchiveReport stores a workbook in the downloads directory and returns its
// path. An existing archive with the same name is replaced.
func (m *Manager) ArchiveReport(r io.Reader, instrument string, reportDate, published time.Time) (string, error) {
	name := ReportFilename(instrument, reportDate, published)
	dst := m.paths.GetDownloadPath(name)

	n, err := writeAtomic(dst, r)
	if err != nil {
		return "", fmt.Errorf("failed to archive %s: %w", name, err)
	}

	m.logger.Info("Archived report",
		slog.String("instrument", instrument),
		slog.String("file", name),
		slog.Int64("size_bytes", n))
	return dst, nil
}

// writeAtomic streams r to a temp file beside dst and renames it into place
func writeAtomic(dst string, r io.Reader) (int64, error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	return n, os.Rename(tmp.Name(), dst)
}
