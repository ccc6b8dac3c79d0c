package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"eexcot/internal/config"
	"eexcot/internal/history"
	"eexcot/internal/infrastructure"
	"eexcot/pkg/contracts"
)

// HealthService provides health check functionality
type HealthService struct {
	version   string
	buildTime string
	paths     *config.Paths
	store     history.Store
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// SystemStats summarizes what is stored on disk
type SystemStats struct {
	UptimeSeconds   float64 `json:"uptime_seconds"`
	Instruments     int     `json:"instruments"`
	ArchivedReports int     `json:"archived_reports"`
	HistoryBytes    int64   `json:"history_bytes"`
	GoVersion       string  `json:"go_version"`
	OS              string  `json:"os"`
	Arch            string  `json:"arch"`
}

// NewHealthService creates a health service. paths may be nil when the store
// is not file backed.
func NewHealthService(version, buildTime string, paths *config.Paths, store history.Store, logger *slog.Logger) *HealthService {
	logger = infrastructure.WithComponent(logger, "health_service")
	logger.Debug("HealthService initialized", slog.String("version", version))

	return &HealthService{
		version:   version,
		buildTime: buildTime,
		paths:     paths,
		store:     store,
		startTime: time.Now(),
		logger:    logger,
	}
}

// HealthCheck reports ok when the store answers and every directory exists
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services: map[string]ServiceHealth{
			"store":       hs.checkStore(ctx),
			"directories": hs.checkDirectories(),
		},
	}
	for _, sh := range status.Services {
		if sh.Status != "ok" {
			status.Status = "degraded"
			break
		}
	}

	if status.Status != "ok" {
		hs.logger.WarnContext(ctx, "health check degraded", slog.Any("services", status.Services))
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	result := map[string]interface{}{
		"version":    hs.version,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"start_time": hs.startTime.Format(time.RFC3339),
	}
	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	info := contracts.GetVersionInfo()
	result["history_format"] = info.HistoryFormat
	result["api_version"] = info.APIVersion
	if info.GitCommit != "" {
		result["git_commit"] = info.GitCommit
	}
	return result
}

// SystemStats counts stored instruments and the files behind them
func (hs *HealthService) SystemStats(ctx context.Context) (SystemStats, error) {
	stats := SystemStats{
		UptimeSeconds: time.Since(hs.startTime).Seconds(),
		GoVersion:     runtime.Version(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
	}

	codes, err := hs.store.Instruments(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list instruments: %w", err)
	}
	stats.Instruments = len(codes)

	if hs.paths != nil {
		stats.ArchivedReports, _ = dirStats(hs.paths.DownloadsDir)
		_, stats.HistoryBytes = dirStats(hs.paths.HistoryDir)
	}
	return stats, nil
}

func (hs *HealthService) checkStore(ctx context.Context) ServiceHealth {
	if hs.store == nil {
		return ServiceHealth{Status: "down", Message: "history store not configured"}
	}
	if _, err := hs.store.Instruments(ctx); err != nil {
		return ServiceHealth{Status: "down", Message: fmt.Sprintf("history store error: %v", err)}
	}
	return ServiceHealth{Status: "ok"}
}

func (hs *HealthService) checkDirectories() ServiceHealth {
	if hs.paths == nil {
		return ServiceHealth{Status: "ok", Message: "in-memory history"}
	}
	for _, dir := range []string{hs.paths.HistoryDir, hs.paths.DownloadsDir, hs.paths.ReportsDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return ServiceHealth{Status: "down", Message: fmt.Sprintf("directory not found: %s", dir)}
		}
	}
	return ServiceHealth{Status: "ok"}
}

// dirStats counts regular files under dir and their total size
func dirStats(dir string) (int, int64) {
	var count int
	var size int64
	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			count++
			size += info.Size()
		}
		return nil
	})
	return count, size
}
