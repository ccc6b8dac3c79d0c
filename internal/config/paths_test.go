package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPaths(t *testing.T) {
	t.Run("absolute data dir", func(t *testing.T) {
		root := t.TempDir()
		paths, err := NewPaths(PathsConfig{DataDir: filepath.Join(root, "data"), LogsDir: filepath.Join(root, "logs")})
		require.NoError(t, err)

		assert.Equal(t, filepath.Join(root, "data", "downloads"), paths.DownloadsDir)
		assert.Equal(t, filepath.Join(root, "data", "history"), paths.HistoryDir)
		assert.Equal(t, filepath.Join(root, "data", "reports"), paths.ReportsDir)
		assert.Equal(t, filepath.Join(root, "logs"), paths.LogsDir)
	})

	t.Run("relative paths resolve against working directory", func(t *testing.T) {
		paths, err := NewPaths(PathsConfig{DataDir: "data", LogsDir: "logs"})
		require.NoError(t, err)

		wd, err := os.Getwd()
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(paths.DataDir))
		assert.Equal(t, filepath.Join(wd, "data"), paths.DataDir)
		assert.Equal(t, filepath.Join(wd, "logs"), paths.LogsDir)
	})

	t.Run("history override", func(t *testing.T) {
		root := t.TempDir()
		paths, err := NewPaths(PathsConfig{
			DataDir:    filepath.Join(root, "data"),
			LogsDir:    filepath.Join(root, "logs"),
			HistoryDir: filepath.Join(root, "archive"),
		})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "archive"), paths.HistoryDir)
		assert.Equal(t, filepath.Join(root, "data", "reports"), paths.ReportsDir)
	})
}

func TestPathHelpers(t *testing.T) {
	root := t.TempDir()
	paths, err := NewPaths(PathsConfig{DataDir: root, LogsDir: filepath.Join(root, "logs")})
	require.NoError(t, err)

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"download", paths.GetDownloadPath("WPR_2026-01-06_DEBM_COMB_1.xlsx"), filepath.Join(root, "downloads", "WPR_2026-01-06_DEBM_COMB_1.xlsx")},
		{"history", paths.GetHistoryPath("DEBM_history.csv"), filepath.Join(root, "history", "DEBM_history.csv")},
		{"report", paths.GetReportPath("DEBM_report.csv"), filepath.Join(root, "reports", "DEBM_report.csv")},
		{"log", paths.GetLogPath("cot.log"), filepath.Join(root, "logs", "cot.log")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	root := t.TempDir()
	paths, err := NewPaths(PathsConfig{DataDir: filepath.Join(root, "data"), LogsDir: filepath.Join(root, "logs")})
	require.NoError(t, err)

	require.NoError(t, paths.EnsureDirectories())
	for _, dir := range []string{paths.DataDir, paths.DownloadsDir, paths.HistoryDir, paths.ReportsDir, paths.LogsDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir(), dir)
	}

	// Idempotent
	assert.NoError(t, paths.EnsureDirectories())
}
