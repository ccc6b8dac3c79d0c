package contracts

import (
	"fmt"
	"runtime"
)

const (
	// Version is the current version of the application
	Version = "1.0.0"

	// HistoryFormatVersion is the layout of the per-instrument history and
	// revision CSV files
	HistoryFormatVersion = "v1"

	// APIVersion is the version of the HTTP API under /api
	APIVersion = "v1"
)

// Set during build with -ldflags "-X eexcot/pkg/contracts.BuildTime=..."
var (
	BuildTime = ""
	GitCommit = ""
)

// VersionInfo contains detailed version information
type VersionInfo struct {
	Version       string `json:"version"`
	BuildTime     string `json:"build_time,omitempty"`
	GitCommit     string `json:"git_commit,omitempty"`
	GoVersion     string `json:"go_version"`
	OS            string `json:"os"`
	Architecture  string `json:"arch"`
	HistoryFormat string `json:"history_format"`
	APIVersion    string `json:"api_version"`
}

// GetVersionInfo returns detailed version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:       Version,
		BuildTime:     BuildTime,
		GitCommit:     GitCommit,
		GoVersion:     runtime.Version(),
		OS:            runtime.GOOS,
		Architecture:  runtime.GOARCH,
		HistoryFormat: HistoryFormatVersion,
		APIVersion:    APIVersion,
	}
}

// GetFullVersionString returns a one line version banner
func GetFullVersionString() string {
	info := GetVersionInfo()
	s := fmt.Sprintf("eexcot v%s (history %s, api %s, %s %s/%s)",
		info.Version, info.HistoryFormat, info.APIVersion, info.GoVersion, info.OS, info.Architecture)
	if info.GitCommit != "" {
		s += " commit " + info.GitCommit
	}
	return s
}
