package files

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"eexcot/pkg/contracts/domain"
)

// stampLayout is the publication stamp embedded in report file names, e.g.
// 260127080028 for 2026-01-27 08:00:28
const stampLayout = "060102150405"

// ReportGlob matches report workbook names in a directory listing
const ReportGlob = "WPR_*.xlsx"

var reportPattern = regexp.MustCompile(`^WPR_(\d{4}-\d{2}-\d{2})_([A-Z0-9]+)_COMB_(\d+)\.xlsx$`)

// FileInfo represents information about a discovered file
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// ReportFile is a weekly report workbook named
// WPR_<report date>_<instrument>_COMB_<publication stamp>.xlsx
type ReportFile struct {
	FileInfo
	Instrument string
	ReportDate time.Time
	// Stamp is the raw publication stamp; Published is its parsed form and
	// stays zero when the stamp is not twelve digits
	Stamp     string
	Published time.Time
}

// ParseReportFilename extracts the instrument, report date and publication
// stamp from a report file name. Directory components are ignored.
func ParseReportFilename(name string) (ReportFile, bool) {
	base := filepath.Base(name)
	m := reportPattern.FindStringSubmatch(base)
	if m == nil {
		return ReportFile{}, false
	}

	reportDate, err := time.Parse(domain.DateFormat, m[1])
	if err != nil {
		return ReportFile{}, false
	}

	rf := ReportFile{
		FileInfo:   FileInfo{Path: name, Name: base},
		Instrument: m[2],
		ReportDate: reportDate,
		Stamp:      m[3],
	}
	if published, err := time.Parse(stampLayout, m[3]); err == nil {
		rf.Published = published
	}
	return rf, true
}

// ReportFilename builds the canonical report file name
func ReportFilename(instrument string, reportDate, published time.Time) string {
	return fmt.Sprintf("WPR_%s_%s_COMB_%s.xlsx",
		reportDate.Format(domain.DateFormat), instrument, published.UTC().Format(stampLayout))
}

// Discovery provides file discovery operations
type Discovery struct {
	basePath string
}

// NewDiscovery creates a new file discovery instance. Relative directories
// passed to its methods resolve against basePath.
func NewDiscovery(basePath string) *Discovery {
	return &Discovery{basePath: basePath}
}

// FindExcelFiles finds all xlsx files in dir, oldest modification first
func (d *Discovery) FindExcelFiles(dir string) ([]FileInfo, error) {
	fullPath := d.resolve(dir)

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", fullPath, err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		// Skip Excel lock files
		if strings.HasPrefix(name, "~$") || !strings.EqualFold(filepath.Ext(name), ".xlsx") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Path:    filepath.Join(fullPath, name),
			Name:    name,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].Name < files[j].Name
		}
		return files[i].ModTime.Before(files[j].ModTime)
	})
	return files, nil
}

// FindReports returns the report workbooks in dir in ingestion order: report
// date, then publication stamp, then instrument. Files that do not follow
// the report naming scheme are skipped.
func (d *Discovery) FindReports(dir string) ([]ReportFile, error) {
	excel, err := d.FindExcelFiles(dir)
	if err != nil {
		return nil, err
	}

	var reports []ReportFile
	for _, f := range excel {
		rf, ok := ParseReportFilename(f.Name)
		if !ok {
			continue
		}
		rf.FileInfo = f
		reports = append(reports, rf)
	}
	SortReports(reports)
	return reports, nil
}

// SortReports orders reports oldest first so that replaying them leaves the
// most recent publication in the store
func SortReports(reports []ReportFile) {
	sort.SliceStable(reports, func(i, j int) bool {
		a, b := reports[i], reports[j]
		if !a.ReportDate.Equal(b.ReportDate) {
			return a.ReportDate.Before(b.ReportDate)
		}
		if a.Stamp != b.Stamp {
			// Stamps are fixed width digits
			if len(a.Stamp) != len(b.Stamp) {
				return len(a.Stamp) < len(b.Stamp)
			}
			return a.Stamp < b.Stamp
		}
		return a.Instrument < b.Instrument
	})
}

// LatestPerInstrument keeps the most recent report of each instrument,
// sorted by instrument
func LatestPerInstrument(reports []ReportFile) []ReportFile {
	sorted := make([]ReportFile, len(reports))
	copy(sorted, reports)
	SortReports(sorted)

	latest := make(map[string]ReportFile)
	for _, rf := range sorted {
		latest[rf.Instrument] = rf
	}

	out := make([]ReportFile, 0, len(latest))
	for _, rf := range latest {
		out = append(out, rf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instrument < out[j].Instrument })
	return out
}

// FilterInstruments keeps the reports whose instrument is listed. An empty
// list keeps everything.
func FilterInstruments(reports []ReportFile, instruments []string) []ReportFile {
	if len(instruments) == 0 {
		return reports
	}
	want := make(map[string]bool, len(instruments))
	for _, code := range instruments {
		want[code] = true
	}

	var out []ReportFile
	for _, rf := range reports {
		if want[rf.Instrument] {
			out = append(out, rf)
		}
	}
	return out
}

func (d *Discovery) resolve(dir string) string {
	if filepath.IsAbs(dir) || d.basePath == "" {
		return dir
	}
	return filepath.Join(d.basePath, dir)
}
