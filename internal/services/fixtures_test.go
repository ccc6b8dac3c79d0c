package services

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"eexcot/internal/config"
	"eexcot/internal/dataprocessing"
	"eexcot/internal/history"
	"eexcot/internal/shared/testutil"
	"eexcot/pkg/contracts/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newProcessor() *dataprocessing.SnapshotProcessor {
	return dataprocessing.NewSnapshotProcessor(dataprocessing.DefaultOptions(), quietLogger())
}

func testPaths(t *testing.T) *config.Paths {
	t.Helper()
	paths, err := config.NewPaths(config.PathsConfig{DataDir: t.TempDir(), LogsDir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirectories())
	return paths
}

// reportGrid lays out n weekly dates from start with two reconciled
// categories plus the open interest row. fundsLong is the investment funds
// risk reducing long value; its total follows it.
func reportGrid(t *testing.T, instrument string, start string, n int, fundsLong int) [][]string {
	t.Helper()
	dates := testutil.WeeklyDates(testutil.Date(t, start), n)
	rr := [2]string{strconv.Itoa(fundsLong), "50"}
	total := [2]string{strconv.Itoa(fundsLong + 20), "60"}
	return testutil.BuildGrid(instrument, dates,
		testutil.Triplet("Investment funds", n, rr, [2]string{"20", "10"}, total),
		testutil.Triplet("Commercial undertakings", n, [2]string{"300", "200"}, [2]string{"40", "60"}, [2]string{"340", "260"}),
		[]testutil.GridRow{{Label: "Total", PositionType: "Total", Cells: testutil.Same(n, "460", "320")}},
	)
}

// recordsPerDate is the record count reportGrid emits per report date
const recordsPerDate = 7

// mockStore is a testify mock of history.Store
type mockStore struct {
	mock.Mock
}

var _ history.Store = (*mockStore)(nil)

func (m *mockStore) Load(ctx context.Context, instrument string) (domain.Series, error) {
	args := m.Called(ctx, instrument)
	series, _ := args.Get(0).(domain.Series)
	return series, args.Error(1)
}

func (m *mockStore) Merge(ctx context.Context, snap *domain.Snapshot) (history.MergeResult, error) {
	args := m.Called(ctx, snap)
	return args.Get(0).(history.MergeResult), args.Error(1)
}

func (m *mockStore) Instruments(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	codes, _ := args.Get(0).([]string)
	return codes, args.Error(1)
}

func (m *mockStore) Reset(ctx context.Context, instrument string) error {
	return m.Called(ctx, instrument).Error(0)
}

func (m *mockStore) Revisions(ctx context.Context, instrument string) ([]history.Revision, error) {
	args := m.Called(ctx, instrument)
	revs, _ := args.Get(0).([]history.Revision)
	return revs, args.Error(1)
}

// mockArchiver is a testify mock of ReportArchiver
type mockArchiver struct {
	mock.Mock
}

func (m *mockArchiver) ArchiveReport(r io.Reader, instrument string, reportDate, published time.Time) (string, error) {
	data, _ := io.ReadAll(r)
	args := m.Called(data, instrument, reportDate, published)
	return args.String(0), args.Error(1)
}
