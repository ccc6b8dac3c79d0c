package dataprocessing

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"eexcot/pkg/contracts/domain"
)

// DateOrder records how the header lays out report dates from left to right
type DateOrder int

const (
	OrderAscending DateOrder = iota
	OrderDescending
)

func (o DateOrder) String() string {
	if o == OrderDescending {
		return "descending"
	}
	return "ascending"
}

// DefaultDateLayouts are the header date renderings seen in published reports
var DefaultDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"02/01/2006",
	"02.01.2006",
	"01-02-06",
	"2 January 2006",
	"2 Jan 2006",
}

// ParserOptions configures where the parser looks for labels and data
type ParserOptions struct {
	DateLayouts        []string
	CategoryColumn     int
	PositionTypeColumn int
	// DataStartColumn is the first column that may hold a date header or a value
	DataStartColumn int
	// SheetName is preferred when reading a workbook; other sheets are tried after it
	SheetName string
}

// DefaultParserOptions matches the weekly position report layout
func DefaultParserOptions() ParserOptions {
	return ParserOptions{
		DateLayouts:        DefaultDateLayouts,
		CategoryColumn:     0,
		PositionTypeColumn: 1,
		DataStartColumn:    2,
		SheetName:          "Weekly_Report",
	}
}

// RawRow is one (date, category label, position type label, long, short) tuple
type RawRow struct {
	Date              time.Time
	SourceRow         int
	CategoryLabel     string
	PositionTypeLabel string
	Long              decimal.Decimal
	Short             decimal.Decimal
}

// RawSnapshot is the un-normalized content of one report grid
type RawSnapshot struct {
	Instrument string
	Dates      []time.Time
	Order      DateOrder
	Rows       []RawRow
	Metadata   domain.SnapshotMetadata
}

// Parser turns report grids into raw snapshots. It holds no per-file state.
type Parser struct {
	opts   ParserOptions
	logger *slog.Logger
}

// NewParser creates a parser; zero-valued options fall back to the defaults.
// Data always starts right of the label columns: a DataStartColumn that
// overlaps them is moved to the first column after the last label column.
func NewParser(opts ParserOptions, logger *slog.Logger) *Parser {
	def := DefaultParserOptions()
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "layout_parser"))

	if len(opts.DateLayouts) == 0 {
		opts.DateLayouts = def.DateLayouts
	}
	if opts.CategoryColumn == 0 && opts.PositionTypeColumn == 0 {
		opts.PositionTypeColumn = def.PositionTypeColumn
	}
	if last := max(opts.CategoryColumn, opts.PositionTypeColumn); opts.DataStartColumn <= last {
		if opts.DataStartColumn != 0 {
			logger.Warn("Data start column overlaps the label columns",
				slog.Int("data_start_column", opts.DataStartColumn),
				slog.Int("using", last+1))
		}
		opts.DataStartColumn = last + 1
	}
	if opts.SheetName == "" {
		opts.SheetName = def.SheetName
	}
	return &Parser{opts: opts, logger: logger}
}

// dateColumn locates one date's long/short sub-columns
type dateColumn struct {
	date  time.Time
	long  int
	short int
}

// pendingRow is a data row buffered until its category block is complete
type pendingRow struct {
	sourceRow int
	typeLabel string
	values    []RawRow
}

// categoryBlock is the parser state: the category label currently in force
type categoryBlock struct {
	label    string
	startRow int
	rows     []pendingRow
}

var positionalTypes = []string{"Risk reducing", "Other", "Total"}

// Parse converts a grid into a RawSnapshot. Any failure rejects the whole grid.
func (p *Parser) Parse(instrument string, grid [][]string) (*RawSnapshot, error) {
	snap, err := p.parse(grid)
	if err != nil {
		return nil, withInstrument(err, instrument)
	}
	snap.Instrument = instrument
	return snap, nil
}

func (p *Parser) parse(grid [][]string) (*RawSnapshot, error) {
	headerRow, columns := p.findHeader(grid)
	if headerRow < 0 {
		return nil, &LayoutError{Reason: "no row contains a parseable report date header"}
	}

	p.logger.Debug("Date header found",
		slog.Int("row", headerRow+1),
		slog.Int("dates", len(columns)))

	order, err := checkDateOrder(headerRow, columns)
	if err != nil {
		return nil, err
	}

	bodyStart := headerRow + 1
	if bodyStart < len(grid) && p.applySubHeader(grid[bodyStart], columns) {
		bodyStart++
	}

	snap := &RawSnapshot{
		Order:    order,
		Metadata: p.readMetadata(grid[:headerRow]),
	}
	for _, col := range columns {
		snap.Dates = append(snap.Dates, col.date)
	}
	sort.Slice(snap.Dates, func(i, j int) bool { return snap.Dates[i].Before(snap.Dates[j]) })

	var current *categoryBlock
	for i := bodyStart; i < len(grid); i++ {
		row := grid[i]
		sourceRow := i + 1
		if isBlankRow(row) {
			continue
		}

		label := cellAt(row, p.opts.CategoryColumn)
		typeLabel := cellAt(row, p.opts.PositionTypeColumn)

		if label != "" {
			if err := p.flush(current, snap); err != nil {
				return nil, err
			}
			current = &categoryBlock{label: label, startRow: sourceRow}
		}

		if typeLabel == "" && !p.hasData(row, columns) {
			// heading row or stray note; only the label transition matters
			continue
		}
		if current == nil {
			return nil, layoutErrorf(sourceRow, "data row has no category label and none precedes it")
		}

		pending := pendingRow{sourceRow: sourceRow, typeLabel: typeLabel}
		for _, col := range columns {
			long, err := parseQuantity(cellAt(row, col.long))
			if err != nil {
				return nil, &LayoutError{Row: sourceRow, Date: col.date, Reason: "long: " + err.Error()}
			}
			short, err := parseQuantity(cellAt(row, col.short))
			if err != nil {
				return nil, &LayoutError{Row: sourceRow, Date: col.date, Reason: "short: " + err.Error()}
			}
			pending.values = append(pending.values, RawRow{
				Date:          col.date,
				SourceRow:     sourceRow,
				CategoryLabel: current.label,
				Long:          long,
				Short:         short,
			})
		}
		current.rows = append(current.rows, pending)
	}
	if err := p.flush(current, snap); err != nil {
		return nil, err
	}

	if len(snap.Rows) == 0 {
		return nil, &LayoutError{Row: headerRow + 1, Reason: "no position rows below the date header"}
	}

	sort.SliceStable(snap.Rows, func(i, j int) bool {
		return snap.Rows[i].Date.Before(snap.Rows[j].Date)
	})
	return snap, nil
}

// flush resolves position types for a finished category block and emits its rows
func (p *Parser) flush(block *categoryBlock, snap *RawSnapshot) error {
	if block == nil || len(block.rows) == 0 {
		return nil
	}

	for idx, pending := range block.rows {
		typeLabel := pending.typeLabel
		if typeLabel == "" {
			switch len(block.rows) {
			case 1:
				typeLabel = positionalTypes[2]
			case 3:
				typeLabel = positionalTypes[idx]
			default:
				return layoutErrorf(pending.sourceRow,
					"category %q has %d rows; cannot infer the position type of an unlabeled row",
					block.label, len(block.rows))
			}
		}
		for _, v := range pending.values {
			v.PositionTypeLabel = typeLabel
			snap.Rows = append(snap.Rows, v)
		}
	}
	return nil
}

// findHeader returns the first row holding at least one parseable date in the data area
func (p *Parser) findHeader(grid [][]string) (int, []dateColumn) {
	for i, row := range grid {
		var columns []dateColumn
		for c := p.opts.DataStartColumn; c < len(row); c++ {
			if t, ok := p.parseDate(row[c]); ok {
				columns = append(columns, dateColumn{date: t, long: c, short: c + 1})
			}
		}
		if len(columns) > 0 {
			return i, columns
		}
	}
	return -1, nil
}

// applySubHeader swaps long/short columns when a Long/Short sub-header says so.
// It reports whether row was a sub-header.
func (p *Parser) applySubHeader(row []string, columns []dateColumn) bool {
	found := false
	for i := range columns {
		first := canonicalLabel(cellAt(row, columns[i].long))
		second := canonicalLabel(cellAt(row, columns[i].short))
		switch {
		case first == "long" && second == "short":
			found = true
		case first == "short" && second == "long":
			columns[i].long, columns[i].short = columns[i].short, columns[i].long
			found = true
		}
	}
	return found
}

func (p *Parser) hasData(row []string, columns []dateColumn) bool {
	for _, col := range columns {
		if cellAt(row, col.long) != "" || cellAt(row, col.short) != "" {
			return true
		}
	}
	return false
}

func (p *Parser) parseDate(cell string) (time.Time, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return time.Time{}, false
	}
	for _, layout := range p.opts.DateLayouts {
		if t, err := time.Parse(layout, cell); err == nil {
			return domain.ReportDay(t), true
		}
	}
	return time.Time{}, false
}

// readMetadata reads "label | value" pairs above the date header
func (p *Parser) readMetadata(rows [][]string) domain.SnapshotMetadata {
	var md domain.SnapshotMetadata
	for _, row := range rows {
		key := canonicalLabel(cellAt(row, 0))
		value := cellAt(row, 1)
		if key == "" || value == "" {
			continue
		}
		switch metadataFields[key] {
		case "trading_venue":
			md.TradingVenue = value
		case "venue_identifier":
			md.VenueIdentifier = value
		case "report_date":
			if t, ok := p.parseDate(value); ok {
				md.ReportDate = t
			}
		case "publication_datetime":
			md.PublicationDateTime = value
		case "contract_name":
			md.ContractName = value
		case "contract_code":
			md.ContractCode = strings.ToUpper(value)
		case "report_status":
			md.ReportStatus = value
		case "report_type":
			md.ReportType = value
		}
	}
	return md
}

// checkDateOrder requires distinct, monotonic header dates with non-overlapping column groups
func checkDateOrder(headerRow int, columns []dateColumn) (DateOrder, error) {
	row := headerRow + 1
	seen := make(map[time.Time]bool, len(columns))
	for i, col := range columns {
		if seen[col.date] {
			return 0, &LayoutError{Row: row, Date: col.date, Reason: "report date appears twice in the header"}
		}
		seen[col.date] = true
		if i > 0 && columns[i-1].short >= col.long {
			return 0, &LayoutError{Row: row, Date: col.date, Reason: "date column groups overlap; expected a long/short pair per date"}
		}
	}
	if len(columns) < 2 {
		return OrderAscending, nil
	}

	ascending, descending := true, true
	for i := 1; i < len(columns); i++ {
		if !columns[i].date.After(columns[i-1].date) {
			ascending = false
		}
		if !columns[i].date.Before(columns[i-1].date) {
			descending = false
		}
	}
	switch {
	case ascending:
		return OrderAscending, nil
	case descending:
		return OrderDescending, nil
	default:
		return 0, layoutErrorf(row, "report dates in the header are neither ascending nor descending")
	}
}

var quantityPlaceholders = map[string]bool{
	"-": true, "–": true, "—": true, "n/a": true, "na": true, "n.a.": true,
}

// parseQuantity coerces a cell to a non-negative decimal; blanks and placeholders are zero
func parseQuantity(cell string) (decimal.Decimal, error) {
	s := strings.TrimSpace(cell)
	if s == "" || quantityPlaceholders[strings.ToLower(s)] {
		return decimal.Zero, nil
	}
	s = strings.NewReplacer(",", "", " ", "", "\u00a0", "", "'", "").Replace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q is not a number", cell)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%q is negative", cell)
	}
	return d, nil
}

func cellAt(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// withInstrument stamps the instrument onto a snapshot rejection
func withInstrument(err error, instrument string) error {
	switch e := err.(type) {
	case *LayoutError:
		e.Instrument = instrument
	case *UnknownCategoryError:
		e.Instrument = instrument
	case *UnknownPositionTypeError:
		e.Instrument = instrument
	case *ReconciliationError:
		e.Instrument = instrument
	}
	return err
}
