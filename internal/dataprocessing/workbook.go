package dataprocessing

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/xuri/excelize/v2"
)

// ReadWorkbook extracts the report grid from xlsx bytes. The configured sheet
// is tried first, then every sheet in workbook order until one has a date header.
func (p *Parser) ReadWorkbook(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()
	return p.readGrid(f)
}

// ReadWorkbookFile is ReadWorkbook for a file on disk
func (p *Parser) ReadWorkbookFile(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()
	return p.readGrid(f)
}

func (p *Parser) readGrid(f *excelize.File) ([][]string, error) {
	if idx, err := f.GetSheetIndex(p.opts.SheetName); err == nil && idx >= 0 {
		rows, err := f.GetRows(p.opts.SheetName)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q: %w", p.opts.SheetName, err)
		}
		if header, _ := p.findHeader(rows); header >= 0 {
			p.logger.Debug("Using report sheet", slog.String("sheet_name", p.opts.SheetName))
			return rows, nil
		}
	}

	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			continue
		}
		if header, _ := p.findHeader(rows); header >= 0 {
			p.logger.Debug("Using report sheet", slog.String("sheet_name", name))
			return rows, nil
		}
	}

	// No sheet qualifies; hand back the first so Parse reports the layout problem
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &LayoutError{Reason: "workbook has no sheets"}
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

// ParseWorkbook reads and parses one instrument's xlsx snapshot
func (p *Parser) ParseWorkbook(instrument string, r io.Reader) (*RawSnapshot, error) {
	grid, err := p.ReadWorkbook(r)
	if err != nil {
		return nil, withInstrument(err, instrument)
	}
	return p.Parse(instrument, grid)
}

// ParseWorkbookFile reads and parses one instrument's xlsx snapshot from disk
func (p *Parser) ParseWorkbookFile(instrument, path string) (*RawSnapshot, error) {
	grid, err := p.ReadWorkbookFile(path)
	if err != nil {
		return nil, withInstrument(err, instrument)
	}
	return p.Parse(instrument, grid)
}
