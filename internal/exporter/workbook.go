package exporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"eexcot/pkg/contracts/domain"
)

var workbookHeaders = []interface{}{
	"Report date", "Category", "Long", "Short", "Net",
	"Long change", "Short change", "Net change", "Long %", "Short %",
}

// sheetNames are the workbook tabs, one per position type
var sheetNames = map[domain.PositionType]string{
	domain.PositionTotal:        "Total",
	domain.PositionRiskReducing: "Risk reducing",
	domain.PositionOther:        "Other",
}

// BuildWorkbook lays out an annotated series with one sheet per position type
func BuildWorkbook(instrument string, records []domain.PositionMetrics) (*excelize.File, error) {
	f := excelize.NewFile()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	pct, err := f.NewStyle(&excelize.Style{NumFmt: 10})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create percent style: %w", err)
	}

	order := []domain.PositionType{domain.PositionTotal, domain.PositionRiskReducing, domain.PositionOther}
	for i, ptype := range order {
		sheet := sheetNames[ptype]
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
				f.Close()
				return nil, err
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			f.Close()
			return nil, err
		}
		if err := writeSheet(f, sheet, ptype, records, header, pct); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write %s sheet for %s: %w", sheet, instrument, err)
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

func writeSheet(f *excelize.File, sheet string, ptype domain.PositionType, records []domain.PositionMetrics, headerStyle, pctStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &workbookHeaders); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return err
	}

	row := 2
	for _, m := range records {
		if m.PositionType != ptype {
			continue
		}
		values := []interface{}{
			formatDate(m.ReportDate),
			m.Category.DisplayName(),
			m.Long.InexactFloat64(),
			m.Short.InexactFloat64(),
			m.Net.InexactFloat64(),
			nullable(m.LongChange),
			nullable(m.ShortChange),
			nullable(m.NetChange),
			m.LongPct,
			m.ShortPct,
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
		row++
	}

	if row > 2 {
		last, err := excelize.CoordinatesToCellName(10, row-1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "I2", last, pctStyle); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheet, "A", "B", 20); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func nullable(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return nil
	}
	return d.Decimal.InexactFloat64()
}

// WorkbookFileName is the xlsx report name for an instrument
func WorkbookFileName(instrument string) string {
	return fmt.Sprintf("%s_report.xlsx", instrument)
}

// ExportWorkbook writes the xlsx report to filePath
func (e *SeriesExporter) ExportWorkbook(filePath, instrument string, records []domain.PositionMetrics) error {
	f, err := BuildWorkbook(instrument, records)
	if err != nil {
		return err
	}
	defer f.Close()

	fullPath := e.csvWriter.resolvePath(filePath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := f.SaveAs(fullPath); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// WriteWorkbook streams the xlsx report to w
func WriteWorkbook(w io.Writer, instrument string, records []domain.PositionMetrics) error {
	f, err := BuildWorkbook(instrument, records)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteTo(w)
	return err
}
