// Package reporting renders a security's tables into a persisted
// spreadsheet document.
package reporting

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/aristath/stocktinker/internal/modules/securities"
	"github.com/aristath/stocktinker/internal/timeseries"
)

const dateLayout = "2006-01-02"

// XLSXWriter writes one workbook per security into reportsDir. The
// directory is created on first write.
type XLSXWriter struct {
	reportsDir string
	log        zerolog.Logger
}

// NewXLSXWriter creates a spreadsheet report writer.
func NewXLSXWriter(reportsDir string, log zerolog.Logger) *XLSXWriter {
	return &XLSXWriter{
		reportsDir: reportsDir,
		log:        log.With().Str("service", "xlsx_writer").Logger(),
	}
}

// Write renders report-{symbol}.xlsx with a summary sheet followed by
// one sheet per raw table and returns the written path. Tables are laid
// out transposed: dates across the top, one row per metric.
func (w *XLSXWriter) Write(ctx context.Context, sec *securities.Security) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := w.writeSummarySheet(ctx, f, sec); err != nil {
		return "", err
	}

	sheets := []struct {
		name  string
		table *timeseries.Table
	}{
		{"income", sec.Income(ctx)},
		{"cashflow", sec.Cashflow(ctx)},
		{"balancesheet", sec.BalanceSheet(ctx)},
		{"ratios", sec.Ratios(ctx).Table},
	}
	for _, sheet := range sheets {
		if err := writeTableSheet(f, sheet.name, sheet.table); err != nil {
			return "", fmt.Errorf("failed to write %s sheet: %w", sheet.name, err)
		}
	}

	// Drop the workbook's default sheet
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return "", fmt.Errorf("failed to delete default sheet: %w", err)
	}

	if err := os.MkdirAll(w.reportsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	path := filepath.Join(w.reportsDir, fmt.Sprintf("report-%s.xlsx", sec.Symbol))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}

	w.log.Info().Str("symbol", sec.Symbol).Str("path", path).Msg("Wrote report")
	return path, nil
}

// writeSummarySheet writes the transposed summary table followed by the
// key/value summary-info block.
func (w *XLSXWriter) writeSummarySheet(ctx context.Context, f *excelize.File, sec *securities.Security) error {
	summary := sec.SummaryTable(ctx)
	if err := writeTableSheet(f, "summary", summary); err != nil {
		return fmt.Errorf("failed to write summary sheet: %w", err)
	}

	// The transposed sheet has one row per metric under the date header;
	// leave a blank row before the info block
	row := len(summary.Columns()) + 3
	for _, entry := range sec.SummaryInfo(ctx) {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow("summary", cell, &[]interface{}{entry.Key, entry.Value}); err != nil {
			return fmt.Errorf("failed to write summary info: %w", err)
		}
		row++
	}
	return nil
}

// writeTableSheet writes a table transposed, dates in the header row and
// one row per column. Missing values become blank cells.
func writeTableSheet(f *excelize.File, name string, table *timeseries.Table) error {
	if _, err := f.NewSheet(name); err != nil {
		return err
	}

	header := []interface{}{""}
	for _, d := range table.Dates() {
		header = append(header, d.Format(dateLayout))
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return err
	}

	for i, column := range table.Columns() {
		row := []interface{}{column}
		for _, v := range table.Column(column) {
			if math.IsNaN(v) {
				row = append(row, nil)
			} else {
				row = append(row, v)
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
