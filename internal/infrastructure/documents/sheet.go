package documents

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"DSEReports/internal/domain"
	"DSEReports/internal/extraction"
	"DSEReports/internal/metrics"
)

// SheetReader reads every sheet of a workbook with excelize.
type SheetReader struct{}

var _ extraction.Reader = SheetReader{}

// Kind implements extraction.Reader.
func (SheetReader) Kind() domain.DocumentKind { return domain.KindSpreadsheet }

// Extensions implements extraction.Reader. Legacy .xls workbooks that are not
// OOXML fail to open and surface as failed extractions.
func (SheetReader) Extensions() []string { return []string{".xlsx", ".xls"} }

// Read returns the metrics found in the workbook cells.
func (SheetReader) Read(ctx context.Context, path string) (domain.Metrics, error) {
	sheets, err := WorkbookRows(ctx, path)
	if err != nil {
		return domain.Metrics{}, err
	}
	return metrics.FromSheets(sheets), nil
}

// WorkbookRows returns the cell text of every sheet, in workbook order.
func WorkbookRows(ctx context.Context, path string) ([][][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var sheets [][][]string
	for _, name := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", name, err)
		}
		sheets = append(sheets, rows)
	}

	return sheets, nil
}
