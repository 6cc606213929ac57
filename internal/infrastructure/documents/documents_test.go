package documents

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"DSEReports/internal/domain"
	"DSEReports/internal/extraction"
)

func writeWorkbook(t *testing.T, path string, sheets map[string][][]any, order []string) {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}

	require.NoError(t, f.SaveAs(path))
}

// writePDF stores a one-page PDF whose page draws content with Helvetica as /F1.
func writePDF(t *testing.T, path, content string) {
	t.Helper()

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestPDFReaderReadsStatementLine(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "2025-03-14_results.pdf")
	writePDF(t, path, "BT /F1 12 Tf 72 720 Td (Quarterly results) Tj 0 -18 Td (Net Profit: 1,234.56 million) Tj ET")

	m, err := PDFReader{}.Read(context.Background(), path)
	require.NoError(t, err)
	require.True(t, m.NetProfit.Valid)
	require.Equal(t, "1234.56", m.NetProfit.Decimal.String())
	require.False(t, m.Revenue.Valid)
	require.False(t, m.EPS.Valid)
}

func TestPDFLinesSeparatesTableCells(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "table.pdf")
	writePDF(t, path, `BT /F1 10 Tf
1 0 0 1 72 700 Tm (Metric) Tj
1 0 0 1 200 700 Tm (2024) Tj
1 0 0 1 300 700 Tm (2023) Tj
1 0 0 1 72 680 Tm (EPS) Tj
1 0 0 1 200 680 Tm (1,234) Tj
1 0 0 1 300 680 Tm (5,678) Tj
1 0 0 1 72 660 Tm [(Revenue) -3000 (2,500)] TJ
ET`)

	lines, err := PDFLines(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, []string{"Metric 2024 2023", "EPS 1,234 5,678", "Revenue 2,500"}, lines)

	m, err := PDFReader{}.Read(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, "1234", m.EPS.Decimal.String())
	require.Equal(t, "2500", m.Revenue.Decimal.String())
	require.False(t, m.NetProfit.Valid)
}

func TestPDFLinesFollowsRelativeMoves(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "relative.pdf")
	writePDF(t, path, "BT /F1 12 Tf 72 700 Td (Revenue 900) Tj 0 -20 Td (Net Profit: 1,234.56 million) Tj ET")

	lines, err := PDFLines(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, []string{"Revenue 900", "Net Profit: 1,234.56 million"}, lines)

	m, err := PDFReader{}.Read(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, "900", m.Revenue.Decimal.String())
	require.Equal(t, "1234.56", m.NetProfit.Decimal.String())
}

func TestSheetReaderReadsAllSheets(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "2025-03-14_results.xlsx")
	writeWorkbook(t, path, map[string][][]any{
		"Income": {
			{"Line item", "FY2024"},
			{"Revenue", "52,300"},
		},
		"Ratios": {
			{"Ratio", "Value"},
			{"Earnings Per Share", 12.5},
		},
	}, []string{"Income", "Ratios"})

	m, err := SheetReader{}.Read(context.Background(), path)
	require.NoError(t, err)
	require.True(t, m.Revenue.Valid)
	require.Equal(t, "52300", m.Revenue.Decimal.String())
	require.True(t, m.EPS.Valid)
	require.Equal(t, "12.5", m.EPS.Decimal.String())
	require.False(t, m.NetProfit.Valid)
}

func TestReadersFailOnCorruptFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "broken.pdf")
	xlsPath := filepath.Join(dir, "broken.xls")
	require.NoError(t, os.WriteFile(pdfPath, []byte("not a pdf at all"), 0o644))
	require.NoError(t, os.WriteFile(xlsPath, []byte("not a workbook"), 0o644))

	_, err := PDFReader{}.Read(context.Background(), pdfPath)
	require.Error(t, err)
	_, err = SheetReader{}.Read(context.Background(), xlsPath)
	require.Error(t, err)
}

func TestRegistryWithRealReaders(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := filepath.Join(dir, "good.xlsx")
	writeWorkbook(t, good, map[string][][]any{
		"Sheet": {{"Summary"}, {"Net Profit", "", "9,000"}},
	}, []string{"Sheet"})
	broken := filepath.Join(dir, "broken.pdf")
	require.NoError(t, os.WriteFile(broken, []byte("%PDF-1.4 truncated"), 0o644))

	reg := extraction.NewRegistry(nil)
	reg.Register(PDFReader{})
	reg.Register(SheetReader{})

	ok := reg.Extract(context.Background(), domain.DownloadedReport{Path: good})
	require.Equal(t, domain.StatusFound, ok.Status)
	require.Equal(t, "9000", ok.Record.NetProfit.Decimal.String())

	failed := reg.Extract(context.Background(), domain.DownloadedReport{Path: broken})
	require.Equal(t, domain.StatusFailed, failed.Status)
	require.Equal(t, "broken.pdf", failed.Record.Filename)
	require.True(t, failed.Record.Empty())
}
