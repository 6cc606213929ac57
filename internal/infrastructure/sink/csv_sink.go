package sink

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"DSEReports/internal/domain"
	"DSEReports/internal/metrics"
	"DSEReports/internal/ports"
)

// metricRow is the on-disk shape of a MetricRecord.
type metricRow struct {
	Filename  string `csv:"filename"`
	Revenue   string `csv:"Revenue"`
	NetProfit string `csv:"Net Profit"`
	EPS       string `csv:"EPS"`
}

// CSVSink writes the metrics snapshot of a run as a flat CSV table.
type CSVSink struct{}

var _ ports.MetricsSink = CSVSink{}

// Write replaces the file at path with a header row and one row per record.
// Missing metrics become empty cells.
func (CSVSink) Write(path string, records []domain.MetricRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}

	rows := make([]*metricRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, &metricRow{
			Filename:  rec.Filename,
			Revenue:   cell(rec.Revenue),
			NetProfit: cell(rec.NetProfit),
			EPS:       cell(rec.EPS),
		})
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open metrics file: %w", err)
	}

	if len(rows) == 0 {
		// gocsv emits nothing for an empty slice; keep the header.
		_, err = f.WriteString("filename,Revenue,Net Profit,EPS\n")
	} else {
		err = gocsv.MarshalFile(&rows, f)
	}
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("write metrics: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close metrics file: %w", err)
	}
	return nil
}

func cell(v decimal.NullDecimal) string {
	return metrics.Format(v)
}
