package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DocumentKind tells the extractor which reader understands a report.
type DocumentKind string

const (
	KindPDF         DocumentKind = "pdf"
	KindSpreadsheet DocumentKind = "spreadsheet"
)

// ReportLink is an absolute URL to a downloadable report found on an index page.
type ReportLink struct {
	URL  string
	Kind DocumentKind
}

// DownloadedReport is a report available on local disk for the current run.
type DownloadedReport struct {
	Path      string
	Source    string
	FetchedOn time.Time
}

// Metrics holds the best-effort financial figures of a single document.
type Metrics struct {
	Revenue   decimal.NullDecimal
	NetProfit decimal.NullDecimal
	EPS       decimal.NullDecimal
}

// Empty reports whether no metric was found.
func (m Metrics) Empty() bool {
	return !m.Revenue.Valid && !m.NetProfit.Valid && !m.EPS.Valid
}

// MetricRecord is one row of the metrics table.
type MetricRecord struct {
	Filename string
	Metrics
}

// ExtractionStatus enumerates the outcomes of processing one document.
type ExtractionStatus string

const (
	StatusFound  ExtractionStatus = "found"
	StatusEmpty  ExtractionStatus = "empty"
	StatusFailed ExtractionStatus = "failed"
)

// Extraction is the per-document result. Failed extractions still carry an
// all-null record so the document stays visible in the output table.
type Extraction struct {
	Record MetricRecord
	Status ExtractionStatus
	Err    error
}

// MarketQuote is a price row parsed from a brokerage market-data sheet.
type MarketQuote struct {
	Security     string
	ClosingPrice string
	Volume       string
	ChangePct    string
	Date         time.Time
	Source       string
}
