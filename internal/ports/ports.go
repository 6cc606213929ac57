package ports

import (
	"context"
	"time"

	"DSEReports/internal/config"
	"DSEReports/internal/domain"
)

// ReportLocator discovers document links on a source's index page.
type ReportLocator interface {
	Locate(ctx context.Context, source config.SourceConfig) ([]domain.ReportLink, error)
}

// ReportFetcher makes located reports available on local disk.
type ReportFetcher interface {
	Fetch(ctx context.Context, source config.SourceConfig, links []domain.ReportLink) []domain.DownloadedReport
}

// MetricsExtractor turns a downloaded report into a metric record.
type MetricsExtractor interface {
	Supports(path string) bool
	Extract(ctx context.Context, report domain.DownloadedReport) domain.Extraction
}

// MetricsSink writes the metric snapshot of a run.
type MetricsSink interface {
	Write(path string, records []domain.MetricRecord) error
}

// ExtractionRepository keeps the history of extractions across runs.
type ExtractionRepository interface {
	SaveRun(ctx context.Context, runID, source string, extractedAt time.Time, results []domain.Extraction) error
}

// MarketDataParser reads brokerage price sheets from a directory.
type MarketDataParser interface {
	ParseDir(dir string) ([]domain.MarketQuote, error)
	WriteQuotes(path string, quotes []domain.MarketQuote) error
}

// Notifier streams run summaries to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute. Run blocks until ctx is done.
type Scheduler interface {
	Run(ctx context.Context, job func(ctx context.Context, firedAt time.Time)) error
}
