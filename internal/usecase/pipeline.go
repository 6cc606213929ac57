package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"DSEReports/internal/config"
	"DSEReports/internal/domain"
	"DSEReports/internal/logging"
	"DSEReports/internal/metrics"
	"DSEReports/internal/ports"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Config     config.Config
	Locator    ports.ReportLocator
	Fetcher    ports.ReportFetcher
	Extractor  ports.MetricsExtractor
	Sink       ports.MetricsSink
	Repository ports.ExtractionRepository
	MarketData ports.MarketDataParser
	Notifier   ports.Notifier
	Logger     *slog.Logger
}

// Pipeline implements the report-ingestion workflow.
type Pipeline struct {
	cfg        config.Config
	locator    ports.ReportLocator
	fetcher    ports.ReportFetcher
	extractor  ports.MetricsExtractor
	sink       ports.MetricsSink
	repository ports.ExtractionRepository
	marketData ports.MarketDataParser
	notifier   ports.Notifier
	logger     *slog.Logger
}

// SourceResult summarises one source of a run.
type SourceResult struct {
	Source      string
	Links       int
	Extractions []domain.Extraction
	OutputPath  string
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Pipeline{
		cfg:        deps.Config,
		locator:    deps.Locator,
		fetcher:    deps.Fetcher,
		extractor:  deps.Extractor,
		sink:       deps.Sink,
		repository: deps.Repository,
		marketData: deps.MarketData,
		notifier:   deps.Notifier,
		logger:     logger,
	}
}

// Run processes every configured source once. A failing source does not stop
// the others; their errors are joined into the returned error.
func (p *Pipeline) Run(ctx context.Context, firedAt time.Time) error {
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)
	logger.Info("pipeline run started", "fired_at", firedAt.Format(time.RFC3339), "sources", len(p.cfg.Sources))

	var errs []error
	for _, source := range p.cfg.Sources {
		result, err := p.RunSource(ctx, runID, source)
		if err != nil {
			logger.Error("source failed", "source", source.Name, "error", err)
			errs = append(errs, fmt.Errorf("source %s: %w", source.Name, err))
			continue
		}
		p.notify(ctx, logger, result)
	}

	if p.cfg.MarketData.Enabled && p.marketData != nil {
		if err := p.runMarketData(logger); err != nil {
			logger.Error("market data failed", "error", err)
			errs = append(errs, err)
		}
	}

	logger.Info("pipeline run finished", "failed_sources", len(errs))
	return errors.Join(errs...)
}

// RunSource runs Locator -> Fetcher -> Extractor -> Sink for a single source.
// Only sink and history write failures are returned.
func (p *Pipeline) RunSource(ctx context.Context, runID string, source config.SourceConfig) (SourceResult, error) {
	logger := p.logger.With("run_id", runID, "source", source.Name)
	result := SourceResult{Source: source.Name, OutputPath: p.cfg.MetricsPath(source)}

	if p.locator == nil || p.fetcher == nil || p.extractor == nil || p.sink == nil {
		return result, fmt.Errorf("pipeline is not fully wired")
	}

	links, err := p.locator.Locate(ctx, source)
	if err != nil {
		logger.Warn("report index unavailable", "url", source.IndexURL, "error", err)
		links = nil
	}
	if len(links) == 0 {
		logger.Warn("no report links found", "url", source.IndexURL)
	}
	result.Links = len(links)

	reports := p.fetcher.Fetch(ctx, source, links)
	logger.Info("reports available", "links", len(links), "available", len(reports))

	records := make([]domain.MetricRecord, 0, len(reports))
	for _, report := range reports {
		if !p.extractor.Supports(report.Path) {
			logger.Debug("skip unsupported document", "path", report.Path)
			continue
		}
		extraction := p.extractor.Extract(ctx, report)
		result.Extractions = append(result.Extractions, extraction)
		records = append(records, extraction.Record)
	}

	if err := p.sink.Write(result.OutputPath, records); err != nil {
		return result, fmt.Errorf("write metrics: %w", err)
	}
	logger.Info("metrics written", "path", result.OutputPath, "records", len(records))

	if p.repository != nil {
		if err := p.repository.SaveRun(ctx, runID, source.Name, time.Now(), result.Extractions); err != nil {
			return result, fmt.Errorf("save history: %w", err)
		}
	}

	return result, nil
}

func (p *Pipeline) runMarketData(logger *slog.Logger) error {
	dir := p.cfg.Dir(p.cfg.MarketData.Source)
	quotes, err := p.marketData.ParseDir(dir)
	if err != nil {
		return fmt.Errorf("parse market data: %w", err)
	}
	if len(quotes) == 0 {
		logger.Warn("no valid market data sheets", "dir", dir)
		return nil
	}

	out := p.cfg.MarketData.Output
	if !filepath.IsAbs(out) {
		out = filepath.Join(p.cfg.Reports.Root, out)
	}
	if err := p.marketData.WriteQuotes(out, quotes); err != nil {
		return fmt.Errorf("write market data: %w", err)
	}
	logger.Info("market data written", "path", out, "quotes", len(quotes))
	return nil
}

func (p *Pipeline) notify(ctx context.Context, logger *slog.Logger, result SourceResult) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.PublishDigest(ctx, BuildSummary(result)); err != nil {
		logger.Warn("publish summary", "source", result.Source, "error", err)
	}
}

// BuildSummary renders a plain-text digest of a source run.
func BuildSummary(result SourceResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s reports: %d links, %d documents processed\n", result.Source, result.Links, len(result.Extractions))

	var failed int
	for _, ex := range result.Extractions {
		switch ex.Status {
		case domain.StatusFound:
			fmt.Fprintf(&sb, "- %s: Revenue %s, Net Profit %s, EPS %s\n",
				ex.Record.Filename,
				format(ex.Record.Revenue),
				format(ex.Record.NetProfit),
				format(ex.Record.EPS))
		case domain.StatusFailed:
			failed++
		}
	}
	if failed > 0 {
		fmt.Fprintf(&sb, "%d documents could not be read\n", failed)
	}

	return strings.TrimSuffix(sb.String(), "\n")
}

func format(v decimal.NullDecimal) string {
	if !v.Valid {
		return "n/a"
	}
	return metrics.Format(v)
}
