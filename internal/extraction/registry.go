package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"DSEReports/internal/domain"
	"DSEReports/internal/logging"
	"DSEReports/internal/ports"
)

// ErrUnsupported is recorded for files no reader claims.
var ErrUnsupported = errors.New("unsupported document type")

// Reader captures a single document format (PDF, spreadsheet, ...).
type Reader interface {
	Kind() domain.DocumentKind
	Extensions() []string
	Read(ctx context.Context, path string) (domain.Metrics, error)
}

// Registry keeps a mapping from file extensions to readers and turns every
// document into an Extraction, whatever happens while reading it.
type Registry struct {
	readers map[string]Reader
	logger  *slog.Logger
}

var _ ports.MetricsExtractor = (*Registry)(nil)

// NewRegistry builds an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Registry{readers: map[string]Reader{}, logger: logger}
}

// Register adds or replaces a reader for each of its extensions.
func (r *Registry) Register(reader Reader) {
	if r.readers == nil {
		r.readers = map[string]Reader{}
	}
	for _, ext := range reader.Extensions() {
		r.readers[strings.ToLower(ext)] = reader
	}
}

// Resolve returns the reader for a path or an error if none is registered.
func (r *Registry) Resolve(path string) (Reader, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if reader, ok := r.readers[ext]; ok {
		return reader, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
}

// Supports reports whether a reader is registered for the path's extension.
func (r *Registry) Supports(path string) bool {
	_, err := r.Resolve(path)
	return err == nil
}

// Extract never fails: unreadable documents yield an all-null record with
// StatusFailed so they stay traceable in the output table.
func (r *Registry) Extract(ctx context.Context, report domain.DownloadedReport) domain.Extraction {
	result := domain.Extraction{
		Record: domain.MetricRecord{Filename: filepath.Base(report.Path)},
	}

	reader, err := r.Resolve(report.Path)
	if err != nil {
		result.Status, result.Err = domain.StatusFailed, err
		r.logger.Warn("no reader for document", "path", report.Path, "error", err)
		return result
	}

	m, err := reader.Read(ctx, report.Path)
	if err != nil {
		result.Status, result.Err = domain.StatusFailed, err
		r.logger.Warn("extraction failed", "path", report.Path, "kind", reader.Kind(), "error", err)
		return result
	}

	result.Record.Metrics = m
	result.Status = domain.StatusFound
	if m.Empty() {
		result.Status = domain.StatusEmpty
	}
	r.logger.Debug("extracted metrics", "path", report.Path, "status", result.Status)
	return result
}
