package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"DSEReports/internal/config"
	"DSEReports/internal/domain"
	"DSEReports/internal/logging"
	"DSEReports/internal/ports"
)

// DateLayout prefixes every downloaded filename.
const DateLayout = "2006-01-02"

// Options configures a Fetcher.
type Options struct {
	Root               string
	UserAgent          string
	DownloadsPerSecond float64
	Location           *time.Location
	Now                func() time.Time
}

// Fetcher downloads reports into {root}/{source}/{date}_{name}, at most once per day.
type Fetcher struct {
	client    *http.Client
	root      string
	userAgent string
	limiter   *rate.Limiter
	loc       *time.Location
	now       func() time.Time
	logger    *slog.Logger
}

var _ ports.ReportFetcher = (*Fetcher)(nil)

// New builds a Fetcher; zero DownloadsPerSecond disables pacing.
func New(client *http.Client, opts Options, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = logging.Discard()
	}
	limit := rate.Inf
	if opts.DownloadsPerSecond > 0 && !math.IsInf(opts.DownloadsPerSecond, 1) {
		limit = rate.Limit(opts.DownloadsPerSecond)
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Fetcher{
		client:    client,
		root:      opts.Root,
		userAgent: opts.UserAgent,
		limiter:   rate.NewLimiter(limit, 1),
		loc:       opts.Location,
		now:       opts.Now,
		logger:    logger,
	}
}

// Fetch returns every link that is available locally after this call, in link order.
// Download failures are logged and the link is left out.
func (f *Fetcher) Fetch(ctx context.Context, source config.SourceConfig, links []domain.ReportLink) []domain.DownloadedReport {
	today := f.now().In(f.loc)
	dir := filepath.Join(f.root, source.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		f.logger.Error("create reports dir", "source", source.Name, "dir", dir, "error", err)
		return nil
	}

	available := make([]domain.DownloadedReport, 0, len(links))
	for _, link := range links {
		name, err := remoteName(link.URL)
		if err != nil {
			f.logger.Warn("skip link", "source", source.Name, "url", link.URL, "error", err)
			continue
		}
		dest := filepath.Join(dir, Filename(today, name))

		if _, err := os.Stat(dest); err == nil {
			f.logger.Debug("already downloaded", "source", source.Name, "path", dest)
			available = append(available, domain.DownloadedReport{Path: dest, Source: source.Name, FetchedOn: today})
			continue
		}

		if err := f.download(ctx, link.URL, dest); err != nil {
			f.logger.Warn("download failed", "source", source.Name, "url", link.URL, "error", err)
			continue
		}
		f.logger.Info("downloaded", "source", source.Name, "path", dest)
		available = append(available, domain.DownloadedReport{Path: dest, Source: source.Name, FetchedOn: today})
	}

	return available
}

// Filename builds the dated local name of a remote document.
func Filename(day time.Time, name string) string {
	return day.Format(DateLayout) + "_" + name
}

var documentExts = map[string]bool{".pdf": true, ".xls": true, ".xlsx": true}

// remoteName is the last path segment of the URL. Links such as
// /download?file=report.pdf take the document name from the query instead.
func remoteName(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	name := path.Base(u.Path)
	if !documentExts[strings.ToLower(path.Ext(name))] {
		if fromQuery, ok := queryName(u.Query()); ok {
			return fromQuery, nil
		}
	}
	if name == "." || name == "/" || name == "" {
		return "", errors.New("url has no file name")
	}
	return name, nil
}

func queryName(values url.Values) (string, bool) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range values[k] {
			name := path.Base(strings.ReplaceAll(v, "\\", "/"))
			if documentExts[strings.ToLower(path.Ext(name))] {
				return name, true
			}
		}
	}
	return "", false
}

func (f *Fetcher) download(ctx context.Context, rawURL, dest string) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write body: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("move into place: %w", err)
	}

	return nil
}
