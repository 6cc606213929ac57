package locator

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"DSEReports/internal/config"
	"DSEReports/internal/domain"
	"DSEReports/internal/logging"
	"DSEReports/internal/ports"
)

var documentExtensions = []string{".pdf", ".xls", ".xlsx"}

// Locator scrapes a reports index page for document links.
type Locator struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

var _ ports.ReportLocator = (*Locator)(nil)

// New wires an HTTP client; a nil client falls back to http.DefaultClient.
func New(client *http.Client, userAgent string, logger *slog.Logger) *Locator {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Locator{client: client, userAgent: userAgent, logger: logger}
}

// Locate fetches the source's index page and returns every document link on it,
// resolved against the source base URL, deduplicated and in page order.
func (l *Locator) Locate(ctx context.Context, source config.SourceConfig) ([]domain.ReportLink, error) {
	base := source.BaseURL
	if base == "" {
		base = source.IndexURL
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %s: %w", base, err)
	}

	doc, err := l.fetchDocument(ctx, source.IndexURL)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", source.Name, err)
	}

	links := ExtractLinks(doc, baseURL)
	l.logger.Debug("located reports", "source", source.Name, "count", len(links))
	return links, nil
}

func (l *Locator) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if l.userAgent != "" {
		req.Header.Set("User-Agent", l.userAgent)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request index: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("index returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}

	return doc, nil
}

// ExtractLinks collects document anchors from an already parsed page.
func ExtractLinks(doc *goquery.Document, base *url.URL) []domain.ReportLink {
	var (
		links []domain.ReportLink
		seen  = map[string]struct{}{}
	)

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)

		kind, ok := kindOf(href)
		if !ok {
			return
		}

		abs := resolved.String()
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, domain.ReportLink{URL: abs, Kind: kind})
	})

	return links
}

// kindOf matches anywhere in the href, so query-style download links count.
func kindOf(href string) (domain.DocumentKind, bool) {
	lower := strings.ToLower(href)
	if strings.Contains(lower, ".pdf") {
		return domain.KindPDF, true
	}
	for _, ext := range documentExtensions[1:] {
		if strings.Contains(lower, ext) {
			return domain.KindSpreadsheet, true
		}
	}
	return "", false
}
