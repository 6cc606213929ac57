package locator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DSEReports/internal/config"
	"DSEReports/internal/domain"
	"DSEReports/internal/infrastructure/httpclient"
)

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestExtractLinksFiltersByExtension(t *testing.T) {
	t.Parallel()

	doc := parse(t, `
	<ul>
	  <li><a href="/uploads/report1.pdf">Annual report</a></li>
	  <li><a href="notes.txt">Notes</a></li>
	  <li><a href="/uploads/data.xlsx">Data</a></li>
	</ul>`)
	base, _ := url.Parse("https://example.com")

	links := ExtractLinks(doc, base)

	require.Equal(t, []domain.ReportLink{
		{URL: "https://example.com/uploads/report1.pdf", Kind: domain.KindPDF},
		{URL: "https://example.com/uploads/data.xlsx", Kind: domain.KindSpreadsheet},
	}, links)
}

func TestExtractLinksResolvesAndDeduplicates(t *testing.T) {
	t.Parallel()

	doc := parse(t, `
	<a href="https://cdn.example.org/files/Weekly.XLS">weekly</a>
	<a href="daily.xls?v=2">daily</a>
	<a href="/files/report.pdf">first</a>
	<a href="/files/report.pdf">again</a>
	<a href="">empty</a>
	<a>no href</a>
	<a href="/market-reports">index</a>`)
	base, _ := url.Parse("https://example.com/market/")

	links := ExtractLinks(doc, base)

	require.Equal(t, []domain.ReportLink{
		{URL: "https://cdn.example.org/files/Weekly.XLS", Kind: domain.KindSpreadsheet},
		{URL: "https://example.com/market/daily.xls?v=2", Kind: domain.KindSpreadsheet},
		{URL: "https://example.com/files/report.pdf", Kind: domain.KindPDF},
	}, links)
}

func TestExtractLinksMatchesQueryStrings(t *testing.T) {
	t.Parallel()

	doc := parse(t, `
	<a href="/download?file=report.pdf">pdf via query</a>
	<a href="/export?name=Prices.xlsx&amp;v=3">sheet via query</a>
	<a href="/download?file=readme.txt">text</a>`)
	base, _ := url.Parse("https://example.com")

	links := ExtractLinks(doc, base)

	require.Equal(t, []domain.ReportLink{
		{URL: "https://example.com/download?file=report.pdf", Kind: domain.KindPDF},
		{URL: "https://example.com/export?name=Prices.xlsx&v=3", Kind: domain.KindSpreadsheet},
	}, links)
}

func TestLocateOverInsecureTLS(t *testing.T) {
	t.Parallel()

	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "DSEReports/test", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`<a href="report1.pdf">r</a><a href="notes.txt">n</a><a href="data.xlsx">d</a>`))
	}))
	defer server.Close()

	client := httpclient.New(config.HTTPConfig{InsecureSkipVerify: true})
	loc := New(client, "DSEReports/test", nil)

	links, err := loc.Locate(context.Background(), config.SourceConfig{
		Name:     "DSE",
		IndexURL: server.URL + "/market-reports",
		BaseURL:  "https://example.com",
	})
	require.NoError(t, err)
	require.Len(t, links, 2)
	require.Equal(t, "https://example.com/report1.pdf", links[0].URL)
	require.Equal(t, "https://example.com/data.xlsx", links[1].URL)
}

func TestLocateFailsOnBadStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	links, err := New(server.Client(), "", nil).Locate(context.Background(), config.SourceConfig{
		Name:     "DSE",
		IndexURL: server.URL,
	})
	require.Error(t, err)
	require.Empty(t, links)
}
