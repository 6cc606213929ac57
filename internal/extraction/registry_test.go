package extraction

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"DSEReports/internal/domain"
)

type stubReader struct {
	metrics domain.Metrics
	err     error
	calls   []string
}

func (s *stubReader) Kind() domain.DocumentKind { return domain.KindPDF }
func (s *stubReader) Extensions() []string      { return []string{".pdf"} }
func (s *stubReader) Read(_ context.Context, path string) (domain.Metrics, error) {
	s.calls = append(s.calls, path)
	return s.metrics, s.err
}

func TestExtractFound(t *testing.T) {
	t.Parallel()

	reader := &stubReader{metrics: domain.Metrics{
		EPS: decimal.NullDecimal{Decimal: decimal.RequireFromString("0.5"), Valid: true},
	}}
	reg := NewRegistry(nil)
	reg.Register(reader)

	got := reg.Extract(context.Background(), domain.DownloadedReport{Path: "/reports/DSE/2025-01-02_q1.PDF"})

	require.Equal(t, domain.StatusFound, got.Status)
	require.NoError(t, got.Err)
	require.Equal(t, "2025-01-02_q1.PDF", got.Record.Filename)
	require.Equal(t, "0.5", got.Record.EPS.Decimal.String())
	require.Equal(t, []string{"/reports/DSE/2025-01-02_q1.PDF"}, reader.calls)
}

func TestExtractEmpty(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(nil)
	reg.Register(&stubReader{})

	got := reg.Extract(context.Background(), domain.DownloadedReport{Path: "a/notice.pdf"})

	require.Equal(t, domain.StatusEmpty, got.Status)
	require.Equal(t, "notice.pdf", got.Record.Filename)
	require.True(t, got.Record.Empty())
}

func TestExtractFailureKeepsNullRecord(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(nil)
	reg.Register(&stubReader{err: errors.New("corrupt xref table")})

	got := reg.Extract(context.Background(), domain.DownloadedReport{Path: "a/broken.pdf"})

	require.Equal(t, domain.StatusFailed, got.Status)
	require.EqualError(t, got.Err, "corrupt xref table")
	require.Equal(t, "broken.pdf", got.Record.Filename)
	require.True(t, got.Record.Empty())
}

func TestExtractUnsupported(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(nil)
	reg.Register(&stubReader{})

	require.False(t, reg.Supports("notes.txt"))
	require.True(t, reg.Supports("REPORT.Pdf"))

	got := reg.Extract(context.Background(), domain.DownloadedReport{Path: "notes.txt"})
	require.Equal(t, domain.StatusFailed, got.Status)
	require.ErrorIs(t, got.Err, ErrUnsupported)
}
