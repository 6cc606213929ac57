package documents

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"DSEReports/internal/domain"
	"DSEReports/internal/extraction"
	"DSEReports/internal/metrics"
)

// PDFReader extracts page text with ledongthuc/pdf and scans it line by line.
type PDFReader struct{}

var _ extraction.Reader = PDFReader{}

// Kind implements extraction.Reader.
func (PDFReader) Kind() domain.DocumentKind { return domain.KindPDF }

// Extensions implements extraction.Reader.
func (PDFReader) Extensions() []string { return []string{".pdf"} }

// Read returns the metrics found in the document text.
func (PDFReader) Read(ctx context.Context, path string) (domain.Metrics, error) {
	lines, err := PDFLines(ctx, path)
	if err != nil {
		return domain.Metrics{}, err
	}
	return metrics.FromLines(lines), nil
}

// PDFLines returns the text lines of every page in order. Corrupt files can
// make the pdf package panic; that is reported as an error.
func PDFLines(ctx context.Context, path string) (lines []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			lines = nil
			err = fmt.Errorf("panic during PDF extraction: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		lines = append(lines, pageLines(page)...)
	}

	return lines, nil
}

// Glyphs closer than this fraction of the font size belong to the same word.
const wordGapRatio = 0.2

type textLine struct {
	y      float64
	glyphs []pdf.Text
}

// pageLines rebuilds visual lines from positioned glyphs: glyphs sharing a
// baseline form one line, ordered left to right, and a horizontal gap wider
// than a word space becomes a single space. Lines are returned top to bottom.
func pageLines(page pdf.Page) []string {
	var lines []*textLine
	for _, g := range page.Content().Text {
		if strings.TrimSpace(g.S) == "" && g.S != " " {
			continue
		}
		line := lineAt(lines, g)
		if line == nil {
			line = &textLine{y: g.Y}
			lines = append(lines, line)
		}
		line.glyphs = append(line.glyphs, g)
	}

	sort.SliceStable(lines, func(i, j int) bool { return lines[i].y > lines[j].y })

	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if text := line.text(); text != "" {
			out = append(out, text)
		}
	}
	return out
}

func lineAt(lines []*textLine, g pdf.Text) *textLine {
	tolerance := g.FontSize / 2
	if tolerance <= 0 {
		tolerance = 1
	}
	for i := len(lines) - 1; i >= 0; i-- {
		if math.Abs(lines[i].y-g.Y) <= tolerance {
			return lines[i]
		}
	}
	return nil
}

func (l *textLine) text() string {
	// Stable: glyphs of one string drawn with a width-less font share an X.
	sort.SliceStable(l.glyphs, func(i, j int) bool { return l.glyphs[i].X < l.glyphs[j].X })

	var sb strings.Builder
	for i, g := range l.glyphs {
		if i > 0 {
			prev := l.glyphs[i-1]
			gap := g.X - (prev.X + prev.W)
			if gap > wordGapRatio*math.Max(g.FontSize, 1) && !strings.HasSuffix(sb.String(), " ") && g.S != " " {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(g.S)
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}
