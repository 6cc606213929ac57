package marketdata

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"

	"DSEReports/internal/domain"
	"DSEReports/internal/logging"
	"DSEReports/internal/ports"
)

const dateLayout = "2006-01-02"

type column int

const (
	colSecurity column = iota
	colClosingPrice
	colVolume
	colChange
)

// Header fragments recognised in brokerage sheets, in output order.
var headerKeys = []struct {
	col column
	key string
}{
	{colSecurity, "security"},
	{colClosingPrice, "closing price"},
	{colVolume, "volume"},
	{colChange, "change %"},
}

const minMatchedColumns = 3

type quoteRow struct {
	Security     string `csv:"Security"`
	ClosingPrice string `csv:"Closing Price"`
	Volume       string `csv:"Volume"`
	ChangePct    string `csv:"Change %"`
	Date         string `csv:"Date"`
	Source       string `csv:"Source"`
}

// Parser reads brokerage price sheets (Security / Closing Price / Volume / Change %).
type Parser struct {
	source string
	now    func() time.Time
	logger *slog.Logger
}

var _ ports.MarketDataParser = (*Parser)(nil)

// NewParser tags every quote with source; now supplies the fallback date.
func NewParser(source string, now func() time.Time, logger *slog.Logger) *Parser {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Parser{source: source, now: now, logger: logger}
}

// ParseDir walks dir for workbooks and returns the quotes of every sheet that
// carries enough recognised columns. Unreadable files are logged and skipped.
func (p *Parser) ParseDir(dir string) ([]domain.MarketQuote, error) {
	var quotes []domain.MarketQuote

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".xls" && ext != ".xlsx" {
			return nil
		}

		parsed, err := p.ParseFile(path)
		if err != nil {
			p.logger.Warn("skip market data file", "path", path, "error", err)
			return nil
		}
		quotes = append(quotes, parsed...)
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		p.logger.Warn("market data directory missing", "dir", dir)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	return quotes, nil
}

// ParseFile reads the first sheet of a workbook.
func (p *Parser) ParseFile(path string) ([]domain.MarketQuote, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty sheet")
	}

	index := matchHeader(rows[0])
	if len(index) < minMatchedColumns {
		return nil, fmt.Errorf("columns not matched: found %d of %d", len(index), len(headerKeys))
	}

	date := DateFromFilename(filepath.Base(path), p.now())
	quotes := make([]domain.MarketQuote, 0, len(rows)-1)
	for _, row := range rows[1:] {
		get := func(c column) string {
			i, ok := index[c]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		q := domain.MarketQuote{
			Security:     get(colSecurity),
			ClosingPrice: get(colClosingPrice),
			Volume:       get(colVolume),
			ChangePct:    get(colChange),
			Date:         date,
			Source:       p.source,
		}
		if q.Security == "" && q.ClosingPrice == "" && q.Volume == "" && q.ChangePct == "" {
			continue
		}
		quotes = append(quotes, q)
	}

	return quotes, nil
}

// WriteQuotes replaces the file at path with the quotes table.
func (p *Parser) WriteQuotes(path string, quotes []domain.MarketQuote) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	rows := make([]*quoteRow, 0, len(quotes))
	for _, q := range quotes {
		rows = append(rows, &quoteRow{
			Security:     q.Security,
			ClosingPrice: q.ClosingPrice,
			Volume:       q.Volume,
			ChangePct:    q.ChangePct,
			Date:         q.Date.Format(dateLayout),
			Source:       q.Source,
		})
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write quotes: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}

// DateFromFilename reads the YYYY-MM-DD_ prefix written by the fetcher.
func DateFromFilename(name string, fallback time.Time) time.Time {
	prefix, _, found := strings.Cut(name, "_")
	if !found {
		return dateOnly(fallback)
	}
	day, err := time.Parse(dateLayout, prefix)
	if err != nil {
		return dateOnly(fallback)
	}
	return day
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func matchHeader(header []string) map[column]int {
	index := make(map[column]int, len(headerKeys))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		for _, hk := range headerKeys {
			if _, taken := index[hk.col]; taken {
				continue
			}
			if strings.Contains(name, hk.key) {
				index[hk.col] = i
				break
			}
		}
	}
	return index
}
