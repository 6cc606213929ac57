// Package metrics holds the keyword-proximity heuristic that pulls Revenue,
// Net Profit and EPS out of report text. It does no I/O.
package metrics

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"DSEReports/internal/domain"
)

// Key names a target metric; the values double as the table column headers.
type Key string

const (
	Revenue   Key = "Revenue"
	NetProfit Key = "Net Profit"
	EPS       Key = "EPS"
)

// Keys lists the targets in output-column order.
var Keys = []Key{Revenue, NetProfit, EPS}

var patterns = map[Key]*regexp.Regexp{
	Revenue:   regexp.MustCompile(`(?i)Revenue`),
	NetProfit: regexp.MustCompile(`(?i)Net\s*Profit`),
	EPS:       regexp.MustCompile(`(?i)Earnings\s*Per\s*Share|EPS`),
}

var (
	lineNumber = regexp.MustCompile(`\d+(?:\.\d+)?`)
	cellNumber = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
)

// Format renders a value with the scale it was read with, so "1234.50" stays
// "1234.50". Missing values render as "".
func Format(v decimal.NullDecimal) string {
	if !v.Valid {
		return ""
	}
	if exp := v.Decimal.Exponent(); exp < 0 {
		return v.Decimal.StringFixed(-exp)
	}
	return v.Decimal.String()
}

// Matches reports whether text mentions the metric.
func Matches(key Key, text string) bool {
	return patterns[key].MatchString(text)
}

type collector struct {
	values map[Key]decimal.Decimal
}

func newCollector() *collector {
	return &collector{values: make(map[Key]decimal.Decimal, len(Keys))}
}

func (c *collector) has(key Key) bool {
	_, ok := c.values[key]
	return ok
}

func (c *collector) done() bool {
	return len(c.values) == len(Keys)
}

func (c *collector) metrics() domain.Metrics {
	get := func(k Key) decimal.NullDecimal {
		v, ok := c.values[k]
		return decimal.NullDecimal{Decimal: v, Valid: ok}
	}
	return domain.Metrics{
		Revenue:   get(Revenue),
		NetProfit: get(NetProfit),
		EPS:       get(EPS),
	}
}

// FromLines scans text lines. The first line that mentions a metric and carries
// a number sets it; later mentions never overwrite it.
func FromLines(lines []string) domain.Metrics {
	c := newCollector()
	for _, line := range lines {
		if c.done() {
			break
		}
		for _, key := range Keys {
			if c.has(key) || !Matches(key, line) {
				continue
			}
			if v, ok := firstNumber(lineNumber, strings.ReplaceAll(line, ",", "")); ok {
				c.values[key] = v
			}
		}
	}
	return c.metrics()
}

// FromText splits text into lines and applies FromLines.
func FromText(text string) domain.Metrics {
	return FromLines(strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n"))
}

// FromSheets scans spreadsheet sheets in order. The first row of every sheet is
// a header and is ignored. When a data cell mentions a metric, the first number
// anywhere in its row is taken.
func FromSheets(sheets [][][]string) domain.Metrics {
	c := newCollector()
	for _, rows := range sheets {
		if len(rows) < 2 {
			continue
		}
		for _, row := range rows[1:] {
			scanRow(c, row)
			if c.done() {
				return c.metrics()
			}
		}
	}
	return c.metrics()
}

// FromRows is FromSheets for a single sheet.
func FromRows(rows [][]string) domain.Metrics {
	return FromSheets([][][]string{rows})
}

func scanRow(c *collector, row []string) {
	for _, cell := range row {
		for _, key := range Keys {
			if c.has(key) || !Matches(key, cell) {
				continue
			}
			if v, ok := firstNumberInRow(row); ok {
				c.values[key] = v
			}
		}
	}
}

func firstNumberInRow(row []string) (decimal.Decimal, bool) {
	for _, cell := range row {
		match := cellNumber.FindString(cell)
		if match == "" {
			continue
		}
		if v, err := decimal.NewFromString(strings.ReplaceAll(match, ",", "")); err == nil {
			return v, true
		}
	}
	return decimal.Decimal{}, false
}

func firstNumber(expr *regexp.Regexp, text string) (decimal.Decimal, bool) {
	match := expr.FindString(text)
	if match == "" {
		return decimal.Decimal{}, false
	}
	v, err := decimal.NewFromString(match)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return v, true
}
