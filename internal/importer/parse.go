package importer

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"asetmon/internal/core"
)

var (
	ErrDuplicateHeader = errors.New("header appears more than once")
	ErrNoKnownColumns  = errors.New("header row has no recognized columns")
)

// DefaultPreviewRows is how many parsed rows a preview shows by default.
const DefaultPreviewRows = 5

// Warning describes a cell that was coerced to its default.
type Warning struct {
	Row    int // 1-based sheet row
	Column string
	Raw    string
	Reason string
}

func (w Warning) Error() string {
	return fmt.Sprintf("baris %d, kolom %q: %s (%q)", w.Row, w.Column, w.Reason, w.Raw)
}

// Batch is a parsed upload waiting for confirmation.
type Batch struct {
	Assets         []core.Asset
	Warnings       []Warning
	IgnoredColumns []string
	MissingColumns []string
	ParsedAt       time.Time
}

// Preview returns up to n leading assets; n <= 0 uses DefaultPreviewRows.
func (b *Batch) Preview(n int) []core.Asset {
	if n <= 0 {
		n = DefaultPreviewRows
	}
	if n > len(b.Assets) {
		n = len(b.Assets)
	}
	return b.Assets[:n]
}

// TotalValue sums the value column of the batch.
func (b *Batch) TotalValue() int64 {
	var total int64
	for _, a := range b.Assets {
		total = core.AddValue(total, a.Value)
	}
	return total
}

// Parse reads rows, a sheet as returned by a RowSource, into a Batch.
// Rows before the header and fully blank rows are skipped. Cells that
// cannot be coerced fall back to their defaults and add a Warning.
func Parse(rows [][]string, now time.Time) (*Batch, error) {
	b := &Batch{ParsedAt: now, Assets: []core.Asset{}}
	if len(rows) < 2 {
		b.MissingColumns = headersOf(Columns)
		return b, nil
	}

	header := rows[1]
	index := make(map[string]int)
	for i, h := range header {
		field, ok := fieldForHeader(h)
		if !ok {
			if strings.TrimSpace(h) != "" {
				b.IgnoredColumns = append(b.IgnoredColumns, h)
			}
			continue
		}
		if _, dup := index[field]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateHeader, h)
		}
		index[field] = i
	}
	if len(index) == 0 {
		return nil, ErrNoKnownColumns
	}
	for _, c := range Columns {
		if _, ok := index[c.Field]; !ok {
			b.MissingColumns = append(b.MissingColumns, c.Header)
		}
	}

	p := rowParser{index: index, now: now, batch: b, seenNumbers: make(map[string]int)}
	for i := 2; i < len(rows); i++ {
		if blank(rows[i]) {
			continue
		}
		b.Assets = append(b.Assets, p.parse(rows[i], i+1))
	}
	return b, nil
}

type rowParser struct {
	index       map[string]int
	now         time.Time
	batch       *Batch
	seenNumbers map[string]int
}

func (p *rowParser) cell(row []string, field string) string {
	i, ok := p.index[field]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (p *rowParser) warn(rowNum int, field, raw, reason string) {
	p.batch.Warnings = append(p.batch.Warnings, Warning{
		Row:    rowNum,
		Column: headerOf(field),
		Raw:    raw,
		Reason: reason,
	})
}

func (p *rowParser) parse(row []string, rowNum int) core.Asset {
	a := core.Asset{
		Name:      p.cell(row, FieldName),
		Number:    p.cell(row, FieldNumber),
		Condition: p.cell(row, FieldCondition),
		Address:   p.cell(row, FieldAddress),
		Type:      p.cell(row, FieldType),
		Region:    p.cell(row, FieldRegion),
		SubRegion: p.cell(row, FieldSubRegion),
	}

	if raw := p.cell(row, FieldYear); raw != "" {
		year, ok := parseYear(raw)
		switch {
		case !ok:
			p.warn(rowNum, FieldYear, raw, "tanggal tidak dapat dibaca")
		case !core.ValidYear(year, p.now):
			p.warn(rowNum, FieldYear, raw, fmt.Sprintf("tahun %d di luar rentang", year))
		default:
			a.Year = core.IntPtr(year)
		}
	}

	raw := p.cell(row, FieldValue)
	v, err := core.ParseDigits(raw)
	switch {
	case errors.Is(err, core.ErrNoDigits):
		p.warn(rowNum, FieldValue, raw, "nilai tidak mengandung angka")
	case errors.Is(err, core.ErrValueOverflow), v > core.MaxAssetValue:
		p.warn(rowNum, FieldValue, raw, "nilai terlalu besar")
		v = 0
	}
	a.Value = v

	if raw := p.cell(row, FieldArea); raw != "" {
		area, err := strconv.ParseFloat(raw, 64)
		switch {
		case err != nil || math.IsNaN(area) || math.IsInf(area, 0):
			p.warn(rowNum, FieldArea, raw, "luas bukan angka")
		case area < 0:
			p.warn(rowNum, FieldArea, raw, "luas negatif")
		default:
			a.Area = area
		}
	}

	if a.Number != "" {
		if first, ok := p.seenNumbers[a.Number]; ok {
			p.warn(rowNum, FieldNumber, a.Number, fmt.Sprintf("nomor aset sama dengan baris %d", first))
		} else {
			p.seenNumbers[a.Number] = rowNum
		}
	}
	return a
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"02/01/2006",
	"2/1/2006",
	"02/01/2006 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"02-01-2006",
	"02.01.2006",
	"2 January 2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// parseYear extracts a calendar year from a raw date cell. Four-digit
// integers are taken as years; other numbers are Excel date serials.
func parseYear(raw string) (int, bool) {
	if n, err := strconv.Atoi(raw); err == nil && len(raw) == 4 {
		return n, true
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		t, err := excelize.ExcelDateToTime(f, false)
		if err != nil {
			return 0, false
		}
		return t.Year(), true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Year(), true
		}
	}
	return 0, false
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func headerOf(field string) string {
	for _, c := range Columns {
		if c.Field == field {
			return c.Header
		}
	}
	return field
}

func headersOf(cols []Column) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		out = append(out, c.Header)
	}
	return out
}
