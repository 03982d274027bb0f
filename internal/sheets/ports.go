// Package sheets defines where asset spreadsheets are read from.
package sheets

import (
	"context"
	"errors"
)

// ErrUnreadable is returned when a source is not a spreadsheet this
// service can open.
var ErrUnreadable = errors.New("spreadsheet cannot be read")

// RowSource yields the cell text of the first sheet, row by row. Numeric
// cells are returned unformatted so dates arrive as Excel serials.
type RowSource interface {
	ReadRows(ctx context.Context) ([][]string, error)
}

// Named is implemented by sources that can describe where they came from.
type Named interface {
	Name() string
}

// SourceName returns src's name, or fallback.
func SourceName(src RowSource, fallback string) string {
	if n, ok := src.(Named); ok && n.Name() != "" {
		return n.Name()
	}
	return fallback
}
