// Package xlsx reads uploaded Excel workbooks.
package xlsx

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"asetmon/internal/sheets"
)

// Workbook reads the first sheet of an .xlsx stream.
type Workbook struct {
	r     io.Reader
	name  string
	sheet string
}

var _ sheets.RowSource = (*Workbook)(nil)

// New wraps r. name is used to label the import.
func New(r io.Reader, name string) *Workbook {
	return &Workbook{r: r, name: name}
}

// WithSheet reads the named sheet instead of the first one.
func (w *Workbook) WithSheet(sheet string) *Workbook {
	w.sheet = sheet
	return w
}

func (w *Workbook) Name() string { return w.name }

func (w *Workbook) ReadRows(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := excelize.OpenReader(w.r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sheets.ErrUnreadable, err)
	}
	defer f.Close()

	sheet := w.sheet
	if sheet == "" {
		list := f.GetSheetList()
		if len(list) == 0 {
			return nil, fmt.Errorf("%w: workbook has no sheets", sheets.ErrUnreadable)
		}
		sheet = list[0]
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sheets.ErrUnreadable, err)
	}
	return rows, nil
}
