// Package export writes filtered asset sets for download.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"asetmon/internal/core"
)

// Filename is the download name of the CSV export.
const Filename = "monitoring_aset.csv"

// ContentType of the CSV export.
const ContentType = "text/csv; charset=utf-8"

// Header is the CSV header row, matching the assets table columns.
var Header = []string{"id", "nama_aset", "nomor_aset", "tahun", "nilai", "kondisi", "alamat", "jenis_aset", "kph", "sub_kph", "luas"}

// WriteCSV writes assets with Header first. A nil year is an empty cell.
func WriteCSV(w io.Writer, assets []core.Asset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, a := range assets {
		year := ""
		if a.Year != nil {
			year = strconv.Itoa(*a.Year)
		}
		if err := cw.Write([]string{
			strconv.FormatInt(a.ID, 10),
			a.Name,
			a.Number,
			year,
			strconv.FormatInt(a.Value, 10),
			a.Condition,
			a.Address,
			a.Type,
			a.Region,
			a.SubRegion,
			strconv.FormatFloat(a.Area, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
