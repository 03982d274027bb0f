// Package importer turns spreadsheet rows into asset records.
//
// The first sheet row is a banner and is skipped. The second row holds the
// column headers, which are matched exactly against the mapping below;
// unmatched headers are ignored and absent ones take their defaults.
package importer

// Field names mirror the asset table columns.
const (
	FieldName      = "nama_aset"
	FieldNumber    = "nomor_aset"
	FieldYear      = "tahun"
	FieldValue     = "nilai"
	FieldCondition = "kondisi"
	FieldAddress   = "alamat"
	FieldType      = "jenis_aset"
	FieldRegion    = "kph"
	FieldSubRegion = "sub_kph"
	FieldArea      = "luas"
)

// Column maps a spreadsheet header to an asset field.
type Column struct {
	Header string
	Field  string
}

// Columns is the fixed header mapping, in table order.
var Columns = []Column{
	{Header: "Nama Aset*", Field: FieldName},
	{Header: "Nomor Aset*", Field: FieldNumber},
	{Header: "Tanggal Perolehan*", Field: FieldYear},
	{Header: "Nilai Perolehan*", Field: FieldValue},
	{Header: "Kondisi Aset*", Field: FieldCondition},
	{Header: "Alamat", Field: FieldAddress},
	{Header: "Jenis Aset", Field: FieldType},
	{Header: "KPH", Field: FieldRegion},
	{Header: "Sub KPH", Field: FieldSubRegion},
	{Header: "Luas", Field: FieldArea},
}

func fieldForHeader(header string) (string, bool) {
	for _, c := range Columns {
		if c.Header == header {
			return c.Field, true
		}
	}
	return "", false
}
