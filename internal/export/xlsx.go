package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ExportXLSX writes the snapshot as a single-sheet workbook with the same
// column layout as the CSV export.
func ExportXLSX(snap Snapshot, outputPath string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Enrichment")
	if err != nil {
		return eris.Wrap(err, "export: add xlsx sheet")
	}

	headerRow := sheet.AddRow()
	for _, col := range snap.header() {
		headerRow.AddCell().Value = col
	}

	for idx := range snap.Rows {
		row := sheet.AddRow()
		for _, val := range snap.record(idx) {
			row.AddCell().Value = val
		}
	}

	return eris.Wrap(f.Save(outputPath), "export: save xlsx file")
}
