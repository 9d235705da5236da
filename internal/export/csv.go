package export

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"
)

// WriteCSV writes the snapshot as delimited text: original columns, field
// values, status and error per row.
func WriteCSV(w io.Writer, snap Snapshot) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(snap.header()); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for idx := range snap.Rows {
		if err := cw.Write(snap.record(idx)); err != nil {
			return eris.Wrapf(err, "export: write csv row %d", idx)
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// ExportCSV writes the snapshot to a CSV file at outputPath.
func ExportCSV(snap Snapshot, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return eris.Wrap(err, "export: create csv file")
	}
	defer f.Close()
	return WriteCSV(f, snap)
}
