// Package input loads input rows from delimited files. Column semantics are
// intentionally thin: enrichment treats rows as opaque string records apart
// from the designated email column.
package input

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/enrichtable/internal/model"
)

// LoadCSV reads a headered CSV file into rows, returning the header columns
// in file order.
func LoadCSV(path string) ([]model.Row, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "input: open csv")
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV reads headered CSV content from r.
func ReadCSV(r io.Reader) ([]model.Row, []string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, eris.New("input: empty csv")
	}
	if err != nil {
		return nil, nil, eris.Wrap(err, "input: read csv header")
	}
	columns := make([]string, len(header))
	for i, col := range header {
		columns[i] = strings.TrimSpace(col)
	}

	var rows []model.Row
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, eris.Wrapf(err, "input: read csv row %d", len(rows)+1)
		}
		values := make(map[string]string, len(columns))
		for i, col := range columns {
			if i < len(record) {
				values[col] = record[i]
			}
		}
		rows = append(rows, model.NewRow(columns, values))
	}

	if len(rows) == 0 {
		return nil, nil, eris.New("input: csv has no data rows")
	}
	return rows, columns, nil
}

// DetectEmailColumn picks the designated email column: the first column
// whose name contains "email", else the first column.
func DetectEmailColumn(columns []string) string {
	for _, col := range columns {
		if strings.Contains(strings.ToLower(col), "email") {
			return col
		}
	}
	if len(columns) > 0 {
		return columns[0]
	}
	return ""
}
