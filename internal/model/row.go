package model

import "encoding/json"

// Row is one immutable input record. Columns preserves the original column
// order from the source file; Values maps column name to cell value. Rows are
// identified by their zero-based index in the session's input, which is
// stable for the session's lifetime.
type Row struct {
	Columns []string
	Values  map[string]string
}

// NewRow builds a Row from an ordered column list and its values.
func NewRow(columns []string, values map[string]string) Row {
	r := Row{
		Columns: append([]string(nil), columns...),
		Values:  make(map[string]string, len(values)),
	}
	for k, v := range values {
		r.Values[k] = v
	}
	return r
}

// Email returns the value of the designated email column. An empty column
// name falls back to the row's first column.
func (r Row) Email(emailColumn string) string {
	if emailColumn == "" && len(r.Columns) > 0 {
		emailColumn = r.Columns[0]
	}
	return r.Values[emailColumn]
}

// Clone returns an independent copy of the row.
func (r Row) Clone() Row {
	return NewRow(r.Columns, r.Values)
}

// MarshalJSON encodes the row as a flat string-keyed object, which is the
// wire representation. Column order is carried out of band.
func (r Row) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Values)
}

// UnmarshalJSON decodes a flat string-keyed object. Column order is not
// recoverable from the wire form and is left empty.
func (r *Row) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &r.Values)
}
