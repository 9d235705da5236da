// Package export derives files from a result store snapshot. It consumes
// the store's read interface only and never touches the streaming protocol.
package export

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sells-group/enrichtable/internal/model"
	"github.com/sells-group/enrichtable/internal/table"
)

// Snapshot is the exportable view of a session at a point in time.
type Snapshot struct {
	EmailColumn string
	Columns     []string
	Fields      []model.Field
	Rows        []model.Row
	Results     map[int]model.RowResult
}

// BuildSnapshot captures the store's current contents alongside the
// immutable session inputs.
func BuildSnapshot(rows []model.Row, fields []model.Field, emailColumn string, store table.Store) Snapshot {
	snap := Snapshot{
		EmailColumn: emailColumn,
		Fields:      append([]model.Field(nil), fields...),
		Rows:        append([]model.Row(nil), rows...),
		Results:     make(map[int]model.RowResult),
	}
	if len(rows) > 0 {
		snap.Columns = append([]string(nil), rows[0].Columns...)
	}
	for _, res := range store.All() {
		snap.Results[res.RowIndex] = res
	}
	return snap
}

// header returns the output column row: original columns, then field display
// names, then status and error.
func (s Snapshot) header() []string {
	header := append([]string(nil), s.Columns...)
	for _, f := range s.Fields {
		name := f.DisplayName
		if name == "" {
			name = f.Name
		}
		header = append(header, name)
	}
	return append(header, "Status", "Error")
}

// record returns the output values for one row index.
func (s Snapshot) record(idx int) []string {
	row := s.Rows[idx]
	record := make([]string, 0, len(s.Columns)+len(s.Fields)+2)
	for _, col := range s.Columns {
		record = append(record, row.Values[col])
	}

	res, ok := s.Results[idx]
	for _, f := range s.Fields {
		if !ok {
			record = append(record, "")
			continue
		}
		record = append(record, FormatValue(res.Fields[f.Name].Value))
	}
	if ok {
		record = append(record, string(res.Status), res.Error)
	} else {
		record = append(record, "", "")
	}
	return record
}

// FormatValue renders an enriched value as a cell string. Arrays are joined
// with "; ".
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, FormatValue(item))
		}
		return strings.Join(parts, "; ")
	case []string:
		return strings.Join(t, "; ")
	default:
		return fmt.Sprintf("%v", t)
	}
}
