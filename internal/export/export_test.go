package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/enrichtable/internal/model"
	"github.com/sells-group/enrichtable/internal/table"
)

func testSnapshot() Snapshot {
	rows := []model.Row{
		model.NewRow([]string{"email", "name"}, map[string]string{"email": "a@acme.com", "name": "Ann"}),
		model.NewRow([]string{"email", "name"}, map[string]string{"email": "b@acme.com", "name": "Bob"}),
		model.NewRow([]string{"email", "name"}, map[string]string{"email": "c@gmail.com", "name": "Cal"}),
	}
	fields := []model.Field{
		{Name: "size", DisplayName: "Company Size", Type: model.FieldTypeString},
		{Name: "tags", DisplayName: "Tags", Type: model.FieldTypeArray},
	}

	store := table.NewMemStore()
	store.Replace(model.RowResult{
		RowIndex: 0,
		Row:      rows[0],
		Fields: map[string]model.FieldEnrichment{
			"size": {Value: "10-50"},
			"tags": {Value: []any{"b2b", "saas"}},
		},
		Status: model.StatusCompleted,
	})
	store.Replace(model.RowResult{
		RowIndex: 2,
		Row:      rows[2],
		Status:   model.StatusSkipped,
		Error:    "Personal email provider",
	})

	return BuildSnapshot(rows, fields, "email", store)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, testSnapshot()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, []string{"email", "name", "Company Size", "Tags", "Status", "Error"}, records[0])
	assert.Equal(t, []string{"a@acme.com", "Ann", "10-50", "b2b; saas", "completed", ""}, records[1])
	// Row 1 has no stored result; its cells stay empty.
	assert.Equal(t, []string{"b@acme.com", "Bob", "", "", "", ""}, records[2])
	assert.Equal(t, []string{"c@gmail.com", "Cal", "", "", "skipped", "Personal email provider"}, records[3])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, testSnapshot()))

	var doc struct {
		EmailColumn string `json:"emailColumn"`
		Rows        []struct {
			RowIndex int               `json:"rowIndex"`
			Row      map[string]string `json:"row"`
			Status   string            `json:"status"`
			Error    string            `json:"error"`
			Fields   map[string]struct {
				Value any `json:"value"`
			} `json:"fields"`
		} `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, "email", doc.EmailColumn)
	require.Len(t, doc.Rows, 3)
	assert.Equal(t, "completed", doc.Rows[0].Status)
	assert.Equal(t, "10-50", doc.Rows[0].Fields["size"].Value)
	// Missing results are emitted as pending.
	assert.Equal(t, "pending", doc.Rows[1].Status)
	assert.Empty(t, doc.Rows[1].Fields)
	assert.Equal(t, "Personal email provider", doc.Rows[2].Error)
}

func TestExportFiles(t *testing.T) {
	dir := t.TempDir()
	snap := testSnapshot()

	require.NoError(t, ExportCSV(snap, filepath.Join(dir, "out.csv")))
	require.NoError(t, ExportJSON(snap, filepath.Join(dir, "out.json")))
	require.NoError(t, ExportXLSX(snap, filepath.Join(dir, "out.xlsx")))
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "10-50", "10-50"},
		{"bool", true, "true"},
		{"float", 42.5, "42.5"},
		{"int-ish float", float64(7), "7"},
		{"array", []any{"a", "b", 3.0}, "a; b; 3"},
		{"string slice", []string{"x", "y"}, "x; y"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatValue(tt.in))
		})
	}
}
