package export

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/enrichtable/internal/model"
)

// jsonDocument is the structured-text export shape: full enrichment
// metadata per row, including confidence, sources and corroboration.
type jsonDocument struct {
	EmailColumn string        `json:"emailColumn"`
	Fields      []model.Field `json:"fields"`
	Rows        []jsonRow     `json:"rows"`
}

type jsonRow struct {
	RowIndex int                              `json:"rowIndex"`
	Row      map[string]string                `json:"row"`
	Status   model.RowStatus                  `json:"status"`
	Error    string                           `json:"error,omitempty"`
	Fields   map[string]model.FieldEnrichment `json:"fields,omitempty"`
}

// WriteJSON writes the snapshot as an indented JSON document. Rows without a
// stored result are emitted with status pending and no fields.
func WriteJSON(w io.Writer, snap Snapshot) error {
	doc := jsonDocument{
		EmailColumn: snap.EmailColumn,
		Fields:      snap.Fields,
		Rows:        make([]jsonRow, 0, len(snap.Rows)),
	}
	for idx, row := range snap.Rows {
		jr := jsonRow{
			RowIndex: idx,
			Row:      row.Values,
			Status:   model.StatusPending,
		}
		if res, ok := snap.Results[idx]; ok {
			jr.Status = res.Status
			jr.Error = res.Error
			jr.Fields = res.Fields
		}
		doc.Rows = append(doc.Rows, jr)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(doc), "export: encode json")
}

// ExportJSON writes the snapshot to a JSON file at outputPath.
func ExportJSON(snap Snapshot, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return eris.Wrap(err, "export: create json file")
	}
	defer f.Close()
	return WriteJSON(f, snap)
}
