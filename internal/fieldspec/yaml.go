// Package fieldspec loads enrichment field definitions, either from a local
// YAML file or from a Notion database.
package fieldspec

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/enrichtable/internal/model"
)

type yamlSpec struct {
	Fields []model.Field `yaml:"fields"`
}

// LoadYAML reads field definitions from a YAML file of the form:
//
//	fields:
//	  - name: company_name
//	    display_name: Company Name
//	    type: string
func LoadYAML(path string) ([]model.Field, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "fieldspec: read yaml file")
	}

	var spec yamlSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, eris.Wrap(err, "fieldspec: parse yaml")
	}
	return normalize(spec.Fields)
}

// normalize validates names and types, defaulting a missing type to string
// and a missing display name to the field name.
func normalize(fields []model.Field) ([]model.Field, error) {
	if len(fields) == 0 {
		return nil, eris.New("fieldspec: no fields defined")
	}
	out := make([]model.Field, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return nil, eris.New("fieldspec: field with empty name")
		}
		if seen[f.Name] {
			return nil, eris.Errorf("fieldspec: duplicate field %q", f.Name)
		}
		seen[f.Name] = true
		if f.DisplayName == "" {
			f.DisplayName = f.Name
		}
		if f.Type == "" {
			f.Type = model.FieldTypeString
		}
		if !f.Type.Valid() {
			return nil, eris.Errorf("fieldspec: field %q has unknown type %q", f.Name, f.Type)
		}
		out = append(out, f)
	}
	return out, nil
}
