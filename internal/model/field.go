package model

// FieldType is the declared value type of an enrichment field.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeArray   FieldType = "array"
	FieldTypeOther   FieldType = "other"
)

// Valid reports whether t is one of the declared field types.
func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeString, FieldTypeBoolean, FieldTypeArray, FieldTypeOther:
		return true
	}
	return false
}

// Field describes one requested enrichment attribute. Fields are supplied
// before the session starts and are immutable for its lifetime.
type Field struct {
	Name        string    `json:"name" yaml:"name"`
	DisplayName string    `json:"displayName" yaml:"display_name"`
	Type        FieldType `json:"type" yaml:"type"`
}

// Truthy reports whether an enriched value matches one of the fixed boolean
// literal representations the producer emits: a true bool, the string "true",
// or the string "Yes". The set is deliberately closed; widening it silently
// would change match semantics for existing fields.
func Truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true" || t == "Yes"
	}
	return false
}
