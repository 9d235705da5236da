package model

// RowStatus is the lifecycle state of one row's enrichment.
type RowStatus string

const (
	StatusPending    RowStatus = "pending"
	StatusProcessing RowStatus = "processing"
	StatusCompleted  RowStatus = "completed"
	StatusSkipped    RowStatus = "skipped"
	StatusError      RowStatus = "error"
)

// SourceContext is one supporting evidence snippet for a field value.
type SourceContext struct {
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// CorroborationSource is one evidence item backing a corroborated value.
type CorroborationSource struct {
	SourceURL string `json:"source_url"`
	ExactText string `json:"exact_text,omitempty"`
	Value     any    `json:"value"`
}

// Corroboration records multi-source agreement evidence for a field value.
type Corroboration struct {
	SourcesAgree bool                  `json:"sources_agree"`
	Sources      []CorroborationSource `json:"sources"`
}

// FieldEnrichment is one field's outcome for one row.
type FieldEnrichment struct {
	Value         any             `json:"value"`
	Confidence    *float64        `json:"confidence,omitempty"`
	Source        string          `json:"source,omitempty"`
	SourceContext []SourceContext `json:"sourceContext,omitempty"`
	Corroboration *Corroboration  `json:"corroboration,omitempty"`
}

// Empty reports whether the enrichment carries no usable value. An empty
// enrichment is distinct from a field that was never attempted, which is
// simply absent from RowResult.Fields.
func (f FieldEnrichment) Empty() bool {
	if f.Value == nil {
		return true
	}
	s, ok := f.Value.(string)
	return ok && s == ""
}

// RowResult is the per-row aggregate of enrichment outcomes. Fields is not
// guaranteed to contain every requested field.
type RowResult struct {
	RowIndex int                        `json:"rowIndex"`
	Row      Row                        `json:"row"`
	Fields   map[string]FieldEnrichment `json:"fields,omitempty"`
	Status   RowStatus                  `json:"status"`
	Error    string                     `json:"error,omitempty"`
}

// Clone returns a copy whose Fields map and Row are independent of the
// original. Field values themselves are shared; they are treated as
// immutable once decoded.
func (r RowResult) Clone() RowResult {
	out := r
	out.Row = r.Row.Clone()
	if r.Fields != nil {
		out.Fields = make(map[string]FieldEnrichment, len(r.Fields))
		for k, v := range r.Fields {
			out.Fields[k] = v
		}
	}
	return out
}
