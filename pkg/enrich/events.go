package enrich

// EventType discriminates frames on the enrichment stream.
type EventType string

const (
	EventSession       EventType = "session"
	EventPending       EventType = "pending"
	EventProcessing    EventType = "processing"
	EventResult        EventType = "result"
	EventComplete      EventType = "complete"
	EventCancelled     EventType = "cancelled"
	EventError         EventType = "error"
	EventAgentProgress EventType = "agent_progress"
)

var knownEventTypes = map[EventType]struct{}{
	EventSession:       {},
	EventPending:       {},
	EventProcessing:    {},
	EventResult:        {},
	EventComplete:      {},
	EventCancelled:     {},
	EventError:         {},
	EventAgentProgress: {},
}

// FieldSpec describes one requested enrichment field on the wire.
type FieldSpec struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Type        string `json:"type"`
}

// SourceContext is one supporting evidence snippet attached to a field value.
type SourceContext struct {
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// EvidenceItem is one source backing a corroborated value.
type EvidenceItem struct {
	SourceURL string `json:"source_url"`
	ExactText string `json:"exact_text,omitempty"`
	Value     any    `json:"value"`
}

// Corroboration carries multi-source agreement evidence for a field value.
type Corroboration struct {
	SourcesAgree bool           `json:"sources_agree"`
	Sources      []EvidenceItem `json:"sources"`
}

// FieldResult is one field's enrichment outcome for one row.
type FieldResult struct {
	Value         any             `json:"value"`
	Confidence    *float64        `json:"confidence,omitempty"`
	Source        string          `json:"source,omitempty"`
	SourceContext []SourceContext `json:"sourceContext,omitempty"`
	Corroboration *Corroboration  `json:"corroboration,omitempty"`
}

// RowResult is the per-row payload of a result event.
type RowResult struct {
	RowIndex int                    `json:"rowIndex"`
	Row      map[string]string      `json:"row"`
	Fields   map[string]FieldResult `json:"fields,omitempty"`
	Status   string                 `json:"status"`
	Error    string                 `json:"error,omitempty"`
}

// Event is one decoded frame from the enrichment stream. Fields beyond Type
// are populated per event kind: SessionID for session events, RowIndex for
// pending/processing, Result for result events, Message/SourceURL/MessageType
// for error and agent_progress events.
type Event struct {
	Type        EventType  `json:"type"`
	SessionID   string     `json:"sessionId,omitempty"`
	RowIndex    *int       `json:"rowIndex,omitempty"`
	Result      *RowResult `json:"result,omitempty"`
	Message     string     `json:"message,omitempty"`
	SourceURL   string     `json:"sourceUrl,omitempty"`
	MessageType string     `json:"messageType,omitempty"`
}

// QueryEventType discriminates frames on the conversational query stream.
type QueryEventType string

const (
	QueryStatus   QueryEventType = "status"
	QueryResponse QueryEventType = "response"
	QueryError    QueryEventType = "error"
)

var knownQueryEventTypes = map[QueryEventType]struct{}{
	QueryStatus:   {},
	QueryResponse: {},
	QueryError:    {},
}

// QueryEvent is one decoded frame from the query stream.
type QueryEvent struct {
	Type      QueryEventType `json:"type"`
	Message   string         `json:"message"`
	SourceURL string         `json:"sourceUrl,omitempty"`
}
