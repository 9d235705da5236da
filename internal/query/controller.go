// Package query owns the lifecycle of one conversational question against
// the current result store snapshot. Queries stream independently of the
// enrichment session and are independently cancellable.
package query

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/enrichtable/internal/model"
	"github.com/sells-group/enrichtable/internal/table"
	"github.com/sells-group/enrichtable/pkg/enrich"
)

// FailureNotice is the single warning appended when a query stream cannot be
// opened or read.
const FailureNotice = "Sorry, your question could not be processed. Please try again."

// DefaultTimeout bounds one query stream end to end.
const DefaultTimeout = 2 * time.Minute

// historyLimit is how many prior user/assistant turns are sent with a query.
const historyLimit = 10

// ErrEmptyMessage is returned for a blank question.
var ErrEmptyMessage = eris.New("query: empty message")

// ErrInFlight is returned when a query is already streaming.
var ErrInFlight = eris.New("query: another query is in flight")

// Controller submits conversational queries about the evolving dataset. It
// reads the result store but never writes enrichment data; its only writes
// go to the conversation log.
type Controller struct {
	client      enrich.Client
	store       table.Store
	log         *table.MessageLog
	fields      []model.Field
	emailColumn string
	totalRows   int
	timeout     time.Duration

	mu           sync.Mutex
	queryID      string
	cancelStream context.CancelFunc
}

// Config describes the dataset a controller answers questions about.
type Config struct {
	Fields      []model.Field
	EmailColumn string
	TotalRows   int

	// Timeout overrides DefaultTimeout when positive.
	Timeout time.Duration
}

// New creates a query controller over the given store and log.
func New(client enrich.Client, store table.Store, log *table.MessageLog, cfg Config) *Controller {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Controller{
		client:      client,
		store:       store,
		log:         log,
		fields:      append([]model.Field(nil), cfg.Fields...),
		emailColumn: cfg.EmailColumn,
		totalRows:   cfg.TotalRows,
		timeout:     timeout,
	}
}

// Submit sends one question and streams the answer into the log. It blocks
// until the stream ends. The context snapshot reflects the store at the
// moment of submission only. Processing state and the in-flight query id are
// cleared on return regardless of outcome.
func (c *Controller) Submit(ctx context.Context, message string) error {
	if strings.TrimSpace(message) == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	if c.queryID != "" {
		c.mu.Unlock()
		return ErrInFlight
	}
	id := uuid.New().String()
	c.queryID = id
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.queryID = ""
		c.cancelStream = nil
		c.mu.Unlock()
	}()

	// Optimistic append before any network activity.
	c.log.Append(model.NewMessage(model.MessageUser, message))

	req := enrich.QueryRequest{
		QueryID: id,
		Message: message,
		Context: c.BuildContext(),
		History: c.buildHistory(),
	}

	streamCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	c.mu.Lock()
	c.cancelStream = cancel
	c.mu.Unlock()

	events, err := c.client.StartQuery(streamCtx, req)
	if err != nil {
		c.log.Append(model.NewMessage(model.MessageWarning, FailureNotice))
		return eris.Wrap(err, "query: submit")
	}

	for ev := range events {
		switch ev.Type {
		case enrich.QueryStatus:
			msg := model.NewMessage(model.MessageInfo, ev.Message)
			msg.SourceURL = ev.SourceURL
			c.log.Append(msg)
		case enrich.QueryResponse:
			c.log.Append(model.NewMessage(model.MessageAssistant, ev.Message))
		case enrich.QueryError:
			c.log.Append(model.NewMessage(model.MessageWarning, ev.Message))
		}
	}

	if eris.Is(streamCtx.Err(), context.DeadlineExceeded) {
		c.log.Append(model.NewMessage(model.MessageWarning, FailureNotice))
		return eris.Wrap(streamCtx.Err(), "query: stream timed out")
	}
	return nil
}

// Cancel sends the side-channel cancellation for the in-flight query and
// clears processing state locally regardless of the request's outcome.
func (c *Controller) Cancel(ctx context.Context) {
	c.mu.Lock()
	id := c.queryID
	cancel := c.cancelStream
	c.mu.Unlock()

	if id == "" {
		return
	}
	if err := c.client.CancelQuery(ctx, id); err != nil {
		zap.L().Warn("query: cancel request failed",
			zap.String("query_id", id),
			zap.Error(err),
		)
	}
	if cancel != nil {
		cancel()
	}
}

// Processing reports whether a query is in flight.
func (c *Controller) Processing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queryID != ""
}

// snapshotRow is one enriched row in the serialized table snapshot.
type snapshotRow struct {
	Email  string         `json:"email"`
	Fields map[string]any `json:"fields"`
}

// BuildContext assembles the context payload for a query: field descriptors,
// row counts, and a serialized snapshot of every row with a non-pending
// result. Rows with no stored result or still pending are excluded.
func (c *Controller) BuildContext() enrich.QueryContext {
	results := c.store.All()

	rows := make([]snapshotRow, 0, len(results))
	for _, res := range results {
		if res.Status == model.StatusPending {
			continue
		}
		sr := snapshotRow{
			Email:  res.Row.Email(c.emailColumn),
			Fields: make(map[string]any, len(res.Fields)),
		}
		for name, fe := range res.Fields {
			sr.Fields[name] = fe.Value
		}
		rows = append(rows, sr)
	}

	serialized, err := json.Marshal(rows)
	if err != nil {
		// Snapshot rows are plain JSON-decoded values; this cannot
		// realistically fail, but the query must not be blocked on it.
		zap.L().Warn("query: marshal table snapshot", zap.Error(err))
		serialized = []byte("[]")
	}

	specs := make([]enrich.FieldSpec, 0, len(c.fields))
	for _, f := range c.fields {
		specs = append(specs, enrich.FieldSpec{
			Name:        f.Name,
			DisplayName: f.DisplayName,
			Type:        string(f.Type),
		})
	}

	return enrich.QueryContext{
		EmailColumn:   c.emailColumn,
		Fields:        specs,
		TotalRows:     c.totalRows,
		ProcessedRows: len(rows),
		Table:         string(serialized),
	}
}

func (c *Controller) buildHistory() []enrich.HistoryMessage {
	msgs := c.log.LastByType(historyLimit, model.MessageUser, model.MessageAssistant)
	history := make([]enrich.HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, enrich.HistoryMessage{
			Role:    string(m.Type),
			Content: m.Text,
		})
	}
	return history
}
