// Package session owns the lifecycle of one enrichment run: it opens the
// producer stream, drives the result store from decoded events, and exposes
// best-effort cancellation.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/enrichtable/internal/model"
	"github.com/sells-group/enrichtable/internal/reveal"
	"github.com/sells-group/enrichtable/internal/table"
	"github.com/sells-group/enrichtable/pkg/enrich"
)

// State is the controller's lifecycle state. Completed and cancelled are
// terminal.
type State string

const (
	StateIdle       State = "idle"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateCancelled  State = "cancelled"
)

// CompletionNotice is appended to the conversation log exactly once when the
// producer reports the session complete.
const CompletionNotice = "All rows processed. Ask me anything about the enriched data."

// DefaultIdleTimeout bounds how long the controller waits between frames
// before treating the stream as dead. The producer does not guarantee a
// terminal event, so the client enforces its own bound.
const DefaultIdleTimeout = 15 * time.Minute

// Config describes one enrichment run.
type Config struct {
	Rows        []model.Row
	Fields      []model.Field
	EmailColumn string
	UseAgents   bool

	FirecrawlKey  string
	PerplexityKey string

	// IdleTimeout overrides DefaultIdleTimeout when positive.
	IdleTimeout time.Duration
}

// Controller drives one enrichment session. It is the only writer of
// enrichment results into the store.
type Controller struct {
	client  enrich.Client
	store   table.Store
	log     *table.MessageLog
	tracker *reveal.Tracker
	cfg     Config

	mu           sync.Mutex
	state        State
	sessionID    string
	cancelStream context.CancelFunc
	done         chan struct{}
	doneOnce     sync.Once
}

// New creates an idle controller. Start begins the run.
func New(client enrich.Client, store table.Store, log *table.MessageLog, tracker *reveal.Tracker, cfg Config) *Controller {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	return &Controller{
		client:  client,
		store:   store,
		log:     log,
		tracker: tracker,
		cfg:     cfg,
		state:   StateIdle,
		done:    make(chan struct{}),
	}
}

// Start issues the enrichment request and begins consuming the stream. It
// returns once the stream is open; consumption continues in the background
// until a terminal event, end of stream, or cancellation. A transport-open
// failure leaves the controller completed, never stuck processing.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return eris.Errorf("session: cannot start from state %s", c.state)
	}
	c.state = StateProcessing
	c.mu.Unlock()

	req := enrich.SessionRequest{
		Rows:          make([]map[string]string, 0, len(c.cfg.Rows)),
		Fields:        fieldSpecs(c.cfg.Fields),
		EmailColumn:   c.cfg.EmailColumn,
		UseAgents:     c.cfg.UseAgents,
		FirecrawlKey:  c.cfg.FirecrawlKey,
		PerplexityKey: c.cfg.PerplexityKey,
	}
	for _, row := range c.cfg.Rows {
		req.Rows = append(req.Rows, row.Values)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	events, err := c.client.StartSession(streamCtx, req)
	if err != nil {
		cancel()
		c.mu.Lock()
		c.state = StateCompleted
		c.mu.Unlock()
		c.log.Append(model.NewMessage(model.MessageWarning, "Enrichment could not be started. Please try again."))
		c.finish()
		return eris.Wrap(err, "session: start")
	}

	c.mu.Lock()
	c.cancelStream = cancel
	c.mu.Unlock()

	go c.consume(events, cancel)
	return nil
}

func (c *Controller) consume(events <-chan enrich.Event, cancel context.CancelFunc) {
	defer cancel()
	defer c.finish()

	timer := time.NewTimer(c.cfg.IdleTimeout)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(c.cfg.IdleTimeout)
			c.handleEvent(ev)
		case <-timer.C:
			zap.L().Warn("session: stream idle timeout, closing",
				zap.Duration("timeout", c.cfg.IdleTimeout),
			)
			return
		}
	}
}

// finish resolves a still-processing controller to completed. End of stream
// without a terminal event is an implicit completion.
func (c *Controller) finish() {
	c.mu.Lock()
	if c.state == StateProcessing {
		c.state = StateCompleted
	}
	c.mu.Unlock()
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *Controller) handleEvent(ev enrich.Event) {
	now := time.Now()

	switch ev.Type {
	case enrich.EventSession:
		c.mu.Lock()
		if c.sessionID == "" {
			c.sessionID = ev.SessionID
		}
		c.mu.Unlock()

	case enrich.EventPending:
		if c.terminal() || ev.RowIndex == nil {
			return
		}
		idx := *ev.RowIndex
		c.store.UpsertPending(idx, c.rowAt(idx))

	case enrich.EventProcessing:
		if c.terminal() || ev.RowIndex == nil {
			return
		}
		idx := *ev.RowIndex
		c.store.SetProcessing(idx)
		c.tracker.SetProcessingRow(idx, now)

	case enrich.EventResult:
		if c.terminal() || ev.Result == nil {
			return
		}
		res := c.toModel(*ev.Result)
		c.store.Replace(res)
		c.tracker.RecordArrival(res.RowIndex, now)

	case enrich.EventComplete:
		c.mu.Lock()
		if c.state == StateProcessing {
			c.state = StateCompleted
		}
		c.mu.Unlock()
		c.log.AppendUnique(model.NewMessage(model.MessageSuccess, CompletionNotice))

	case enrich.EventCancelled:
		c.mu.Lock()
		if c.state == StateProcessing {
			c.state = StateCancelled
		}
		c.mu.Unlock()

	case enrich.EventError:
		zap.L().Error("session: producer error", zap.String("message", ev.Message))
		c.mu.Lock()
		if c.state == StateProcessing {
			c.state = StateCompleted
		}
		c.mu.Unlock()

	case enrich.EventAgentProgress:
		if c.terminal() {
			return
		}
		msg := model.NewMessage(progressType(ev.MessageType), ev.Message)
		msg.RowIndex = ev.RowIndex
		msg.SourceURL = ev.SourceURL
		c.log.Append(msg)
	}
}

// Cancel sends the side-channel cancellation and flips local state to
// cancelled regardless of whether the request succeeds. It is a no-op once
// the controller is terminal.
func (c *Controller) Cancel(ctx context.Context) {
	c.mu.Lock()
	if c.state != StateProcessing {
		c.mu.Unlock()
		return
	}
	sid := c.sessionID
	cancel := c.cancelStream
	c.mu.Unlock()

	if sid != "" {
		if err := c.client.CancelSession(ctx, sid); err != nil {
			zap.L().Warn("session: cancel request failed",
				zap.String("session_id", sid),
				zap.Error(err),
			)
		}
	}

	c.mu.Lock()
	if c.state == StateProcessing {
		c.state = StateCancelled
	}
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Reset returns a terminal controller to idle, clearing the store and
// reveal state wholesale. The conversation log is preserved.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateProcessing {
		return eris.New("session: cannot reset while processing")
	}
	c.store.Reset()
	c.tracker.Reset()
	c.state = StateIdle
	c.sessionID = ""
	c.cancelStream = nil
	c.done = make(chan struct{})
	c.doneOnce = sync.Once{}
	return nil
}

// State returns the controller's current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the producer-issued session id, empty until the session
// event arrives.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Done is closed when stream consumption has ended.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) terminal() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateCompleted || c.state == StateCancelled
}

func (c *Controller) rowAt(idx int) model.Row {
	if idx >= 0 && idx < len(c.cfg.Rows) {
		return c.cfg.Rows[idx]
	}
	return model.Row{}
}

// toModel maps a wire result onto the domain model. The row copy prefers the
// controller's own immutable input row, which carries column order.
func (c *Controller) toModel(r enrich.RowResult) model.RowResult {
	res := model.RowResult{
		RowIndex: r.RowIndex,
		Status:   model.RowStatus(r.Status),
		Error:    r.Error,
	}
	if r.RowIndex >= 0 && r.RowIndex < len(c.cfg.Rows) {
		res.Row = c.cfg.Rows[r.RowIndex].Clone()
	} else {
		res.Row = model.Row{Values: r.Row}
	}
	if len(r.Fields) > 0 {
		res.Fields = make(map[string]model.FieldEnrichment, len(r.Fields))
		for name, fr := range r.Fields {
			res.Fields[name] = toFieldEnrichment(fr)
		}
	}
	return res
}

func toFieldEnrichment(fr enrich.FieldResult) model.FieldEnrichment {
	fe := model.FieldEnrichment{
		Value:      fr.Value,
		Confidence: fr.Confidence,
		Source:     fr.Source,
	}
	for _, sc := range fr.SourceContext {
		fe.SourceContext = append(fe.SourceContext, model.SourceContext{URL: sc.URL, Snippet: sc.Snippet})
	}
	if fr.Corroboration != nil {
		cor := &model.Corroboration{SourcesAgree: fr.Corroboration.SourcesAgree}
		for _, ev := range fr.Corroboration.Sources {
			cor.Sources = append(cor.Sources, model.CorroborationSource{
				SourceURL: ev.SourceURL,
				ExactText: ev.ExactText,
				Value:     ev.Value,
			})
		}
		fe.Corroboration = cor
	}
	return fe
}

func fieldSpecs(fields []model.Field) []enrich.FieldSpec {
	specs := make([]enrich.FieldSpec, 0, len(fields))
	for _, f := range fields {
		specs = append(specs, enrich.FieldSpec{
			Name:        f.Name,
			DisplayName: f.DisplayName,
			Type:        string(f.Type),
		})
	}
	return specs
}

func progressType(wire string) model.MessageType {
	switch wire {
	case "info":
		return model.MessageInfo
	case "warning", "error":
		return model.MessageWarning
	case "success":
		return model.MessageSuccess
	default:
		return model.MessageProgress
	}
}
