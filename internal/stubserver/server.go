// Package stubserver is an offline stand-in for the enrichment producer. It
// serves the real SSE protocol with deterministic canned enrichments so the
// client stack can be exercised without API keys or network access.
package stubserver

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/enrichtable/pkg/enrich"
)

// personalDomains are skipped rather than enriched, mirroring producer
// behavior for consumer mailboxes.
var personalDomains = map[string]bool{
	"gmail.com":   true,
	"yahoo.com":   true,
	"hotmail.com": true,
	"outlook.com": true,
	"aol.com":     true,
}

// Server is the stub producer.
type Server struct {
	rowDelay time.Duration
	workers  int

	mu       sync.Mutex
	sessions map[string]context.CancelFunc
	queries  map[string]context.CancelFunc
}

// Option configures the server.
type Option func(*Server)

// WithRowDelay paces result emission; the default is 400ms per row.
func WithRowDelay(d time.Duration) Option {
	return func(s *Server) {
		s.rowDelay = d
	}
}

// WithWorkers sets the number of concurrent row workers.
func WithWorkers(n int) Option {
	return func(s *Server) {
		s.workers = n
	}
}

// New creates a stub producer.
func New(opts ...Option) *Server {
	s := &Server{
		rowDelay: 400 * time.Millisecond,
		workers:  3,
		sessions: make(map[string]context.CancelFunc),
		queries:  make(map[string]context.CancelFunc),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the producer's HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Post("/api/enrich", s.handleEnrich)
	r.Post("/api/enrich/cancel", s.handleCancelEnrich)
	r.Post("/api/query", s.handleQuery)
	r.Post("/api/query/cancel", s.handleCancelQuery)
	return r
}

type enrichRequest struct {
	Rows        []map[string]string `json:"rows"`
	Fields      []enrich.FieldSpec  `json:"fields"`
	EmailColumn string              `json:"emailColumn"`
	UseAgents   bool                `json:"useAgents"`
}

func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	var req enrichRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if len(req.Rows) == 0 || len(req.Fields) == 0 {
		http.Error(w, `{"error":"rows and fields are required"}`, http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sessionID := uuid.New().String()
	s.mu.Lock()
	s.sessions[sessionID] = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.sessions, sessionID)
		s.mu.Unlock()
	}()

	writeFrame(w, flusher, enrich.Event{Type: enrich.EventSession, SessionID: sessionID})
	for i := range req.Rows {
		idx := i
		writeFrame(w, flusher, enrich.Event{Type: enrich.EventPending, RowIndex: &idx})
	}

	// Workers enrich rows concurrently; every frame goes through one channel
	// so a single writer preserves per-row ordering on the wire.
	frames := make(chan enrich.Event)
	limiter := rate.NewLimiter(rate.Every(s.rowDelay), 1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	go func() {
		for i := range req.Rows {
			idx := i
			row := req.Rows[i]
			g.Go(func() error {
				if err := limiter.Wait(gctx); err != nil {
					return err
				}
				select {
				case frames <- enrich.Event{Type: enrich.EventProcessing, RowIndex: &idx}:
				case <-gctx.Done():
					return gctx.Err()
				}
				result := s.enrichRow(idx, row, req)
				select {
				case frames <- enrich.Event{Type: enrich.EventResult, Result: &result}:
				case <-gctx.Done():
					return gctx.Err()
				}
				return nil
			})
		}
		g.Wait()
		close(frames)
	}()

	for ev := range frames {
		writeFrame(w, flusher, ev)
	}

	if ctx.Err() != nil {
		writeFrame(w, flusher, enrich.Event{Type: enrich.EventCancelled})
		return
	}
	writeFrame(w, flusher, enrich.Event{Type: enrich.EventComplete})
}

// enrichRow builds a deterministic canned result for one row.
func (s *Server) enrichRow(idx int, row map[string]string, req enrichRequest) enrich.RowResult {
	email := rowEmail(row, req.EmailColumn)
	domain := emailDomain(email)

	if domain == "" || personalDomains[domain] {
		return enrich.RowResult{
			RowIndex: idx,
			Row:      row,
			Status:   "skipped",
			Error:    "Personal email provider",
		}
	}

	fields := make(map[string]enrich.FieldResult, len(req.Fields))
	for pos, f := range req.Fields {
		fields[f.Name] = cannedField(domain, f, pos)
	}
	return enrich.RowResult{
		RowIndex: idx,
		Row:      row,
		Fields:   fields,
		Status:   "completed",
	}
}

func cannedField(domain string, f enrich.FieldSpec, pos int) enrich.FieldResult {
	h := fnv.New32a()
	h.Write([]byte(domain))
	h.Write([]byte(f.Name))
	seed := h.Sum32()

	confidence := 0.6 + float64(seed%40)/100.0
	src := fmt.Sprintf("https://%s/about", domain)
	fr := enrich.FieldResult{
		Confidence: &confidence,
		Source:     "site_crawl",
		SourceContext: []enrich.SourceContext{
			{URL: src, Snippet: fmt.Sprintf("Details about %s from %s.", f.DisplayName, domain)},
		},
	}

	switch f.Type {
	case "boolean":
		if seed%2 == 0 {
			fr.Value = "Yes"
		} else {
			fr.Value = false
		}
	case "array":
		fr.Value = []any{
			fmt.Sprintf("%s item %d", f.DisplayName, seed%5),
			fmt.Sprintf("%s item %d", f.DisplayName, seed%7),
		}
	default:
		fr.Value = fmt.Sprintf("%s of %s #%d", f.DisplayName, domain, int(seed%100)+pos)
	}
	return fr
}

func (s *Server) handleCancelEnrich(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session")
	s.mu.Lock()
	cancel, ok := s.sessions[id]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req enrich.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	s.mu.Lock()
	s.queries[req.QueryID] = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.queries, req.QueryID)
		s.mu.Unlock()
	}()

	writeFrame(w, flusher, enrich.QueryEvent{Type: enrich.QueryStatus, Message: "Looking at your table..."})

	select {
	case <-time.After(s.rowDelay):
	case <-ctx.Done():
		return
	}

	answer := fmt.Sprintf("%d of %d rows are enriched so far. You asked: %q.",
		req.Context.ProcessedRows, req.Context.TotalRows, req.Message)
	writeFrame(w, flusher, enrich.QueryEvent{Type: enrich.QueryResponse, Message: answer})
}

func (s *Server) handleCancelQuery(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("query")
	s.mu.Lock()
	cancel, ok := s.queries[id]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	w.WriteHeader(http.StatusAccepted)
}

func writeFrame(w http.ResponseWriter, flusher http.Flusher, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		zap.L().Warn("stubserver: marshal frame", zap.Error(err))
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

func rowEmail(row map[string]string, emailColumn string) string {
	if emailColumn != "" {
		return row[emailColumn]
	}
	for k, v := range row {
		if strings.Contains(strings.ToLower(k), "email") {
			return v
		}
	}
	return ""
}

func emailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}
