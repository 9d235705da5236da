// Package enrich is the HTTP client for the enrichment producer service: it
// opens the SSE enrichment and query streams and issues the out-of-band
// cancellation requests.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const (
	enrichPath       = "/api/enrich"
	enrichCancelPath = "/api/enrich/cancel"
	queryPath        = "/api/query"
	queryCancelPath  = "/api/query/cancel"

	headerFirecrawlKey  = "X-Firecrawl-Key"
	headerPerplexityKey = "X-Perplexity-Key"
)

// Client talks to the enrichment producer. Stream channels are closed when
// the producer closes the connection or the request context is cancelled;
// malformed frames are dropped silently and never end a stream.
type Client interface {
	StartSession(ctx context.Context, req SessionRequest) (<-chan Event, error)
	CancelSession(ctx context.Context, sessionID string) error
	StartQuery(ctx context.Context, req QueryRequest) (<-chan QueryEvent, error)
	CancelQuery(ctx context.Context, queryID string) error
}

// SessionRequest describes one enrichment run. The two capability keys are
// passed as request metadata headers, not in the body.
type SessionRequest struct {
	Rows        []map[string]string `json:"rows"`
	Fields      []FieldSpec         `json:"fields"`
	EmailColumn string              `json:"emailColumn,omitempty"`
	UseAgents   bool                `json:"useAgents"`

	FirecrawlKey  string `json:"-"`
	PerplexityKey string `json:"-"`
}

// HistoryMessage is one prior conversation turn sent with a query.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// QueryContext is the dataset snapshot a query is answered against.
type QueryContext struct {
	EmailColumn   string      `json:"emailColumn"`
	Fields        []FieldSpec `json:"fields"`
	TotalRows     int         `json:"totalRows"`
	ProcessedRows int         `json:"processedRows"`
	Table         string      `json:"table"`
}

// QueryRequest is one conversational question about the evolving dataset.
type QueryRequest struct {
	QueryID string           `json:"queryId"`
	Message string           `json:"message"`
	Context QueryContext     `json:"context"`
	History []HistoryMessage `json:"history"`
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a producer API client. The default http.Client carries
// no overall timeout: streams stay open until the producer closes them or
// the request context is cancelled.
func NewClient(baseURL string, opts ...Option) Client {
	c := &httpClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) StartSession(ctx context.Context, req SessionRequest) (<-chan Event, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: marshal session request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+enrichPath, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "enrich: create session request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if req.FirecrawlKey != "" {
		httpReq.Header.Set(headerFirecrawlKey, req.FirecrawlKey)
	}
	if req.PerplexityKey != "" {
		httpReq.Header.Set(headerPerplexityKey, req.PerplexityKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: open session stream")
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, eris.Errorf("enrich: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	out := make(chan Event)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		sc := newFrameScanner(resp.Body)
		for sc.Scan() {
			ev, ok := DecodeFrame(sc.Text())
			if !ok {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
		// Scanner errors end the stream the same way EOF does; the
		// consumer treats an unterminated stream as implicit completion.
	}()
	return out, nil
}

func (c *httpClient) CancelSession(ctx context.Context, sessionID string) error {
	return c.postCancel(ctx, enrichCancelPath, "session", sessionID)
}

func (c *httpClient) StartQuery(ctx context.Context, req QueryRequest) (<-chan QueryEvent, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: marshal query request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+queryPath, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "enrich: create query request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: open query stream")
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, eris.Errorf("enrich: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	out := make(chan QueryEvent)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		sc := newFrameScanner(resp.Body)
		for sc.Scan() {
			ev, ok := DecodeQueryFrame(sc.Text())
			if !ok {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (c *httpClient) CancelQuery(ctx context.Context, queryID string) error {
	return c.postCancel(ctx, queryCancelPath, "query", queryID)
}

// postCancel issues a fire-and-forget cancellation keyed by id. Callers
// treat failures as best-effort: local state flips regardless.
func (c *httpClient) postCancel(ctx context.Context, path, param, id string) error {
	u := c.baseURL + path + "?" + url.Values{param: {id}}.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return eris.Wrapf(err, "enrich: create %s cancel request", param)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return eris.Wrapf(err, "enrich: send %s cancel request", param)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return eris.Errorf("enrich: %s cancel: unexpected status %d", param, resp.StatusCode)
	}
	return nil
}
