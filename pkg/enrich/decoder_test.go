package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		wantOK bool
		want   EventType
	}{
		{"session", `data: {"type":"session","sessionId":"abc"}`, true, EventSession},
		{"pending", `data: {"type":"pending","rowIndex":2}`, true, EventPending},
		{"result", `data: {"type":"result","result":{"rowIndex":0,"status":"completed"}}`, true, EventResult},
		{"complete", `data: {"type":"complete"}`, true, EventComplete},
		{"agent_progress", `data: {"type":"agent_progress","rowIndex":1,"message":"checking site"}`, true, EventAgentProgress},
		{"empty_line", ``, false, ""},
		{"no_prefix", `{"type":"complete"}`, false, ""},
		{"comment_line", `: keepalive`, false, ""},
		{"truncated_json", `data: {"type":"result","resu`, false, ""},
		{"garbage", `data: not json at all`, false, ""},
		{"unknown_type", `data: {"type":"heartbeat"}`, false, ""},
		{"empty_payload", `data: `, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := DecodeFrame(tt.line)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, ev.Type)
			}
		})
	}
}

func TestDecodeFramePayloads(t *testing.T) {
	ev, ok := DecodeFrame(`data: {"type":"pending","rowIndex":3}`)
	require.True(t, ok)
	require.NotNil(t, ev.RowIndex)
	assert.Equal(t, 3, *ev.RowIndex)

	ev, ok = DecodeFrame(`data: {"type":"result","result":{"rowIndex":1,"row":{"email":"jo@acme.com"},"status":"completed","fields":{"size":{"value":"10-50","confidence":0.9,"source":"siteA","corroboration":{"sources_agree":true,"sources":[{"source_url":"https://acme.com","value":"10-50"}]}}}}}`)
	require.True(t, ok)
	require.NotNil(t, ev.Result)
	assert.Equal(t, 1, ev.Result.RowIndex)
	assert.Equal(t, "completed", ev.Result.Status)
	size := ev.Result.Fields["size"]
	assert.Equal(t, "10-50", size.Value)
	require.NotNil(t, size.Confidence)
	assert.InDelta(t, 0.9, *size.Confidence, 1e-9)
	require.NotNil(t, size.Corroboration)
	assert.True(t, size.Corroboration.SourcesAgree)
	require.Len(t, size.Corroboration.Sources, 1)
	assert.Equal(t, "https://acme.com", size.Corroboration.Sources[0].SourceURL)
}

func TestDecodeQueryFrame(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		wantOK bool
		want   QueryEventType
	}{
		{"status", `data: {"type":"status","message":"searching","sourceUrl":"https://acme.com"}`, true, QueryStatus},
		{"response", `data: {"type":"response","message":"2 rows"}`, true, QueryResponse},
		{"error", `data: {"type":"error","message":"boom"}`, true, QueryError},
		{"unknown_type", `data: {"type":"result"}`, false, ""},
		{"garbage", `data: {{{`, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := DecodeQueryFrame(tt.line)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, ev.Type)
			}
		})
	}
}
