package table

import (
	"sync"

	"github.com/sells-group/enrichtable/internal/model"
)

// MaxMessages caps the conversation log; the oldest entries are evicted
// first once the cap is exceeded.
const MaxMessages = 500

// MessageLog is the shared append-only conversation log. The session
// controller writes progress and completion notices into it; the query
// controller writes user and assistant turns.
type MessageLog struct {
	mu   sync.RWMutex
	msgs []model.Message
}

// NewMessageLog creates an empty log.
func NewMessageLog() *MessageLog {
	return &MessageLog{}
}

// Append adds a message, evicting the oldest entries beyond MaxMessages.
func (l *MessageLog) Append(m model.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, m)
	if excess := len(l.msgs) - MaxMessages; excess > 0 {
		l.msgs = append([]model.Message(nil), l.msgs[excess:]...)
	}
}

// AppendUnique adds a message unless an entry with the same type and text is
// already present. It reports whether the message was appended.
func (l *MessageLog) AppendUnique(m model.Message) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.msgs {
		if existing.Type == m.Type && existing.Text == m.Text {
			return false
		}
	}
	l.msgs = append(l.msgs, m)
	if excess := len(l.msgs) - MaxMessages; excess > 0 {
		l.msgs = append([]model.Message(nil), l.msgs[excess:]...)
	}
	return true
}

// All returns a copy of the log in append order.
func (l *MessageLog) All() []model.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]model.Message(nil), l.msgs...)
}

// Len returns the current number of entries.
func (l *MessageLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.msgs)
}

// LastByType returns up to n most recent messages whose type is in types,
// preserving log order.
func (l *MessageLog) LastByType(n int, types ...model.MessageType) []model.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	match := func(t model.MessageType) bool {
		for _, want := range types {
			if t == want {
				return true
			}
		}
		return false
	}

	var out []model.Message
	for i := len(l.msgs) - 1; i >= 0 && len(out) < n; i-- {
		if match(l.msgs[i].Type) {
			out = append(out, l.msgs[i])
		}
	}
	// Collected backwards; restore log order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Reset clears the log.
func (l *MessageLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = nil
}
