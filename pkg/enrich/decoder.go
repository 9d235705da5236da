package enrich

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

const dataPrefix = "data: "

// DecodeFrame parses one line of the enrichment stream. ok is false for
// anything that is not a well-formed data frame carrying a known event type;
// such lines are skipped by callers, never treated as fatal.
func DecodeFrame(line string) (Event, bool) {
	payload, ok := framePayload(line)
	if !ok {
		return Event{}, false
	}
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Event{}, false
	}
	if _, ok := knownEventTypes[ev.Type]; !ok {
		return Event{}, false
	}
	return ev, true
}

// DecodeQueryFrame parses one line of the query stream with the same
// skip-on-garbage contract as DecodeFrame.
func DecodeQueryFrame(line string) (QueryEvent, bool) {
	payload, ok := framePayload(line)
	if !ok {
		return QueryEvent{}, false
	}
	var ev QueryEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return QueryEvent{}, false
	}
	if _, ok := knownQueryEventTypes[ev.Type]; !ok {
		return QueryEvent{}, false
	}
	return ev, true
}

func framePayload(line string) (string, bool) {
	if !strings.HasPrefix(line, dataPrefix) {
		return "", false
	}
	payload := strings.TrimPrefix(line, dataPrefix)
	if payload == "" {
		return "", false
	}
	return payload, true
}

// newFrameScanner builds a line scanner sized for large result frames.
func newFrameScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	sc.Buffer(buf, 1024*1024)
	return sc
}
