package testutil

import (
	"strings"
	"testing"
)

// SSEEvent is one parsed event from a text/event-stream body.
type SSEEvent struct {
	Type string // event field, "message" when the stream omits it
	Data string // data field, multi-line payloads joined with \n
}

// ParseSSEEvents splits a complete event-stream body into events. The body
// must end with a blank line after the final event; a stream cut off
// mid-event fails the test, since handlers are expected to flush complete
// frames.
//
// Example:
//
//	events := testutil.ParseSSEEvents(t, rec.Body.String())
//	if events[0].Type != "chunk" {
//		t.Errorf("first event = %q", events[0].Type)
//	}
func ParseSSEEvents(t *testing.T, body string) []SSEEvent {
	t.Helper()

	blocks := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n\n")

	// A well-formed stream leaves only blank trailers after the last event.
	tail := blocks[len(blocks)-1]
	if strings.TrimSpace(tail) != "" {
		t.Fatalf("event stream ended mid-event: %q", tail)
	}
	blocks = blocks[:len(blocks)-1]

	var events []SSEEvent
	for _, block := range blocks {
		if ev, ok := parseBlock(t, block); ok {
			events = append(events, ev)
		}
	}
	return events
}

// parseBlock parses a single frame. It reports ok=false for frames that are
// all comments or padding.
func parseBlock(t *testing.T, block string) (SSEEvent, bool) {
	t.Helper()

	ev := SSEEvent{Type: "message"}
	var data []string
	seen := false

	for _, line := range strings.Split(block, "\n") {
		if line == "" {
			continue
		}
		field, value, found := strings.Cut(line, ":")
		if !found {
			t.Fatalf("malformed event-stream line %q", line)
		}
		// One leading space after the colon is part of the separator.
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "": // comment line, ": keep-alive" and friends
		case "event":
			ev.Type = value
			seen = true
		case "data":
			data = append(data, value)
			seen = true
		case "id", "retry":
			seen = true
		default:
			t.Fatalf("unknown event-stream field %q in line %q", field, line)
		}
	}

	ev.Data = strings.Join(data, "\n")
	return ev, seen
}

// FindEvent returns the first event of the given type, or nil.
func FindEvent(events []SSEEvent, eventType string) *SSEEvent {
	for i := range events {
		if events[i].Type == eventType {
			return &events[i]
		}
	}
	return nil
}

// FindAllEvents returns every event of the given type in stream order.
func FindAllEvents(events []SSEEvent, eventType string) []SSEEvent {
	var found []SSEEvent
	for _, e := range events {
		if e.Type == eventType {
			found = append(found, e)
		}
	}
	return found
}
