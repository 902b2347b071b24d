package testutil

import "testing"

func TestParseSSEEvents(t *testing.T) {
	t.Parallel()

	body := "event: chunk\ndata: {\"text\":\"こん\"}\n\n" +
		"event: chunk\ndata: {\"text\":\"にちは\"}\n\n" +
		"event: done\ndata: {}\n\n"

	events := ParseSSEEvents(t, body)

	if len(events) != 3 {
		t.Fatalf("parsed %d events, want 3", len(events))
	}
	if events[0].Type != "chunk" || events[0].Data != `{"text":"こん"}` {
		t.Errorf("first event = %+v", events[0])
	}
	if events[2].Type != "done" {
		t.Errorf("last event type = %q, want done", events[2].Type)
	}
}

func TestParseSSEEvents_DefaultsAndComments(t *testing.T) {
	t.Parallel()

	body := ": keep-alive\n\n" +
		"data: first\ndata: second\n\n" +
		"event: chunk\n: interleaved comment\ndata: payload\n\n"

	events := ParseSSEEvents(t, body)

	if len(events) != 2 {
		t.Fatalf("parsed %d events, want 2 (comment-only frame dropped)", len(events))
	}
	if events[0].Type != "message" {
		t.Errorf("untyped event type = %q, want message", events[0].Type)
	}
	if events[0].Data != "first\nsecond" {
		t.Errorf("multi-line data = %q, want lines joined with newline", events[0].Data)
	}
	if events[1].Data != "payload" {
		t.Errorf("commented frame data = %q, want payload", events[1].Data)
	}
}

func TestParseSSEEvents_CRLFAndIDField(t *testing.T) {
	t.Parallel()

	body := "event: chunk\r\nid: 7\r\ndata: payload\r\n\r\n"

	events := ParseSSEEvents(t, body)

	if len(events) != 1 {
		t.Fatalf("parsed %d events, want 1", len(events))
	}
	if events[0].Type != "chunk" || events[0].Data != "payload" {
		t.Errorf("event = %+v", events[0])
	}
}

func TestFindEvent(t *testing.T) {
	t.Parallel()

	events := []SSEEvent{
		{Type: "chunk", Data: "a"},
		{Type: "chunk", Data: "b"},
		{Type: "done", Data: "{}"},
	}

	if got := FindEvent(events, "done"); got == nil || got.Data != "{}" {
		t.Errorf("FindEvent(done) = %+v", got)
	}
	if got := FindEvent(events, "error"); got != nil {
		t.Errorf("FindEvent(error) = %+v, want nil", got)
	}
	if got := FindAllEvents(events, "chunk"); len(got) != 2 || got[0].Data != "a" || got[1].Data != "b" {
		t.Errorf("FindAllEvents(chunk) = %+v", got)
	}
}
