package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kztmrk/kaiwa/internal/agent"
	"github.com/kztmrk/kaiwa/internal/chat"
	"github.com/kztmrk/kaiwa/internal/llm"
	"github.com/kztmrk/kaiwa/internal/log"
	"github.com/kztmrk/kaiwa/internal/testutil"
)

// fakeResponder scripts agent behavior for handler tests.
type fakeResponder struct {
	name string
	fn   func(ctx context.Context, input string, opts agent.Options) (*agent.Reply, error)
}

func (f *fakeResponder) Name() string {
	if f.name == "" {
		return agent.TypeDirect
	}
	return f.name
}

func (f *fakeResponder) Respond(ctx context.Context, input string, opts agent.Options) (*agent.Reply, error) {
	if f.fn != nil {
		return f.fn(ctx, input, opts)
	}
	return &agent.Reply{Content: "ok"}, nil
}

func newTestServer(t *testing.T, responder agent.Responder, history *chat.History) *Server {
	t.Helper()
	if history == nil {
		history = chat.NewHistory()
	}
	srv, err := NewServer(ServerConfig{
		Logger:    log.NewNop(),
		Responder: responder,
		History:   history,
		RateBurst: 1000,
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return srv
}

func postJSON(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestChat_Send(t *testing.T) {
	t.Parallel()

	responder := &fakeResponder{fn: func(_ context.Context, input string, _ agent.Options) (*agent.Reply, error) {
		return &agent.Reply{Content: "こんにちは、" + input}, nil
	}}
	history := chat.NewHistory()
	srv := newTestServer(t, responder, history)

	rec := postJSON(t, srv.Handler(), "/api/v1/chat", `{"message": "太郎です"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Response != "こんにちは、太郎です" {
		t.Errorf("Response = %q", resp.Response)
	}

	if history.Count() != 2 {
		t.Errorf("history has %d messages, want user + assistant", history.Count())
	}
}

func TestChat_SendValidation(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeResponder{}, nil)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"empty body", "", "invalid_request"},
		{"bad json", "{", "invalid_request"},
		{"missing message", `{"message": ""}`, "missing_message"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := postJSON(t, srv.Handler(), "/api/v1/chat", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			var body errorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decoding error body: %v", err)
			}
			if body.Error.Code != tt.code {
				t.Errorf("code = %q, want %q", body.Error.Code, tt.code)
			}
		})
	}
}

func TestChat_SendIncompleteNotRecorded(t *testing.T) {
	t.Parallel()

	responder := &fakeResponder{fn: func(context.Context, string, agent.Options) (*agent.Reply, error) {
		return &agent.Reply{Content: "途中まで", Incomplete: true},
			fmt.Errorf("reset by peer: %w", llm.ErrStreamFailed)
	}}
	history := chat.NewHistory()
	srv := newTestServer(t, responder, history)

	rec := postJSON(t, srv.Handler(), "/api/v1/chat", `{"message": "質問"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}

	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp.Incomplete || resp.Response != "途中まで" {
		t.Errorf("resp = %+v, want the partial flagged incomplete", resp)
	}
	if history.Count() != 0 {
		t.Error("incomplete turn must not be recorded in history")
	}
}

func TestChat_Stream(t *testing.T) {
	t.Parallel()

	responder := &fakeResponder{fn: func(ctx context.Context, input string, opts agent.Options) (*agent.Reply, error) {
		if opts.OnStatus != nil {
			opts.OnStatus(ctx, agent.Status{Stage: agent.StageSearching, Query: "天気"})
			opts.OnStatus(ctx, agent.Status{Stage: agent.StageSearchDone})
		}
		for _, chunk := range []string{"晴れ", "です"} {
			if err := opts.OnChunk(ctx, chunk); err != nil {
				return nil, err
			}
		}
		return &agent.Reply{Content: "晴れです", SearchPerformed: true, SearchQuery: "天気"}, nil
	}}
	history := chat.NewHistory()
	srv := newTestServer(t, responder, history)

	rec := postJSON(t, srv.Handler(), "/api/v1/chat/stream", `{"message": "天気は?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	events := testutil.ParseSSEEvents(t, rec.Body.String())

	chunks := testutil.FindAllEvents(events, EventChunk)
	if len(chunks) != 2 {
		t.Fatalf("chunk events = %d, want 2", len(chunks))
	}
	var first ChunkPayload
	if err := json.Unmarshal([]byte(chunks[0].Data), &first); err != nil {
		t.Fatalf("decoding chunk: %v", err)
	}
	if first.Text != "晴れ" {
		t.Errorf("first chunk = %q", first.Text)
	}

	searches := testutil.FindAllEvents(events, EventSearch)
	if len(searches) != 2 {
		t.Fatalf("search events = %d, want 2", len(searches))
	}
	var stage SearchPayload
	if err := json.Unmarshal([]byte(searches[0].Data), &stage); err != nil {
		t.Fatalf("decoding search event: %v", err)
	}
	if stage.Stage != string(agent.StageSearching) || stage.Query != "天気" {
		t.Errorf("search payload = %+v", stage)
	}

	done := testutil.FindEvent(events, EventDone)
	if done == nil {
		t.Fatal("no done event")
	}
	var donePayload DonePayload
	if err := json.Unmarshal([]byte(done.Data), &donePayload); err != nil {
		t.Fatalf("decoding done event: %v", err)
	}
	if donePayload.Response != "晴れです" || !donePayload.SearchPerformed {
		t.Errorf("done payload = %+v", donePayload)
	}

	if history.Count() != 2 {
		t.Errorf("history has %d messages, want the completed turn", history.Count())
	}
}

func TestChat_StreamErrorEvent(t *testing.T) {
	t.Parallel()

	responder := &fakeResponder{fn: func(ctx context.Context, _ string, opts agent.Options) (*agent.Reply, error) {
		_ = opts.OnChunk(ctx, "途中")
		return &agent.Reply{Content: "途中", Incomplete: true},
			fmt.Errorf("connection reset: %w", llm.ErrStreamFailed)
	}}
	history := chat.NewHistory()
	srv := newTestServer(t, responder, history)

	rec := postJSON(t, srv.Handler(), "/api/v1/chat/stream", `{"message": "質問"}`)
	events := testutil.ParseSSEEvents(t, rec.Body.String())

	errEvent := testutil.FindEvent(events, EventError)
	if errEvent == nil {
		t.Fatal("no error event")
	}
	var payload ErrorPayload
	if err := json.Unmarshal([]byte(errEvent.Data), &payload); err != nil {
		t.Fatalf("decoding error event: %v", err)
	}
	if payload.Code != "completion_stream_failed" {
		t.Errorf("code = %q", payload.Code)
	}
	if !payload.Incomplete {
		t.Error("error payload must flag the partial as incomplete")
	}
	if testutil.FindEvent(events, EventDone) != nil {
		t.Error("done event sent after a failed turn")
	}
	if history.Count() != 0 {
		t.Error("failed turn must not be recorded in history")
	}
}

func TestChat_ResetDiscardsInFlightTurn(t *testing.T) {
	t.Parallel()

	history := chat.NewHistory()
	responder := &fakeResponder{fn: func(context.Context, string, agent.Options) (*agent.Reply, error) {
		// A reset lands while the completion is still streaming.
		history.Reset()
		return &agent.Reply{Content: "手遅れの回答"}, nil
	}}
	srv := newTestServer(t, responder, history)

	rec := postJSON(t, srv.Handler(), "/api/v1/chat", `{"message": "質問"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if history.Count() != 0 {
		t.Errorf("history has %d messages, want 0 after mid-turn reset", history.Count())
	}
}

func TestChat_HistoryAndReset(t *testing.T) {
	t.Parallel()

	history := chat.NewHistory()
	history.Add("質問", "回答")
	srv := newTestServer(t, &fakeResponder{}, history)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/history", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d", rec.Code)
	}
	var body struct {
		Messages []chat.Message `json:"messages"`
		Count    int            `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding history: %v", err)
	}
	if body.Count != 2 || len(body.Messages) != 2 {
		t.Errorf("history = %+v, want 2 messages", body)
	}

	rec = postJSON(t, srv.Handler(), "/api/v1/reset", `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d", rec.Code)
	}
	if history.Count() != 0 {
		t.Error("history not cleared by reset")
	}
}

func TestChat_ListAgents(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeResponder{name: agent.TypeWebSearch}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/agents", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var body struct {
		Agents map[string]string `json:"agents"`
		Active string            `json:"active"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding agents: %v", err)
	}
	if body.Active != agent.TypeWebSearch {
		t.Errorf("active = %q", body.Active)
	}
	if len(body.Agents) != 4 {
		t.Errorf("agents = %d entries, want 4", len(body.Agents))
	}
}
