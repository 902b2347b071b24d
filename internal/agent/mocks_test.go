package agent

import (
	"context"
	"strings"
	"sync"

	"github.com/kztmrk/kaiwa/internal/chat"
	"github.com/kztmrk/kaiwa/internal/fetch"
	"github.com/kztmrk/kaiwa/internal/llm"
	"github.com/kztmrk/kaiwa/internal/search"
)

// fakeClient scripts completions per request. fn may inspect the request to
// answer internal reasoning steps differently from the final completion.
type fakeClient struct {
	mu    sync.Mutex
	calls []llm.Request
	fn    func(req llm.Request) (string, error)
}

func (f *fakeClient) StreamCompletion(ctx context.Context, req llm.Request, cb llm.StreamCallback) (*llm.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	content := "ok"
	if f.fn != nil {
		var err error
		content, err = f.fn(req)
		if err != nil {
			return nil, err
		}
	}
	if cb != nil {
		if err := cb(ctx, content); err != nil {
			return &llm.Response{Content: content, Incomplete: true}, err
		}
	}
	return &llm.Response{Content: content}, nil
}

func (f *fakeClient) requests() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Request(nil), f.calls...)
}

// systemOf returns the system message of a request, if any.
func systemOf(req llm.Request) string {
	for _, m := range req.Messages {
		if m.Role == chat.RoleSystem {
			return m.Content
		}
	}
	return ""
}

// fakeProvider scripts search results per query.
type fakeProvider struct {
	mu      sync.Mutex
	queries []search.Query
	fn      func(q search.Query) ([]search.Result, error)
}

func (f *fakeProvider) Search(ctx context.Context, q search.Query) ([]search.Result, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(q)
	}
	return nil, nil
}

func (f *fakeProvider) recorded() []search.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]search.Query(nil), f.queries...)
}

// fakeFetcher returns a fixed page or error.
type fakeFetcher struct {
	page *fetch.Page
	err  error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string) (*fetch.Page, error) {
	return f.page, f.err
}

// chunkRecorder collects streamed chunks and statuses for assertions.
type chunkRecorder struct {
	mu       sync.Mutex
	chunks   []string
	statuses []Status
}

func (r *chunkRecorder) options(history []chat.Message) Options {
	return Options{
		History: history,
		OnChunk: func(_ context.Context, chunk string) error {
			r.mu.Lock()
			r.chunks = append(r.chunks, chunk)
			r.mu.Unlock()
			return nil
		},
		OnStatus: func(_ context.Context, status Status) {
			r.mu.Lock()
			r.statuses = append(r.statuses, status)
			r.mu.Unlock()
		},
	}
}

func (r *chunkRecorder) text() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.chunks, "")
}

func (r *chunkRecorder) stages() []Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	stages := make([]Stage, 0, len(r.statuses))
	for _, s := range r.statuses {
		stages = append(stages, s.Stage)
	}
	return stages
}
