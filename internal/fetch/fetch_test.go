package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kztmrk/kaiwa/internal/log"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head><title>天気の話</title></head>
<body>
<nav><a href="/">home</a><a href="/about">about</a></nav>
<article>
<h1>天気の話</h1>
<p>東京の天気は晴れです。明日は雨が降る見込みで、傘を持っていくことをお勧めします。
気温は二十度前後で、過ごしやすい一日になるでしょう。</p>
<p>週末にかけては天候が安定し、行楽日和が続く見通しです。ただし朝晩は冷え込むため、
上着があると安心です。</p>
</article>
<footer>copyright</footer>
</body>
</html>`

func newTestCollector(t *testing.T, handler http.HandlerFunc) (*Collector, string) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewCollector(Config{DelayMs: 1, TimeoutMs: 5000}, log.NewNop()), server.URL
}

func TestCollector_Fetch(t *testing.T) {
	t.Parallel()

	collector, base := newTestCollector(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprint(w, articleHTML)
	})

	page, err := collector.Fetch(context.Background(), base+"/article")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if page.Title != "天気の話" {
		t.Errorf("Title = %q", page.Title)
	}
	if !strings.Contains(page.Text, "晴れ") {
		t.Errorf("Text should contain article body, got %q", page.Text)
	}
	if strings.Contains(page.Text, "copyright") {
		t.Error("boilerplate should be stripped from extracted text")
	}
}

func TestCollector_Fetch_InvalidURL(t *testing.T) {
	t.Parallel()

	collector := NewCollector(Config{}, log.NewNop())

	for _, bad := range []string{"", "not a url", "ftp//missing", "/relative/path"} {
		if _, err := collector.Fetch(context.Background(), bad); !errors.Is(err, ErrFetchFailed) {
			t.Errorf("Fetch(%q) = %v, want ErrFetchFailed", bad, err)
		}
	}
}

func TestCollector_Fetch_ServerError(t *testing.T) {
	t.Parallel()

	collector, base := newTestCollector(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	if _, err := collector.Fetch(context.Background(), base+"/missing"); !errors.Is(err, ErrFetchFailed) {
		t.Errorf("Fetch() = %v, want ErrFetchFailed", err)
	}
}

func TestCollector_Fetch_CanceledContext(t *testing.T) {
	t.Parallel()

	collector, base := newTestCollector(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, articleHTML)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := collector.Fetch(ctx, base); !errors.Is(err, ErrFetchFailed) {
		t.Errorf("Fetch() with canceled context = %v, want ErrFetchFailed", err)
	}
}

func TestTruncateRunes(t *testing.T) {
	t.Parallel()

	if got := truncateRunes("こんにちは", 3); got != "こんに…" {
		t.Errorf("truncateRunes() = %q", got)
	}
	if got := truncateRunes("short", 10); got != "short" {
		t.Errorf("truncateRunes() should leave short strings alone, got %q", got)
	}
}
