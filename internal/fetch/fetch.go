// Package fetch retrieves web pages and extracts their readable text.
//
// The search-augmented agent uses it to expand a cited result into full
// article content. Crawling is polite: per-domain parallelism and delay
// limits apply, and robots.txt is honored by the underlying collector.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"

	"github.com/kztmrk/kaiwa/internal/log"
)

// ErrFetchFailed indicates the page could not be retrieved or parsed.
var ErrFetchFailed = errors.New("page fetch failed")

// maxContentRunes caps extracted text so a single page cannot flood the
// completion context.
const maxContentRunes = 6000

// Page is the readable content of a fetched URL.
type Page struct {
	URL      string
	Title    string
	Text     string
	Excerpt  string
	SiteName string
}

// Fetcher retrieves readable page content.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (*Page, error)
}

// Config holds crawl politeness limits.
type Config struct {
	// Parallelism is max concurrent requests per domain (default: 2)
	Parallelism int
	// DelayMs is delay between requests in milliseconds (default: 1000)
	DelayMs int
	// TimeoutMs is request timeout in milliseconds (default: 30000)
	TimeoutMs int
	// UserAgent overrides the default collector user agent.
	UserAgent string
}

// Collector fetches pages with colly and extracts article text with
// readability.
type Collector struct {
	cfg    Config
	logger log.Logger
}

// NewCollector creates a page fetcher.
func NewCollector(cfg Config, logger log.Logger) *Collector {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 2
	}
	if cfg.DelayMs <= 0 {
		cfg.DelayMs = 1000
	}
	if cfg.TimeoutMs <= 0 {
		cfg.TimeoutMs = 30000
	}
	return &Collector{cfg: cfg, logger: logger}
}

// Fetch implements Fetcher.
func (c *Collector) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: invalid url %q", ErrFetchFailed, pageURL)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	collector := colly.NewCollector()
	if c.cfg.UserAgent != "" {
		collector.UserAgent = c.cfg.UserAgent
	}
	collector.SetRequestTimeout(time.Duration(c.cfg.TimeoutMs) * time.Millisecond)
	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: c.cfg.Parallelism,
		Delay:       time.Duration(c.cfg.DelayMs) * time.Millisecond,
	}); err != nil {
		return nil, fmt.Errorf("%w: configuring limits: %w", ErrFetchFailed, err)
	}

	var body []byte
	var fetchErr error
	collector.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	collector.OnError(func(r *colly.Response, err error) {
		fetchErr = err
	})

	start := time.Now()
	if err := collector.Visit(pageURL); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	collector.Wait()

	if fetchErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, fetchErr)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty response from %s", ErrFetchFailed, parsed.Host)
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: extracting content: %w", ErrFetchFailed, err)
	}

	text := truncateRunes(article.TextContent, maxContentRunes)
	c.logger.Debug("page fetched",
		"url", pageURL,
		"chars", len(text),
		"elapsed", time.Since(start),
	)

	return &Page{
		URL:      pageURL,
		Title:    article.Title,
		Text:     text,
		Excerpt:  article.Excerpt,
		SiteName: article.SiteName,
	}, nil
}

// truncateRunes shortens s to at most n runes, marking the cut.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
