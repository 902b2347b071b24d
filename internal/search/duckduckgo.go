package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/kztmrk/kaiwa/internal/log"
)

// defaultEndpoint is the DuckDuckGo lite HTML page, the most stable surface
// for scraping.
const defaultEndpoint = "https://lite.duckduckgo.com/lite/"

// userAgent mimics a desktop browser; the lite page serves bots a captcha.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ddgLimiter enforces a global 1 QPS limit across all DuckDuckGo instances
// and goroutines.
var ddgLimiter = rate.NewLimiter(rate.Every(time.Second), 1)

// DuckDuckGo implements Provider against DuckDuckGo's lite HTML interface.
type DuckDuckGo struct {
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
	logger   log.Logger
}

// DuckDuckGoOption customizes the provider.
type DuckDuckGoOption func(*DuckDuckGo)

// WithEndpoint overrides the search endpoint (tests).
func WithEndpoint(endpoint string) DuckDuckGoOption {
	return func(d *DuckDuckGo) { d.endpoint = endpoint }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) DuckDuckGoOption {
	return func(d *DuckDuckGo) { d.client = client }
}

// WithRateLimiter overrides the shared limiter (tests).
func WithRateLimiter(limiter *rate.Limiter) DuckDuckGoOption {
	return func(d *DuckDuckGo) { d.limiter = limiter }
}

// NewDuckDuckGo creates a DuckDuckGo search provider with a modest timeout.
func NewDuckDuckGo(logger log.Logger, opts ...DuckDuckGoOption) *DuckDuckGo {
	d := &DuckDuckGo{
		endpoint: defaultEndpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
		limiter:  ddgLimiter,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Search implements Provider.
//
// When q.IncludeNews is set, a recency-biased pass runs first and claims up
// to half of the result slots; the general pass fills the rest. Duplicate
// URLs between passes collapse to the news entry.
func (d *DuckDuckGo) Search(ctx context.Context, q Query) ([]Result, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, ErrEmptyQuery
	}
	maxResults := q.MaxResults
	if maxResults <= 0 {
		maxResults = 3
	}

	var results []Result
	seen := make(map[string]bool)

	if q.IncludeNews {
		newsSlots := max(1, maxResults/2)
		news, err := d.fetch(ctx, q.Text, q.Region, true)
		if err != nil {
			// The general pass may still succeed; news is best effort.
			d.logger.Warn("news search failed, continuing with general search", "error", err)
		}
		for _, r := range news {
			if len(results) >= newsSlots {
				break
			}
			if seen[r.URL] {
				continue
			}
			seen[r.URL] = true
			r.News = true
			results = append(results, r)
		}
	}

	general, err := d.fetch(ctx, q.Text, q.Region, false)
	if err != nil {
		if len(results) > 0 {
			return results, nil
		}
		return nil, err
	}
	for _, r := range general {
		if len(results) >= maxResults {
			break
		}
		if seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		results = append(results, r)
	}

	d.logger.Debug("search completed",
		"query", q.Text,
		"region", q.Region,
		"results", len(results),
	)
	return results, nil
}

// fetch runs a single POST against the lite page and parses the result table.
// news biases toward recent pages via the df (date filter) form value.
func (d *DuckDuckGo) fetch(ctx context.Context, query, region string, news bool) ([]Result, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	formData := url.Values{}
	formData.Set("q", query)
	if region != "" {
		formData.Set("kl", region)
	}
	if news {
		formData.Set("df", "w") // past week
	}

	resp, err := d.post(ctx, formData)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: http %d", ErrUnavailable, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing response: %w", ErrUnavailable, err)
	}
	return parseLitePage(doc), nil
}

// post sends the form, backing off and retrying on 429 with doubling delay
// up to 30s.
func (d *DuckDuckGo) post(ctx context.Context, formData url.Values) (*http.Response, error) {
	delay := time.Second
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, strings.NewReader(formData.Encode()))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := d.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}
		_ = resp.Body.Close()

		d.logger.Debug("rate limited by provider, backing off", "delay", delay)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
}

// parseLitePage extracts results from the lite page's result table. Links
// carry class "result-link", snippets sit in "result-snippet" cells in the
// same document order.
func parseLitePage(doc *goquery.Document) []Result {
	var results []Result
	snippets := doc.Find("td.result-snippet")

	doc.Find("a.result-link").Each(func(i int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		title := strings.TrimSpace(sel.Text())
		if href == "" || title == "" {
			return
		}
		// Redirect links wrap the real URL in the uddg parameter.
		if u, err := url.Parse(href); err == nil {
			if real := u.Query().Get("uddg"); real != "" {
				href = real
			}
		}
		// Skip DuckDuckGo internal navigation.
		if strings.HasPrefix(href, "/") || strings.Contains(href, "duckduckgo.com") {
			return
		}

		snippet := ""
		if i < snippets.Length() {
			snippet = strings.TrimSpace(snippets.Eq(i).Text())
		}

		results = append(results, Result{
			Title:   title,
			Snippet: snippet,
			URL:     href,
			Source:  ClassifySource(href),
		})
	})

	return results
}
