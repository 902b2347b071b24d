// Package search defines the web search surface used by the search-augmented
// agent and provides the DuckDuckGo implementation.
package search

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable indicates the search provider could not be reached or
	// refused to serve. Agents recover from it by answering without search;
	// it must never surface to the user as a chat failure.
	ErrUnavailable = errors.New("search provider unavailable")

	// ErrEmptyQuery indicates a blank query string.
	ErrEmptyQuery = errors.New("search query is empty")
)

// SourceKind is a coarse trust classification for a result's origin.
type SourceKind string

const (
	// SourcePrimary covers official origins: government, academic,
	// standards bodies, the subject's own site.
	SourcePrimary SourceKind = "primary"
	// SourceSecondary covers reporting and commentary: news media, blogs,
	// aggregators.
	SourceSecondary SourceKind = "secondary"
	// SourceUnknown is everything the classifier cannot place.
	SourceUnknown SourceKind = "unknown"
)

// Query describes one search call.
type Query struct {
	// Text is the query string.
	Text string
	// Region is the provider region code, e.g. "jp-jp" or "wt-wt".
	Region string
	// MaxResults caps the total number of results returned.
	MaxResults int
	// IncludeNews reserves up to half of MaxResults for recent results.
	IncludeNews bool
}

// Result is a single annotated search hit.
type Result struct {
	Title       string     `json:"title"`
	Snippet     string     `json:"snippet"`
	URL         string     `json:"url"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Source      SourceKind `json:"source"`
	// News marks results from the recency-biased pass.
	News bool `json:"news,omitempty"`
}

// Provider executes web searches.
//
// Implementations return at most q.MaxResults results and wrap transport or
// provider failures in ErrUnavailable.
type Provider interface {
	Search(ctx context.Context, q Query) ([]Result, error)
}
