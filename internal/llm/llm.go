// Package llm provides streaming completion clients for hosted LLM APIs.
//
// The Client interface is the only surface the agents depend on. Two
// implementations exist: Azure OpenAI (chat completions over SSE) and Gemini
// (google.golang.org/genai). Resilient wraps any Client with a circuit
// breaker, proactive rate limiting and handshake retry.
package llm

import (
	"context"
	"errors"

	"github.com/kztmrk/kaiwa/internal/chat"
)

var (
	// ErrStreamFailed indicates the completion stream terminated before the
	// model finished. The partial response is returned alongside, flagged
	// incomplete; it must never be silently treated as a full answer.
	ErrStreamFailed = errors.New("completion stream failed")

	// ErrEmptyResponse indicates the model produced no content at all.
	ErrEmptyResponse = errors.New("empty model response")
)

// StreamCallback receives response chunks in production order. Returning an
// error aborts the stream; the error is propagated to the caller.
type StreamCallback func(ctx context.Context, chunk string) error

// Request describes a single completion call.
type Request struct {
	// Messages is the full prompt in conversation order, system first.
	Messages []chat.Message

	// Temperature overrides the client default when non-nil.
	Temperature *float32

	// MaxTokens overrides the client default when > 0.
	MaxTokens int

	// JSONOnly asks the provider for a JSON object response where supported.
	// Callers still validate the output; not every deployment honors it.
	JSONOnly bool
}

// Response is the final state of a completion call.
type Response struct {
	// Content is the concatenation of all streamed chunks.
	Content string

	// Incomplete marks a response cut short by a stream failure. Set together
	// with a returned ErrStreamFailed.
	Incomplete bool
}

// Client streams completions for a prompt.
//
// Implementations must deliver chunks to cb strictly in production order and
// return the accumulated response. On a mid-stream failure they return the
// partial response with Incomplete set and an error wrapping ErrStreamFailed.
type Client interface {
	StreamCompletion(ctx context.Context, req Request, cb StreamCallback) (*Response, error)
}

// Complete runs a completion without streaming, discarding chunk boundaries.
// Used for internal reasoning steps (search decisions, query generation)
// where only the final text matters.
func Complete(ctx context.Context, c Client, req Request) (string, error) {
	resp, err := c.StreamCompletion(ctx, req, nil)
	if err != nil {
		return "", err
	}
	if resp.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Content, nil
}
