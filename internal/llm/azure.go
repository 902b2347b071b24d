package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kztmrk/kaiwa/internal/log"
)

// SSE lines can carry large deltas; size the scanner accordingly.
const (
	sseInitialBufferSize = 64 * 1024
	sseMaxBufferSize     = 1024 * 1024
)

// AzureConfig configures the Azure OpenAI chat completions client.
type AzureConfig struct {
	// Endpoint is the resource endpoint with trailing slash,
	// e.g. https://your-resource.openai.azure.com/
	Endpoint string
	// APIKey is sent in the api-key header.
	APIKey string
	// Deployment is the model deployment name routing the request.
	Deployment string
	// APIVersion is the api-version query parameter.
	APIVersion string
	// Temperature is the default sampling temperature.
	Temperature float32
	// MaxTokens is the default completion token limit.
	MaxTokens int
	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// Azure streams chat completions from an Azure OpenAI deployment.
type Azure struct {
	cfg        AzureConfig
	httpClient *http.Client
	logger     log.Logger
}

// NewAzure creates an Azure OpenAI client.
func NewAzure(cfg AzureConfig, logger log.Logger) (*Azure, error) {
	if cfg.Endpoint == "" || cfg.APIKey == "" || cfg.Deployment == "" {
		return nil, fmt.Errorf("azure client: endpoint, api key and deployment are required")
	}
	if !strings.HasSuffix(cfg.Endpoint, "/") {
		cfg.Endpoint += "/"
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2023-05-15"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// No overall timeout: SSE responses stay open for the whole stream.
		// Cancellation comes from the request context.
		httpClient = &http.Client{Timeout: 0}
	}
	return &Azure{cfg: cfg, httpClient: httpClient, logger: logger}, nil
}

// chatMessage is the wire form of a conversation message.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the chat completions request body.
type chatRequest struct {
	Messages       []chatMessage   `json:"messages"`
	Temperature    float32         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Stream         bool            `json:"stream"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatChunk is one streamed SSE data payload.
type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// apiError is the error envelope returned on non-2xx responses.
type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// StreamCompletion implements Client over the chat completions SSE protocol.
func (a *Azure) StreamCompletion(ctx context.Context, req Request, cb StreamCallback) (*Response, error) {
	body, err := json.Marshal(a.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%sopenai/deployments/%s/chat/completions?api-version=%s",
		a.cfg.Endpoint, a.cfg.Deployment, a.cfg.APIVersion)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("api-key", a.cfg.APIKey)

	start := time.Now()
	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("completion request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, a.statusError(httpResp)
	}

	resp, err := a.consumeSSE(ctx, httpResp.Body, cb)
	if err != nil {
		return resp, err
	}

	a.logger.Debug("completion streamed",
		"deployment", a.cfg.Deployment,
		"chars", len(resp.Content),
		"elapsed", time.Since(start),
	)
	return resp, nil
}

func (a *Azure) buildRequest(req Request) chatRequest {
	messages := make([]chatMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	out := chatRequest{
		Messages:    messages,
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
		Stream:      true,
	}
	if req.Temperature != nil {
		out.Temperature = *req.Temperature
	}
	if req.MaxTokens > 0 {
		out.MaxTokens = req.MaxTokens
	}
	if req.JSONOnly {
		out.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	return out
}

// statusError turns a non-2xx response into an error, preferring the API's
// own error message when the body parses.
func (a *Azure) statusError(httpResp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
	var apiErr apiError
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("completion API status %d (%s): %s",
			httpResp.StatusCode, apiErr.Error.Code, apiErr.Error.Message)
	}
	return fmt.Errorf("completion API status %d: %s", httpResp.StatusCode, strings.TrimSpace(string(data)))
}

// consumeSSE reads "data: ..." lines until [DONE], delivering content deltas
// to cb in arrival order. A read error after streaming has begun returns the
// partial response flagged incomplete with ErrStreamFailed.
func (a *Azure) consumeSSE(ctx context.Context, body io.Reader, cb StreamCallback) (*Response, error) {
	var content strings.Builder
	partial := func() *Response {
		return &Response{Content: content.String(), Incomplete: true}
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, sseInitialBufferSize), sseMaxBufferSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return partial(), fmt.Errorf("%w: %w", ErrStreamFailed, err)
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			return &Response{Content: content.String()}, nil
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			a.logger.Warn("skipping malformed stream chunk", "error", err)
			continue
		}
		// The first chunk of a filtered stream can arrive with no choices.
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		content.WriteString(delta)
		if cb != nil {
			if err := cb(ctx, delta); err != nil {
				return partial(), fmt.Errorf("stream callback: %w", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return partial(), fmt.Errorf("%w: reading stream: %w", ErrStreamFailed, err)
	}

	// EOF without [DONE]: the server closed the stream early.
	if ctx.Err() != nil {
		return partial(), fmt.Errorf("%w: %w", ErrStreamFailed, ctx.Err())
	}
	return partial(), fmt.Errorf("%w: stream ended without completion marker", ErrStreamFailed)
}
