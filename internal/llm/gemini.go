package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/kztmrk/kaiwa/internal/chat"
	"github.com/kztmrk/kaiwa/internal/log"
)

// GeminiConfig configures the Gemini completion client.
type GeminiConfig struct {
	// APIKey authenticates against the Gemini API.
	APIKey string
	// Model is the model identifier, e.g. "gemini-2.5-flash".
	Model string
	// Temperature is the default sampling temperature.
	Temperature float32
	// MaxTokens is the default completion token limit.
	MaxTokens int
}

// Gemini streams completions from the Gemini API.
type Gemini struct {
	cfg    GeminiConfig
	client *genai.Client
	logger log.Logger
}

// NewGemini creates a Gemini client.
func NewGemini(ctx context.Context, cfg GeminiConfig, logger log.Logger) (*Gemini, error) {
	if cfg.APIKey == "" || cfg.Model == "" {
		return nil, fmt.Errorf("gemini client: api key and model are required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{cfg: cfg, client: client, logger: logger}, nil
}

// StreamCompletion implements Client over GenerateContentStream.
func (g *Gemini) StreamCompletion(ctx context.Context, req Request, cb StreamCallback) (*Response, error) {
	contents, config := g.buildRequest(req)

	var content strings.Builder
	started := false

	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.cfg.Model, contents, config) {
		if err != nil {
			if !started {
				return nil, fmt.Errorf("gemini completion: %w", err)
			}
			return &Response{Content: content.String(), Incomplete: true},
				fmt.Errorf("%w: %w", ErrStreamFailed, err)
		}
		started = true

		chunk := resp.Text()
		if chunk == "" {
			continue
		}
		content.WriteString(chunk)
		if cb != nil {
			if err := cb(ctx, chunk); err != nil {
				return &Response{Content: content.String(), Incomplete: true},
					fmt.Errorf("stream callback: %w", err)
			}
		}
	}

	return &Response{Content: content.String()}, nil
}

// buildRequest translates the provider-neutral request into genai types.
// Gemini takes the system prompt out of band as SystemInstruction.
func (g *Gemini) buildRequest(req Request) ([]*genai.Content, *genai.GenerateContentConfig) {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.cfg.Temperature),
		MaxOutputTokens: int32(g.cfg.MaxTokens),
	}
	if req.Temperature != nil {
		config.Temperature = genai.Ptr(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.JSONOnly {
		config.ResponseMIMEType = "application/json"
	}

	var contents []*genai.Content
	for _, m := range req.Messages {
		switch m.Role {
		case chat.RoleSystem:
			config.SystemInstruction = genai.NewContentFromText(m.Content, genai.RoleUser)
		case chat.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return contents, config
}
