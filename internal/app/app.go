// Package app wires configuration, logging, telemetry, the completion
// client, the search provider and the active agent into one container used
// by both the TUI and the HTTP server.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/kztmrk/kaiwa/internal/agent"
	"github.com/kztmrk/kaiwa/internal/chat"
	"github.com/kztmrk/kaiwa/internal/config"
	"github.com/kztmrk/kaiwa/internal/fetch"
	"github.com/kztmrk/kaiwa/internal/llm"
	"github.com/kztmrk/kaiwa/internal/log"
	"github.com/kztmrk/kaiwa/internal/observability"
	"github.com/kztmrk/kaiwa/internal/search"
)

// Options tune application startup.
type Options struct {
	// Verbose enables debug logging.
	Verbose bool
	// JSONLog switches log output to JSON (serve mode).
	JSONLog bool
	// LogWriter overrides the log destination (default: stderr).
	LogWriter io.Writer
	// Config overrides the loaded configuration (tests).
	Config *config.Config
}

// App is the application container.
type App struct {
	Config    *config.Config
	Logger    log.Logger
	Client    llm.Client
	Search    search.Provider
	Fetcher   fetch.Fetcher
	Responder agent.Responder
	History   *chat.History
	Telemetry *observability.Provider
}

// New builds the full application from configuration. The returned App must
// be closed to flush telemetry.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := newLogger(opts)
	logger.Debug("configuration loaded", "config", cfg)

	telemetry, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.Telemetry.Endpoint,
		Environment: cfg.Telemetry.Environment,
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}, logger)
	if err != nil {
		return nil, err
	}

	client, err := newClient(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	provider := search.NewDuckDuckGo(logger)
	fetcher := fetch.NewCollector(fetch.Config{
		Parallelism: cfg.Fetcher.Parallelism,
		DelayMs:     cfg.Fetcher.DelayMs,
		TimeoutMs:   cfg.Fetcher.TimeoutMs,
	}, logger)

	responder, err := agent.New(agent.Config{
		Type: cfg.AgentType,
		Search: agent.SearchSettings{
			Enabled:             cfg.Search.Enabled,
			MaxResults:          cfg.Search.MaxResults,
			Region:              cfg.Search.Region,
			NewsEnabled:         cfg.Search.NewsEnabled,
			MaxQueryRefinements: cfg.Search.MaxQueryRefinements,
		},
	}, agent.Deps{
		Client:  client,
		Search:  provider,
		Fetcher: fetcher,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating agent: %w", err)
	}

	logger.Info("application ready",
		"provider", cfg.Provider,
		"agent", responder.Name(),
		"search_enabled", cfg.Search.Enabled,
	)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Client:    client,
		Search:    provider,
		Fetcher:   fetcher,
		Responder: responder,
		History:   chat.NewHistory(),
		Telemetry: telemetry,
	}, nil
}

// Close flushes telemetry and releases resources.
func (a *App) Close(ctx context.Context) error {
	a.Logger.Debug("shutting down")
	return a.Telemetry.Shutdown(ctx)
}

func newLogger(opts Options) log.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	w := opts.LogWriter
	if w == nil {
		w = os.Stderr
	}
	return log.NewWithWriter(w, log.Config{Level: level, JSON: opts.JSONLog})
}

// newClient builds the provider-specific completion client wrapped with the
// resilience layer: circuit breaker, proactive rate limiting, and handshake
// retry. Retries never happen once streaming has started.
func newClient(ctx context.Context, cfg *config.Config, logger log.Logger) (llm.Client, error) {
	var inner llm.Client

	switch cfg.Provider {
	case config.ProviderGemini:
		client, err := llm.NewGemini(ctx, llm.GeminiConfig{
			APIKey:      cfg.GeminiAPIKey,
			Model:       cfg.ModelName,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		}, logger)
		if err != nil {
			return nil, err
		}
		inner = client
	default:
		client, err := llm.NewAzure(llm.AzureConfig{
			Endpoint:    cfg.AzureEndpoint,
			APIKey:      cfg.AzureAPIKey,
			Deployment:  cfg.AzureDeployment,
			APIVersion:  cfg.AzureAPIVersion,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		}, logger)
		if err != nil {
			return nil, err
		}
		inner = client
	}

	return llm.NewResilient(inner, logger,
		llm.WithCircuitBreaker(llm.NewCircuitBreaker(llm.DefaultCircuitBreakerConfig())),
		llm.WithRateLimiter(rate.NewLimiter(rate.Every(time.Second), 3)),
		llm.WithRetryConfig(llm.DefaultRetryConfig()),
	), nil
}
