package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/kztmrk/kaiwa/internal/agent"
	"github.com/kztmrk/kaiwa/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Provider:        config.ProviderAzure,
		Temperature:     0.7,
		MaxTokens:       800,
		AzureEndpoint:   "https://example.openai.azure.com/",
		AzureAPIKey:     "test-key",
		AzureDeployment: "gpt-35-turbo",
		AgentType:       config.AgentWebSearch,
		Search: config.SearchConfig{
			Enabled:             true,
			MaxResults:          3,
			Region:              "jp-jp",
			MaxQueryRefinements: 1,
		},
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	app, err := New(context.Background(), Options{
		Config:    testConfig(),
		LogWriter: io.Discard,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() {
		if err := app.Close(context.Background()); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}()

	if app.Responder.Name() != agent.TypeWebSearch {
		t.Errorf("Responder.Name() = %q", app.Responder.Name())
	}
	if app.History == nil || app.History.Count() != 0 {
		t.Error("history should start empty")
	}
	if app.Client == nil || app.Search == nil || app.Fetcher == nil {
		t.Error("core collaborators not wired")
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.AzureAPIKey = ""

	_, err := New(context.Background(), Options{Config: cfg, LogWriter: io.Discard})
	if !errors.Is(err, config.ErrMissingAPIKey) {
		t.Errorf("New() error = %v, want ErrMissingAPIKey", err)
	}
}

func TestNewLogger_VerboseLevel(t *testing.T) {
	t.Parallel()

	quiet := newLogger(Options{LogWriter: io.Discard})
	if quiet.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("default logger should not emit debug records")
	}
	if !quiet.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("default logger should emit info records")
	}

	verbose := newLogger(Options{Verbose: true, LogWriter: io.Discard})
	if !verbose.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("verbose logger should emit debug records")
	}
}

func TestNew_DirectAgentWithoutSearch(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.AgentType = config.AgentDirect
	cfg.Search.Enabled = false

	app, err := New(context.Background(), Options{Config: cfg, LogWriter: io.Discard})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = app.Close(context.Background()) }()

	if app.Responder.Name() != agent.TypeDirect {
		t.Errorf("Responder.Name() = %q", app.Responder.Name())
	}
}
