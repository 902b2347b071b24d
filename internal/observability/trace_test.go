package observability

import (
	"context"
	"testing"

	"github.com/kztmrk/kaiwa/internal/log"
)

func TestSetup_Disabled(t *testing.T) {
	provider, err := Setup(context.Background(), Config{Enabled: false}, log.NewNop())
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	// A disabled provider still hands out usable tracers and shuts down
	// cleanly.
	tracer := provider.Tracer("test")
	_, span := tracer.Start(context.Background(), "noop-span")
	span.End()

	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestProvider_ShutdownNil(t *testing.T) {
	var provider *Provider
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() on nil provider = %v", err)
	}
}
