// Package observability provides OpenTelemetry tracing for the chat
// service.
//
// Traces are exported over OTLP HTTP to whatever collector the endpoint
// points at (an OTel Collector, a vendor agent listening on localhost:4318,
// etc.). The collector handles authentication and forwarding; the
// application never carries vendor credentials.
//
// # Configuration
//
// Config file (~/.kaiwa/config.yaml):
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4318"
//	  environment: "dev"
//	  service_name: "kaiwa"
//
// The standard OTEL_EXPORTER_OTLP_ENDPOINT environment variable overrides
// the endpoint.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/kztmrk/kaiwa/internal/log"
)

// DefaultEndpoint is the conventional local OTLP HTTP endpoint.
const DefaultEndpoint = "localhost:4318"

// Config for tracing setup.
type Config struct {
	// Endpoint is the OTLP HTTP endpoint (default: localhost:4318).
	Endpoint string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// ServiceName identifies the service in trace backends.
	ServiceName string
	// Enabled turns tracing on. When false, Setup installs a no-op provider.
	Enabled bool
}

// Provider owns the tracer provider lifecycle.
type Provider struct {
	tp     *sdktrace.TracerProvider
	logger log.Logger
}

// Setup configures the global tracer provider. When tracing is disabled or
// the exporter cannot be created, a no-op provider is installed and the
// application runs untraced rather than failing.
func Setup(ctx context.Context, cfg Config, logger log.Logger) (*Provider, error) {
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return &Provider{logger: logger}, nil
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "kaiwa"
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(), // local collector, no TLS
	)
	if err != nil {
		logger.Warn("creating trace exporter failed, tracing disabled", "error", err)
		otel.SetTracerProvider(noop.NewTracerProvider())
		return &Provider{logger: logger}, nil
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.DeploymentEnvironment(cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("building trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	logger.Debug("tracing enabled",
		"endpoint", endpoint,
		"service", serviceName,
		"environment", cfg.Environment,
	)

	return &Provider{tp: tp, logger: logger}, nil
}

// Tracer returns a named tracer from the configured provider.
func (p *Provider) Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// Shutdown flushes pending spans. Safe to call on a disabled provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	if err := p.tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down tracer provider: %w", err)
	}
	return nil
}
