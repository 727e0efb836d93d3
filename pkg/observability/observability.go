package observability

import (
	"context"
	"os"

	"github.com/solarb/arbengine/internal/config"
)

// Provider bundles the engine's ambient observability dependencies: a
// structured logger and a tracer. The engine constructs one Provider at
// startup and threads it through every component (C1-C11).
type Provider struct {
	Logger  *Logger
	Tracing *TracingProvider
}

// NewProvider wires a Logger and TracingProvider from the process's
// observability configuration.
func NewProvider(cfg config.ObservabilityConfig) (*Provider, error) {
	tracing, err := NewTracingProvider(cfg)
	if err != nil {
		return nil, err
	}

	return &Provider{
		Logger:  NewLogger(cfg),
		Tracing: tracing,
	}, nil
}

// Start logs provider startup; present for symmetry with Stop and so callers
// have a single lifecycle hook if future exporters need a warm-up step.
func (p *Provider) Start(ctx context.Context) error {
	p.Logger.Info(ctx, "observability provider started")
	return nil
}

// Stop flushes the tracer provider.
func (p *Provider) Stop(ctx context.Context) error {
	p.Logger.Info(ctx, "observability provider stopping")
	return p.Tracing.Shutdown(ctx)
}

// DefaultObservabilityConfig builds an ObservabilityConfig from environment
// variables, matching the rest of this repository's env-driven configuration.
func DefaultObservabilityConfig() config.ObservabilityConfig {
	return config.ObservabilityConfig{
		ServiceName: getEnv("SERVICE_NAME", "arbengine"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
