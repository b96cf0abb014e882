package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// tracing owns the TracerProvider of one invocation.
type tracing struct {
	provider trace.TracerProvider
	shutdown func(ctx context.Context) error
}

// newTracing exports spans as JSON to output: "stderr" or a file path. An empty
// output disables tracing.
func newTracing(output string) (*tracing, error) {
	if output == "" {
		return &tracing{
			provider: noop.NewTracerProvider(),
			shutdown: func(context.Context) error { return nil },
		}, nil
	}

	w, closeWriter, err := traceWriter(output)
	if err != nil {
		return nil, err
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		closeWriter()
		return nil, fmt.Errorf("failed to create span exporter: %w", err)
	}

	// Spans are written as they end; the process is short lived.
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	return &tracing{
		provider: provider,
		shutdown: func(ctx context.Context) error {
			defer closeWriter()
			return provider.Shutdown(ctx)
		},
	}, nil
}

func traceWriter(output string) (io.Writer, func(), error) {
	if output == "stderr" {
		return os.Stderr, func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create trace directory: %w", err)
	}
	f, err := os.Create(output)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create trace file: %w", err)
	}
	return f, func() { f.Close() }, nil
}
