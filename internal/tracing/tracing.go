// Package tracing installs the OpenTelemetry tracer provider.
//
// Components create their tracers with otel.Tracer, so before Init runs
// (and when tracing is disabled) spans go to the global no-op provider.
package tracing

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ServiceName identifies buyflow in exported spans.
const ServiceName = "buyflow"

// Config controls tracing.
type Config struct {
	Enabled bool
	// Writer receives exported spans as JSON. Defaults to stderr.
	Writer io.Writer
	// Version is recorded as service.version.
	Version string
}

// Shutdown flushes and stops the provider.
type Shutdown func(context.Context) error

// Init installs a tracer provider exporting to cfg.Writer and returns its
// shutdown function. With tracing disabled it installs nothing and the
// returned function is a no-op.
func Init(cfg Config) (Shutdown, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, errors.Wrap(err, "create span exporter")
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", ServiceName),
		attribute.String("service.version", cfg.Version),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return errors.Wrap(err, "shutdown tracer provider")
		}
		return nil
	}, nil
}
