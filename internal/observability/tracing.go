package observability

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const TracerName = "github.com/alphabot-ai/inkpost"

// TracingConfig holds configuration for initializing the tracer.
type TracingConfig struct {
	Enabled bool
	// Output receives pretty-printed spans when Enabled and no OTLP
	// endpoint is set.
	Output io.Writer
	// OTLPEndpoint is a host:port accepting OTLP over plain HTTP.
	OTLPEndpoint string
}

// InitTracing installs the global tracer provider and the W3C propagator.
// When tracing is disabled the global no-op provider is kept.
func InitTracing(cfg TracingConfig) (trace.Tracer, func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if !cfg.Enabled {
		return otel.Tracer(TracerName), func(context.Context) error { return nil }, nil
	}

	var tpOpt sdktrace.TracerProviderOption
	if cfg.OTLPEndpoint != "" {
		exporter, err := otlptracehttp.New(context.Background(),
			otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create tracing exporter: %w", err)
		}
		tpOpt = sdktrace.WithBatcher(exporter)
	} else {
		opts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
		if cfg.Output != nil {
			opts = append(opts, stdouttrace.WithWriter(cfg.Output))
		}
		exporter, err := stdouttrace.New(opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create tracing exporter: %w", err)
		}
		tpOpt = sdktrace.WithSyncer(exporter)
	}

	tp := sdktrace.NewTracerProvider(tpOpt)
	otel.SetTracerProvider(tp)
	return tp.Tracer(TracerName), tp.Shutdown, nil
}
