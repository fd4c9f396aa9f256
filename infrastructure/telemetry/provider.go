// Package telemetry wires OpenTelemetry tracing and metrics for the runtime.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/felixgeelhaar/ragent/domain/config"
)

// InstrumentationName scopes the tracer and meter.
const InstrumentationName = "github.com/felixgeelhaar/ragent"

// ErrUnknownExporter indicates an unsupported trace exporter name.
var ErrUnknownExporter = errors.New("unknown trace exporter")

// Provider manages the tracing pipeline.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	shutdownFuncs  []func(context.Context) error
}

// Option configures a Provider.
type Option func(*options)

type options struct {
	serviceName    string
	serviceVersion string
	writer         io.Writer
	global         bool
}

// WithService sets the service name and version on the trace resource.
func WithService(name, version string) Option {
	return func(o *options) {
		o.serviceName = name
		o.serviceVersion = version
	}
}

// WithWriter sends stdout exporter output to w.
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.writer = w
	}
}

// WithoutGlobal keeps the tracer provider out of the otel globals.
func WithoutGlobal() Option {
	return func(o *options) {
		o.global = false
	}
}

// New creates a provider from cfg. Disabled tracing yields a no-op tracer.
func New(ctx context.Context, cfg config.TracingConfig, opts ...Option) (*Provider, error) {
	o := options{serviceName: "ragent", writer: os.Stdout, global: true}
	for _, opt := range opts {
		opt(&o)
	}

	if !cfg.Enabled {
		return NewNoopProvider(), nil
	}

	var exporter sdktrace.SpanExporter
	switch strings.ToLower(cfg.Exporter) {
	case "otlp":
		grpcOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			grpcOpts = append(grpcOpts,
				otlptracegrpc.WithInsecure(),
				otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
			)
		}
		exp, err := otlptracegrpc.New(ctx, grpcOpts...)
		if err != nil {
			return nil, fmt.Errorf("create otlp exporter: %w", err)
		}
		exporter = exp
	case "", "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithWriter(o.writer))
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		exporter = exp
	case "none", "noop":
		return NewNoopProvider(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.Exporter)
	}

	// Not merged with resource.Default() to avoid schema URL conflicts.
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(o.serviceName),
		semconv.ServiceVersion(o.serviceVersion),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
	)

	if o.global {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	return &Provider{
		tracerProvider: tp,
		tracer:         tp.Tracer(InstrumentationName),
		shutdownFuncs:  []func(context.Context) error{tp.Shutdown},
	}, nil
}

// NewNoopProvider creates a provider whose spans are discarded.
func NewNoopProvider() *Provider {
	return &Provider{tracer: noop.NewTracerProvider().Tracer(InstrumentationName)}
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0.0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Tracer returns the tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// ForceFlush exports any buffered spans.
func (p *Provider) ForceFlush(ctx context.Context) error {
	if p.tracerProvider == nil {
		return nil
	}
	return p.tracerProvider.ForceFlush(ctx)
}

// Shutdown flushes and stops the tracing pipeline.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range p.shutdownFuncs {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
