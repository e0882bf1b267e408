// Package otelx installs the global OpenTelemetry tracer provider and
// propagator.
package otelx

import (
	"context"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/keithlinneman/docsite/internal/log"
	"github.com/keithlinneman/docsite/internal/version"
)

const defaultDialTimeout = 3 * time.Second

type Options struct {
	Enabled  bool
	Endpoint string // collector host:port
	Insecure bool
	Sample   float64 // ratio of root spans kept, 0..1

	Component string
	Build     version.Info

	// DialTimeout bounds exporter setup. Default 3s.
	DialTimeout time.Duration

	// Exporter replaces the OTLP exporter, mainly for tests.
	Exporter sdktrace.SpanExporter
}

// Shutdown flushes pending spans and stops the provider.
type Shutdown func(context.Context) error

// Init installs a tracer provider. Disabled, the provider still creates
// spans so trace ids reach logs, but nothing is exported.
func Init(ctx context.Context, o Options) (Shutdown, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	if !o.Enabled {
		tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.NeverSample()))
		otel.SetTracerProvider(tp)
		return tp.Shutdown, nil
	}

	exp := o.Exporter
	if exp == nil {
		var err error
		if exp, err = otlpExporter(ctx, o); err != nil {
			return nil, err
		}
	}

	res, err := newResource(ctx, o)
	if err != nil {
		// partial resources are still usable
		log.FromContext(ctx).Warn(ctx, "otel resource detection incomplete", "error", err)
	}
	if res == nil {
		res = resource.Default()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sampler(o.Sample)),
		sdktrace.WithBatcher(exp,
			sdktrace.WithMaxQueueSize(2048),
			sdktrace.WithBatchTimeout(5*time.Second),
		),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

func otlpExporter(ctx context.Context, o Options) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(o.Endpoint)}
	if o.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	timeout := o.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	exp, err := otlptracegrpc.New(dialCtx, opts...)
	if err != nil {
		return nil, oops.
			In("otelx").
			Code("OTLP_EXPORTER").
			With("endpoint", o.Endpoint).
			Wrapf(err, "creating otlp trace exporter")
	}
	return exp, nil
}

func serviceName(component string) string {
	if component == "" {
		return version.AppName
	}
	return version.AppName + "." + component
}

func newResource(ctx context.Context, o Options) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(serviceName(o.Component)),
		semconv.ServiceVersion(o.Build.Version),
	}
	if o.Build.Commit != "" {
		attrs = append(attrs, attribute.String("vcs.commit", o.Build.Commit))
	}
	if o.Build.BuildId != "" {
		attrs = append(attrs, attribute.String("build.id", o.Build.BuildId))
	}
	return resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithOS(),
		resource.WithHost(),
		resource.WithAttributes(attrs...),
	)
}

// sampler keeps the parent's decision and samples roots at ratio.
func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	case ratio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}
