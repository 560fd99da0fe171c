//
// Tencent is pleased to support the open source community by making planloop-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// planloop-go is licensed under the Apache License Version 2.0.
//
//

// Package trace provides distributed tracing for planloop-go. It integrates
// with OpenTelemetry and exports spans over OTLP gRPC or HTTP.
package trace

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	itelemetry "github.com/planloop/planloop-go/internal/telemetry"
)

// Tracer is the tracer used to create spans throughout planloop-go. It is a
// no-op until Start installs a real provider.
var Tracer trace.Tracer = otel.Tracer(itelemetry.InstrumentName)

// Option is a function that configures trace options.
type Option func(*options)

// options holds the configuration options for tracing.
type options struct {
	tracesEndpoint     string
	tracesEndpointURL  string
	headers            map[string]string
	serviceName        string
	serviceVersion     string
	serviceNamespace   string
	protocol           string
	resourceAttributes []attribute.KeyValue
}

// WithEndpoint sets the traces endpoint (host and port) the exporter will
// connect to, resembling "example.com:4317" (no scheme or path). When the
// OTEL_EXPORTER_OTLP_ENDPOINT or OTEL_EXPORTER_OTLP_TRACES_ENDPOINT
// environment variable is set and this option is not passed, the variable
// value is used instead.
func WithEndpoint(endpoint string) Option {
	return func(opts *options) {
		opts.tracesEndpoint = endpoint
	}
}

// WithEndpointURL sets a full endpoint URL including scheme and path, for
// collectors mounted somewhere other than the default OTLP path. It takes
// precedence over WithEndpoint.
func WithEndpointURL(endpointURL string) Option {
	return func(opts *options) {
		opts.tracesEndpointURL = endpointURL
	}
}

// WithHeaders sets extra headers sent with every export request.
func WithHeaders(headers map[string]string) Option {
	return func(opts *options) {
		opts.headers = headers
	}
}

// WithProtocol sets the protocol to use for trace export.
// Supported protocols are "grpc" (default) and "http".
func WithProtocol(protocol string) Option {
	return func(opts *options) {
		opts.protocol = protocol
	}
}

// WithServiceName overrides the service.name resource attribute.
func WithServiceName(serviceName string) Option {
	return func(opts *options) {
		opts.serviceName = serviceName
	}
}

// WithServiceNamespace overrides the service.namespace resource attribute.
func WithServiceNamespace(serviceNamespace string) Option {
	return func(opts *options) {
		opts.serviceNamespace = serviceNamespace
	}
}

// WithServiceVersion overrides the service.version resource attribute.
func WithServiceVersion(serviceVersion string) Option {
	return func(opts *options) {
		opts.serviceVersion = serviceVersion
	}
}

// WithResourceAttributes appends custom resource attributes.
func WithResourceAttributes(attrs ...attribute.KeyValue) Option {
	return func(opts *options) {
		opts.resourceAttributes = append(opts.resourceAttributes, attrs...)
	}
}

// Start initializes the global tracer provider and assigns Tracer. The
// returned cleanup flushes and shuts the provider down.
//
// The environment variables OTEL_EXPORTER_OTLP_ENDPOINT and
// OTEL_EXPORTER_OTLP_TRACES_ENDPOINT configure the endpoint when no option
// is passed (default: "localhost:4317" for gRPC, "localhost:4318" for HTTP).
func Start(ctx context.Context, opts ...Option) (clean func() error, err error) {
	options := &options{
		serviceName:      itelemetry.ServiceName,
		serviceVersion:   itelemetry.ServiceVersion,
		serviceNamespace: itelemetry.ServiceNamespace,
		protocol:         itelemetry.ProtocolGRPC,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.tracesEndpoint == "" {
		options.tracesEndpoint = tracesEndpoint(options.protocol)
	}

	res, err := buildResource(ctx, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var tracerProvider *sdktrace.TracerProvider
	switch options.protocol {
	case itelemetry.ProtocolHTTP:
		tracerProvider, err = newHTTPTracerProvider(ctx, res, options)
	default:
		tracerProvider, err = newGRPCTracerProvider(ctx, res, options)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer provider: %w", err)
	}

	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	Tracer = tracerProvider.Tracer(itelemetry.InstrumentName)

	return func() error {
		return tracerProvider.Shutdown(context.Background())
	}, nil
}

func tracesEndpoint(protocol string) string {
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		return endpoint
	}

	// Return different default endpoints based on protocol.
	switch protocol {
	case itelemetry.ProtocolHTTP:
		return "localhost:4318" // HTTP endpoint base URL (otlptracehttp adds /v1/traces).
	default:
		return "localhost:4317" // gRPC endpoint (host:port).
	}
}

// parseEndpointURL splits a full endpoint URL into host:port and path. A
// missing scheme is tolerated; a missing host is an error.
func parseEndpointURL(endpointURL string) (endpoint, urlPath string, err error) {
	raw := endpointURL
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse endpoint URL %q: %w", endpointURL, err)
	}
	if parsed.Host == "" {
		return "", "", fmt.Errorf("endpoint URL %q has no host", endpointURL)
	}
	urlPath = parsed.Path
	if urlPath == "" {
		urlPath = "/"
	}
	return parsed.Host, urlPath, nil
}

func newGRPCTracerProvider(ctx context.Context, res *resource.Resource, options *options) (*sdktrace.TracerProvider, error) {
	endpoint := options.tracesEndpoint
	if options.tracesEndpointURL != "" {
		host, _, err := parseEndpointURL(options.tracesEndpointURL)
		if err != nil {
			return nil, err
		}
		endpoint = host
	}
	conn, err := itelemetry.NewGRPCConn(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create traces connection: %w", err)
	}
	grpcOpts := []otlptracegrpc.Option{otlptracegrpc.WithGRPCConn(conn)}
	if len(options.headers) > 0 {
		grpcOpts = append(grpcOpts, otlptracegrpc.WithHeaders(options.headers))
	}
	traceExporter, err := otlptracegrpc.New(ctx, grpcOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create traces exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	), nil
}

func newHTTPTracerProvider(ctx context.Context, res *resource.Resource, options *options) (*sdktrace.TracerProvider, error) {
	httpOpts := []otlptracehttp.Option{otlptracehttp.WithInsecure()}
	if options.tracesEndpointURL != "" {
		host, urlPath, err := parseEndpointURL(options.tracesEndpointURL)
		if err != nil {
			return nil, err
		}
		httpOpts = append(httpOpts, otlptracehttp.WithEndpoint(host), otlptracehttp.WithURLPath(urlPath))
	} else {
		httpOpts = append(httpOpts, otlptracehttp.WithEndpoint(options.tracesEndpoint))
	}
	if len(options.headers) > 0 {
		httpOpts = append(httpOpts, otlptracehttp.WithHeaders(options.headers))
	}
	traceExporter, err := otlptracehttp.New(ctx, httpOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP traces exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	), nil
}

func buildResource(ctx context.Context, options *options) (*resource.Resource, error) {
	resourceOpts := []resource.Option{
		resource.WithAttributes(
			semconv.ServiceNamespace(options.serviceNamespace),
			semconv.ServiceName(options.serviceName),
			semconv.ServiceVersion(options.serviceVersion),
		),
		resource.WithFromEnv(),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	}
	if len(options.resourceAttributes) > 0 {
		resourceOpts = append(resourceOpts, resource.WithAttributes(options.resourceAttributes...))
	}
	return resource.New(ctx, resourceOpts...)
}
