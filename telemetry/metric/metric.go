//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package metric wires OpenTelemetry metrics into the graph engine.
package metric

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	itelemetry "trpc.group/trpc-go/trpc-graph-go/internal/telemetry"
	"trpc.group/trpc-go/trpc-graph-go/telemetry/semconv/metrics"
)

// InitMeterProvider installs mp and creates the engine instruments on it.
func InitMeterProvider(mp metric.MeterProvider) error {
	if mp == nil {
		return fmt.Errorf("meter provider is nil")
	}
	meter := mp.Meter(metrics.MeterNameGraph)

	steps, err := meter.Int64Counter(metrics.MetricGraphSteps,
		metric.WithDescription("Number of supersteps executed"),
		metric.WithUnit("1"))
	if err != nil {
		return fmt.Errorf("failed to create metric %s: %w", metrics.MetricGraphSteps, err)
	}
	tasks, err := meter.Int64Counter(metrics.MetricGraphTasks,
		metric.WithDescription("Number of tasks executed"),
		metric.WithUnit("1"))
	if err != nil {
		return fmt.Errorf("failed to create metric %s: %w", metrics.MetricGraphTasks, err)
	}
	retries, err := meter.Int64Counter(metrics.MetricGraphTaskRetries,
		metric.WithDescription("Number of task retries"),
		metric.WithUnit("1"))
	if err != nil {
		return fmt.Errorf("failed to create metric %s: %w", metrics.MetricGraphTaskRetries, err)
	}
	failures, err := meter.Int64Counter(metrics.MetricGraphTaskFailures,
		metric.WithDescription("Number of tasks failed after retries"),
		metric.WithUnit("1"))
	if err != nil {
		return fmt.Errorf("failed to create metric %s: %w", metrics.MetricGraphTaskFailures, err)
	}
	writes, err := meter.Int64Counter(metrics.MetricGraphCheckpointWrites,
		metric.WithDescription("Number of checkpoints persisted"),
		metric.WithUnit("1"))
	if err != nil {
		return fmt.Errorf("failed to create metric %s: %w", metrics.MetricGraphCheckpointWrites, err)
	}
	duration, err := meter.Float64Histogram(metrics.MetricGraphTaskDuration,
		metric.WithDescription("Task execution time"),
		metric.WithUnit("s"))
	if err != nil {
		return fmt.Errorf("failed to create metric %s: %w", metrics.MetricGraphTaskDuration, err)
	}

	itelemetry.MeterProvider = mp
	itelemetry.GraphMeter = meter
	itelemetry.GraphMetricSteps = steps
	itelemetry.GraphMetricTasks = tasks
	itelemetry.GraphMetricTaskRetries = retries
	itelemetry.GraphMetricTaskFailures = failures
	itelemetry.GraphMetricCheckpointWrites = writes
	itelemetry.GraphMetricTaskDuration = duration
	return nil
}

// GetMeterProvider returns the meter provider installed by InitMeterProvider.
func GetMeterProvider() metric.MeterProvider {
	return itelemetry.MeterProvider
}

// NewMeterProvider creates a new meter provider with optional configuration.
// The environment variables described below can be used for Endpoint configuration.
// OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_METRICS_ENDPOINT (default: "https://localhost:4317")
// https://pkg.go.dev/go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc
func NewMeterProvider(ctx context.Context, opts ...Option) (*sdkmetric.MeterProvider, error) {
	options := &options{
		serviceName:      itelemetry.ServiceName,
		serviceVersion:   itelemetry.ServiceVersion,
		serviceNamespace: itelemetry.ServiceNamespace,
		protocol:         itelemetry.ProtocolGRPC,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.metricsEndpoint == "" {
		options.metricsEndpoint = metricsEndpoint(options.protocol)
	}

	res, err := buildResource(ctx, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdkmetric.Exporter
	switch options.protocol {
	case itelemetry.ProtocolHTTP:
		exporter, err = otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(options.metricsEndpoint),
			otlpmetrichttp.WithInsecure())
	default:
		conn, connErr := itelemetry.NewGRPCConn(options.metricsEndpoint)
		if connErr != nil {
			return nil, fmt.Errorf("failed to create metrics connection: %w", connErr)
		}
		exporter, err = otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	), nil
}

func metricsEndpoint(protocol string) string {
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	if protocol == itelemetry.ProtocolHTTP {
		return "localhost:4318"
	}
	return "localhost:4317"
}

// Option is a function that configures meter options.
type Option func(*options)

type options struct {
	metricsEndpoint    string
	serviceName        string
	serviceVersion     string
	serviceNamespace   string
	protocol           string
	resourceAttributes []attribute.KeyValue
}

// WithEndpoint sets the metrics endpoint (host and port) the exporter connects to.
// It takes precedence over OTEL_EXPORTER_OTLP_METRICS_ENDPOINT and OTEL_EXPORTER_OTLP_ENDPOINT.
func WithEndpoint(endpoint string) Option {
	return func(opts *options) {
		opts.metricsEndpoint = endpoint
	}
}

// WithProtocol sets the export protocol, "grpc" (default) or "http".
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

func buildResource(ctx context.Context, options *options) (*resource.Resource, error) {
	resourceOpts := []resource.Option{
		resource.WithAttributes(
			semconv.ServiceNamespace(options.serviceNamespace),
			semconv.ServiceName(options.serviceName),
			semconv.ServiceVersion(options.serviceVersion),
		),
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
	}
	if len(options.resourceAttributes) > 0 {
		resourceOpts = append(resourceOpts, resource.WithAttributes(options.resourceAttributes...))
	}
	return resource.New(ctx, resourceOpts...)
}
