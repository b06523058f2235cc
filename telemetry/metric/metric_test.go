//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package metric

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	itelemetry "trpc.group/trpc-go/trpc-graph-go/internal/telemetry"
	"trpc.group/trpc-go/trpc-graph-go/telemetry/semconv/metrics"
)

func TestMetricsEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "custom-metric:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "generic:4317")
	assert.Equal(t, "custom-metric:4317", metricsEndpoint("grpc"))

	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")
	assert.Equal(t, "generic:4317", metricsEndpoint("grpc"))

	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	assert.Equal(t, "localhost:4317", metricsEndpoint("grpc"))
	assert.Equal(t, "localhost:4318", metricsEndpoint("http"))
}

func TestNewMeterProvider(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{name: "grpc", opts: []Option{WithEndpoint("localhost:4317"), WithProtocol("grpc")}},
		{name: "http", opts: []Option{WithEndpoint("localhost:4318"), WithProtocol("http")}},
		{name: "defaults"},
		{name: "attributes", opts: []Option{
			WithServiceName("svc"),
			WithServiceNamespace("ns"),
			WithServiceVersion("v1"),
			WithResourceAttributes(attribute.String("k", "v")),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mp, err := NewMeterProvider(context.Background(), tt.opts...)
			require.NoError(t, err)
			require.NotNil(t, mp)
			_ = mp.Shutdown(context.Background())
		})
	}
}

func TestInitMeterProviderRecords(t *testing.T) {
	orig := itelemetry.MeterProvider
	defer func() { _ = InitMeterProvider(orig) }()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	require.NoError(t, InitMeterProvider(mp))
	assert.Equal(t, mp, GetMeterProvider())

	ctx := context.Background()
	itelemetry.IncStep(ctx)
	itelemetry.IncStep(ctx)
	itelemetry.IncTask(ctx, "A", true)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = true
			if m.Name == metrics.MetricGraphSteps {
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				require.Len(t, sum.DataPoints, 1)
				assert.Equal(t, int64(2), sum.DataPoints[0].Value)
			}
		}
	}
	assert.True(t, found[metrics.MetricGraphSteps])
	assert.True(t, found[metrics.MetricGraphTasks])
	assert.True(t, found[metrics.MetricGraphTaskFailures])
}

func TestInitMeterProviderNil(t *testing.T) {
	assert.Error(t, InitMeterProvider(nil))
}
