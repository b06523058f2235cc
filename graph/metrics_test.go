//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"trpc.group/trpc-go/trpc-graph-go/graph"
	"trpc.group/trpc-go/trpc-graph-go/graph/channel"
	"trpc.group/trpc-go/trpc-graph-go/graph/checkpoint/inmemory"
	"trpc.group/trpc-go/trpc-graph-go/telemetry/metric"
	"trpc.group/trpc-go/trpc-graph-go/telemetry/semconv/metrics"
)

func TestExecutor_RecordsMetrics(t *testing.T) {
	orig := metric.GetMeterProvider()
	defer func() { _ = metric.InitMeterProvider(orig) }()

	reader := sdkmetric.NewManualReader()
	require.NoError(t, metric.InitMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))))

	var calls atomic.Int32
	g := graph.NewBuilder().
		AddChannels(channel.NewLastValue[int]("in"), channel.NewLastValue[int]("x"), channel.NewLastValue[int]("y")).
		AddNode("a", addOne, graph.WithTriggers("in"), graph.WithWrites("x")).
		AddNode("b", func(_ context.Context, in any) (any, error) {
			if calls.Add(1) == 1 {
				return nil, errors.New("once")
			}
			return in.(int) + 1, nil
		}, graph.WithTriggers("x"), graph.WithWrites("y"),
			graph.WithRetryPolicy(&graph.RetryPolicy{InitialInterval: time.Millisecond, MaxAttempts: 2})).
		SetInputChannels("in").
		MustCompile()
	exec := newExecutor(t, g, inmemory.NewSaver())

	_, err := exec.Invoke(context.Background(), map[string]any{"in": 1})
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	totals := map[string]int64{}
	durations := uint64(0)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					totals[m.Name] += dp.Value
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					durations += dp.Count
				}
			}
		}
	}
	assert.Equal(t, int64(2), totals[metrics.MetricGraphSteps])
	assert.Equal(t, int64(2), totals[metrics.MetricGraphTasks])
	assert.Equal(t, int64(1), totals[metrics.MetricGraphTaskRetries])
	assert.Zero(t, totals[metrics.MetricGraphTaskFailures])
	assert.Equal(t, int64(3), totals[metrics.MetricGraphCheckpointWrites])
	assert.Equal(t, uint64(2), durations)
}
