//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"trpc.group/trpc-go/trpc-graph-go/telemetry/semconv/metrics"
)

// Instruments default to noop until telemetry/metric.InitMeterProvider runs.
var (
	MeterProvider metric.MeterProvider = noop.NewMeterProvider()

	GraphMeter                  metric.Meter            = MeterProvider.Meter(metrics.MeterNameGraph)
	GraphMetricSteps            metric.Int64Counter     = noop.Int64Counter{}
	GraphMetricTasks            metric.Int64Counter     = noop.Int64Counter{}
	GraphMetricTaskRetries      metric.Int64Counter     = noop.Int64Counter{}
	GraphMetricTaskFailures     metric.Int64Counter     = noop.Int64Counter{}
	GraphMetricCheckpointWrites metric.Int64Counter     = noop.Int64Counter{}
	GraphMetricTaskDuration     metric.Float64Histogram = noop.Float64Histogram{}
)

// IncStep counts one executed superstep.
func IncStep(ctx context.Context) {
	GraphMetricSteps.Add(ctx, 1)
}

// IncTask counts one finished task with its outcome.
func IncTask(ctx context.Context, node string, failed bool) {
	status := "ok"
	if failed {
		status = "error"
		GraphMetricTaskFailures.Add(ctx, 1, metric.WithAttributes(attribute.String(metrics.KeyNode, node)))
	}
	GraphMetricTasks.Add(ctx, 1, metric.WithAttributes(
		attribute.String(metrics.KeyNode, node),
		attribute.String(metrics.KeyStatus, status),
	))
}

// IncTaskRetry counts one retry of a task.
func IncTaskRetry(ctx context.Context, node string) {
	GraphMetricTaskRetries.Add(ctx, 1, metric.WithAttributes(attribute.String(metrics.KeyNode, node)))
}

// RecordTaskDuration records the wall time of one task.
func RecordTaskDuration(ctx context.Context, node string, d time.Duration) {
	GraphMetricTaskDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String(metrics.KeyNode, node)))
}

// IncCheckpointWrite counts one checkpoint persisted with the given source.
func IncCheckpointWrite(ctx context.Context, source string) {
	GraphMetricCheckpointWrites.Add(ctx, 1, metric.WithAttributes(attribute.String(metrics.KeySource, source)))
}
