//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package metrics defines metric name constants for the graph engine.
package metrics

const (
	// MeterNameGraph is the meter name used for every engine instrument.
	MeterNameGraph = "trpc_graph_go.graph"

	// MetricGraphSteps counts supersteps executed.
	MetricGraphSteps = "trpc_graph_go.graph.steps"
	// MetricGraphTasks counts tasks executed, including reused pending writes.
	MetricGraphTasks = "trpc_graph_go.graph.tasks"
	// MetricGraphTaskRetries counts task re-invocations triggered by a retry policy.
	MetricGraphTaskRetries = "trpc_graph_go.graph.task.retries"
	// MetricGraphTaskFailures counts tasks that failed after exhausting retries.
	MetricGraphTaskFailures = "trpc_graph_go.graph.task.failures"
	// MetricGraphTaskDuration records task wall time in seconds.
	MetricGraphTaskDuration = "trpc_graph_go.graph.task.duration"
	// MetricGraphCheckpointWrites counts checkpoints handed to a saver.
	MetricGraphCheckpointWrites = "trpc_graph_go.graph.checkpoint.writes"

	// KeyNode is the node name attribute.
	KeyNode = "trpc_graph_go.node"
	// KeySource is the checkpoint source attribute.
	KeySource = "trpc_graph_go.checkpoint.source"
	// KeyStatus is the task status attribute.
	KeyStatus = "trpc_graph_go.status"
)
