//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package trace defines span attribute keys for the graph engine.
package trace

// telemetry attributes constants.
var (
	ResourceServiceNamespace = "trpc-go-graph"
	ResourceServiceName      = "telemetry"
	ResourceServiceVersion   = "v0.1.0"

	KeyRunID        = "trpc.go.graph.run_id"
	KeyStep         = "trpc.go.graph.step"
	KeyNode         = "trpc.go.graph.node"
	KeyTaskID       = "trpc.go.graph.task_id"
	KeyTaskKind     = "trpc.go.graph.task_kind"
	KeyTaskAttempts = "trpc.go.graph.task_attempts"
	KeyTaskCount    = "trpc.go.graph.task_count"
	KeyLoopStatus   = "trpc.go.graph.status"

	KeyErrorType    = "error.type"
	KeyErrorMessage = "error.message"
)
