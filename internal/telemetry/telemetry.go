//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package telemetry holds the process wide tracer and meter state used by the
// graph engine, plus small helpers for recording spans and metrics.
package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	semconvtrace "trpc.group/trpc-go/trpc-graph-go/telemetry/semconv/trace"
)

// grpcDial is a package-level variable to allow test injection of a custom dialer.
var grpcDial = grpc.Dial

// telemetry service constants.
const (
	ServiceName      = "telemetry"
	ServiceVersion   = "v0.1.0"
	ServiceNamespace = "trpc-go-graph"
	InstrumentName   = "trpc.graph.go"

	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http"

	SpanNameStep = "graph.step"
	SpanNameTask = "graph.task"
)

// Span attribute keys, aliased from the semconv package.
var (
	KeyRunID        = semconvtrace.KeyRunID
	KeyStep         = semconvtrace.KeyStep
	KeyNode         = semconvtrace.KeyNode
	KeyTaskID       = semconvtrace.KeyTaskID
	KeyTaskKind     = semconvtrace.KeyTaskKind
	KeyTaskAttempts = semconvtrace.KeyTaskAttempts
	KeyTaskCount    = semconvtrace.KeyTaskCount
	KeyLoopStatus   = semconvtrace.KeyLoopStatus
	KeyErrorType    = semconvtrace.KeyErrorType
	KeyErrorMessage = semconvtrace.KeyErrorMessage
)

// TraceStep annotates a step span.
func TraceStep(span trace.Span, runID string, step, taskCount int) {
	span.SetAttributes(
		attribute.String(KeyRunID, runID),
		attribute.Int(KeyStep, step),
		attribute.Int(KeyTaskCount, taskCount),
	)
}

// TraceTask annotates a task span and records err on it.
func TraceTask(span trace.Span, node, taskID, kind string, attempts int, err error) {
	span.SetAttributes(
		attribute.String(KeyNode, node),
		attribute.String(KeyTaskID, taskID),
		attribute.String(KeyTaskKind, kind),
		attribute.Int(KeyTaskAttempts, attempts),
	)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(
			attribute.String(KeyErrorType, fmt.Sprintf("%T", err)),
			attribute.String(KeyErrorMessage, err.Error()),
		)
	}
}

// NewGRPCConn creates a new gRPC connection to the OpenTelemetry Collector.
func NewGRPCConn(endpoint string) (*grpc.ClientConn, error) {
	// Note the use of insecure transport here. TLS is recommended in production.
	conn, err := grpcDial(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to collector: %w", err)
	}
	return conn, nil
}
