//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package trace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestTracesEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "custom-trace:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "generic:4317")
	assert.Equal(t, "custom-trace:4317", tracesEndpoint("grpc"))

	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")
	assert.Equal(t, "generic:4317", tracesEndpoint("grpc"))

	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	assert.Equal(t, "localhost:4317", tracesEndpoint("grpc"))
	assert.Equal(t, "localhost:4318", tracesEndpoint("http"))
}

func TestStartAndClean(t *testing.T) {
	origProvider, origTracer := TracerProvider, Tracer
	defer func() { TracerProvider, Tracer = origProvider, origTracer }()

	for _, protocol := range []string{"grpc", "http"} {
		t.Run(protocol, func(t *testing.T) {
			ctx := context.Background()
			clean, err := Start(ctx,
				WithEndpoint("localhost:4317"),
				WithProtocol(protocol),
				WithServiceName("graph-test"),
				WithServiceNamespace("ns"),
				WithServiceVersion("v0"),
				WithResourceAttributes(attribute.String("k", "v")),
			)
			require.NoError(t, err)
			require.NotNil(t, clean)

			_, span := Tracer.Start(ctx, "test-span")
			span.End()
			_ = clean() // no collector is running in tests
		})
	}
}
