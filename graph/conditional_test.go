//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-graph-go/graph/channel"
)

func routeTo(keys ...string) RouteFunc {
	return func(context.Context, map[string]any) ([]string, error) {
		return keys, nil
	}
}

func TestConditionalEdgeResolve(t *testing.T) {
	pathMap := map[string]string{"l": "left", "r": "right", "stop": End}
	tests := []struct {
		name string
		edge *ConditionalEdge
		keys []string
		want []string
	}{
		{name: "mapped", edge: NewConditionalEdge(routeTo("l"), pathMap), want: []string{"left"}},
		{name: "fan out keeps order", edge: NewConditionalEdge(routeTo("r", "l", "r"), pathMap), want: []string{"right", "left"}},
		{name: "end key", edge: NewConditionalEdge(routeTo(End), pathMap)},
		{name: "mapped to end", edge: NewConditionalEdge(routeTo("stop"), pathMap)},
		{name: "unmapped without default", edge: NewConditionalEdge(routeTo("?"), pathMap)},
		{name: "unmapped with default", edge: NewConditionalEdge(routeTo("?"), pathMap, WithDefault("right")), want: []string{"right"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.edge.resolve(context.Background(), "router", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	failing := NewConditionalEdge(func(context.Context, map[string]any) ([]string, error) {
		return nil, errors.New("no route")
	}, pathMap)
	_, err := failing.resolve(context.Background(), "router", nil)
	assert.ErrorContains(t, err, `route from node "router"`)
}

func TestConditionalEdgeTargets(t *testing.T) {
	e := NewConditionalEdge(routeTo(), map[string]string{"a": "x", "b": End, "c": "w"}, WithDefault("x"))
	assert.Equal(t, []string{"w", "x"}, e.Targets())

	pathMap := map[string]string{"a": "x"}
	e = NewConditionalEdge(routeTo(), pathMap)
	pathMap["b"] = "y"
	assert.Equal(t, []string{"x"}, e.Targets(), "the path map is copied")
}

func newRoutingGraph(t *testing.T, opts ...BranchOption) *Graph {
	t.Helper()
	route := func(_ context.Context, values map[string]any) ([]string, error) {
		return []string{values["choice"].(string)}, nil
	}
	say := func(msg string) NodeFunc {
		return func(context.Context, any) (any, error) { return msg, nil }
	}
	g, err := NewBuilder().
		AddChannels(
			channel.NewLastValue[string]("in"),
			channel.NewLastValue[string]("choice"),
			channel.NewLastValue[string]("out"),
		).
		AddNode("router", identity, WithTriggers("in"), WithWrites("choice"),
			WithBranch(route, map[string]string{"l": "left", "r": "right", "stop": End}, opts...)).
		AddNode("left", say("went left"), WithTriggers("choice"), WithWrites("out")).
		AddNode("right", say("went right"), WithTriggers("choice"), WithWrites("out")).
		SetInputChannels("in").
		SetOutputChannels("out").
		Compile()
	require.NoError(t, err)
	return g
}

func TestExecutor_ConditionalRouting(t *testing.T) {
	tests := []struct {
		name    string
		choice  string
		opts    []BranchOption
		want    string
		wantOut bool
	}{
		{name: "left", choice: "l", want: "went left", wantOut: true},
		{name: "right", choice: "r", want: "went right", wantOut: true},
		{name: "end", choice: "stop"},
		{name: "unmapped", choice: "?"},
		{name: "default", choice: "?", opts: []BranchOption{WithDefault("right")}, want: "went right", wantOut: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := newTestExecutor(t, newRoutingGraph(t, tt.opts...))
			res, err := exec.Invoke(context.Background(), map[string]any{"in": tt.choice})
			require.NoError(t, err)
			assert.Equal(t, LoopConverged, res.Status)

			out, ok := res.Output.Get("out")
			assert.Equal(t, tt.wantOut, ok)
			if tt.wantOut {
				assert.Equal(t, tt.want, out)
				assert.Equal(t, 2, res.Step)
			} else {
				assert.Equal(t, 1, res.Step)
			}
		})
	}
}
