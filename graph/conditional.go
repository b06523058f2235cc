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
	"fmt"
	"maps"
	"slices"

	"trpc.group/trpc-go/trpc-graph-go/log"
)

// RouteFunc inspects a read-only view of the available channel values and
// returns routing keys.
type RouteFunc func(ctx context.Context, values map[string]any) ([]string, error)

// ConditionalEdge routes from a node to the nodes selected by Route. Keys are
// mapped through PathMap; a key that is not mapped falls back to Default.
// The End key selects nothing.
type ConditionalEdge struct {
	Route   RouteFunc
	PathMap map[string]string
	Default string
}

// BranchOption configures a ConditionalEdge.
type BranchOption func(*ConditionalEdge)

// WithDefault sets the fallback target for unmapped keys.
func WithDefault(node string) BranchOption {
	return func(e *ConditionalEdge) {
		e.Default = node
	}
}

// NewConditionalEdge creates a conditional edge.
func NewConditionalEdge(route RouteFunc, pathMap map[string]string, opts ...BranchOption) *ConditionalEdge {
	e := &ConditionalEdge{Route: route, PathMap: maps.Clone(pathMap)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Targets returns every node the edge can select, sorted.
func (e *ConditionalEdge) Targets() []string {
	set := make(map[string]struct{}, len(e.PathMap)+1)
	for _, to := range e.PathMap {
		if to != End && to != "" {
			set[to] = struct{}{}
		}
	}
	if e.Default != "" && e.Default != End {
		set[e.Default] = struct{}{}
	}
	return keysOfSet(set)
}

// resolve evaluates the route and maps the returned keys to node names.
func (e *ConditionalEdge) resolve(ctx context.Context, from string, values map[string]any) ([]string, error) {
	keys, err := e.Route(ctx, values)
	if err != nil {
		return nil, fmt.Errorf("route from node %q: %w", from, err)
	}
	var targets []string
	for _, key := range keys {
		if key == End {
			continue
		}
		to, ok := e.PathMap[key]
		if !ok {
			if e.Default == "" {
				log.Warnf("graph: route from node %q returned unmapped key %q and no default is set", from, key)
				continue
			}
			to = e.Default
		}
		if to == End || slices.Contains(targets, to) {
			continue
		}
		targets = append(targets, to)
	}
	return targets, nil
}
