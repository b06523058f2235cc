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
	"errors"
	"fmt"
	"slices"
	"strings"

	"trpc.group/trpc-go/trpc-graph-go/graph/channel"
)

// Builder assembles a Graph. Errors are collected and reported by Compile.
//
// Example usage:
//
//	g, err := graph.NewBuilder().
//	  AddChannels(channel.NewLastValue[int]("in"), channel.NewLastValue[int]("out")).
//	  AddNode("double", double, graph.WithTriggers("in"), graph.WithWrites("out")).
//	  SetInputChannels("in").
//	  SetOutputChannels("out").
//	  Compile()
type Builder struct {
	channels       map[string]channel.Channel
	nodes          map[string]*Node
	edges          [][2]string
	inputChannels  []string
	outputChannels []string
	errs           []error
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		channels: make(map[string]channel.Channel),
		nodes:    make(map[string]*Node),
	}
}

// AddChannel registers a channel prototype.
func (b *Builder) AddChannel(ch channel.Channel) *Builder {
	if ch == nil {
		b.errorf("channel cannot be nil")
		return b
	}
	key := ch.Key()
	switch {
	case key == "":
		b.errorf("channel key cannot be empty")
	case strings.HasPrefix(key, ChannelBranchPrefix):
		b.errorf("channel key %q uses the reserved prefix %q", key, ChannelBranchPrefix)
	case b.channels[key] != nil:
		b.errorf("channel %q already exists", key)
	default:
		b.channels[key] = ch
	}
	return b
}

// AddChannels registers several channel prototypes.
func (b *Builder) AddChannels(chs ...channel.Channel) *Builder {
	for _, ch := range chs {
		b.AddChannel(ch)
	}
	return b
}

// AddNode adds a node.
func (b *Builder) AddNode(name string, fn NodeFunc, opts ...Option) *Builder {
	switch {
	case name == "":
		b.errorf("node name cannot be empty")
		return b
	case name == End || name == InterruptKey || name == InterruptAfterKey || name == InterruptAll:
		b.errorf("node name %q is reserved", name)
		return b
	case b.nodes[name] != nil:
		b.errorf("node %q already exists", name)
		return b
	case fn == nil:
		b.errorf("node %q has no function", name)
		return b
	}
	n := &Node{Name: name, Func: fn}
	for _, opt := range opts {
		opt(n)
	}
	b.nodes[name] = n
	return b
}

// AddEdge makes to run in the step after from succeeded. It is backed by a
// branch channel written by from and triggering to.
func (b *Builder) AddEdge(from, to string) *Builder {
	b.edges = append(b.edges, [2]string{from, to})
	return b
}

// AddConditionalEdges attaches a conditional edge to from. Routing only
// gates its targets: each target still needs a trigger channel, or an edge,
// to become eligible.
func (b *Builder) AddConditionalEdges(from string, route RouteFunc, pathMap map[string]string, opts ...BranchOption) *Builder {
	n := b.nodes[from]
	if n == nil {
		b.errorf("conditional edge from unknown node %q", from)
		return b
	}
	n.Branch = NewConditionalEdge(route, pathMap, opts...)
	return b
}

// SetInputChannels sets the channels run input is written to.
func (b *Builder) SetInputChannels(channels ...string) *Builder {
	b.inputChannels = append([]string(nil), channels...)
	return b
}

// SetOutputChannels sets the channels reported as run output. Defaults to
// every user channel in key order.
func (b *Builder) SetOutputChannels(channels ...string) *Builder {
	b.outputChannels = append([]string(nil), channels...)
	return b
}

// Compile validates the builder and returns the immutable graph.
func (b *Builder) Compile() (*Graph, error) {
	errs := slices.Clone(b.errs)
	if len(b.nodes) == 0 {
		errs = append(errs, fmt.Errorf("%w: graph has no nodes", ErrInvalidGraph))
	}

	g := &Graph{
		channels:   make(map[string]channel.Channel, len(b.channels)+len(b.edges)),
		nodes:      make(map[string]*Node, len(b.nodes)),
		edgeWrites: make(map[string][]string),
		gated:      make(map[string]struct{}),
	}
	for k, ch := range b.channels {
		g.channels[k] = ch
	}
	for name, n := range b.nodes {
		cp := *n
		cp.Triggers = slices.Clone(n.Triggers)
		cp.Writes = slices.Clone(n.Writes)
		cp.Required = slices.Clone(n.Required)
		if len(n.Reads) == 0 {
			cp.Reads = slices.Clone(n.Triggers)
		} else {
			cp.Reads = slices.Clone(n.Reads)
		}
		g.nodes[name] = &cp
	}

	for _, e := range b.edges {
		from, to := e[0], e[1]
		if g.nodes[from] == nil || g.nodes[to] == nil {
			errs = append(errs, fmt.Errorf("%w: edge %s -> %s: %w", ErrInvalidGraph, from, to, ErrUnknownNode))
			continue
		}
		key := ChannelBranchPrefix + to
		if g.channels[key] == nil {
			g.channels[key] = channel.NewTopic[string](key, false)
		}
		g.nodes[to].Triggers = appendUnique(g.nodes[to].Triggers, key)
		g.edgeWrites[from] = appendUnique(g.edgeWrites[from], key)
	}

	for _, name := range sortedKeys(g.nodes) {
		n := g.nodes[name]
		errs = append(errs, b.validateNode(g, n)...)
		g.nodeNames = append(g.nodeNames, name)
		if n.Branch != nil {
			g.routers = append(g.routers, name)
			for _, to := range n.Branch.Targets() {
				g.gated[to] = struct{}{}
			}
		}
	}

	for _, to := range sortedKeys(g.gated) {
		if n := g.nodes[to]; n != nil && len(n.Triggers) == 0 {
			errs = append(errs, fmt.Errorf("%w: conditional edge target %q has no triggers", ErrInvalidGraph, to))
		}
	}

	if len(b.inputChannels) == 0 {
		errs = append(errs, fmt.Errorf("%w: no input channels", ErrInvalidGraph))
	}
	for _, k := range b.inputChannels {
		if b.channels[k] == nil {
			errs = append(errs, fmt.Errorf("%w: input channel %q: %w", ErrInvalidGraph, k, ErrUnknownChannel))
		}
	}
	g.inputChannels = slices.Clone(b.inputChannels)
	for _, k := range b.outputChannels {
		if b.channels[k] == nil {
			errs = append(errs, fmt.Errorf("%w: output channel %q: %w", ErrInvalidGraph, k, ErrUnknownChannel))
		}
	}
	g.outputChannels = slices.Clone(b.outputChannels)
	if len(g.outputChannels) == 0 {
		g.outputChannels = sortedKeys(b.channels)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return g, nil
}

// MustCompile is like Compile but panics on error.
func (b *Builder) MustCompile() *Graph {
	g, err := b.Compile()
	if err != nil {
		panic(err)
	}
	return g
}

func (b *Builder) validateNode(g *Graph, n *Node) []error {
	var errs []error
	check := func(kind string, keys []string) {
		for _, k := range keys {
			if g.channels[k] == nil {
				errs = append(errs, fmt.Errorf("%w: node %q %s %q: %w", ErrInvalidGraph, n.Name, kind, k, ErrUnknownChannel))
			}
		}
	}
	check("trigger", n.Triggers)
	check("read", n.Reads)
	check("write", n.Writes)
	for _, k := range n.Required {
		if !slices.Contains(n.Reads, k) {
			errs = append(errs, fmt.Errorf("%w: node %q requires %q without reading it", ErrInvalidGraph, n.Name, k))
		}
	}
	if n.Branch != nil {
		if n.Branch.Route == nil {
			errs = append(errs, fmt.Errorf("%w: node %q has a conditional edge without a route", ErrInvalidGraph, n.Name))
		}
		if len(n.Branch.PathMap) == 0 && n.Branch.Default == "" {
			errs = append(errs, fmt.Errorf("%w: node %q has a conditional edge without targets", ErrInvalidGraph, n.Name))
		}
		for _, to := range n.Branch.Targets() {
			if g.nodes[to] == nil {
				errs = append(errs, fmt.Errorf("%w: conditional edge %s -> %s: %w", ErrInvalidGraph, n.Name, to, ErrUnknownNode))
			}
		}
	}
	return errs
}

func (b *Builder) errorf(format string, args ...any) {
	b.errs = append(b.errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidGraph}, args...)...))
}
