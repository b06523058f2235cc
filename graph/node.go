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
	"slices"
)

// NodeFunc is the computation of a node. input is the value of the node's
// single read channel, or a map keyed by channel when it reads several. For a
// task created by a Send, input is the Send argument.
//
// The return value is either nil, a *Result (or Result) carrying explicit
// writes and sends, or any other value, which is written to the node's only
// declared write channel.
type NodeFunc func(ctx context.Context, input any) (any, error)

// Node is a compiled node of the graph. It is immutable once the graph is
// compiled.
type Node struct {
	// Name is the unique name of the node.
	Name string
	// Triggers are the channels whose changes make the node runnable.
	Triggers []string
	// Reads are the channels assembled into the node input. Defaults to the
	// explicit triggers.
	Reads []string
	// Required lists reads that must be available; an empty required channel
	// fails the task instead of skipping it.
	Required []string
	// Writes are the channels the node may write.
	Writes []string
	// RetryPolicy controls re-invocation on failure. Nil means one attempt.
	RetryPolicy *RetryPolicy
	// Branch routes to downstream nodes once this node's output is visible.
	Branch *ConditionalEdge
	// Func is the node computation.
	Func NodeFunc
}

// Option configures a node added through Builder.AddNode.
type Option func(*Node)

// WithTriggers sets the channels that make the node runnable.
func WithTriggers(channels ...string) Option {
	return func(n *Node) {
		n.Triggers = appendUnique(n.Triggers, channels...)
	}
}

// WithReads sets the channels assembled into the node input.
func WithReads(channels ...string) Option {
	return func(n *Node) {
		n.Reads = appendUnique(n.Reads, channels...)
	}
}

// WithRequired marks read channels as required. They are added to the
// node's reads when missing.
func WithRequired(channels ...string) Option {
	return func(n *Node) {
		n.Required = appendUnique(n.Required, channels...)
		n.Reads = appendUnique(n.Reads, channels...)
	}
}

// WithWrites declares the channels the node may write.
func WithWrites(channels ...string) Option {
	return func(n *Node) {
		n.Writes = appendUnique(n.Writes, channels...)
	}
}

// WithRetryPolicy sets the node retry policy.
func WithRetryPolicy(policy *RetryPolicy) Option {
	return func(n *Node) {
		n.RetryPolicy = policy
	}
}

// WithBranch attaches a conditional edge evaluated on the node's output.
func WithBranch(route RouteFunc, pathMap map[string]string, opts ...BranchOption) Option {
	return func(n *Node) {
		n.Branch = NewConditionalEdge(route, pathMap, opts...)
	}
}

func (n *Node) isRequired(channel string) bool {
	return slices.Contains(n.Required, channel)
}

func (n *Node) canWrite(channel string) bool {
	return slices.Contains(n.Writes, channel)
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}
