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
	"fmt"
	"slices"

	"trpc.group/trpc-go/trpc-graph-go/graph/channel"
)

// Graph is a compiled, immutable graph. It is safe to share between
// executors and runs; every run works on its own copies of the channels.
type Graph struct {
	channels       map[string]channel.Channel
	nodes          map[string]*Node
	nodeNames      []string
	inputChannels  []string
	outputChannels []string
	// edgeWrites maps a node to the branch channels it writes on success.
	edgeWrites map[string][]string
	// gated holds every node that is the target of a conditional edge.
	gated map[string]struct{}
	// routers are the nodes that carry a conditional edge, in name order.
	routers []string
}

// Node returns a node by name.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Nodes returns all node names in name order.
func (g *Graph) Nodes() []string {
	return slices.Clone(g.nodeNames)
}

// Channels returns all channel keys, sorted.
func (g *Graph) Channels() []string {
	return sortedKeys(g.channels)
}

// InputChannels returns the channels run input is written to.
func (g *Graph) InputChannels() []string {
	return slices.Clone(g.inputChannels)
}

// OutputChannels returns the channels reported as run output.
func (g *Graph) OutputChannels() []string {
	return slices.Clone(g.outputChannels)
}

// newChannels returns fresh copies of the channel prototypes.
func (g *Graph) newChannels() map[string]channel.Channel {
	out := make(map[string]channel.Channel, len(g.channels))
	for k, ch := range g.channels {
		out[k] = ch.Copy()
	}
	return out
}

// restoreChannels rebuilds the channels from checkpointed values. Channels
// missing from the checkpoint start empty.
func (g *Graph) restoreChannels(ckpt *Checkpoint) (map[string]channel.Channel, error) {
	out := make(map[string]channel.Channel, len(g.channels))
	for k, proto := range g.channels {
		v, ok := ckpt.ChannelValues[k]
		if !ok {
			out[k] = proto.Copy()
			continue
		}
		ch, err := proto.FromCheckpoint(v)
		if err != nil {
			return nil, fmt.Errorf("restore channel %q: %w", k, err)
		}
		out[k] = ch
	}
	return out, nil
}

func (g *Graph) isGated(node string) bool {
	_, ok := g.gated[node]
	return ok
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func keysOfSet(set map[string]struct{}) []string {
	return sortedKeys(set)
}
