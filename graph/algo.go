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
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"trpc.group/trpc-go/trpc-graph-go/graph/channel"
)

// taskNamespace scopes task ids.
var taskNamespace = uuid.MustParse("6f3b2a9e-5d1c-4c7a-9b8e-2f0d4e6a1c35")

// PrepareNextTasks returns the tasks of the given step: one push task per
// pending send, in queue order, followed by one pull task per eligible node,
// in name order. An empty result means the run has converged.
func PrepareNextTasks(
	ctx context.Context,
	ckpt *Checkpoint,
	channels map[string]channel.Channel,
	g *Graph,
	step int,
) ([]*Task, error) {
	var tasks []*Task
	for i, send := range ckpt.PendingSends {
		n, ok := g.Node(send.Node)
		if !ok {
			return nil, fmt.Errorf("step %d: send %d to %q: %w", step, i, send.Node, ErrUnknownNode)
		}
		tasks = append(tasks, &Task{
			ID:        taskID(step, n.Name, TaskKindPush, pushFingerprint(i, send.Arg)),
			Node:      n.Name,
			Step:      step,
			Kind:      TaskKindPush,
			Input:     send.Arg,
			SendIndex: i,
			node:      n,
		})
	}

	candidates := make([]*Node, 0, len(g.nodeNames))
	for _, name := range g.nodeNames {
		n := g.nodes[name]
		if triggered(ckpt, n) {
			candidates = append(candidates, n)
		}
	}
	if len(candidates) == 0 {
		return tasks, nil
	}

	routed, err := routeStep(ctx, g, channels, candidates, step)
	if err != nil {
		return nil, err
	}

	for _, n := range candidates {
		if g.isGated(n.Name) {
			if _, ok := routed[n.Name]; !ok {
				continue
			}
		}
		t, ok := preparePullTask(ckpt, channels, n, step)
		if ok {
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

// triggered reports whether any trigger of n changed since n last ran.
func triggered(ckpt *Checkpoint, n *Node) bool {
	seen := ckpt.VersionsSeen[n.Name]
	for _, trig := range n.Triggers {
		if ckpt.ChannelVersions[trig] > seen[trig] {
			return true
		}
	}
	return false
}

// routeStep evaluates the conditional edges that may gate a candidate and
// returns the union of the selected nodes.
func routeStep(
	ctx context.Context,
	g *Graph,
	channels map[string]channel.Channel,
	candidates []*Node,
	step int,
) (map[string]struct{}, error) {
	pending := make(map[string]struct{})
	for _, n := range candidates {
		if g.isGated(n.Name) {
			pending[n.Name] = struct{}{}
		}
	}
	routed := make(map[string]struct{})
	if len(pending) == 0 {
		return routed, nil
	}

	var values map[string]any
	for _, name := range g.routers {
		edge := g.nodes[name].Branch
		relevant := slices.ContainsFunc(edge.Targets(), func(to string) bool {
			_, ok := pending[to]
			return ok
		})
		if !relevant {
			continue
		}
		if values == nil {
			values = availableValues(channels)
		}
		targets, err := edge.resolve(ctx, name, values)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", step, err)
		}
		for _, to := range targets {
			routed[to] = struct{}{}
		}
	}
	return routed, nil
}

func availableValues(channels map[string]channel.Channel) map[string]any {
	values := make(map[string]any, len(channels))
	for k, ch := range channels {
		if strings.HasPrefix(k, ChannelBranchPrefix) {
			continue
		}
		if v, err := ch.Get(); err == nil {
			values[k] = v
		}
	}
	return values
}

// preparePullTask assembles the input of n. It returns false when a
// non-required read is empty and the node must be skipped.
func preparePullTask(ckpt *Checkpoint, channels map[string]channel.Channel, n *Node, step int) (*Task, bool) {
	t := &Task{
		Node:      n.Name,
		Step:      step,
		Kind:      TaskKindPull,
		SendIndex: -1,
		Triggers:  n.Triggers,
		Reads:     n.Reads,
		node:      n,
	}

	var fp []string
	for _, k := range append(slices.Clone(n.Triggers), n.Reads...) {
		fp = append(fp, k+"@"+strconv.FormatInt(ckpt.ChannelVersions[k], 10))
	}
	slices.Sort(fp)
	fp = slices.Compact(fp)
	t.ID = taskID(step, n.Name, TaskKindPull, strings.Join(fp, ","))

	switch len(n.Reads) {
	case 0:
		return t, true
	case 1:
		k := n.Reads[0]
		v, err := channels[k].Get()
		if err != nil {
			if n.isRequired(k) {
				t.Err = requiredReadError(t, k, err)
				return t, true
			}
			return nil, false
		}
		t.Input = v
		return t, true
	}

	input := make(map[string]any, len(n.Reads))
	for _, k := range n.Reads {
		v, err := channels[k].Get()
		if err != nil {
			if n.isRequired(k) {
				t.Err = requiredReadError(t, k, err)
				return t, true
			}
			continue
		}
		input[k] = v
	}
	if len(input) == 0 {
		return nil, false
	}
	t.Input = input
	return t, true
}

func requiredReadError(t *Task, key string, err error) error {
	return &TaskExecutionError{
		Step:   t.Step,
		Node:   t.Node,
		TaskID: t.ID,
		Err:    fmt.Errorf("required read %q: %w", key, err),
	}
}

func taskID(step int, node, kind, fingerprint string) string {
	name := strconv.Itoa(step) + "|" + node + "|" + kind + "|" + fingerprint
	return uuid.NewSHA1(taskNamespace, []byte(name)).String()
}

// pushFingerprint renders the send argument canonically so equal arguments
// give equal ids.
func pushFingerprint(index int, arg any) string {
	data, err := sonic.ConfigStd.Marshal(arg)
	if err != nil {
		return fmt.Sprintf("%d:%#v", index, arg)
	}
	return strconv.Itoa(index) + ":" + string(data)
}

// ApplyWrites applies the output of the successful tasks to the channels and
// advances the checkpoint versions. Tasks with an error are ignored, and
// sends that produced them stay pending.
//
// Writes are grouped per channel in task order, which is the order returned
// by PrepareNextTasks. A channel that rejects its writes does not stop the
// others; the rejections are joined into the returned error as
// InvalidUpdateErrors. The sorted keys of the changed channels are returned
// either way.
func ApplyWrites(ckpt *Checkpoint, channels map[string]channel.Channel, tasks []*Task) ([]string, error) {
	next := ckpt.MaxVersion() + 1
	step := 0
	updated := make(map[string]struct{})

	var done []*Task
	for _, t := range tasks {
		if t.Succeeded() {
			done = append(done, t)
		}
		step = t.Step
	}

	// Consume first so values written in this step survive.
	for _, t := range done {
		if t.Kind != TaskKindPull {
			continue
		}
		for _, k := range append(slices.Clone(t.Triggers), t.Reads...) {
			ch, ok := channels[k]
			if !ok {
				continue
			}
			if ch.Consume() {
				ckpt.ChannelVersions[k] = next
				updated[k] = struct{}{}
			}
		}
	}

	pending := make(map[string][]any)
	writers := make(map[string][]string)
	for _, t := range done {
		for _, w := range t.Writes {
			pending[w.Channel] = append(pending[w.Channel], w.Value)
			if !slices.Contains(writers[w.Channel], t.Node) {
				writers[w.Channel] = append(writers[w.Channel], t.Node)
			}
		}
	}

	var errs []error
	for _, k := range sortedKeys(pending) {
		ch, ok := channels[k]
		if !ok {
			errs = append(errs, &InvalidUpdateError{
				Step: step, Channel: k, Nodes: writers[k],
				Err: fmt.Errorf("%w: %w", channel.ErrInvalidUpdate, ErrUnknownChannel),
			})
			continue
		}
		changed, err := ch.Update(pending[k])
		if err != nil {
			errs = append(errs, &InvalidUpdateError{Step: step, Channel: k, Nodes: writers[k], Err: err})
			continue
		}
		if changed {
			ckpt.ChannelVersions[k] = next
			updated[k] = struct{}{}
		}
	}

	for _, t := range done {
		if t.Kind != TaskKindPull {
			continue
		}
		seen := ckpt.VersionsSeen[t.Node]
		if seen == nil {
			seen = make(map[string]int64, len(t.Triggers))
			ckpt.VersionsSeen[t.Node] = seen
		}
		for _, trig := range t.Triggers {
			if v := ckpt.ChannelVersions[trig]; v > seen[trig] {
				seen[trig] = v
			}
		}
	}

	consumed := make(map[int]struct{})
	var sends []Send
	for _, t := range done {
		if t.Kind == TaskKindPush {
			consumed[t.SendIndex] = struct{}{}
		}
		sends = append(sends, t.Sends...)
	}
	var remaining []Send
	for i, s := range ckpt.PendingSends {
		if _, ok := consumed[i]; !ok {
			remaining = append(remaining, s)
		}
	}
	ckpt.PendingSends = append(remaining, sends...)
	if len(ckpt.PendingSends) == 0 {
		ckpt.PendingSends = nil
	}

	return keysOfSet(updated), errors.Join(errs...)
}

// FinishChannels notifies every channel that the run is over and returns the
// keys of the channels that changed.
func FinishChannels(channels map[string]channel.Channel) []string {
	var changed []string
	for _, k := range sortedKeys(channels) {
		if channels[k].Finish() {
			changed = append(changed, k)
		}
	}
	return changed
}
