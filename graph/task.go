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
	"time"

	"trpc.group/trpc-go/trpc-graph-go/graph/channel"
	itelemetry "trpc.group/trpc-go/trpc-graph-go/internal/telemetry"
	"trpc.group/trpc-go/trpc-graph-go/log"
	"trpc.group/trpc-go/trpc-graph-go/telemetry/trace"
)

// Task is one invocation of a node within a step.
type Task struct {
	// ID is derived from the step, node, kind and input versions, so the same
	// task gets the same id when a failed step is prepared again.
	ID   string
	Node string
	Step int
	// Kind is TaskKindPull for trigger-derived tasks and TaskKindPush for
	// Send-derived ones.
	Kind  string
	Input any
	// SendIndex is the position of the originating Send in the pending
	// sends, or -1 for pull tasks.
	SendIndex int
	// Triggers and Reads are the node channels the task consumes.
	Triggers []string
	Reads    []string

	Writes   []Write
	Sends    []Send
	Attempts int
	Duration time.Duration
	Err      error

	// reused marks a task whose output was taken from stored pending writes.
	reused bool
	node   *Node
}

// Succeeded reports whether the task ran without error.
func (t *Task) Succeeded() bool {
	return t.Err == nil
}

// Reused reports whether the task output came from stored pending writes.
func (t *Task) Reused() bool {
	return t.reused
}

// ExecutionInfo describes the task a node function is running as.
type ExecutionInfo struct {
	RunID   string
	Step    int
	Node    string
	TaskID  string
	Attempt int
}

type executionInfoKey struct{}

func withExecutionInfo(ctx context.Context, info ExecutionInfo) context.Context {
	return context.WithValue(ctx, executionInfoKey{}, info)
}

// GetExecutionInfo returns the execution info of the running task.
func GetExecutionInfo(ctx context.Context) (ExecutionInfo, bool) {
	info, ok := ctx.Value(executionInfoKey{}).(ExecutionInfo)
	return info, ok
}

// runTask invokes the node with its retry policy and records the outcome on
// the task.
func (l *Loop) runTask(ctx context.Context, t *Task) {
	ctx, span := trace.Tracer.Start(ctx, itelemetry.SpanNameTask)
	defer span.End()

	start := time.Now()
	notify := func(err error, wait time.Duration) {
		log.Warnf("graph: run %s step %d node %q failed, retrying in %s: %v", l.runID, t.Step, t.Node, wait, err)
		itelemetry.IncTaskRetry(ctx, t.Node)
	}
	out, attempts, err := callWithRetry(ctx, t.node.RetryPolicy, notify, func(attempt int) (any, error) {
		return l.invokeNode(ctx, t, attempt)
	})
	t.Attempts = attempts
	t.Duration = time.Since(start)

	var res *Result
	if err == nil {
		res, err = l.normalizeOutput(t.node, out)
	}
	if err != nil {
		t.Err = &TaskExecutionError{Step: t.Step, Node: t.Node, TaskID: t.ID, Attempts: attempts, Err: err}
	} else {
		t.Writes = res.Writes
		for _, key := range l.graph.edgeWrites[t.Node] {
			t.Writes = append(t.Writes, Write{Channel: key, Value: t.Node})
		}
		t.Sends = res.Sends
	}

	itelemetry.TraceTask(span, t.Node, t.ID, t.Kind, t.Attempts, t.Err)
	itelemetry.IncTask(ctx, t.Node, t.Err != nil)
	itelemetry.RecordTaskDuration(ctx, t.Node, t.Duration)
	if l.cfg.Debug {
		log.Infof("graph: run %s step %d task %s (%s, %s) attempts=%d duration=%s writes=%d sends=%d err=%v",
			l.runID, t.Step, t.ID, t.Node, t.Kind, t.Attempts, t.Duration, len(t.Writes), len(t.Sends), t.Err)
	}
}

func (l *Loop) invokeNode(ctx context.Context, t *Task, attempt int) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("node %q panicked: %v", t.Node, r)
		}
	}()
	ctx = withExecutionInfo(ctx, ExecutionInfo{
		RunID:   l.runID,
		Step:    t.Step,
		Node:    t.Node,
		TaskID:  t.ID,
		Attempt: attempt,
	})
	return t.node.Func(ctx, t.Input)
}

// normalizeOutput turns a node return value into a Result and checks it
// against the node's declared writes.
func (l *Loop) normalizeOutput(n *Node, out any) (*Result, error) {
	var res *Result
	switch v := out.(type) {
	case nil:
		return &Result{}, nil
	case *Result:
		if v == nil {
			return &Result{}, nil
		}
		res = v
	case Result:
		res = &v
	default:
		switch len(n.Writes) {
		case 0:
			log.Debugf("graph: node %q returned a value but declares no write channel, discarding it", n.Name)
			return &Result{}, nil
		case 1:
			return &Result{Writes: []Write{{Channel: n.Writes[0], Value: out}}}, nil
		default:
			return nil, fmt.Errorf("%w: node %q returned a plain value but declares %d write channels",
				channel.ErrInvalidUpdate, n.Name, len(n.Writes))
		}
	}

	for _, w := range res.Writes {
		if !n.canWrite(w.Channel) {
			return nil, fmt.Errorf("%w: node %q wrote undeclared channel %q", channel.ErrInvalidUpdate, n.Name, w.Channel)
		}
	}
	for _, s := range res.Sends {
		if _, ok := l.graph.Node(s.Node); !ok {
			return nil, fmt.Errorf("node %q sent to %q: %w", n.Name, s.Node, ErrUnknownNode)
		}
	}
	return &Result{
		Writes: append([]Write(nil), res.Writes...),
		Sends:  append([]Send(nil), res.Sends...),
	}, nil
}
