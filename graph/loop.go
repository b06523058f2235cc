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
	"time"

	"github.com/panjf2000/ants/v2"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.opentelemetry.io/otel/attribute"

	"trpc.group/trpc-go/trpc-graph-go/graph/channel"
	itelemetry "trpc.group/trpc-go/trpc-graph-go/internal/telemetry"
	"trpc.group/trpc-go/trpc-graph-go/log"
	"trpc.group/trpc-go/trpc-graph-go/telemetry/trace"
)

// LoopStatus is the state of an execution loop.
type LoopStatus string

// Loop states. Every state but Ready and Running is terminal.
const (
	LoopReady                  LoopStatus = "ready"
	LoopRunning                LoopStatus = "running"
	LoopConverged              LoopStatus = "converged"
	LoopInterrupted            LoopStatus = "interrupted"
	LoopRecursionLimitExceeded LoopStatus = "recursion_limit_exceeded"
	LoopFailed                 LoopStatus = "failed"
)

// Terminal reports whether no further step can run.
func (s LoopStatus) Terminal() bool {
	return s != LoopReady && s != LoopRunning
}

// Loop drives one run step by step. A Loop is not safe for concurrent use.
//
// Typical use:
//
//	for loop.Tick(ctx) {
//	  handle(loop.LastStep())
//	}
//	if err := loop.Err(); err != nil { ... }
type Loop struct {
	graph       *Graph
	saver       CheckpointSaver
	pool        *ants.PoolWithFunc
	stepTimeout time.Duration
	cfg         RunConfig
	runID       string

	checkpoint *Checkpoint
	metadata   CheckpointMetadata
	channels   map[string]channel.Channel
	// pendingWrites are the stored writes of the current checkpoint, by task id.
	pendingWrites map[string]PendingWrite

	step      int
	startStep int
	status    LoopStatus
	err       error
	last      StepWrites
	output    *orderedmap.OrderedMap[string, any]
}

// RunID returns the run id.
func (l *Loop) RunID() string { return l.runID }

// Status returns the loop status.
func (l *Loop) Status() LoopStatus { return l.status }

// Err returns the error that ended the loop. For an interrupted loop it is
// an *InterruptError.
func (l *Loop) Err() error { return l.err }

// Step returns the last completed step.
func (l *Loop) Step() int { return l.step }

// LastStep returns what the most recent step produced.
func (l *Loop) LastStep() StepWrites { return l.last }

// Checkpoint returns a copy of the current checkpoint.
func (l *Loop) Checkpoint() *Checkpoint { return l.checkpoint.Copy() }

// Output returns the output channel values. It is final once the loop is
// terminal.
func (l *Loop) Output() *orderedmap.OrderedMap[string, any] {
	if l.output != nil {
		return l.output
	}
	return FormatValues(l.checkpoint, l.graph.outputChannels)
}

// start restores the run state and applies the input.
func (l *Loop) start(ctx context.Context, input map[string]any) error {
	var tuple *CheckpointTuple
	if l.saver != nil {
		var err error
		tuple, err = l.saver.GetTuple(ctx, l.runID, l.cfg.CheckpointID)
		if err != nil {
			return &CheckpointError{Op: "get", RunID: l.runID, Err: err}
		}
	}
	if tuple == nil && l.cfg.CheckpointID != "" {
		return fmt.Errorf("run %q checkpoint %q: %w", l.runID, l.cfg.CheckpointID, ErrCheckpointNotFound)
	}

	if tuple != nil && tuple.Checkpoint != nil {
		l.checkpoint = tuple.Checkpoint.Copy()
		if l.checkpoint.VersionsSeen == nil {
			l.checkpoint.VersionsSeen = map[string]map[string]int64{}
		}
		l.metadata = tuple.Metadata
		l.step = tuple.Metadata.Step
		channels, err := l.graph.restoreChannels(l.checkpoint)
		if err != nil {
			return &CheckpointError{Op: "restore", RunID: l.runID, Step: l.step, Err: err}
		}
		l.channels = channels
		l.pendingWrites = make(map[string]PendingWrite, len(tuple.PendingWrites))
		for _, pw := range tuple.PendingWrites {
			l.pendingWrites[pw.TaskID] = pw
		}
		log.Debugf("graph: run %s resumed from checkpoint %s at step %d", l.runID, l.checkpoint.ID, l.step)
	} else {
		l.checkpoint = NewCheckpoint()
		l.channels = l.graph.newChannels()
	}
	l.startStep = l.step

	if len(input) == 0 {
		return nil
	}
	return l.applyInput(ctx, input, SourceInput, l.graph.inputChannels)
}

// applyInput writes values as a synthetic step and persists the result.
func (l *Loop) applyInput(ctx context.Context, values map[string]any, source string, allowed []string) error {
	writes := make([]Write, 0, len(values))
	for _, k := range sortedKeys(values) {
		if !slices.Contains(allowed, k) {
			return fmt.Errorf("%s channel %q: %w", source, k, ErrUnknownChannel)
		}
		writes = append(writes, Write{Channel: k, Value: values[k]})
	}
	synthetic := &Task{Node: source, Step: l.step, Kind: source, SendIndex: -1, Writes: writes}
	if _, err := l.applyWrites([]*Task{synthetic}); err != nil {
		return err
	}
	l.pendingWrites = nil
	return l.persist(ctx, source)
}

// Tick runs one step. It returns true when the step's writes were applied;
// Status and Err tell whether the loop can continue.
func (l *Loop) Tick(ctx context.Context) bool {
	if l.status.Terminal() {
		return false
	}
	l.status = LoopRunning
	if err := ctx.Err(); err != nil {
		l.fail(err)
		return false
	}

	step := l.step + 1
	ctx, span := trace.Tracer.Start(ctx, itelemetry.SpanNameStep)
	defer func() {
		span.SetAttributes(attribute.String(itelemetry.KeyLoopStatus, string(l.status)))
		span.End()
	}()

	tasks, err := PrepareNextTasks(ctx, l.checkpoint, l.channels, l.graph, step)
	if err != nil {
		l.fail(err)
		return false
	}
	itelemetry.TraceStep(span, l.runID, step, len(tasks))
	if len(tasks) == 0 {
		l.terminate(LoopConverged, nil)
		log.Debugf("graph: run %s converged after step %d", l.runID, l.step)
		return false
	}
	if step-l.startStep > l.cfg.RecursionLimit {
		l.terminate(LoopRecursionLimitExceeded, &RecursionLimitError{
			Limit: l.cfg.RecursionLimit,
			Step:  step,
			Nodes: uniqueSortedTaskNodes(tasks),
		})
		return false
	}

	if interruptRequested(ctx) {
		l.interrupt(InterruptPhaseExternal, step, nil, tasks)
		return false
	}
	if hits := interruptHits(l.checkpoint, markerKey(InterruptPhaseBefore), l.cfg.InterruptBefore, tasks); len(hits) > 0 {
		markInterrupted(l.checkpoint, markerKey(InterruptPhaseBefore))
		if err := l.persist(ctx, SourceInterrupt); err != nil {
			l.fail(err)
			return false
		}
		l.interrupt(InterruptPhaseBefore, step, hits, tasks)
		return false
	}

	log.Debugf("graph: run %s step %d starting %d task(s)", l.runID, step, len(tasks))
	l.reusePendingWrites(tasks)
	taskCtx := ctx
	if l.stepTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, l.stepTimeout)
		defer cancel()
	}
	l.runTasks(taskCtx, tasks)
	itelemetry.IncStep(ctx)
	rejectInvalidWrites(l.channels, tasks)

	if failed := failedTasks(tasks); len(failed) > 0 {
		return l.handleFailure(ctx, step, tasks, failed)
	}

	updated, err := l.applyWrites(tasks)
	if err != nil {
		l.fail(err)
		return false
	}
	l.step = step
	l.last = StepWrites{Step: step, Tasks: tasks, Updated: updated}

	hits := interruptHits(l.checkpoint, markerKey(InterruptPhaseAfter), l.cfg.InterruptAfter, tasks)
	if len(hits) > 0 {
		markInterrupted(l.checkpoint, markerKey(InterruptPhaseAfter))
	}
	if err := l.persist(ctx, SourceLoop); err != nil {
		l.fail(err)
		return true
	}
	log.Debugf("graph: run %s step %d done, updated %v", l.runID, step, updated)
	if len(hits) > 0 {
		l.interrupt(InterruptPhaseAfter, step, hits, nil)
	}
	return true
}

func (l *Loop) reusePendingWrites(tasks []*Task) {
	if len(l.pendingWrites) == 0 {
		return
	}
	for _, t := range tasks {
		pw, ok := l.pendingWrites[t.ID]
		if !ok || t.Err != nil {
			continue
		}
		t.Writes = l.coerceWrites(pw.Writes)
		t.Sends = pw.Sends
		t.reused = true
		log.Debugf("graph: run %s reusing stored writes of task %s (%s)", l.runID, t.ID, t.Node)
	}
}

// coerceWrites reshapes stored write values into the channel value types.
// Writes loaded through a codec carry generic values; a value that cannot be
// reshaped is kept as is and left to the channel to reject.
func (l *Loop) coerceWrites(writes []Write) []Write {
	out := make([]Write, len(writes))
	for i, w := range writes {
		out[i] = w
		proto, ok := l.graph.channels[w.Channel]
		if !ok || w.Value == nil {
			continue
		}
		if v, ok := coerceValue(proto, w.Value); ok {
			out[i].Value = v
		}
	}
	return out
}

func coerceValue(proto channel.Channel, v any) (any, bool) {
	candidates := []any{v}
	if proto.Type() == channel.TypeTopic {
		candidates = append(candidates, []any{v})
	}
	for _, c := range candidates {
		ch, err := proto.FromCheckpoint(c)
		if err != nil {
			continue
		}
		if got, err := ch.Get(); err == nil {
			return got, true
		}
	}
	return nil, false
}

func (l *Loop) handleFailure(ctx context.Context, step int, tasks, failed []*Task) bool {
	errs := make([]error, 0, len(failed))
	for _, t := range failed {
		errs = append(errs, t.Err)
	}
	taskErr := errs[0]
	if len(errs) > 1 {
		taskErr = errors.Join(errs...)
	}

	if l.cfg.FailurePolicy == FailurePolicyApplyPartial {
		updated, err := l.applyWrites(tasks)
		if err != nil {
			l.fail(errors.Join(taskErr, err))
			return false
		}
		l.step = step
		l.last = StepWrites{Step: step, Tasks: tasks, Updated: updated}
		if err := l.persist(ctx, SourceLoop); err != nil {
			l.fail(errors.Join(taskErr, err))
			return true
		}
		l.fail(taskErr)
		return true
	}

	l.last = StepWrites{Step: step, Tasks: tasks}
	var writes []PendingWrite
	for _, t := range tasks {
		if t.Succeeded() && !t.reused {
			writes = append(writes, PendingWrite{TaskID: t.ID, Node: t.Node, Writes: t.Writes, Sends: t.Sends})
		}
	}
	if l.saver != nil && len(writes) > 0 {
		if err := l.saver.PutWrites(ctx, l.runID, l.checkpoint.ID, writes); err != nil {
			log.Errorf("graph: run %s failed to store pending writes: %v", l.runID, err)
			taskErr = errors.Join(taskErr, &CheckpointError{Op: "put_writes", RunID: l.runID, Step: step, Err: err})
		}
	}
	l.fail(taskErr)
	return false
}

// persist snapshots the channels into a new checkpoint and stores it.
func (l *Loop) persist(ctx context.Context, source string) error {
	values := make(map[string]any, len(l.channels))
	for k, ch := range l.channels {
		if v, ok := ch.Checkpoint(); ok {
			values[k] = v
		}
	}
	l.checkpoint.ID = newCheckpointID()
	l.checkpoint.Timestamp = time.Now().UTC()
	l.checkpoint.ChannelValues = values

	meta := CheckpointMetadata{
		CheckpointID: l.checkpoint.ID,
		ParentID:     l.metadata.CheckpointID,
		Source:       source,
		Step:         l.step,
		Timestamp:    l.checkpoint.Timestamp,
	}
	if l.saver != nil {
		if err := l.saver.Put(ctx, l.runID, l.checkpoint.Copy(), meta); err != nil {
			log.Errorf("graph: run %s failed to store checkpoint at step %d: %v", l.runID, l.step, err)
			return &CheckpointError{Op: "put", RunID: l.runID, Step: l.step, Err: err}
		}
		itelemetry.IncCheckpointWrite(ctx, source)
	}
	l.metadata = meta
	l.pendingWrites = nil
	return nil
}

func (l *Loop) interrupt(phase InterruptPhase, step int, nodes []string, tasks []*Task) {
	ie := &InterruptError{
		Phase:      phase,
		Step:       step,
		Nodes:      nodes,
		Checkpoint: l.checkpoint.Copy(),
	}
	if tasks != nil {
		ie.NextNodes = uniqueSortedTaskNodes(tasks)
	}
	log.Infof("graph: run %s interrupted %s step %d", l.runID, phase, step)
	l.terminate(LoopInterrupted, ie)
}

func (l *Loop) fail(err error) {
	log.Debugf("graph: run %s failed at step %d: %v", l.runID, l.step+1, err)
	l.terminate(LoopFailed, err)
}

func (l *Loop) terminate(status LoopStatus, err error) {
	l.status = status
	l.err = err
	l.output = FormatValues(l.checkpoint, l.graph.outputChannels)
	FinishChannels(l.channels)
}

// applyWrites applies the step's writes, leaving the checkpoint and
// channels untouched when any channel rejects its update.
func (l *Loop) applyWrites(tasks []*Task) ([]string, error) {
	ckpt := l.checkpoint.Copy()
	channels := make(map[string]channel.Channel, len(l.channels))
	for k, ch := range l.channels {
		channels[k] = ch.Copy()
	}
	updated, err := ApplyWrites(ckpt, channels, tasks)
	if err != nil {
		return nil, err
	}
	l.checkpoint = ckpt
	l.channels = channels
	return updated, nil
}

// rejectInvalidWrites tries every channel's pending writes on a copy of the
// channel and fails the tasks that wrote to a channel rejecting them. The
// remaining tasks keep their writes.
func rejectInvalidWrites(channels map[string]channel.Channel, tasks []*Task) {
	for {
		pending := make(map[string][]any)
		writers := make(map[string][]*Task)
		for _, t := range tasks {
			if !t.Succeeded() {
				continue
			}
			for _, w := range t.Writes {
				pending[w.Channel] = append(pending[w.Channel], w.Value)
				if !slices.Contains(writers[w.Channel], t) {
					writers[w.Channel] = append(writers[w.Channel], t)
				}
			}
		}

		rejected := false
		for _, k := range sortedKeys(pending) {
			var err error
			if ch, ok := channels[k]; ok {
				_, err = ch.Copy().Update(pending[k])
			} else {
				err = fmt.Errorf("%w: %w", channel.ErrInvalidUpdate, ErrUnknownChannel)
			}
			if err == nil {
				continue
			}
			nodes := make([]string, 0, len(writers[k]))
			for _, t := range writers[k] {
				if !slices.Contains(nodes, t.Node) {
					nodes = append(nodes, t.Node)
				}
			}
			for _, t := range writers[k] {
				t.Err = &InvalidUpdateError{Step: t.Step, Channel: k, Nodes: nodes, Err: err}
				log.Warnf("graph: task %s (%s) rejected by channel %q: %v", t.ID, t.Node, k, err)
			}
			rejected = true
			// Dropping these tasks changes what the other channels receive.
			break
		}
		if !rejected {
			return
		}
	}
}

func failedTasks(tasks []*Task) []*Task {
	var failed []*Task
	for _, t := range tasks {
		if !t.Succeeded() {
			failed = append(failed, t)
		}
	}
	return failed
}
