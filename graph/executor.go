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
	"runtime"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Executor runs a compiled graph. One executor may serve many concurrent
// runs; every run gets its own Loop.
type Executor struct {
	graph          *Graph
	saver          CheckpointSaver
	pool           *ants.PoolWithFunc
	maxConcurrency int
	defaultConfig  RunConfig
	stepTimeout    time.Duration
}

// ExecutorOption is a function that configures an Executor.
type ExecutorOption func(*Executor)

// WithCheckpointSaver sets the saver used to persist and resume runs.
func WithCheckpointSaver(saver CheckpointSaver) ExecutorOption {
	return func(e *Executor) {
		e.saver = saver
	}
}

// WithMaxConcurrency sets the number of tasks executed in parallel. Defaults
// to runtime.NumCPU().
func WithMaxConcurrency(n int) ExecutorOption {
	return func(e *Executor) {
		e.maxConcurrency = n
	}
}

// WithDefaultRunConfig sets the configuration run options are applied on.
func WithDefaultRunConfig(cfg RunConfig) ExecutorOption {
	return func(e *Executor) {
		e.defaultConfig = cfg
	}
}

// WithStepTimeout bounds the time the tasks of one step may take.
func WithStepTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.stepTimeout = timeout
	}
}

// NewExecutor creates an executor for g.
func NewExecutor(g *Graph, opts ...ExecutorOption) (*Executor, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: graph is nil", ErrInvalidGraph)
	}
	e := &Executor{
		graph:          g,
		maxConcurrency: runtime.NumCPU(),
		defaultConfig:  DefaultRunConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if _, err := buildRunConfig(e.defaultConfig); err != nil {
		return nil, err
	}
	pool, err := createTaskPool(e.maxConcurrency)
	if err != nil {
		return nil, err
	}
	e.pool = pool
	return e, nil
}

// Close releases the worker pool.
func (e *Executor) Close() {
	if e.pool != nil {
		e.pool.Release()
	}
}

// Graph returns the executed graph.
func (e *Executor) Graph() *Graph {
	return e.graph
}

// NewLoop prepares a run: it restores the run state from the saver when
// there is one, and applies input as the first update.
func (e *Executor) NewLoop(ctx context.Context, input map[string]any, opts ...RunOption) (*Loop, error) {
	cfg, err := buildRunConfig(e.defaultConfig, opts...)
	if err != nil {
		return nil, err
	}
	for _, name := range slices.Concat(cfg.InterruptBefore, cfg.InterruptAfter) {
		if name == InterruptAll {
			continue
		}
		if _, ok := e.graph.Node(name); !ok {
			return nil, fmt.Errorf("%w: interrupt node %q: %w", ErrInvalidRunConfig, name, ErrUnknownNode)
		}
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}

	l := &Loop{
		graph:       e.graph,
		saver:       e.saver,
		pool:        e.pool,
		stepTimeout: e.stepTimeout,
		cfg:         cfg,
		runID:       cfg.RunID,
		status:      LoopReady,
	}
	if err := l.start(ctx, input); err != nil {
		return nil, err
	}
	return l, nil
}

// RunResult is the outcome of Invoke.
type RunResult struct {
	RunID  string
	Status LoopStatus
	// Step is the last completed step.
	Step int
	// Output holds the output channel values in their configured order.
	Output     *orderedmap.OrderedMap[string, any]
	Checkpoint *Checkpoint
}

// Invoke runs the graph until it converges, fails or is interrupted, and
// returns the final output. An interrupted run returns its result together
// with an *InterruptError.
func (e *Executor) Invoke(ctx context.Context, input map[string]any, opts ...RunOption) (*RunResult, error) {
	loop, err := e.NewLoop(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	for loop.Tick(ctx) {
	}
	return loop.result(), loop.Err()
}

func (l *Loop) result() *RunResult {
	return &RunResult{
		RunID:      l.runID,
		Status:     l.status,
		Step:       l.step,
		Output:     l.Output(),
		Checkpoint: l.Checkpoint(),
	}
}

// StreamEvent is one element of a streamed run.
type StreamEvent struct {
	Mode StreamMode
	Step int
	// Data is the formatted step output: an ordered map for values mode,
	// []NodeUpdate for updates mode and []DebugRecord for debug mode. The
	// final event always carries the output values.
	Data   any
	Status LoopStatus
	Err    error
	Final  bool
}

// Stream runs the graph in the background and emits one event per step,
// followed by a final event with the terminal status and error. The channel
// is closed after the final event. Cancelling ctx stops the run at the next
// step boundary.
func (e *Executor) Stream(ctx context.Context, input map[string]any, opts ...RunOption) (<-chan *StreamEvent, error) {
	loop, err := e.NewLoop(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	events := make(chan *StreamEvent, defaultStreamBufferSize)
	go func() {
		defer close(events)
		mode := loop.cfg.StreamMode
		for loop.Tick(ctx) {
			sw := loop.LastStep()
			// The mode was validated with the run config.
			data, _ := FormatOutput(mode, loop.checkpoint, sw, e.graph.outputChannels)
			ev := &StreamEvent{Mode: mode, Step: sw.Step, Data: data, Status: loop.Status()}
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		}
		final := &StreamEvent{
			Mode:   mode,
			Step:   loop.Step(),
			Data:   loop.Output(),
			Status: loop.Status(),
			Err:    loop.Err(),
			Final:  true,
		}
		select {
		case events <- final:
		case <-ctx.Done():
		}
	}()
	return events, nil
}

// GetState returns a checkpoint of a run with its metadata. An empty
// checkpointID selects the latest.
func (e *Executor) GetState(ctx context.Context, runID, checkpointID string) (*CheckpointTuple, error) {
	if e.saver == nil {
		return nil, fmt.Errorf("%w: no checkpoint saver configured", ErrCheckpoint)
	}
	if runID == "" {
		return nil, ErrRunIDRequired
	}
	tuple, err := e.saver.GetTuple(ctx, runID, checkpointID)
	if err != nil {
		return nil, &CheckpointError{Op: "get", RunID: runID, Err: err}
	}
	if tuple == nil {
		return nil, fmt.Errorf("run %q: %w", runID, ErrCheckpointNotFound)
	}
	return tuple, nil
}

// History lists the checkpoints of a run, newest first.
func (e *Executor) History(ctx context.Context, runID string, filter *CheckpointFilter) ([]CheckpointMetadata, error) {
	if e.saver == nil {
		return nil, fmt.Errorf("%w: no checkpoint saver configured", ErrCheckpoint)
	}
	if runID == "" {
		return nil, ErrRunIDRequired
	}
	metas, err := e.saver.List(ctx, runID, filter)
	if err != nil {
		return nil, &CheckpointError{Op: "list", RunID: runID, Err: err}
	}
	return metas, nil
}

// UpdateState writes values into any channels of a stored run, as if an
// outside node had written them, and persists a checkpoint with source
// update. Nodes triggered by those channels run when the run is resumed.
func (e *Executor) UpdateState(ctx context.Context, runID string, values map[string]any) (*CheckpointMetadata, error) {
	if e.saver == nil {
		return nil, fmt.Errorf("%w: no checkpoint saver configured", ErrCheckpoint)
	}
	if runID == "" {
		return nil, ErrRunIDRequired
	}
	loop, err := e.NewLoop(ctx, nil, WithRunID(runID))
	if err != nil {
		return nil, err
	}
	if loop.metadata.CheckpointID == "" {
		return nil, fmt.Errorf("run %q: %w", runID, ErrCheckpointNotFound)
	}
	if err := loop.applyInput(ctx, values, SourceUpdate, e.graph.Channels()); err != nil {
		return nil, err
	}
	meta := loop.metadata
	return &meta, nil
}
