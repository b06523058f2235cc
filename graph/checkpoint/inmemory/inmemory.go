//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides a CheckpointSaver that keeps everything in
// process memory. It is meant for tests and short-lived runs.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"trpc.group/trpc-go/trpc-graph-go/graph"
)

// DefaultMaxCheckpointsPerRun is the default number of checkpoints kept per run.
const DefaultMaxCheckpointsPerRun = 100

// Saver provides an in-memory implementation of CheckpointSaver.
// This is suitable for testing and debugging but not for production use.
type Saver struct {
	mu      sync.RWMutex
	storage map[string]map[string]*graph.CheckpointTuple // runID -> checkpointID -> tuple
	writes  map[string]map[string][]graph.PendingWrite   // runID -> checkpointID -> writes
	// maxCheckpointsPerRun limits the number of checkpoints per run. Zero
	// keeps everything.
	maxCheckpointsPerRun int
}

var _ graph.CheckpointSaver = (*Saver)(nil)

// Option configures a Saver.
type Option func(*Saver)

// WithMaxCheckpointsPerRun sets the maximum number of checkpoints per run.
// The oldest checkpoints are dropped first.
func WithMaxCheckpointsPerRun(max int) Option {
	return func(s *Saver) {
		s.maxCheckpointsPerRun = max
	}
}

// NewSaver creates a new in-memory checkpoint saver.
func NewSaver(opts ...Option) *Saver {
	s := &Saver{
		storage:              make(map[string]map[string]*graph.CheckpointTuple),
		writes:               make(map[string]map[string][]graph.PendingWrite),
		maxCheckpointsPerRun: DefaultMaxCheckpointsPerRun,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get retrieves the latest checkpoint of a run.
func (s *Saver) Get(ctx context.Context, runID string) (*graph.Checkpoint, error) {
	tuple, err := s.GetTuple(ctx, runID, "")
	if err != nil {
		return nil, err
	}
	if tuple == nil {
		return nil, nil
	}
	return tuple.Checkpoint, nil
}

// GetTuple retrieves a checkpoint tuple. An empty checkpointID selects the
// latest checkpoint.
func (s *Saver) GetTuple(ctx context.Context, runID, checkpointID string) (*graph.CheckpointTuple, error) {
	if runID == "" {
		return nil, graph.ErrRunIDRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	checkpoints := s.storage[runID]
	if len(checkpoints) == 0 {
		return nil, nil
	}
	if checkpointID == "" {
		// Checkpoint ids are UUIDv7 and sort in creation order.
		for id := range checkpoints {
			if id > checkpointID {
				checkpointID = id
			}
		}
	}
	tuple, ok := checkpoints[checkpointID]
	if !ok {
		return nil, nil
	}

	// Copy to avoid concurrent modification issues.
	result := &graph.CheckpointTuple{
		Checkpoint: tuple.Checkpoint.Copy(),
		Metadata:   tuple.Metadata,
	}
	if writes, ok := s.writes[runID][checkpointID]; ok {
		result.PendingWrites = append([]graph.PendingWrite(nil), writes...)
	}
	return result, nil
}

// List returns the metadata of the run's checkpoints, newest first.
func (s *Saver) List(ctx context.Context, runID string, filter *graph.CheckpointFilter) ([]graph.CheckpointMetadata, error) {
	if runID == "" {
		return nil, graph.ErrRunIDRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]graph.CheckpointMetadata, 0, len(s.storage[runID]))
	for _, tuple := range s.storage[runID] {
		all = append(all, tuple.Metadata)
	}
	return graph.FilterCheckpoints(all, filter), nil
}

// Put stores a copy of the checkpoint.
func (s *Saver) Put(ctx context.Context, runID string, ckpt *graph.Checkpoint, metadata graph.CheckpointMetadata) error {
	if runID == "" {
		return graph.ErrRunIDRequired
	}
	if ckpt == nil {
		return fmt.Errorf("checkpoint cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.storage[runID] == nil {
		s.storage[runID] = make(map[string]*graph.CheckpointTuple)
	}
	metadata.CheckpointID = ckpt.ID
	s.storage[runID][ckpt.ID] = &graph.CheckpointTuple{
		Checkpoint: ckpt.Copy(),
		Metadata:   metadata,
	}
	s.cleanupOldCheckpoints(runID)
	return nil
}

// PutWrites stores pending writes linked to a checkpoint. Writes of a task
// already stored are replaced.
func (s *Saver) PutWrites(ctx context.Context, runID, checkpointID string, writes []graph.PendingWrite) error {
	if runID == "" || checkpointID == "" {
		return fmt.Errorf("run id and checkpoint id are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writes[runID] == nil {
		s.writes[runID] = make(map[string][]graph.PendingWrite)
	}
	s.writes[runID][checkpointID] = mergeWrites(s.writes[runID][checkpointID], writes)
	return nil
}

// Delete removes all checkpoints and writes of a run.
func (s *Saver) Delete(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.storage, runID)
	delete(s.writes, runID)
	return nil
}

// Close releases all stored data.
func (s *Saver) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.storage = make(map[string]map[string]*graph.CheckpointTuple)
	s.writes = make(map[string]map[string][]graph.PendingWrite)
	return nil
}

// cleanupOldCheckpoints removes the oldest checkpoints to stay within the limit.
func (s *Saver) cleanupOldCheckpoints(runID string) {
	checkpoints := s.storage[runID]
	if s.maxCheckpointsPerRun <= 0 || len(checkpoints) <= s.maxCheckpointsPerRun {
		return
	}
	ids := make([]string, 0, len(checkpoints))
	for id := range checkpoints {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids[:len(ids)-s.maxCheckpointsPerRun] {
		delete(checkpoints, id)
		delete(s.writes[runID], id)
	}
}

func mergeWrites(existing, incoming []graph.PendingWrite) []graph.PendingWrite {
	out := append([]graph.PendingWrite(nil), existing...)
	for _, w := range incoming {
		replaced := false
		for i := range out {
			if out[i].TaskID == w.TaskID {
				out[i] = w
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, w)
		}
	}
	return out
}
