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
	"maps"
	"reflect"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Checkpoint is a snapshot of the run state between two steps.
type Checkpoint struct {
	// Version is the version of the checkpoint format.
	Version int `json:"version"`
	// ID is a UUIDv7, so ids sort in creation order.
	ID string `json:"id"`
	// Timestamp is when the checkpoint was created, in UTC.
	Timestamp time.Time `json:"timestamp"`
	// ChannelValues holds the value of every available channel.
	ChannelValues map[string]any `json:"channel_values"`
	// ChannelVersions holds the version of every channel that ever changed.
	ChannelVersions map[string]int64 `json:"channel_versions"`
	// VersionsSeen maps node name to the trigger versions it last consumed.
	VersionsSeen map[string]map[string]int64 `json:"versions_seen"`
	// PendingSends are dispatched as push tasks in the next step.
	PendingSends []Send `json:"pending_sends"`
}

// NewCheckpoint creates an empty checkpoint with a fresh id.
func NewCheckpoint() *Checkpoint {
	return &Checkpoint{
		Version:         CheckpointVersion,
		ID:              newCheckpointID(),
		Timestamp:       time.Now().UTC(),
		ChannelValues:   map[string]any{},
		ChannelVersions: map[string]int64{},
		VersionsSeen:    map[string]map[string]int64{},
	}
}

func newCheckpointID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Copy returns a deep copy of the checkpoint maps and slices. Channel values
// are shared.
func (c *Checkpoint) Copy() *Checkpoint {
	if c == nil {
		return nil
	}
	versionsSeen := make(map[string]map[string]int64, len(c.VersionsSeen))
	for node, seen := range c.VersionsSeen {
		versionsSeen[node] = maps.Clone(seen)
	}
	cp := &Checkpoint{
		Version:         c.Version,
		ID:              c.ID,
		Timestamp:       c.Timestamp,
		ChannelValues:   maps.Clone(c.ChannelValues),
		ChannelVersions: maps.Clone(c.ChannelVersions),
		VersionsSeen:    versionsSeen,
	}
	if cp.ChannelValues == nil {
		cp.ChannelValues = map[string]any{}
	}
	if cp.ChannelVersions == nil {
		cp.ChannelVersions = map[string]int64{}
	}
	if len(c.PendingSends) > 0 {
		cp.PendingSends = append([]Send(nil), c.PendingSends...)
	}
	return cp
}

// MaxVersion returns the highest channel version, or 0.
func (c *Checkpoint) MaxVersion() int64 {
	var max int64
	for _, v := range c.ChannelVersions {
		if v > max {
			max = v
		}
	}
	return max
}

// CheckpointMetadata describes how and when a checkpoint was created.
type CheckpointMetadata struct {
	CheckpointID string `json:"checkpoint_id"`
	// ParentID is the checkpoint the run continued from, empty for the first.
	ParentID string `json:"parent_id,omitempty"`
	// Source is one of input, loop, interrupt or update.
	Source string `json:"source"`
	// Step is the last completed step, 0 for input checkpoints.
	Step      int            `json:"step"`
	Timestamp time.Time      `json:"timestamp"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// CheckpointTuple bundles a checkpoint with its metadata and the pending
// writes stored against it.
type CheckpointTuple struct {
	Checkpoint    *Checkpoint        `json:"checkpoint"`
	Metadata      CheckpointMetadata `json:"metadata"`
	PendingWrites []PendingWrite     `json:"pending_writes,omitempty"`
}

// PendingWrite holds the output of a task that succeeded in a step that was
// not applied. A resumed run reuses it for the task with the same id.
type PendingWrite struct {
	TaskID string  `json:"task_id"`
	Node   string  `json:"node"`
	Writes []Write `json:"writes,omitempty"`
	Sends  []Send  `json:"sends,omitempty"`
}

// CheckpointSaver defines the interface for checkpoint storage implementations.
type CheckpointSaver interface {
	// Get returns the latest checkpoint of a run, or nil when there is none.
	Get(ctx context.Context, runID string) (*Checkpoint, error)
	// GetTuple returns a checkpoint with its metadata and pending writes. An
	// empty checkpointID selects the latest. Returns nil when not found.
	GetTuple(ctx context.Context, runID, checkpointID string) (*CheckpointTuple, error)
	// Put stores a checkpoint. Storing the same id twice is a no-op overwrite.
	Put(ctx context.Context, runID string, ckpt *Checkpoint, metadata CheckpointMetadata) error
	// PutWrites stores pending writes against a checkpoint.
	PutWrites(ctx context.Context, runID, checkpointID string, writes []PendingWrite) error
	// List returns checkpoint metadata, newest first.
	List(ctx context.Context, runID string, filter *CheckpointFilter) ([]CheckpointMetadata, error)
	// Delete removes all data of a run.
	Delete(ctx context.Context, runID string) error
}

// CheckpointFilter narrows List results.
type CheckpointFilter struct {
	// Before keeps checkpoints created before this checkpoint id.
	Before string `json:"before,omitempty"`
	// Limit is the maximum number of results. Zero means no limit.
	Limit int `json:"limit,omitempty"`
	// Source keeps checkpoints with this source.
	Source string `json:"source,omitempty"`
	// Metadata keeps checkpoints whose Extra holds every given pair.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Match reports whether the metadata passes the filter.
func (f *CheckpointFilter) Match(meta CheckpointMetadata) bool {
	if f == nil {
		return true
	}
	if f.Before != "" && meta.CheckpointID >= f.Before {
		return false
	}
	if f.Source != "" && meta.Source != f.Source {
		return false
	}
	for k, want := range f.Metadata {
		got, ok := meta.Extra[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

// FilterCheckpoints sorts metadata newest first and applies the filter.
// Savers share it so List behaves the same everywhere.
func FilterCheckpoints(all []CheckpointMetadata, filter *CheckpointFilter) []CheckpointMetadata {
	out := make([]CheckpointMetadata, 0, len(all))
	for _, meta := range all {
		if filter.Match(meta) {
			out = append(out, meta)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CheckpointID > out[j].CheckpointID
	})
	if filter != nil && filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}
