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
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// StepWrites is what one step produced.
type StepWrites struct {
	Step int
	// Tasks are the step's tasks in submission order.
	Tasks []*Task
	// Updated are the sorted keys of the channels that changed.
	Updated []string
}

// NodeUpdate is the updates-mode record of one successful task.
type NodeUpdate struct {
	Node   string  `json:"node"`
	TaskID string  `json:"task_id"`
	Writes []Write `json:"writes"`
}

// DebugRecord is the debug-mode record of one task.
type DebugRecord struct {
	Step     int           `json:"step"`
	Node     string        `json:"node"`
	TaskID   string        `json:"task_id"`
	Kind     string        `json:"kind"`
	Input    any           `json:"input"`
	Output   []Write       `json:"output"`
	Sends    []Send        `json:"sends,omitempty"`
	Duration time.Duration `json:"duration"`
	Attempts int           `json:"attempts"`
	Reused   bool          `json:"reused,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// FormatValues returns the values of the output channels in their
// configured order. Channels without a value are left out.
func FormatValues(ckpt *Checkpoint, outputChannels []string) *orderedmap.OrderedMap[string, any] {
	out := orderedmap.New[string, any](len(outputChannels))
	if ckpt == nil {
		return out
	}
	for _, k := range outputChannels {
		if v, ok := ckpt.ChannelValues[k]; ok {
			out.Set(k, v)
		}
	}
	return out
}

// FormatUpdates returns the writes of every successful task in submission
// order.
func FormatUpdates(sw StepWrites) []NodeUpdate {
	updates := make([]NodeUpdate, 0, len(sw.Tasks))
	for _, t := range sw.Tasks {
		if !t.Succeeded() {
			continue
		}
		updates = append(updates, NodeUpdate{
			Node:   t.Node,
			TaskID: t.ID,
			Writes: t.Writes,
		})
	}
	return updates
}

// FormatDebug returns one record per task, failed ones included.
func FormatDebug(sw StepWrites) []DebugRecord {
	records := make([]DebugRecord, 0, len(sw.Tasks))
	for _, t := range sw.Tasks {
		rec := DebugRecord{
			Step:     sw.Step,
			Node:     t.Node,
			TaskID:   t.ID,
			Kind:     t.Kind,
			Input:    t.Input,
			Output:   t.Writes,
			Sends:    t.Sends,
			Duration: t.Duration,
			Attempts: t.Attempts,
			Reused:   t.reused,
		}
		if t.Err != nil {
			rec.Error = t.Err.Error()
		}
		records = append(records, rec)
	}
	return records
}

// FormatOutput renders a step for the given stream mode.
func FormatOutput(mode StreamMode, ckpt *Checkpoint, sw StepWrites, outputChannels []string) (any, error) {
	switch mode {
	case StreamModeValues, "":
		return FormatValues(ckpt, outputChannels), nil
	case StreamModeUpdates:
		return FormatUpdates(sw), nil
	case StreamModeDebug:
		return FormatDebug(sw), nil
	default:
		return nil, fmt.Errorf("%w: unknown stream mode %q", ErrInvalidRunConfig, mode)
	}
}
