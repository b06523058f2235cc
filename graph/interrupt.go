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
	"strings"
)

// InterruptPhase tells where a run paused.
type InterruptPhase string

// Supported interrupt phases.
const (
	InterruptPhaseBefore   InterruptPhase = "before"
	InterruptPhaseAfter    InterruptPhase = "after"
	InterruptPhaseExternal InterruptPhase = "external"
)

// InterruptError is a deliberate, resumable pause. It is returned as an
// error so callers can tell a paused run from a converged one, but it is not
// a failure: Checkpoint holds the state to resume from.
type InterruptError struct {
	Phase InterruptPhase
	// Step is the step that was about to run (before/external) or that just
	// ran (after).
	Step int
	// Nodes are the interrupt nodes that matched.
	Nodes []string
	// NextNodes are the nodes that will run when the run is resumed.
	NextNodes  []string
	Checkpoint *Checkpoint
}

func (e *InterruptError) Error() string {
	return fmt.Sprintf("graph interrupted %s step %d at nodes [%s]",
		e.Phase, e.Step, strings.Join(e.Nodes, ", "))
}

func (e *InterruptError) Is(target error) bool { return target == ErrInterrupted }

// IsInterrupt reports whether err is, or wraps, an InterruptError.
func IsInterrupt(err error) bool {
	_, ok := GetInterrupt(err)
	return ok
}

// GetInterrupt extracts the InterruptError from err.
func GetInterrupt(err error) (*InterruptError, bool) {
	var ie *InterruptError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

// ShouldInterrupt reports whether the run must pause before tasks. It
// requires that some channel changed since the last interrupt-before, so a
// resumed run does not pause again on the very same tasks, and that at
// least one task runs a node in interruptNodes.
func ShouldInterrupt(ckpt *Checkpoint, interruptNodes []string, tasks []*Task) bool {
	return len(interruptHits(ckpt, InterruptKey, interruptNodes, tasks)) > 0
}

// markerKey returns the versions_seen entry of an interrupt phase. Each
// phase keeps its own marker so pausing after one step does not hide a
// pause before the next.
func markerKey(phase InterruptPhase) string {
	if phase == InterruptPhaseAfter {
		return InterruptAfterKey
	}
	return InterruptKey
}

func interruptHits(ckpt *Checkpoint, marker string, interruptNodes []string, tasks []*Task) []string {
	if ckpt == nil || len(interruptNodes) == 0 || len(tasks) == 0 {
		return nil
	}
	seen := ckpt.VersionsSeen[marker]
	changed := false
	for key, v := range ckpt.ChannelVersions {
		if v > seen[key] {
			changed = true
			break
		}
	}
	if !changed {
		return nil
	}

	all := false
	set := make(map[string]struct{}, len(interruptNodes))
	for _, n := range interruptNodes {
		if n == InterruptAll {
			all = true
		}
		set[n] = struct{}{}
	}
	hits := make(map[string]struct{})
	for _, t := range tasks {
		if _, ok := set[t.Node]; ok || all {
			hits[t.Node] = struct{}{}
		}
	}
	return keysOfSet(hits)
}

// markInterrupted records the current channel versions under marker so the
// same pending work does not interrupt twice in that phase.
func markInterrupted(ckpt *Checkpoint, marker string) {
	versions := make(map[string]int64, len(ckpt.ChannelVersions))
	for k, v := range ckpt.ChannelVersions {
		versions[k] = v
	}
	ckpt.VersionsSeen[marker] = versions
}

func uniqueSortedTaskNodes(tasks []*Task) []string {
	set := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		set[t.Node] = struct{}{}
	}
	return keysOfSet(set)
}
