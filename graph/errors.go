package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidGraph       = errors.New("invalid graph")
	ErrUnknownNode        = errors.New("unknown node")
	ErrUnknownChannel     = errors.New("unknown channel")
	ErrInvalidRunConfig   = errors.New("invalid run config")
	ErrRunIDRequired      = errors.New("run_id is required")
	ErrCheckpoint         = errors.New("checkpoint error")
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	ErrRecursionLimit     = errors.New("recursion limit exceeded")
	ErrTaskExecution      = errors.New("task execution failed")
	ErrInterrupted        = errors.New("graph interrupted")
)

// TaskExecutionError wraps the failure of one task after its retry policy
// was exhausted.
type TaskExecutionError struct {
	Step     int
	Node     string
	TaskID   string
	Attempts int
	Err      error
}

func (e *TaskExecutionError) Error() string {
	return fmt.Sprintf("step %d: node %q (task %s) failed after %d attempt(s): %v",
		e.Step, e.Node, e.TaskID, e.Attempts, e.Err)
}

func (e *TaskExecutionError) Unwrap() error { return e.Err }

func (e *TaskExecutionError) Is(target error) bool { return target == ErrTaskExecution }

// InvalidUpdateError reports writes a channel refused during ApplyWrites.
type InvalidUpdateError struct {
	Step    int
	Channel string
	Nodes   []string
	Err     error
}

func (e *InvalidUpdateError) Error() string {
	return fmt.Sprintf("step %d: channel %q rejected writes from [%s]: %v",
		e.Step, e.Channel, strings.Join(e.Nodes, ", "), e.Err)
}

func (e *InvalidUpdateError) Unwrap() error { return e.Err }

// CheckpointError reports a saver or serialization failure. The run cannot
// continue because its persisted state can no longer be trusted.
type CheckpointError struct {
	Op    string
	RunID string
	Step  int
	Err   error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s failed for run %q at step %d: %v", e.Op, e.RunID, e.Step, e.Err)
}

func (e *CheckpointError) Unwrap() error { return e.Err }

func (e *CheckpointError) Is(target error) bool { return target == ErrCheckpoint }

// RecursionLimitError is returned when a run would execute more steps than
// its recursion limit allows.
type RecursionLimitError struct {
	Limit int
	Step  int
	Nodes []string
}

func (e *RecursionLimitError) Error() string {
	return fmt.Sprintf("recursion limit of %d reached at step %d without converging (next nodes: %s)",
		e.Limit, e.Step, strings.Join(e.Nodes, ", "))
}

func (e *RecursionLimitError) Is(target error) bool { return target == ErrRecursionLimit }
