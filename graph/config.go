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
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// StreamMode selects what a streamed run emits after every step.
type StreamMode string

// Supported stream modes.
const (
	// StreamModeValues emits the output channel values.
	StreamModeValues StreamMode = "values"
	// StreamModeUpdates emits the writes of every task.
	StreamModeUpdates StreamMode = "updates"
	// StreamModeDebug emits one record per task with inputs, outputs and timing.
	StreamModeDebug StreamMode = "debug"
)

// FailurePolicy decides what happens to the writes of a step in which some
// task failed.
type FailurePolicy string

// Supported failure policies.
const (
	// FailurePolicyAbort discards the step. Successful writes are stored as
	// pending writes and reused when the run is resumed.
	FailurePolicyAbort FailurePolicy = "abort"
	// FailurePolicyApplyPartial applies the writes of the successful tasks
	// and persists them before failing the run.
	FailurePolicyApplyPartial FailurePolicy = "apply_partial"
)

// RunConfig configures a single run.
type RunConfig struct {
	// RunID identifies the run in the checkpoint saver. Generated when empty.
	RunID string `yaml:"run_id"`
	// CheckpointID resumes from a specific checkpoint instead of the latest.
	CheckpointID string `yaml:"checkpoint_id"`
	// RecursionLimit is the maximum number of steps a single invocation runs.
	RecursionLimit int `yaml:"recursion_limit" validate:"gte=1"`
	// InterruptBefore pauses the run before any of these nodes executes.
	InterruptBefore []string `yaml:"interrupt_before" validate:"dive,required"`
	// InterruptAfter pauses the run after any of these nodes executed.
	InterruptAfter []string `yaml:"interrupt_after" validate:"dive,required"`
	// Debug logs every task.
	Debug bool `yaml:"debug"`
	// StreamMode selects the per-step stream output.
	StreamMode StreamMode `yaml:"stream_mode" validate:"oneof=values updates debug"`
	// FailurePolicy selects how failed steps are handled.
	FailurePolicy FailurePolicy `yaml:"failure_policy" validate:"oneof=abort apply_partial"`
}

// DefaultRunConfig returns a RunConfig with every default applied.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		RecursionLimit: DefaultRecursionLimit,
		StreamMode:     StreamModeValues,
		FailurePolicy:  FailurePolicyAbort,
	}
}

var runConfigValidate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration.
func (c *RunConfig) Validate() error {
	if err := runConfigValidate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRunConfig, err)
	}
	return nil
}

func (c *RunConfig) applyDefaults() {
	def := DefaultRunConfig()
	if c.RecursionLimit == 0 {
		c.RecursionLimit = def.RecursionLimit
	}
	if c.StreamMode == "" {
		c.StreamMode = def.StreamMode
	}
	if c.FailurePolicy == "" {
		c.FailurePolicy = def.FailurePolicy
	}
}

// ParseRunConfig decodes a YAML run configuration, fills in defaults for
// omitted fields and validates the result.
func ParseRunConfig(data []byte) (*RunConfig, error) {
	cfg := &RunConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parse yaml: %v", ErrInvalidRunConfig, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadRunConfig reads and parses a YAML run configuration file.
func LoadRunConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run config %s: %w", path, err)
	}
	return ParseRunConfig(data)
}

// RunOption configures a single run.
type RunOption func(*RunConfig)

// WithRunID sets the run id.
func WithRunID(runID string) RunOption {
	return func(c *RunConfig) {
		c.RunID = runID
	}
}

// WithCheckpointID resumes from the given checkpoint.
func WithCheckpointID(checkpointID string) RunOption {
	return func(c *RunConfig) {
		c.CheckpointID = checkpointID
	}
}

// WithRecursionLimit sets the maximum number of steps.
func WithRecursionLimit(limit int) RunOption {
	return func(c *RunConfig) {
		c.RecursionLimit = limit
	}
}

// WithInterruptBefore pauses before the given nodes. Use InterruptAll to
// match every node.
func WithInterruptBefore(nodes ...string) RunOption {
	return func(c *RunConfig) {
		c.InterruptBefore = append(c.InterruptBefore, nodes...)
	}
}

// WithInterruptAfter pauses after the given nodes.
func WithInterruptAfter(nodes ...string) RunOption {
	return func(c *RunConfig) {
		c.InterruptAfter = append(c.InterruptAfter, nodes...)
	}
}

// WithDebug enables per-task debug logging.
func WithDebug(debug bool) RunOption {
	return func(c *RunConfig) {
		c.Debug = debug
	}
}

// WithStreamMode sets the stream mode.
func WithStreamMode(mode StreamMode) RunOption {
	return func(c *RunConfig) {
		c.StreamMode = mode
	}
}

// WithFailurePolicy sets the failure policy.
func WithFailurePolicy(policy FailurePolicy) RunOption {
	return func(c *RunConfig) {
		c.FailurePolicy = policy
	}
}

// WithRunConfig replaces the whole configuration. Options listed after it
// still apply on top.
func WithRunConfig(cfg RunConfig) RunOption {
	return func(c *RunConfig) {
		*c = cfg
		c.InterruptBefore = append([]string(nil), cfg.InterruptBefore...)
		c.InterruptAfter = append([]string(nil), cfg.InterruptAfter...)
	}
}

func buildRunConfig(base RunConfig, opts ...RunOption) (RunConfig, error) {
	cfg := base
	cfg.InterruptBefore = append([]string(nil), base.InterruptBefore...)
	cfg.InterruptAfter = append([]string(nil), base.InterruptAfter...)
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
