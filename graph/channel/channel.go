//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package channel provides the versioned state cells nodes communicate through.
//
// A channel holds a value that is absent until its first update. Merge
// semantics differ per kind: LastValue replaces, Topic appends, BinaryOperator
// folds and Ephemeral keeps a value for a single step. Versions are not
// tracked here; the scheduler pairs every change reported by Update with a
// version bump in the checkpoint.
//
// Channels are owned by one execution loop and are not safe for concurrent use.
package channel

import (
	"fmt"
	"reflect"

	"github.com/bytedance/sonic"
)

// Type represents the merge behavior of a channel.
type Type int

const (
	// TypeLastValue stores only the last value sent to the channel.
	TypeLastValue Type = iota
	// TypeTopic accumulates multiple values.
	TypeTopic
	// TypeBinaryOperator folds values with a reducer.
	TypeBinaryOperator
	// TypeEphemeral stores a value until it is consumed.
	TypeEphemeral
)

// String returns the type name.
func (t Type) String() string {
	switch t {
	case TypeLastValue:
		return "last_value"
	case TypeTopic:
		return "topic"
	case TypeBinaryOperator:
		return "binary_operator"
	case TypeEphemeral:
		return "ephemeral"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// Channel is the type-erased view the scheduler works with. Typed
// implementations additionally expose Value() for statically typed reads.
type Channel interface {
	// Key returns the stable channel name.
	Key() string
	// Type returns the merge behavior.
	Type() Type
	// Update applies the values written in one step and reports whether the
	// observable value changed.
	Update(values []any) (bool, error)
	// Get returns the current value or ErrEmptyChannel.
	Get() (any, error)
	// IsAvailable reports whether Get would succeed.
	IsAvailable() bool
	// Checkpoint returns the current value for persistence, false when empty.
	Checkpoint() (any, bool)
	// FromCheckpoint returns a new channel with the same configuration
	// holding the given checkpointed value.
	FromCheckpoint(value any) (Channel, error)
	// Consume is called after a node that read the channel finished a step.
	Consume() bool
	// Finish is called when the run terminates.
	Finish() bool
	// Copy returns an independent channel with the same configuration and value.
	Copy() Channel
}

// cast converts an update value to V without any reshaping.
func cast[V any](key string, v any) (V, error) {
	var zero V
	if v == nil {
		if isInterface[V]() {
			return zero, nil
		}
		return zero, fmt.Errorf("%w: channel %q cannot hold nil", ErrInvalidUpdate, key)
	}
	typed, ok := v.(V)
	if !ok {
		return zero, fmt.Errorf("%w: channel %q expects %T, got %T", ErrInvalidUpdate, key, zero, v)
	}
	return typed, nil
}

// restore converts a checkpointed value to V. Values decoded by a codec
// arrive in their generic form and are re-shaped through JSON.
func restore[V any](key string, v any) (V, error) {
	if typed, err := cast[V](key, v); err == nil {
		return typed, nil
	}
	var out V
	data, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("%w: channel %q: encode checkpoint value: %v", ErrInvalidUpdate, key, err)
	}
	if err := sonic.ConfigStd.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("%w: channel %q: decode checkpoint value into %T: %v", ErrInvalidUpdate, key, out, err)
	}
	return out, nil
}

func isInterface[V any]() bool {
	return reflect.TypeOf((*V)(nil)).Elem().Kind() == reflect.Interface
}

func emptyError(key string) error {
	return fmt.Errorf("%w: %q", ErrEmptyChannel, key)
}
