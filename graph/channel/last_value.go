//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package channel

import "fmt"

// LastValue keeps the single value written in the most recent step that wrote it.
type LastValue[V any] struct {
	key       string
	value     V
	available bool
}

// NewLastValue creates an empty LastValue channel.
func NewLastValue[V any](key string) *LastValue[V] {
	return &LastValue[V]{key: key}
}

// Key implements Channel.
func (c *LastValue[V]) Key() string { return c.key }

// Type implements Channel.
func (c *LastValue[V]) Type() Type { return TypeLastValue }

// Update accepts at most one value per step.
func (c *LastValue[V]) Update(values []any) (bool, error) {
	if len(values) == 0 {
		return false, nil
	}
	if len(values) > 1 {
		return false, fmt.Errorf("%w: channel %q can receive only one value per step, got %d",
			ErrInvalidUpdate, c.key, len(values))
	}
	v, err := cast[V](c.key, values[0])
	if err != nil {
		return false, err
	}
	c.value = v
	c.available = true
	return true, nil
}

// Value returns the typed current value.
func (c *LastValue[V]) Value() (V, error) {
	if !c.available {
		var zero V
		return zero, emptyError(c.key)
	}
	return c.value, nil
}

// Get implements Channel.
func (c *LastValue[V]) Get() (any, error) {
	v, err := c.Value()
	if err != nil {
		return nil, err
	}
	return v, nil
}

// IsAvailable implements Channel.
func (c *LastValue[V]) IsAvailable() bool { return c.available }

// Checkpoint implements Channel.
func (c *LastValue[V]) Checkpoint() (any, bool) {
	if !c.available {
		return nil, false
	}
	return c.value, true
}

// FromCheckpoint implements Channel.
func (c *LastValue[V]) FromCheckpoint(value any) (Channel, error) {
	v, err := restore[V](c.key, value)
	if err != nil {
		return nil, err
	}
	return &LastValue[V]{key: c.key, value: v, available: true}, nil
}

// Consume is a no-op.
func (c *LastValue[V]) Consume() bool { return false }

// Finish is a no-op.
func (c *LastValue[V]) Finish() bool { return false }

// Copy implements Channel.
func (c *LastValue[V]) Copy() Channel {
	cp := *c
	return &cp
}
