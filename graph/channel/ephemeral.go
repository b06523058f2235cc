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

// Ephemeral holds one value until a reader consumes it or the run finishes.
type Ephemeral[V any] struct {
	key       string
	value     V
	available bool
}

// NewEphemeral creates an empty Ephemeral channel.
func NewEphemeral[V any](key string) *Ephemeral[V] {
	return &Ephemeral[V]{key: key}
}

// Key implements Channel.
func (c *Ephemeral[V]) Key() string { return c.key }

// Type implements Channel.
func (c *Ephemeral[V]) Type() Type { return TypeEphemeral }

// Update accepts at most one value per step.
func (c *Ephemeral[V]) Update(values []any) (bool, error) {
	if len(values) == 0 {
		return false, nil
	}
	if len(values) > 1 {
		return false, fmt.Errorf("%w: ephemeral channel %q can receive only one value per step, got %d",
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
func (c *Ephemeral[V]) Value() (V, error) {
	if !c.available {
		var zero V
		return zero, emptyError(c.key)
	}
	return c.value, nil
}

// Get implements Channel.
func (c *Ephemeral[V]) Get() (any, error) {
	v, err := c.Value()
	if err != nil {
		return nil, err
	}
	return v, nil
}

// IsAvailable implements Channel.
func (c *Ephemeral[V]) IsAvailable() bool { return c.available }

// Checkpoint implements Channel.
func (c *Ephemeral[V]) Checkpoint() (any, bool) {
	if !c.available {
		return nil, false
	}
	return c.value, true
}

// FromCheckpoint implements Channel.
func (c *Ephemeral[V]) FromCheckpoint(value any) (Channel, error) {
	v, err := restore[V](c.key, value)
	if err != nil {
		return nil, err
	}
	return &Ephemeral[V]{key: c.key, value: v, available: true}, nil
}

// Consume drops the value.
func (c *Ephemeral[V]) Consume() bool { return c.clear() }

// Finish drops the value.
func (c *Ephemeral[V]) Finish() bool { return c.clear() }

func (c *Ephemeral[V]) clear() bool {
	if !c.available {
		return false
	}
	var zero V
	c.value = zero
	c.available = false
	return true
}

// Copy implements Channel.
func (c *Ephemeral[V]) Copy() Channel {
	cp := *c
	return &cp
}
