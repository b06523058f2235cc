//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package channel

// BinaryOperator folds every written value into an accumulator with op.
// Without an initial value the first write seeds the accumulator.
type BinaryOperator[V any] struct {
	key       string
	op        func(acc, v V) V
	value     V
	available bool
}

// NewBinaryOperator creates an empty reducer channel.
func NewBinaryOperator[V any](key string, op func(acc, v V) V) *BinaryOperator[V] {
	return &BinaryOperator[V]{key: key, op: op}
}

// NewBinaryOperatorWithInitial creates a reducer channel that starts
// available with initial as its accumulator.
func NewBinaryOperatorWithInitial[V any](key string, op func(acc, v V) V, initial V) *BinaryOperator[V] {
	return &BinaryOperator[V]{key: key, op: op, value: initial, available: true}
}

// Key implements Channel.
func (c *BinaryOperator[V]) Key() string { return c.key }

// Type implements Channel.
func (c *BinaryOperator[V]) Type() Type { return TypeBinaryOperator }

// Update folds the values in order.
func (c *BinaryOperator[V]) Update(values []any) (bool, error) {
	if len(values) == 0 {
		return false, nil
	}
	typed := make([]V, 0, len(values))
	for _, raw := range values {
		v, err := cast[V](c.key, raw)
		if err != nil {
			return false, err
		}
		typed = append(typed, v)
	}
	for _, v := range typed {
		if !c.available {
			c.value = v
			c.available = true
			continue
		}
		c.value = c.op(c.value, v)
	}
	return true, nil
}

// Value returns the typed accumulator.
func (c *BinaryOperator[V]) Value() (V, error) {
	if !c.available {
		var zero V
		return zero, emptyError(c.key)
	}
	return c.value, nil
}

// Get implements Channel.
func (c *BinaryOperator[V]) Get() (any, error) {
	v, err := c.Value()
	if err != nil {
		return nil, err
	}
	return v, nil
}

// IsAvailable implements Channel.
func (c *BinaryOperator[V]) IsAvailable() bool { return c.available }

// Checkpoint implements Channel.
func (c *BinaryOperator[V]) Checkpoint() (any, bool) {
	if !c.available {
		return nil, false
	}
	return c.value, true
}

// FromCheckpoint implements Channel.
func (c *BinaryOperator[V]) FromCheckpoint(value any) (Channel, error) {
	v, err := restore[V](c.key, value)
	if err != nil {
		return nil, err
	}
	return &BinaryOperator[V]{key: c.key, op: c.op, value: v, available: true}, nil
}

// Consume is a no-op.
func (c *BinaryOperator[V]) Consume() bool { return false }

// Finish is a no-op.
func (c *BinaryOperator[V]) Finish() bool { return false }

// Copy implements Channel.
func (c *BinaryOperator[V]) Copy() Channel {
	cp := *c
	return &cp
}
