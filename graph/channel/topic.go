//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package channel

// Topic collects every value written to it. Writers may send a single V or a
// []V, which is flattened. With accumulate set, successive steps keep
// appending; otherwise each writing step replaces the previous contents and
// the contents are cleared when a reader consumes the channel or the run
// finishes.
type Topic[V any] struct {
	key        string
	values     []V
	accumulate bool
}

// NewTopic creates an empty Topic channel.
func NewTopic[V any](key string, accumulate bool) *Topic[V] {
	return &Topic[V]{key: key, accumulate: accumulate}
}

// Key implements Channel.
func (c *Topic[V]) Key() string { return c.key }

// Type implements Channel.
func (c *Topic[V]) Type() Type { return TypeTopic }

// Update appends the values in order.
func (c *Topic[V]) Update(values []any) (bool, error) {
	flat := make([]V, 0, len(values))
	for _, raw := range values {
		if vs, ok := raw.([]V); ok {
			flat = append(flat, vs...)
			continue
		}
		if v, ok := raw.(V); ok {
			flat = append(flat, v)
			continue
		}
		v, err := cast[V](c.key, raw)
		if err != nil {
			return false, err
		}
		flat = append(flat, v)
	}

	updated := false
	if !c.accumulate && len(c.values) > 0 {
		c.values = nil
		updated = true
	}
	if len(flat) > 0 {
		c.values = append(c.values, flat...)
		updated = true
	}
	return updated, nil
}

// Value returns a copy of the collected values.
func (c *Topic[V]) Value() ([]V, error) {
	if len(c.values) == 0 {
		return nil, emptyError(c.key)
	}
	out := make([]V, len(c.values))
	copy(out, c.values)
	return out, nil
}

// Get implements Channel.
func (c *Topic[V]) Get() (any, error) {
	v, err := c.Value()
	if err != nil {
		return nil, err
	}
	return v, nil
}

// IsAvailable implements Channel.
func (c *Topic[V]) IsAvailable() bool { return len(c.values) > 0 }

// Checkpoint implements Channel.
func (c *Topic[V]) Checkpoint() (any, bool) {
	v, err := c.Value()
	if err != nil {
		return nil, false
	}
	return v, true
}

// FromCheckpoint implements Channel.
func (c *Topic[V]) FromCheckpoint(value any) (Channel, error) {
	vs, err := restore[[]V](c.key, value)
	if err != nil {
		return nil, err
	}
	return &Topic[V]{key: c.key, values: vs, accumulate: c.accumulate}, nil
}

// Consume clears the collected values of a non-accumulating topic.
func (c *Topic[V]) Consume() bool { return c.clear() }

// Finish clears the collected values of a non-accumulating topic.
func (c *Topic[V]) Finish() bool { return c.clear() }

func (c *Topic[V]) clear() bool {
	if c.accumulate || len(c.values) == 0 {
		return false
	}
	c.values = nil
	return true
}

// Copy implements Channel.
func (c *Topic[V]) Copy() Channel {
	cp := &Topic[V]{key: c.key, accumulate: c.accumulate}
	if len(c.values) > 0 {
		cp.values = append([]V(nil), c.values...)
	}
	return cp
}
