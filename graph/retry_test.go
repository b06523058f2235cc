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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallWithRetry(t *testing.T) {
	ctx := context.Background()
	policy := &RetryPolicy{InitialInterval: time.Millisecond, BackoffFactor: 2, MaxAttempts: 4}

	t.Run("first attempt succeeds", func(t *testing.T) {
		out, attempts, err := callWithRetry(ctx, policy, nil, func(int) (string, error) { return "ok", nil })
		require.NoError(t, err)
		assert.Equal(t, "ok", out)
		assert.Equal(t, 1, attempts)
	})

	t.Run("succeeds on third attempt", func(t *testing.T) {
		var waits []time.Duration
		notify := func(_ error, wait time.Duration) { waits = append(waits, wait) }
		out, attempts, err := callWithRetry(ctx, policy, notify, func(attempt int) (int, error) {
			if attempt < 3 {
				return 0, errors.New("transient")
			}
			return attempt, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, out)
		assert.Equal(t, 3, attempts)
		assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, waits)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		_, attempts, err := callWithRetry(ctx, policy, nil, func(int) (int, error) {
			return 0, errors.New("down")
		})
		assert.EqualError(t, err, "down")
		assert.Equal(t, 4, attempts)
	})

	t.Run("nil policy runs once", func(t *testing.T) {
		_, attempts, err := callWithRetry(ctx, nil, nil, func(int) (int, error) {
			return 0, errors.New("down")
		})
		assert.Error(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("permanent error", func(t *testing.T) {
		stop := errors.New("stop")
		p := *policy
		p.RetryOn = func(err error) bool { return !errors.Is(err, stop) }
		_, attempts, err := callWithRetry(ctx, &p, nil, func(int) (int, error) { return 0, stop })
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 1, attempts)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		slow := &RetryPolicy{InitialInterval: time.Hour, MaxAttempts: 3}
		_, attempts, err := callWithRetry(cctx, slow, func(error, time.Duration) { cancel() }, func(int) (int, error) {
			return 0, errors.New("down")
		})
		assert.Error(t, err)
		assert.Equal(t, 1, attempts)
	})
}

func TestRetryPolicyBackOff(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 3, p.attempts())
	b := p.backOff()
	assert.Equal(t, 500*time.Millisecond, b.InitialInterval)
	assert.Equal(t, 2.0, b.Multiplier)
	assert.Equal(t, 128*time.Second, b.MaxInterval)
	assert.Equal(t, jitterRandomization, b.RandomizationFactor)

	p.Jitter = false
	assert.Zero(t, p.backOff().RandomizationFactor)

	var nilPolicy *RetryPolicy
	assert.Equal(t, 1, nilPolicy.attempts())
	assert.Equal(t, 1, (&RetryPolicy{}).attempts())
}
