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
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy controls how a failing node is re-invoked.
type RetryPolicy struct {
	// InitialInterval is the wait before the second attempt.
	InitialInterval time.Duration
	// BackoffFactor multiplies the wait after every attempt.
	BackoffFactor float64
	// MaxInterval caps a single wait.
	MaxInterval time.Duration
	// MaxAttempts is the total number of invocations, including the first.
	MaxAttempts int
	// Jitter randomizes each wait by up to half of its length.
	Jitter bool
	// RetryOn decides whether an error is worth another attempt. Nil retries
	// every error.
	RetryOn func(error) bool
}

// DefaultRetryPolicy returns the policy used when a node asks for retries
// without tuning them.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		InitialInterval: 500 * time.Millisecond,
		BackoffFactor:   2,
		MaxInterval:     128 * time.Second,
		MaxAttempts:     3,
		Jitter:          true,
	}
}

const jitterRandomization = 0.5

func (p *RetryPolicy) attempts() int {
	if p == nil || p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p *RetryPolicy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	if p.BackoffFactor >= 1 {
		b.Multiplier = p.BackoffFactor
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.RandomizationFactor = 0
	if p.Jitter {
		b.RandomizationFactor = jitterRandomization
	}
	return b
}

// retryNotify is called before every wait between attempts.
type retryNotify func(err error, wait time.Duration)

// callWithRetry invokes fn until it succeeds, the policy gives up or ctx is
// done. It returns the number of invocations made.
func callWithRetry[T any](
	ctx context.Context,
	policy *RetryPolicy,
	notify retryNotify,
	fn func(attempt int) (T, error),
) (T, int, error) {
	attempt := 0
	if policy.attempts() == 1 {
		attempt++
		out, err := fn(attempt)
		return out, attempt, err
	}

	op := func() (T, error) {
		attempt++
		out, err := fn(attempt)
		if err != nil && policy.RetryOn != nil && !policy.RetryOn(err) {
			return out, backoff.Permanent(err)
		}
		return out, err
	}
	opts := []backoff.RetryOption{
		backoff.WithBackOff(policy.backOff()),
		backoff.WithMaxTries(uint(policy.attempts())),
		backoff.WithMaxElapsedTime(0),
	}
	if notify != nil {
		opts = append(opts, backoff.WithNotify(backoff.Notify(notify)))
	}
	out, err := backoff.Retry(ctx, op, opts...)
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}
	return out, attempt, err
}
