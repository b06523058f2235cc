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
	"sync"
)

type interruptRequestKey struct{}

type interruptRequest struct {
	done chan struct{}
	once sync.Once
}

// WithInterruptRequest returns a context that lets the caller ask a running
// graph to pause. The request is honored at the next step boundary: tasks
// already in flight always run to completion, their writes are applied and
// persisted, and the run then returns an InterruptError.
func WithInterruptRequest(parent context.Context) (ctx context.Context, interrupt func()) {
	req := &interruptRequest{done: make(chan struct{})}
	ctx = context.WithValue(parent, interruptRequestKey{}, req)
	return ctx, func() {
		req.once.Do(func() { close(req.done) })
	}
}

func interruptRequested(ctx context.Context) bool {
	req, ok := ctx.Value(interruptRequestKey{}).(*interruptRequest)
	if !ok {
		return false
	}
	select {
	case <-req.done:
		return true
	default:
		return false
	}
}
