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
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
)

type taskRunParam struct {
	ctx  context.Context
	loop *Loop
	task *Task
	wg   *sync.WaitGroup
}

func (p *taskRunParam) reset() {
	p.ctx = nil
	p.loop = nil
	p.task = nil
	p.wg = nil
}

var taskRunParamPool = &sync.Pool{
	New: func() any { return new(taskRunParam) },
}

func createTaskPool(size int) (*ants.PoolWithFunc, error) {
	if size <= 0 {
		return nil, errors.New("pool size must be greater than 0")
	}
	pool, err := ants.NewPoolWithFunc(size, func(args any) {
		param, ok := args.(*taskRunParam)
		if !ok {
			panic("graph task pool args type error")
		}
		wg := param.wg
		defer func() {
			wg.Done()
			param.reset()
			taskRunParamPool.Put(param)
		}()
		param.loop.runTask(param.ctx, param.task)
	})
	if err != nil {
		return nil, fmt.Errorf("create graph task pool: %w", err)
	}
	return pool, nil
}

// runTasks executes the tasks on the pool and waits for all of them. Results
// are stored on the tasks themselves, so submission order is preserved.
func (l *Loop) runTasks(ctx context.Context, tasks []*Task) {
	var wg sync.WaitGroup
	for _, t := range tasks {
		if t.Err != nil || t.reused {
			continue
		}
		wg.Add(1)
		param := taskRunParamPool.Get().(*taskRunParam)
		param.ctx = ctx
		param.loop = l
		param.task = t
		param.wg = &wg
		if err := l.pool.Invoke(param); err != nil {
			wg.Done()
			t.Attempts = 0
			t.Err = &TaskExecutionError{
				Step: t.Step, Node: t.Node, TaskID: t.ID,
				Err: fmt.Errorf("submit task: %w", err),
			}
			param.reset()
			taskRunParamPool.Put(param)
		}
	}
	wg.Wait()
}
