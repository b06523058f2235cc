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
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-graph-go/graph/channel"
)

func newTestExecutor(t *testing.T, g *Graph, opts ...ExecutorOption) *Executor {
	t.Helper()
	exec, err := NewExecutor(g, opts...)
	require.NoError(t, err)
	t.Cleanup(exec.Close)
	return exec
}

func addOne(_ context.Context, in any) (any, error) { return in.(int) + 1, nil }

// chainGraph is in -> a -> x -> b -> y.
func chainGraph(t *testing.T) *Graph {
	t.Helper()
	g, err := NewBuilder().
		AddChannels(chainChannels()...).
		AddNode("a", addOne, WithTriggers("in"), WithWrites("x")).
		AddNode("b", addOne, WithTriggers("x"), WithWrites("y")).
		SetInputChannels("in").
		Compile()
	require.NoError(t, err)
	return g
}

func chainChannels() []channel.Channel {
	return []channel.Channel{
		channel.NewLastValue[int]("in"),
		channel.NewLastValue[int]("x"),
		channel.NewLastValue[int]("y"),
	}
}

func TestExecutor_SingleNodeVersions(t *testing.T) {
	g := NewBuilder().
		AddChannels(channel.NewLastValue[int]("in"), channel.NewLastValue[int]("x")).
		AddNode("a", addOne, WithTriggers("in"), WithWrites("x")).
		SetInputChannels("in").
		MustCompile()
	exec := newTestExecutor(t, g)

	res, err := exec.Invoke(context.Background(), map[string]any{"in": 1})
	require.NoError(t, err)
	assert.Equal(t, LoopConverged, res.Status)
	assert.Equal(t, 1, res.Step)
	assert.NotEmpty(t, res.RunID)

	x, ok := res.Output.Get("x")
	require.True(t, ok)
	assert.Equal(t, 2, x)
	assert.Equal(t, []string{"in", "x"}, outputKeys(res))

	ckpt := res.Checkpoint
	assert.Equal(t, int64(1), ckpt.ChannelVersions["in"])
	assert.Equal(t, int64(2), ckpt.ChannelVersions["x"])
	assert.Equal(t, map[string]int64{"in": 1}, ckpt.VersionsSeen["a"])
	assert.Equal(t, map[string]any{"in": 1, "x": 2}, ckpt.ChannelValues)
}

func outputKeys(res *RunResult) []string {
	var keys []string
	for pair := res.Output.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

func TestExecutor_Chain(t *testing.T) {
	exec := newTestExecutor(t, chainGraph(t))
	res, err := exec.Invoke(context.Background(), map[string]any{"in": 1})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Step)
	y, _ := res.Output.Get("y")
	assert.Equal(t, 3, y)

	for node, trigger := range map[string]string{"a": "in", "b": "x"} {
		assert.Equal(t, res.Checkpoint.ChannelVersions[trigger], res.Checkpoint.VersionsSeen[node][trigger],
			"after convergence every node has seen its trigger")
	}
}

func TestExecutor_RejectsUnknownInput(t *testing.T) {
	exec := newTestExecutor(t, chainGraph(t))
	_, err := exec.Invoke(context.Background(), map[string]any{"x": 1})
	assert.ErrorIs(t, err, ErrUnknownChannel)
}

func TestExecutor_NoInputConvergesImmediately(t *testing.T) {
	exec := newTestExecutor(t, chainGraph(t))
	res, err := exec.Invoke(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, LoopConverged, res.Status)
	assert.Equal(t, 0, res.Step)
	assert.Zero(t, res.Output.Len())
}

// pingPongGraph never converges: a writes b's trigger and b writes a's.
func pingPongGraph(t *testing.T, calls *atomic.Int32) *Graph {
	t.Helper()
	fn := func(_ context.Context, in any) (any, error) {
		calls.Add(1)
		return in.(int) + 1, nil
	}
	return NewBuilder().
		AddChannels(channel.NewLastValue[int]("ping"), channel.NewLastValue[int]("pong")).
		AddNode("a", fn, WithTriggers("ping"), WithWrites("pong")).
		AddNode("b", fn, WithTriggers("pong"), WithWrites("ping")).
		SetInputChannels("ping").
		MustCompile()
}

func TestExecutor_RecursionLimit(t *testing.T) {
	var calls atomic.Int32
	exec := newTestExecutor(t, pingPongGraph(t, &calls))

	res, err := exec.Invoke(context.Background(), map[string]any{"ping": 0}, WithRecursionLimit(5))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRecursionLimit)

	var rle *RecursionLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, 5, rle.Limit)
	assert.Equal(t, 6, rle.Step, "the limit trips when step limit+1 is about to run")
	assert.Equal(t, []string{"b"}, rle.Nodes)

	assert.Equal(t, LoopRecursionLimitExceeded, res.Status)
	assert.Equal(t, 5, res.Step)
	assert.Equal(t, int32(5), calls.Load())
	pong, _ := res.Output.Get("pong")
	assert.Equal(t, 5, pong)
}

func TestExecutor_SelfLoopDoesNotRetrigger(t *testing.T) {
	var calls atomic.Int32
	g := NewBuilder().
		AddChannel(channel.NewLastValue[int]("n")).
		AddNode("self", func(_ context.Context, in any) (any, error) {
			calls.Add(1)
			return in.(int) + 1, nil
		}, WithTriggers("n"), WithWrites("n")).
		SetInputChannels("n").
		MustCompile()
	exec := newTestExecutor(t, g)

	res, err := exec.Invoke(context.Background(), map[string]any{"n": 0})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	n, _ := res.Output.Get("n")
	assert.Equal(t, 1, n)
}

func TestExecutor_RetryThenFail(t *testing.T) {
	var calls atomic.Int32
	g := NewBuilder().
		AddChannels(channel.NewLastValue[int]("in"), channel.NewLastValue[int]("x")).
		AddNode("flaky", func(context.Context, any) (any, error) {
			calls.Add(1)
			return nil, errors.New("unavailable")
		}, WithTriggers("in"), WithWrites("x"), WithRetryPolicy(&RetryPolicy{
			InitialInterval: time.Millisecond,
			BackoffFactor:   2,
			MaxAttempts:     3,
		})).
		SetInputChannels("in").
		MustCompile()
	exec := newTestExecutor(t, g)

	res, err := exec.Invoke(context.Background(), map[string]any{"in": 1})
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.ErrorIs(t, err, ErrTaskExecution)
	assert.ErrorContains(t, err, "unavailable")

	var te *TaskExecutionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "flaky", te.Node)
	assert.Equal(t, 1, te.Step)
	assert.Equal(t, 3, te.Attempts)

	assert.Equal(t, LoopFailed, res.Status)
	assert.Equal(t, 0, res.Step)
	_, ok := res.Output.Get("x")
	assert.False(t, ok, "no write of a failed step is applied")
	assert.Zero(t, res.Checkpoint.ChannelVersions["x"])
}

func TestExecutor_RetryThenSucceed(t *testing.T) {
	var calls atomic.Int32
	g := NewBuilder().
		AddChannels(channel.NewLastValue[int]("in"), channel.NewLastValue[int]("x")).
		AddNode("flaky", func(ctx context.Context, in any) (any, error) {
			info, ok := GetExecutionInfo(ctx)
			if !ok || info.Attempt < 2 {
				calls.Add(1)
				return nil, errors.New("unavailable")
			}
			calls.Add(1)
			return in.(int) * 10, nil
		}, WithTriggers("in"), WithWrites("x"), WithRetryPolicy(&RetryPolicy{
			InitialInterval: time.Millisecond,
			MaxAttempts:     3,
		})).
		SetInputChannels("in").
		MustCompile()
	exec := newTestExecutor(t, g)

	res, err := exec.Invoke(context.Background(), map[string]any{"in": 4}, WithStreamMode(StreamModeDebug))
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	x, _ := res.Output.Get("x")
	assert.Equal(t, 40, x)
}

func TestExecutor_RetryOnStopsEarly(t *testing.T) {
	var calls atomic.Int32
	fatal := errors.New("fatal")
	g := NewBuilder().
		AddChannels(channel.NewLastValue[int]("in"), channel.NewLastValue[int]("x")).
		AddNode("n", func(context.Context, any) (any, error) {
			calls.Add(1)
			return nil, fatal
		}, WithTriggers("in"), WithWrites("x"), WithRetryPolicy(&RetryPolicy{
			InitialInterval: time.Millisecond,
			MaxAttempts:     5,
			RetryOn:         func(err error) bool { return !errors.Is(err, fatal) },
		})).
		SetInputChannels("in").
		MustCompile()
	exec := newTestExecutor(t, g)

	_, err := exec.Invoke(context.Background(), map[string]any{"in": 1})
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, int32(1), calls.Load())
}

func TestExecutor_PanicIsRecovered(t *testing.T) {
	g := NewBuilder().
		AddChannels(channel.NewLastValue[int]("in"), channel.NewLastValue[int]("x")).
		AddNode("boom", func(context.Context, any) (any, error) {
			panic("kaboom")
		}, WithTriggers("in"), WithWrites("x")).
		SetInputChannels("in").
		MustCompile()
	exec := newTestExecutor(t, g)

	res, err := exec.Invoke(context.Background(), map[string]any{"in": 1})
	assert.ErrorIs(t, err, ErrTaskExecution)
	assert.ErrorContains(t, err, "kaboom")
	assert.Equal(t, LoopFailed, res.Status)
}

func TestExecutor_InvalidOutputs(t *testing.T) {
	tests := []struct {
		name   string
		fn     NodeFunc
		writes []string
		target error
	}{
		{
			name:   "plain value with two write channels",
			fn:     func(context.Context, any) (any, error) { return 1, nil },
			writes: []string{"x", "y"},
			target: channel.ErrInvalidUpdate,
		},
		{
			name: "undeclared write",
			fn: func(context.Context, any) (any, error) {
				return NewResult().Write("y", 1), nil
			},
			writes: []string{"x"},
			target: channel.ErrInvalidUpdate,
		},
		{
			name: "send to unknown node",
			fn: func(context.Context, any) (any, error) {
				return NewResult().Send("ghost", 1), nil
			},
			target: ErrUnknownNode,
		},
		{
			name:   "wrong value type",
			fn:     func(context.Context, any) (any, error) { return "one", nil },
			writes: []string{"x"},
			target: channel.ErrInvalidUpdate,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewBuilder().
				AddChannels(channel.NewLastValue[int]("in"), channel.NewLastValue[int]("x"), channel.NewLastValue[int]("y")).
				AddNode("n", tt.fn, WithTriggers("in"), WithWrites(tt.writes...)).
				SetInputChannels("in").
				MustCompile()
			exec := newTestExecutor(t, g)
			res, err := exec.Invoke(context.Background(), map[string]any{"in": 1})
			assert.ErrorIs(t, err, tt.target)
			assert.Equal(t, LoopFailed, res.Status)
		})
	}
}

func TestExecutor_PlainValueWithoutWritesIsDiscarded(t *testing.T) {
	g := NewBuilder().
		AddChannel(channel.NewLastValue[int]("in")).
		AddNode("sink", func(context.Context, any) (any, error) { return "ignored", nil }, WithTriggers("in")).
		SetInputChannels("in").
		MustCompile()
	exec := newTestExecutor(t, g)
	res, err := exec.Invoke(context.Background(), map[string]any{"in": 1})
	require.NoError(t, err)
	assert.Equal(t, LoopConverged, res.Status)
}

func TestExecutor_SendFanOut(t *testing.T) {
	g, err := NewBuilder().
		AddChannels(
			channel.NewLastValue[[]int]("items"),
			channel.NewTopic[int]("results", false),
		).
		AddNode("split", func(_ context.Context, in any) (any, error) {
			res := NewResult()
			for _, item := range in.([]int) {
				res.Send("square", item)
			}
			return res, nil
		}, WithTriggers("items")).
		AddNode("square", func(ctx context.Context, in any) (any, error) {
			// Later sends finish first.
			time.Sleep(time.Duration(5-in.(int)) * time.Millisecond)
			return in.(int) * in.(int), nil
		}, WithWrites("results")).
		SetInputChannels("items").
		SetOutputChannels("results").
		Compile()
	require.NoError(t, err)
	exec := newTestExecutor(t, g, WithMaxConcurrency(4))

	res, err := exec.Invoke(context.Background(), map[string]any{"items": []int{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Step)
	results, ok := res.Output.Get("results")
	require.True(t, ok)
	assert.Equal(t, []int{1, 4, 9}, results)
	assert.Empty(t, res.Checkpoint.PendingSends)
}

func TestExecutor_ParallelTopicOrder(t *testing.T) {
	delays := map[string]time.Duration{"a": 30 * time.Millisecond, "b": 15 * time.Millisecond, "c": 0}
	b := NewBuilder().AddChannels(
		channel.NewLastValue[int]("in"),
		channel.NewTopic[string]("log", true),
	)
	for name, d := range delays {
		b.AddNode(name, func(context.Context, any) (any, error) {
			time.Sleep(d)
			return name, nil
		}, WithTriggers("in"), WithWrites("log"))
	}
	g := b.SetInputChannels("in").SetOutputChannels("log").MustCompile()
	exec := newTestExecutor(t, g, WithMaxConcurrency(3))

	for i := 0; i < 3; i++ {
		res, err := exec.Invoke(context.Background(), map[string]any{"in": i})
		require.NoError(t, err)
		log, _ := res.Output.Get("log")
		assert.Equal(t, []string{"a", "b", "c"}, log, "writes follow submission order, not completion order")
	}
}

func TestExecutor_ApplyPartial(t *testing.T) {
	g := NewBuilder().
		AddChannels(channel.NewLastValue[int]("in"), channel.NewLastValue[int]("x"), channel.NewLastValue[int]("y")).
		AddNode("good", addOne, WithTriggers("in"), WithWrites("x")).
		AddNode("bad", func(context.Context, any) (any, error) {
			return nil, errors.New("bad node")
		}, WithTriggers("in"), WithWrites("y")).
		SetInputChannels("in").
		MustCompile()
	exec := newTestExecutor(t, g)

	res, err := exec.Invoke(context.Background(), map[string]any{"in": 1}, WithFailurePolicy(FailurePolicyApplyPartial))
	assert.ErrorIs(t, err, ErrTaskExecution)
	assert.Equal(t, LoopFailed, res.Status)
	assert.Equal(t, 1, res.Step)
	x, ok := res.Output.Get("x")
	require.True(t, ok)
	assert.Equal(t, 2, x)
	_, ok = res.Output.Get("y")
	assert.False(t, ok)

	res, err = exec.Invoke(context.Background(), map[string]any{"in": 1})
	assert.ErrorIs(t, err, ErrTaskExecution)
	_, ok = res.Output.Get("x")
	assert.False(t, ok, "abort discards the whole step")
}

func TestExecutor_InvalidUpdateFailsOnlyItsWriters(t *testing.T) {
	g := NewBuilder().
		AddChannels(channel.NewLastValue[int]("in"), channel.NewLastValue[int]("x"), channel.NewLastValue[int]("y")).
		AddNode("a", addOne, WithTriggers("in"), WithWrites("x")).
		AddNode("b", addOne, WithTriggers("in"), WithWrites("x")).
		AddNode("c", addOne, WithTriggers("in"), WithWrites("y")).
		SetInputChannels("in").
		SetOutputChannels("x", "y").
		MustCompile()
	exec := newTestExecutor(t, g)

	t.Run("abort", func(t *testing.T) {
		res, err := exec.Invoke(context.Background(), map[string]any{"in": 1})
		require.ErrorIs(t, err, channel.ErrInvalidUpdate)
		var ue *InvalidUpdateError
		require.ErrorAs(t, err, &ue)
		assert.Equal(t, "x", ue.Channel)
		assert.Equal(t, []string{"a", "b"}, ue.Nodes)
		assert.Equal(t, 1, ue.Step)

		assert.Equal(t, LoopFailed, res.Status)
		assert.Equal(t, 0, res.Step)
		assert.Equal(t, map[string]int64{"in": 1}, res.Checkpoint.ChannelVersions)
		assert.Equal(t, map[string]any{"in": 1}, res.Checkpoint.ChannelValues)
	})

	t.Run("apply partial", func(t *testing.T) {
		res, err := exec.Invoke(context.Background(), map[string]any{"in": 1}, WithFailurePolicy(FailurePolicyApplyPartial))
		require.ErrorIs(t, err, channel.ErrInvalidUpdate)
		assert.Equal(t, LoopFailed, res.Status)
		assert.Equal(t, 1, res.Step)
		assert.Equal(t, map[string]int64{"in": 1, "y": 2}, res.Checkpoint.ChannelVersions)
		assert.Equal(t, map[string]any{"in": 1, "y": 2}, res.Checkpoint.ChannelValues)
		_, ok := res.Output.Get("x")
		assert.False(t, ok)
		y, _ := res.Output.Get("y")
		assert.Equal(t, 2, y)
	})
}

func TestRejectInvalidWrites(t *testing.T) {
	channels := map[string]channel.Channel{
		"x": channel.NewLastValue[int]("x"),
		"z": channel.NewLastValue[int]("z"),
	}
	tasks := []*Task{
		{ID: "1", Node: "a", Step: 3, Writes: []Write{{Channel: "x", Value: 1}, {Channel: "z", Value: 1}}},
		{ID: "2", Node: "b", Step: 3, Writes: []Write{{Channel: "x", Value: 2}}},
		{ID: "3", Node: "c", Step: 3, Writes: []Write{{Channel: "z", Value: 3}}},
		{ID: "4", Node: "d", Step: 3, Writes: []Write{{Channel: "ghost", Value: 4}}},
	}

	rejectInvalidWrites(channels, tasks)

	assert.ErrorIs(t, tasks[0].Err, channel.ErrInvalidUpdate)
	assert.ErrorIs(t, tasks[1].Err, channel.ErrInvalidUpdate)
	assert.NoError(t, tasks[2].Err, "z has one writer once a is dropped")
	assert.ErrorIs(t, tasks[3].Err, ErrUnknownChannel)
	_, err := channels["x"].Get()
	assert.ErrorIs(t, err, channel.ErrEmptyChannel, "channels are left untouched")
}

func TestExecutor_ExecutionInfo(t *testing.T) {
	g := NewBuilder().
		AddChannels(channel.NewLastValue[int]("in"), channel.NewLastValue[ExecutionInfo]("info")).
		AddNode("whoami", func(ctx context.Context, _ any) (any, error) {
			info, _ := GetExecutionInfo(ctx)
			return info, nil
		}, WithTriggers("in"), WithWrites("info")).
		SetInputChannels("in").
		MustCompile()
	exec := newTestExecutor(t, g)

	res, err := exec.Invoke(context.Background(), map[string]any{"in": 1}, WithRunID("run-1"))
	require.NoError(t, err)
	v, _ := res.Output.Get("info")
	info := v.(ExecutionInfo)
	assert.Equal(t, "run-1", info.RunID)
	assert.Equal(t, 1, info.Step)
	assert.Equal(t, "whoami", info.Node)
	assert.Equal(t, 1, info.Attempt)
	assert.NotEmpty(t, info.TaskID)

	_, ok := GetExecutionInfo(context.Background())
	assert.False(t, ok)
}

func TestExecutor_StaticEdges(t *testing.T) {
	var order []string
	record := func(name string) NodeFunc {
		return func(context.Context, any) (any, error) {
			order = append(order, name)
			return nil, nil
		}
	}
	g := NewBuilder().
		AddChannel(channel.NewLastValue[int]("in")).
		AddNode("first", record("first"), WithTriggers("in")).
		AddNode("second", record("second")).
		AddNode("third", record("third")).
		AddEdge("first", "second").
		AddEdge("second", "third").
		SetInputChannels("in").
		MustCompile()
	exec := newTestExecutor(t, g, WithMaxConcurrency(1))

	res, err := exec.Invoke(context.Background(), map[string]any{"in": 1})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Step)
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestExecutor_ContextCancelled(t *testing.T) {
	exec := newTestExecutor(t, chainGraph(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := exec.Invoke(ctx, map[string]any{"in": 1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, LoopFailed, res.Status)
}

func TestExecutor_StepTimeout(t *testing.T) {
	g := NewBuilder().
		AddChannels(channel.NewLastValue[int]("in"), channel.NewLastValue[int]("x")).
		AddNode("slow", func(ctx context.Context, _ any) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}, WithTriggers("in"), WithWrites("x")).
		SetInputChannels("in").
		MustCompile()
	exec := newTestExecutor(t, g, WithStepTimeout(10*time.Millisecond))

	_, err := exec.Invoke(context.Background(), map[string]any{"in": 1})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecutor_InvalidRunOptions(t *testing.T) {
	exec := newTestExecutor(t, chainGraph(t))
	ctx := context.Background()

	_, err := exec.Invoke(ctx, nil, WithRecursionLimit(-1))
	assert.ErrorIs(t, err, ErrInvalidRunConfig)
	_, err = exec.Invoke(ctx, nil, WithStreamMode("everything"))
	assert.ErrorIs(t, err, ErrInvalidRunConfig)
	_, err = exec.Invoke(ctx, nil, WithInterruptBefore("ghost"))
	assert.ErrorIs(t, err, ErrUnknownNode)
	_, err = exec.Invoke(ctx, nil, WithCheckpointID("nope"))
	assert.ErrorIs(t, err, ErrCheckpointNotFound)

	_, err = NewExecutor(nil)
	assert.ErrorIs(t, err, ErrInvalidGraph)
	_, err = NewExecutor(chainGraph(t), WithMaxConcurrency(0))
	assert.Error(t, err)
}

func TestExecutor_WithoutSaver(t *testing.T) {
	exec := newTestExecutor(t, chainGraph(t))
	ctx := context.Background()
	_, err := exec.GetState(ctx, "run", "")
	assert.ErrorIs(t, err, ErrCheckpoint)
	_, err = exec.History(ctx, "run", nil)
	assert.ErrorIs(t, err, ErrCheckpoint)
	_, err = exec.UpdateState(ctx, "run", map[string]any{"in": 1})
	assert.ErrorIs(t, err, ErrCheckpoint)
}
