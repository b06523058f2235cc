//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package graph runs graphs of nodes in supersteps.
//
// Nodes communicate only through typed channels (see package channel). In
// every step the loop selects the nodes whose trigger channels changed since
// they last ran, runs them in parallel against a frozen view of the
// channels, and applies all of their writes at the step boundary. After
// each step the channel state is captured in a Checkpoint, which a
// CheckpointSaver can persist so that runs survive restarts, pause on
// interrupts and resume later.
//
// A minimal graph:
//
//	g, err := graph.NewBuilder().
//		AddChannels(channel.NewLastValue[int]("in"), channel.NewLastValue[int]("out")).
//		AddNode("double", func(ctx context.Context, in any) (any, error) {
//			return in.(int) * 2, nil
//		}, graph.WithTriggers("in"), graph.WithWrites("out")).
//		SetInputChannels("in").
//		Compile()
//	exec, err := graph.NewExecutor(g)
//	res, err := exec.Invoke(ctx, map[string]any{"in": 21})
package graph
