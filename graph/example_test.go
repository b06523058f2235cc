//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph_test

import (
	"context"
	"fmt"
	"strings"

	"trpc.group/trpc-go/trpc-graph-go/graph"
	"trpc.group/trpc-go/trpc-graph-go/graph/channel"
	"trpc.group/trpc-go/trpc-graph-go/graph/checkpoint/inmemory"
)

// Example builds a two step pipeline that fans out work with Send and
// collects the results in a topic.
func Example() {
	g := graph.NewBuilder().
		AddChannels(
			channel.NewLastValue[string]("sentence"),
			channel.NewTopic[string]("words", true),
		).
		AddNode("split", func(_ context.Context, in any) (any, error) {
			res := graph.NewResult()
			for _, w := range strings.Fields(in.(string)) {
				res.Send("shout", w)
			}
			return res, nil
		}, graph.WithTriggers("sentence")).
		AddNode("shout", func(_ context.Context, in any) (any, error) {
			return strings.ToUpper(in.(string)), nil
		}, graph.WithWrites("words")).
		SetInputChannels("sentence").
		SetOutputChannels("words").
		MustCompile()

	exec, err := graph.NewExecutor(g, graph.WithCheckpointSaver(inmemory.NewSaver()))
	if err != nil {
		panic(err)
	}
	defer exec.Close()

	res, err := exec.Invoke(context.Background(), map[string]any{"sentence": "hello super step"})
	if err != nil {
		panic(err)
	}
	words, _ := res.Output.Get("words")
	fmt.Println(res.Status, res.Step)
	fmt.Println(words)
	// Output:
	// converged 2
	// [HELLO SUPER STEP]
}

// ExampleExecutor_Stream prints the writes of every step.
func ExampleExecutor_Stream() {
	g := graph.NewBuilder().
		AddChannels(
			channel.NewLastValue[int]("n"),
			channel.NewBinaryOperator[int]("sum", func(acc, v int) int { return acc + v }),
		).
		AddNode("double", func(_ context.Context, in any) (any, error) {
			return in.(int) * 2, nil
		}, graph.WithTriggers("n"), graph.WithWrites("sum")).
		AddNode("triple", func(_ context.Context, in any) (any, error) {
			return in.(int) * 3, nil
		}, graph.WithTriggers("n"), graph.WithWrites("sum")).
		SetInputChannels("n").
		MustCompile()

	exec, err := graph.NewExecutor(g)
	if err != nil {
		panic(err)
	}
	defer exec.Close()

	events, err := exec.Stream(context.Background(), map[string]any{"n": 5},
		graph.WithStreamMode(graph.StreamModeUpdates))
	if err != nil {
		panic(err)
	}
	for ev := range events {
		if ev.Final {
			sum, _ := ev.Data.(interface{ Get(string) (any, bool) }).Get("sum")
			fmt.Println("final:", ev.Status, sum)
			continue
		}
		for _, u := range ev.Data.([]graph.NodeUpdate) {
			fmt.Println(ev.Step, u.Node, u.Writes[0].Channel, u.Writes[0].Value)
		}
	}
	// Output:
	// 1 double sum 10
	// 1 triple sum 15
	// final: converged 25
}
