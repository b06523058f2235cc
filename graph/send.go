//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

// Send asks the loop to run Node with Arg in the next step, independently of
// the node's triggers.
type Send struct {
	Node string `json:"node" msgpack:"node"`
	Arg  any    `json:"arg" msgpack:"arg"`
}

// NewSend creates a Send.
func NewSend(node string, arg any) Send {
	return Send{Node: node, Arg: arg}
}

// Write is one value destined for one channel.
type Write struct {
	Channel string `json:"channel" msgpack:"channel"`
	Value   any    `json:"value" msgpack:"value"`
}

// Result is the structured return value of a node. Returning anything else
// writes that value to the node's single declared write channel.
type Result struct {
	Writes []Write
	Sends  []Send
}

// NewResult creates an empty Result.
func NewResult() *Result {
	return &Result{}
}

// Write appends a channel write.
func (r *Result) Write(channel string, value any) *Result {
	r.Writes = append(r.Writes, Write{Channel: channel, Value: value})
	return r
}

// Send appends a dynamic dispatch request.
func (r *Result) Send(node string, arg any) *Result {
	r.Sends = append(r.Sends, NewSend(node, arg))
	return r
}

// HasSends reports whether the result carries dispatch requests.
func (r *Result) HasSends() bool {
	return r != nil && len(r.Sends) > 0
}
