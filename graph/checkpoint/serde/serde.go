//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package serde encodes checkpoints for durable savers.
//
// Two encodings share one field layout: JSON (through sonic, with sorted
// keys) and msgpack. Either may be compressed with zstd or gzip. Decode
// detects compression and encoding from the payload, so a codec can read
// anything any codec wrote.
//
// Values come back in a canonical generic form: nil, bool, int64, float64,
// string, []any and map[string]any. Normalize applies the same mapping to an
// in-memory checkpoint, so for a normalized checkpoint c,
// Decode(Encode(c)) equals c under every encoding.
package serde

import (
	"bytes"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/vmihailenco/msgpack/v5"

	"trpc.group/trpc-go/trpc-graph-go/graph"
)

// Format is the payload encoding.
type Format int

// Supported formats.
const (
	FormatJSON Format = iota
	FormatMsgpack
)

// Compression is the payload compression.
type Compression int

// Supported compressions.
const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionGzip
)

// Codec encodes and decodes checkpoints.
type Codec interface {
	Encode(ckpt *graph.Checkpoint) ([]byte, error)
	Decode(data []byte) (*graph.Checkpoint, error)
}

type options struct {
	format      Format
	compression Compression
}

// Option configures a codec.
type Option func(*options)

// WithFormat sets the encoding used by Encode. Defaults to FormatJSON.
func WithFormat(f Format) Option {
	return func(o *options) {
		o.format = f
	}
}

// WithCompression sets the compression used by Encode. Defaults to none.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

type codec struct {
	opts options
}

// New creates a codec.
func New(opts ...Option) Codec {
	c := &codec{}
	for _, opt := range opts {
		opt(&c.opts)
	}
	return c
}

// jsonAPI sorts map keys on encode and keeps numbers exact on decode.
var jsonAPI = sonic.Config{
	EscapeHTML:       true,
	SortMapKeys:      true,
	CompactMarshaler: true,
	CopyString:       true,
	ValidateString:   true,
	UseNumber:        true,
}.Froze()

type wireSend struct {
	Node string `json:"node" msgpack:"node"`
	Arg  any    `json:"arg" msgpack:"arg"`
}

type wireCheckpoint struct {
	Version         int                         `json:"version" msgpack:"version"`
	ID              string                      `json:"id" msgpack:"id"`
	Timestamp       string                      `json:"timestamp" msgpack:"timestamp"`
	ChannelValues   map[string]any              `json:"channel_values" msgpack:"channel_values"`
	ChannelVersions map[string]int64            `json:"channel_versions" msgpack:"channel_versions"`
	VersionsSeen    map[string]map[string]int64 `json:"versions_seen" msgpack:"versions_seen"`
	PendingSends    []wireSend                  `json:"pending_sends" msgpack:"pending_sends"`
}

// Encode implements Codec.
func (c *codec) Encode(ckpt *graph.Checkpoint) ([]byte, error) {
	if ckpt == nil {
		return nil, fmt.Errorf("serde: encode nil checkpoint")
	}
	w, err := toWire(ckpt)
	if err != nil {
		return nil, err
	}
	var data []byte
	switch c.opts.format {
	case FormatJSON:
		data, err = jsonAPI.Marshal(w)
	case FormatMsgpack:
		data, err = marshalMsgpack(w)
	default:
		return nil, fmt.Errorf("serde: unknown format %d", c.opts.format)
	}
	if err != nil {
		return nil, fmt.Errorf("serde: encode checkpoint %s: %w", ckpt.ID, err)
	}
	return compress(c.opts.compression, data)
}

// Decode implements Codec.
func (c *codec) Decode(data []byte) (*graph.Checkpoint, error) {
	raw, err := decompress(data)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("serde: empty payload")
	}
	var w wireCheckpoint
	if raw[0] == '{' {
		err = jsonAPI.Unmarshal(raw, &w)
	} else {
		err = unmarshalMsgpack(raw, &w)
	}
	if err != nil {
		return nil, fmt.Errorf("serde: decode checkpoint: %w", err)
	}
	return fromWire(&w)
}

func marshalMsgpack(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unmarshalMsgpack(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)
	return dec.Decode(v)
}

func toWire(ckpt *graph.Checkpoint) (*wireCheckpoint, error) {
	values, err := normalizeMap(ckpt.ChannelValues)
	if err != nil {
		return nil, fmt.Errorf("serde: checkpoint %s channel values: %w", ckpt.ID, err)
	}
	w := &wireCheckpoint{
		Version:         ckpt.Version,
		ID:              ckpt.ID,
		Timestamp:       ckpt.Timestamp.UTC().Format(time.RFC3339Nano),
		ChannelValues:   values,
		ChannelVersions: ckpt.ChannelVersions,
		VersionsSeen:    ckpt.VersionsSeen,
	}
	for i, s := range ckpt.PendingSends {
		arg, err := NormalizeValue(s.Arg)
		if err != nil {
			return nil, fmt.Errorf("serde: checkpoint %s pending send %d: %w", ckpt.ID, i, err)
		}
		w.PendingSends = append(w.PendingSends, wireSend{Node: s.Node, Arg: arg})
	}
	return w, nil
}

func fromWire(w *wireCheckpoint) (*graph.Checkpoint, error) {
	ts, err := time.Parse(time.RFC3339Nano, w.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("serde: checkpoint %s timestamp: %w", w.ID, err)
	}
	values, err := normalizeMap(w.ChannelValues)
	if err != nil {
		return nil, fmt.Errorf("serde: checkpoint %s channel values: %w", w.ID, err)
	}
	ckpt := &graph.Checkpoint{
		Version:         w.Version,
		ID:              w.ID,
		Timestamp:       ts.UTC(),
		ChannelValues:   values,
		ChannelVersions: w.ChannelVersions,
		VersionsSeen:    w.VersionsSeen,
	}
	for i, s := range w.PendingSends {
		arg, err := NormalizeValue(s.Arg)
		if err != nil {
			return nil, fmt.Errorf("serde: checkpoint %s pending send %d: %w", w.ID, i, err)
		}
		ckpt.PendingSends = append(ckpt.PendingSends, graph.Send{Node: s.Node, Arg: arg})
	}
	canonicalize(ckpt)
	return ckpt, nil
}

// canonicalize replaces nil maps with empty ones and empty slices with nil.
func canonicalize(ckpt *graph.Checkpoint) {
	if ckpt.ChannelValues == nil {
		ckpt.ChannelValues = map[string]any{}
	}
	if ckpt.ChannelVersions == nil {
		ckpt.ChannelVersions = map[string]int64{}
	}
	if ckpt.VersionsSeen == nil {
		ckpt.VersionsSeen = map[string]map[string]int64{}
	}
	for node, seen := range ckpt.VersionsSeen {
		if seen == nil {
			ckpt.VersionsSeen[node] = map[string]int64{}
		}
	}
	if len(ckpt.PendingSends) == 0 {
		ckpt.PendingSends = nil
	}
}

// MarshalJSON encodes v with sorted keys. Savers use it for side records
// such as metadata and pending writes.
func MarshalJSON(v any) ([]byte, error) {
	return jsonAPI.Marshal(v)
}

// UnmarshalJSON decodes data into v, keeping numbers as json.Number inside
// interface values. Run the results through NormalizeValue.
func UnmarshalJSON(data []byte, v any) error {
	return jsonAPI.Unmarshal(data, v)
}
