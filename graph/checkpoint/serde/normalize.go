//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package serde

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"trpc.group/trpc-go/trpc-graph-go/graph"
)

// Normalize returns a copy of ckpt whose values are in the canonical form
// produced by Decode.
func Normalize(ckpt *graph.Checkpoint) (*graph.Checkpoint, error) {
	if ckpt == nil {
		return nil, nil
	}
	w, err := toWire(ckpt)
	if err != nil {
		return nil, err
	}
	w.VersionsSeen = ckpt.Copy().VersionsSeen
	w.ChannelVersions = ckpt.Copy().ChannelVersions
	return fromWire(w)
}

// NormalizeValue maps v to the canonical form: nil, bool, int64, float64,
// string, []any or map[string]any. Integral numbers become int64. Values of
// other types are converted through their JSON representation.
func NormalizeValue(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool, string, int64:
		return x, nil
	case float64:
		return normalizeFloat(x), nil
	case json.Number:
		return normalizeNumber(x)
	case []any:
		return normalizeSlice(x)
	case map[string]any:
		return normalizeMap(x)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return float64(u), nil
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		return normalizeFloat(rv.Float()), nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
	case reflect.Slice:
		if rv.IsNil() {
			return nil, nil
		}
		if rv.Type().Elem().Kind() != reflect.Uint8 {
			out := make([]any, rv.Len())
			for i := range out {
				n, err := NormalizeValue(rv.Index(i).Interface())
				if err != nil {
					return nil, err
				}
				out[i] = n
			}
			return out, nil
		}
	case reflect.Map:
		if rv.IsNil() {
			return nil, nil
		}
	}
	return viaJSON(v)
}

func viaJSON(v any) (any, error) {
	data, err := jsonAPI.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("normalize %T: %w", v, err)
	}
	var out any
	if err := jsonAPI.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("normalize %T: %w", v, err)
	}
	return NormalizeValue(out)
}

func normalizeFloat(f float64) any {
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return int64(f)
	}
	return f
}

func normalizeNumber(n json.Number) (any, error) {
	if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return nil, fmt.Errorf("normalize number %q: %w", n, err)
	}
	return normalizeFloat(f), nil
}

func normalizeSlice(in []any) ([]any, error) {
	if in == nil {
		return nil, nil
	}
	out := make([]any, len(in))
	for i, v := range in {
		n, err := NormalizeValue(v)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func normalizeMap(in map[string]any) (map[string]any, error) {
	if in == nil {
		return nil, nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		n, err := NormalizeValue(v)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = n
	}
	return out, nil
}
