//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package file provides a CheckpointSaver that stores runs on the local
// file system.
//
// Every run gets a directory under the base directory:
//
//	<base>/<run id>/index.json              checkpoint metadata, newest last
//	<base>/<run id>/checkpoints/<id>.ckpt   checkpoints encoded with serde
//	<base>/<run id>/writes/<id>.json        pending writes of a checkpoint
//
// Every file is written to a temporary file first and renamed into place,
// so readers never observe a partial write.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"trpc.group/trpc-go/trpc-graph-go/graph"
	"trpc.group/trpc-go/trpc-graph-go/graph/checkpoint/serde"
)

const (
	indexFile      = "index.json"
	checkpointsDir = "checkpoints"
	writesDir      = "writes"
	checkpointExt  = ".ckpt"
	writesExt      = ".json"
)

// Saver stores checkpoints in a directory tree.
type Saver struct {
	mu       sync.RWMutex
	baseDir  string
	codec    serde.Codec
	dirMode  fs.FileMode
	fileMode fs.FileMode
}

var _ graph.CheckpointSaver = (*Saver)(nil)

// Option configures a Saver.
type Option func(*Saver)

// WithCodec sets the checkpoint codec. Defaults to zstd-compressed JSON.
func WithCodec(codec serde.Codec) Option {
	return func(s *Saver) {
		s.codec = codec
	}
}

// WithFileMode sets the permission bits of created files.
func WithFileMode(mode fs.FileMode) Option {
	return func(s *Saver) {
		s.fileMode = mode
	}
}

// NewSaver creates a saver rooted at baseDir, creating it when missing.
func NewSaver(baseDir string, opts ...Option) (*Saver, error) {
	s := &Saver{
		baseDir:  baseDir,
		codec:    serde.New(serde.WithCompression(serde.CompressionZstd)),
		dirMode:  0o755,
		fileMode: 0o644,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(baseDir, s.dirMode); err != nil {
		return nil, fmt.Errorf("create checkpoint dir %s: %w", baseDir, err)
	}
	return s, nil
}

// Get retrieves the latest checkpoint of a run.
func (s *Saver) Get(ctx context.Context, runID string) (*graph.Checkpoint, error) {
	tuple, err := s.GetTuple(ctx, runID, "")
	if err != nil || tuple == nil {
		return nil, err
	}
	return tuple.Checkpoint, nil
}

// GetTuple retrieves a checkpoint with its metadata and pending writes. An
// empty checkpointID selects the latest.
func (s *Saver) GetTuple(ctx context.Context, runID, checkpointID string) (*graph.CheckpointTuple, error) {
	if err := validName("run id", runID); err != nil {
		return nil, err
	}
	if checkpointID != "" {
		if err := validName("checkpoint id", checkpointID); err != nil {
			return nil, err
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	index, err := s.readIndex(runID)
	if err != nil {
		return nil, err
	}
	meta, ok := findMetadata(index, checkpointID)
	if !ok {
		return nil, nil
	}

	data, err := os.ReadFile(s.checkpointPath(runID, meta.CheckpointID))
	if err != nil {
		return nil, fmt.Errorf("read checkpoint %s: %w", meta.CheckpointID, err)
	}
	ckpt, err := s.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", meta.CheckpointID, err)
	}
	writes, err := s.readWrites(runID, meta.CheckpointID)
	if err != nil {
		return nil, err
	}
	return &graph.CheckpointTuple{Checkpoint: ckpt, Metadata: meta, PendingWrites: writes}, nil
}

// Put encodes and stores the checkpoint, then records its metadata.
func (s *Saver) Put(ctx context.Context, runID string, ckpt *graph.Checkpoint, metadata graph.CheckpointMetadata) error {
	if err := validName("run id", runID); err != nil {
		return err
	}
	if ckpt == nil {
		return fmt.Errorf("checkpoint cannot be nil")
	}
	if err := validName("checkpoint id", ckpt.ID); err != nil {
		return err
	}
	data, err := s.codec.Encode(ckpt)
	if err != nil {
		return err
	}
	metadata.CheckpointID = ckpt.ID
	if metadata.Extra, err = normalizeExtra(metadata.Extra); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeFile(s.checkpointPath(runID, ckpt.ID), data); err != nil {
		return err
	}
	index, err := s.readIndex(runID)
	if err != nil {
		return err
	}
	replaced := false
	for i := range index {
		if index[i].CheckpointID == ckpt.ID {
			index[i] = metadata
			replaced = true
		}
	}
	if !replaced {
		index = append(index, metadata)
	}
	return s.writeJSON(filepath.Join(s.runDir(runID), indexFile), index)
}

// PutWrites stores pending writes of a checkpoint. Writes of a task already
// stored are replaced.
func (s *Saver) PutWrites(ctx context.Context, runID, checkpointID string, writes []graph.PendingWrite) error {
	if err := validName("run id", runID); err != nil {
		return err
	}
	if err := validName("checkpoint id", checkpointID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.readWrites(runID, checkpointID)
	if err != nil {
		return err
	}
	for _, w := range writes {
		replaced := false
		for i := range existing {
			if existing[i].TaskID == w.TaskID {
				existing[i] = w
				replaced = true
			}
		}
		if !replaced {
			existing = append(existing, w)
		}
	}
	return s.writeJSON(s.writesPath(runID, checkpointID), existing)
}

// List returns the metadata of the run's checkpoints, newest first.
func (s *Saver) List(ctx context.Context, runID string, filter *graph.CheckpointFilter) ([]graph.CheckpointMetadata, error) {
	if err := validName("run id", runID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	index, err := s.readIndex(runID)
	if err != nil {
		return nil, err
	}
	return graph.FilterCheckpoints(index, filter), nil
}

// Delete removes the run directory.
func (s *Saver) Delete(ctx context.Context, runID string) error {
	if err := validName("run id", runID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.runDir(runID)); err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	return nil
}

func (s *Saver) runDir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

func (s *Saver) checkpointPath(runID, checkpointID string) string {
	return filepath.Join(s.runDir(runID), checkpointsDir, checkpointID+checkpointExt)
}

func (s *Saver) writesPath(runID, checkpointID string) string {
	return filepath.Join(s.runDir(runID), writesDir, checkpointID+writesExt)
}

func (s *Saver) readIndex(runID string) ([]graph.CheckpointMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.runDir(runID), indexFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read index of run %s: %w", runID, err)
	}
	var index []graph.CheckpointMetadata
	if err := serde.UnmarshalJSON(data, &index); err != nil {
		return nil, fmt.Errorf("decode index of run %s: %w", runID, err)
	}
	for i := range index {
		if index[i].Extra, err = normalizeExtra(index[i].Extra); err != nil {
			return nil, err
		}
	}
	return index, nil
}

func (s *Saver) readWrites(runID, checkpointID string) ([]graph.PendingWrite, error) {
	data, err := os.ReadFile(s.writesPath(runID, checkpointID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read pending writes of %s: %w", checkpointID, err)
	}
	var writes []graph.PendingWrite
	if err := serde.UnmarshalJSON(data, &writes); err != nil {
		return nil, fmt.Errorf("decode pending writes of %s: %w", checkpointID, err)
	}
	for i := range writes {
		for j := range writes[i].Writes {
			if writes[i].Writes[j].Value, err = serde.NormalizeValue(writes[i].Writes[j].Value); err != nil {
				return nil, err
			}
		}
		for j := range writes[i].Sends {
			if writes[i].Sends[j].Arg, err = serde.NormalizeValue(writes[i].Sends[j].Arg); err != nil {
				return nil, err
			}
		}
	}
	return writes, nil
}

func (s *Saver) writeJSON(path string, v any) error {
	data, err := serde.MarshalJSON(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return s.writeFile(path, data)
}

// writeFile writes data to a temporary file next to path and renames it
// into place.
func (s *Saver) writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, s.dirMode); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanupTmp := true
	defer func() {
		if cleanupTmp {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err := tmp.Chmod(s.fileMode); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("atomic rename: %w", err)
	}
	cleanupTmp = false
	return nil
}

func findMetadata(index []graph.CheckpointMetadata, checkpointID string) (graph.CheckpointMetadata, bool) {
	var best graph.CheckpointMetadata
	found := false
	for _, meta := range index {
		if checkpointID != "" {
			if meta.CheckpointID == checkpointID {
				return meta, true
			}
			continue
		}
		if !found || meta.CheckpointID > best.CheckpointID {
			best = meta
			found = true
		}
	}
	return best, found
}

func normalizeExtra(extra map[string]any) (map[string]any, error) {
	if len(extra) == 0 {
		return nil, nil
	}
	v, err := serde.NormalizeValue(extra)
	if err != nil {
		return nil, fmt.Errorf("checkpoint metadata extra: %w", err)
	}
	return v.(map[string]any), nil
}

// validName rejects ids that would escape the base directory.
func validName(kind, name string) error {
	if name == "" {
		if kind == "run id" {
			return graph.ErrRunIDRequired
		}
		return fmt.Errorf("%s is required", kind)
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("invalid %s %q", kind, name)
	}
	return nil
}
