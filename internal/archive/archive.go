// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具
//
// Package archive persists result stores as zstd compressed JSON documents.

package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/klauspost/compress/zstd"

	"github.com/ZSC714725/paraprobemanager/internal/result"
)

// FileName is the archive written into every job working directory
const FileName = "results.json.zst"

const formatVersion = 1

// Level is a compression level name
type Level string

const (
	LevelFastest Level = "fastest"
	LevelDefault Level = "default"
	LevelBetter  Level = "better"
	LevelBest    Level = "best"
)

var ErrUnknownLevel = errors.New("unknown compression level")

// EncoderLevel maps a level name to the zstd encoder level. An empty name is
// the default level.
func (l Level) EncoderLevel() (zstd.EncoderLevel, error) {
	switch l {
	case LevelFastest:
		return zstd.SpeedFastest, nil
	case LevelDefault, "":
		return zstd.SpeedDefault, nil
	case LevelBetter:
		return zstd.SpeedBetterCompression, nil
	case LevelBest:
		return zstd.SpeedBestCompression, nil
	default:
		return 0, fmt.Errorf("%w %q (must be fastest, default, better or best)", ErrUnknownLevel, string(l))
	}
}

type document struct {
	Version int     `json:"version"`
	Entries []entry `json:"entries"`
}

// Values are stored as strings so that NaN and Inf survive JSON.
type entry struct {
	Path  string      `json:"path"`
	Kind  result.Kind `json:"kind"`
	Value string      `json:"value"`
}

// Encode writes the store to w
func Encode(w io.Writer, store *result.Store, level Level) error {
	lvl, err := level.EncoderLevel()
	if err != nil {
		return err
	}

	doc := document{Version: formatVersion}
	for _, e := range store.Entries("") {
		doc.Entries = append(doc.Entries, toEntry(e))
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(lvl))
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(&doc); err != nil {
		enc.Close()
		return fmt.Errorf("encoding results: %w", err)
	}
	return enc.Close()
}

// Decode reads a store written by Encode. The returned store is not sealed.
func Decode(r io.Reader) (*result.Store, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	var doc document
	if err := json.NewDecoder(dec).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding results: %w", err)
	}
	if doc.Version != formatVersion {
		return nil, fmt.Errorf("unsupported archive version %d", doc.Version)
	}

	store := result.NewStore(nil)
	for _, e := range doc.Entries {
		v, err := fromEntry(e)
		if err != nil {
			return nil, err
		}
		if err := store.Set(e.Path, v); err != nil {
			return nil, fmt.Errorf("%s: %w", e.Path, err)
		}
	}
	return store, nil
}

// Save writes the store to path, replacing any previous archive atomically.
func Save(path string, store *result.Store, level Level) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".results-*")
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, store, level); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing archive: %w", err)
	}
	return nil
}

// Load reads the archive at path
func Load(path string) (*result.Store, error) {
	f, err := os.Open(path) // #nosec G304 -- archive paths are built by the job
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &result.MissingInputError{Path: path, Err: err}
		}
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

func toEntry(e result.Entry) entry {
	out := entry{Path: e.Path, Kind: e.Value.Kind}
	switch e.Value.Kind {
	case result.KindInt:
		out.Value = strconv.FormatInt(e.Value.Int, 10)
	case result.KindFloat:
		out.Value = strconv.FormatFloat(e.Value.Float, 'g', -1, 64)
	default:
		out.Value = e.Value.Text
	}
	return out
}

func fromEntry(e entry) (result.Value, error) {
	switch e.Kind {
	case result.KindRaw:
		return result.Raw(e.Value), nil
	case result.KindString:
		return result.String(e.Value), nil
	case result.KindInt:
		i, err := strconv.ParseInt(e.Value, 10, 64)
		if err != nil {
			return result.Value{}, fmt.Errorf("%s: %w", e.Path, err)
		}
		return result.Int(i), nil
	case result.KindFloat:
		f, err := strconv.ParseFloat(e.Value, 64)
		if err != nil {
			return result.Value{}, fmt.Errorf("%s: %w", e.Path, err)
		}
		return result.Float(f), nil
	default:
		return result.Value{}, fmt.Errorf("%s: unknown value kind %q", e.Path, e.Kind)
	}
}
