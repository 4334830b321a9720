// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具

package archive

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZSC714725/paraprobemanager/internal/result"
)

func sampleStore(t *testing.T) *result.Store {
	t.Helper()
	s := result.NewStore(nil)
	require.NoError(t, s.CopyRaw("log/configure/transcoder", "configured\n\n  indented\n"))
	require.NoError(t, s.CopyRaw("log/execute/ranger", ""))
	rec := result.NewSummaryRecord(12345, []result.Metric{{Key: "Fe", Value: 11.2}, {Key: "Ni", Value: math.Inf(1)}})
	require.NoError(t, result.FlattenIntoStore(rec, s, "ranger"))
	require.NoError(t, s.Set("summary/ranger/composition_mean", result.Float(math.NaN())))
	return s
}

func TestSaveLoad(t *testing.T) {
	s := sampleStore(t)
	s.Seal()

	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, s, LevelBest))

	back, err := Load(path)
	require.NoError(t, err)
	assert.False(t, back.Sealed())
	assert.Equal(t, s.Keys(), back.Keys())
	for _, e := range s.Entries("") {
		v, ok := back.Get(e.Path)
		require.True(t, ok, e.Path)
		assert.True(t, e.Value.Equal(v), "%s: %v != %v", e.Path, e.Value, v)
	}
}

func TestEncodeLevels(t *testing.T) {
	s := sampleStore(t)
	for _, lvl := range []Level{"", LevelFastest, LevelDefault, LevelBetter, LevelBest} {
		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, s, lvl), "level %q", lvl)

		back, err := Decode(&buf)
		require.NoError(t, err)
		assert.Equal(t, s.Len(), back.Len())
	}

	err := Encode(&bytes.Buffer{}, s, "ultra")
	assert.ErrorIs(t, err, ErrUnknownLevel)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json.zst"))
	assert.ErrorIs(t, err, result.ErrMissingInput)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("not zstd")))
	assert.Error(t, err)
}
