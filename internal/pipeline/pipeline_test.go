// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具

package pipeline

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZSC714725/paraprobemanager/internal/config"
	"github.com/ZSC714725/paraprobemanager/internal/process"
	"github.com/ZSC714725/paraprobemanager/internal/result"
	"github.com/ZSC714725/paraprobemanager/internal/toolchain"
)

// step echoes its stage and input and leaves <stage>.out behind
const step = `echo "$1 <- $2"; touch "$1.out"`

func newRunner(t *testing.T, edit func(tools *config.ToolsConfig)) *Runner {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	bin := filepath.Join(t.TempDir(), "step")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"+step+"\n"), 0o755))

	tools := config.Default().Tools
	cmd := config.Command{Binary: bin, Args: []string{"{stage}", "{input}"}}
	tools.ConfigureTranscoder = cmd
	tools.ExecuteTranscoder = cmd
	tools.ExecuteRanger = config.Command{}
	if edit != nil {
		edit(&tools)
	}

	tc, err := toolchain.New(toolchain.Config{Tools: tools, Sampler: process.NewNullSampler})
	require.NoError(t, err)
	return NewRunner(tc, t.TempDir(), toolchain.Vars{"jobid": "1"}, nil, 8)
}

func stages() []Stage {
	return []Stage{
		{Name: "configure/first", Tool: toolchain.ConfigureTranscoder, LogFile: "first.log", Output: "first.out"},
		{Name: "execute/second", Tool: toolchain.ExecuteTranscoder, LogFile: "second.log", Output: "second.out"},
	}
}

func TestRunAll_ChainsInput(t *testing.T) {
	r := newRunner(t, nil)

	out, err := r.RunAll(context.Background(), stages(), "/data/R5076.pos")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(r.Dir(), "second.out"), out)

	store := result.NewStore(nil)
	require.NoError(t, r.CollectLogs(store, stages()))
	v, ok := store.Get("log/configure/first")
	require.True(t, ok)
	assert.Equal(t, result.Raw("first <- /data/R5076.pos\n"), v)
	v, ok = store.Get("log/execute/second")
	require.True(t, ok)
	assert.Equal(t, result.Raw("second <- "+filepath.Join(r.Dir(), "first.out")+"\n"), v)

	reports := r.Reports()
	require.Len(t, reports, 2)
	assert.Equal(t, "configure/first", reports[0].Stage)
	assert.Equal(t, 0, reports[1].ExitCode)
	assert.Equal(t, "second <- "+filepath.Join(r.Dir(), "first.out"), reports[1].LastLine)
}

func TestRun_OptionalSkipped(t *testing.T) {
	r := newRunner(t, nil)
	s := Stage{Name: "execute/ranger", Tool: toolchain.ExecuteRanger, LogFile: "execute_ranger.log", Optional: true}

	out, err := r.Run(context.Background(), s, "config.nxs")
	require.NoError(t, err)
	assert.Equal(t, "config.nxs", out)

	data, err := os.ReadFile(r.LogPath(s))
	require.NoError(t, err)
	assert.Empty(t, data)

	reports := r.Reports()
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Skipped)
	assert.Equal(t, "skipped", reports[0].State)
}

func TestRun_RequiredToolMissing(t *testing.T) {
	r := newRunner(t, nil)
	s := Stage{Name: "execute/ranger", Tool: toolchain.ExecuteRanger, LogFile: "execute_ranger.log"}

	_, err := r.Run(context.Background(), s, "config.nxs")
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "execute/ranger", se.Stage)
	assert.ErrorIs(t, err, toolchain.ErrToolDisabled)
}

func TestRun_MissingOutput(t *testing.T) {
	r := newRunner(t, nil)
	s := stages()[0]
	s.Output = "never.out"

	_, err := r.Run(context.Background(), s, "in")
	assert.ErrorIs(t, err, result.ErrMissingInput)
	var missing *result.MissingInputError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, filepath.Join(r.Dir(), "never.out"), missing.Path)
}

func TestRunAll_StopsAtFailure(t *testing.T) {
	r := newRunner(t, func(tools *config.ToolsConfig) {
		tools.ConfigureTranscoder.Args = []string{"-c", "exit 4"}
		tools.ConfigureTranscoder.Binary = "sh"
	})

	_, err := r.RunAll(context.Background(), stages(), "in")
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "configure/first", se.Stage)
	assert.Equal(t, filepath.Join(r.Dir(), "first.log"), se.LogFile)

	reports := r.Reports()
	require.Len(t, reports, 1)
	assert.Equal(t, 4, reports[0].ExitCode)
	assert.NoFileExists(t, filepath.Join(r.Dir(), "second.log"))
}

func TestRunAll_Canceled(t *testing.T) {
	r := newRunner(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.RunAll(ctx, stages(), "in")
	assert.ErrorIs(t, err, context.Canceled)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "configure/first", se.Stage)
	assert.Empty(t, r.Reports())
	assert.NoFileExists(t, filepath.Join(r.Dir(), "first.log"))
}
