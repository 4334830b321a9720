// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具

package process

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestRun_CapturesLog(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	logFile := filepath.Join(dir, "execute_transcoder.log")
	tail := NewTail(10)

	var mu sync.Mutex
	var transitions []string
	p, err := New(Config{
		Binary:  "sh",
		Args:    []string{"-c", "pwd; echo 'Total ions: 5,'; echo warn >&2"},
		Dir:     dir,
		LogFile: logFile,
		Parser:  tail,
		Sampler: NewNullSampler(),
		OnStateChange: func(from, to string) {
			mu.Lock()
			transitions = append(transitions, from+"->"+to)
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "finished", report.State)
	assert.Equal(t, 0, report.ExitCode)
	assert.Equal(t, logFile, report.LogFile)

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Total ions: 5,\n")
	assert.Contains(t, string(data), "warn\n")

	// the tool ran in dir without touching our working directory
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	out := string(data)
	assert.True(t, strings.Contains(out, dir) || strings.Contains(out, resolved), out)
	cwd, _ := os.Getwd()
	assert.NotEqual(t, resolved, cwd)

	assert.Len(t, tail.Log(), 3)
	assert.Equal(t, []string{"finished->starting", "starting->running", "running->finished"}, transitions)

	st := p.Status()
	assert.Equal(t, "finished", st.State)
	assert.Equal(t, uint64(1), st.States.Finished)
	assert.False(t, p.IsRunning())
}

func TestRun_ExitCode(t *testing.T) {
	requireShell(t)
	p, err := New(Config{Binary: "sh", Args: []string{"-c", "echo nope; exit 3"}, Sampler: NewNullSampler()})
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.Error(t, err)

	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, report.ExitCode)
	assert.Equal(t, "failed", report.State)

	// a failed process can run again
	_, err = p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, uint64(2), p.Status().States.Failed)
}

func TestRun_Cancel(t *testing.T) {
	requireShell(t)
	p, err := New(Config{
		Binary:    "sh",
		Args:      []string{"-c", "exec sleep 10"},
		KillGrace: 200 * time.Millisecond,
		Sampler:   NewNullSampler(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	report, err := p.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "killed", report.State)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRun_MissingBinary(t *testing.T) {
	p, err := New(Config{Binary: "/nonexistent/paraprobe-ranger", Sampler: NewNullSampler()})
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, "failed", report.State)
}

func TestNew_NoBinary(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrNoBinary)
}

func TestTail(t *testing.T) {
	tail := NewTail(2)
	tail.Parse("a")
	tail.Parse("b")
	tail.Parse("c")

	lines := tail.Log()
	require.Len(t, lines, 2)
	assert.Equal(t, "b", lines[0].Data)
	assert.Equal(t, "c", lines[1].Data)
	assert.Equal(t, "c", tail.LastLine())

	tail.Reset()
	assert.Empty(t, tail.Log())
	assert.Equal(t, "", tail.LastLine())
}

func TestScanLine(t *testing.T) {
	adv, tok, err := scanLine([]byte("\r\nabc\r\ndef"), false)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(tok))
	assert.Equal(t, 6, adv)

	_, tok, _ = scanLine([]byte("def"), true)
	assert.Equal(t, "def", string(tok))
}

func TestSysSampler_PeakIsInterval(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("process table sampling differs on windows")
	}
	s := NewSysSampler()
	require.NoError(t, s.Start(os.Getpid()))
	defer s.Stop()

	// the first reading only fixes the baseline
	s.Sample()
	cpu, memory := s.Current()
	assert.Zero(t, cpu)
	assert.NotZero(t, memory)

	deadline := time.Now().Add(300 * time.Millisecond)
	n := 0
	for time.Now().Before(deadline) {
		n++
	}
	s.Sample()
	cpu, _ = s.Current()
	assert.Greater(t, cpu, 0.0, "busy loop of %d iterations", n)

	peak, peakMemory := s.Peak()
	assert.GreaterOrEqual(t, peak, cpu)
	assert.NotZero(t, peakMemory)
}
