// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具

package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZSC714725/paraprobemanager/internal/archive"
	"github.com/ZSC714725/paraprobemanager/internal/job"
	"github.com/ZSC714725/paraprobemanager/internal/logger"
	"github.com/ZSC714725/paraprobemanager/internal/result"
)

// slowJob keeps working for a while after it was aborted
type slowJob struct {
	started chan struct{}
	release chan struct{}
}

func (j *slowJob) Type() string                         { return "slow" }
func (j *slowJob) WriteInput(ctx context.Context) error { return nil }

func (j *slowJob) Run(ctx context.Context) error {
	close(j.started)
	<-ctx.Done()
	<-j.release
	return nil
}

func (j *slowJob) CollectOutput(ctx context.Context) (*result.Store, error) {
	s := result.NewStore(nil)
	return s, s.CopyRaw("log/execute/ranger", "partial\n")
}

func startSlowJob(t *testing.T) (job.Manager, *job.Task, *slowJob) {
	t.Helper()
	sj := &slowJob{started: make(chan struct{}), release: make(chan struct{})}
	jobs := job.NewManager(job.ManagerConfig{
		Root:        t.TempDir(),
		Compression: archive.LevelFastest,
		Factories: map[string]job.Factory{
			"slow": func(*job.Config, string) (job.Job, error) { return sj, nil },
		},
	})
	task, err := jobs.Add(&job.Config{ID: "slow", Type: "slow", Autostart: true})
	require.NoError(t, err)
	<-sj.started
	return jobs, task, sj
}

func TestDrainJobs_WaitsForArchive(t *testing.T) {
	jobs, task, sj := startSlowJob(t)
	go func() {
		time.Sleep(100 * time.Millisecond)
		close(sj.release)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, drainJobs(ctx, jobs, logger.Nop()))

	assert.Equal(t, job.StatusFinished, task.Status())
	assert.FileExists(t, task.Info().Archive)
}

func TestDrainJobs_Deadline(t *testing.T) {
	jobs, task, sj := startSlowJob(t)
	defer func() {
		close(sj.release)
		task.Wait()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, drainJobs(ctx, jobs, logger.Nop()), context.DeadlineExceeded)
	assert.Equal(t, job.StatusRunning, task.Status())
}
