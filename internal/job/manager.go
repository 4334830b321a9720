// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具

package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/ZSC714725/paraprobemanager/internal/archive"
	"github.com/ZSC714725/paraprobemanager/internal/logger"
	"github.com/ZSC714725/paraprobemanager/internal/pipeline"
	"github.com/ZSC714725/paraprobemanager/internal/result"
)

// Job is a workflow with the three host phases
type Job interface {
	Type() string
	WriteInput(ctx context.Context) error
	Run(ctx context.Context) error
	CollectOutput(ctx context.Context) (*result.Store, error)
}

// stageReporter is implemented by jobs built on a pipeline
type stageReporter interface {
	Reports() []pipeline.StageReport
}

// Status of a job
type Status string

const (
	StatusCreated    Status = "created"
	StatusRunning    Status = "running"
	StatusCollecting Status = "collecting"
	StatusFinished   Status = "finished"
	StatusAborted    Status = "aborted"
)

// Task is a managed job
type Task struct {
	ID        string
	Reference string
	Type      string
	Config    *Config
	WorkDir   string
	CreatedAt int64

	job Job

	mu        sync.RWMutex
	status    Status
	err       error
	updatedAt int64
	store     *result.Store
	archive   string
	cancel    context.CancelFunc
	done      chan struct{}
}

// Info is a snapshot of a task
type Info struct {
	ID        string                 `json:"id"`
	Reference string                 `json:"reference"`
	Type      string                 `json:"type"`
	Status    Status                 `json:"status"`
	Error     string                 `json:"error,omitempty"`
	WorkDir   string                 `json:"workdir"`
	Archive   string                 `json:"archive,omitempty"`
	CreatedAt int64                  `json:"created_at"`
	UpdatedAt int64                  `json:"updated_at"`
	Stages    []pipeline.StageReport `json:"stages,omitempty"`
}

// Status returns the current status
func (t *Task) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Err returns the error that aborted the job
func (t *Task) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

// Info returns a snapshot
func (t *Task) Info() Info {
	t.mu.RLock()
	info := Info{
		ID:        t.ID,
		Reference: t.Reference,
		Type:      t.Type,
		Status:    t.status,
		WorkDir:   t.WorkDir,
		Archive:   t.archive,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.updatedAt,
	}
	if t.err != nil {
		info.Error = t.err.Error()
	}
	t.mu.RUnlock()

	if r, ok := t.job.(stageReporter); ok {
		info.Stages = r.Reports()
	}
	return info
}

// Results returns the result store of a collected job
func (t *Task) Results() (*result.Store, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.store == nil {
		return nil, ErrNoResults
	}
	return t.store, nil
}

// Wait blocks until an executing job returns. It returns immediately for a
// job that was never started.
func (t *Task) Wait() {
	t.mu.RLock()
	done := t.done
	t.mu.RUnlock()
	if done != nil {
		<-done
	}
}

// Factory builds the job of one type
type Factory func(cfg *Config, workDir string) (Job, error)

// Manager manages jobs in memory
type Manager interface {
	Add(config *Config) (*Task, error)
	Get(id string) (*Task, error)
	List(ids []string, reference string) []*Task
	Delete(id string) error
	// Execute runs WriteInput, Run and CollectOutput and blocks until done.
	Execute(ctx context.Context, id string) error
	// Start executes in the background.
	Start(id string) error
	Abort(id string) error
}

// ManagerConfig for NewManager
type ManagerConfig struct {
	Root        string
	Compression archive.Level
	Factories   map[string]Factory
	Logger      logger.Logger
}

type manager struct {
	root        string
	compression archive.Level
	factories   map[string]Factory
	logger      logger.Logger
	tasks       map[string]*Task
	mu          sync.RWMutex
}

// NewManager creates a job manager
func NewManager(cfg ManagerConfig) Manager {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	level := cfg.Compression
	if level == "" {
		level = archive.LevelDefault
	}
	return &manager{
		root:        cfg.Root,
		compression: level,
		factories:   cfg.Factories,
		logger:      log,
		tasks:       make(map[string]*Task),
	}
}

func (m *manager) Add(config *Config) (*Task, error) {
	if config == nil {
		return nil, ErrInvalidConfig
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(config.ID) == 0 {
		config.ID = shortuuid.New()
	}
	if !validateID(config.ID) {
		return nil, fmt.Errorf("%w: id %q", ErrInvalidConfig, config.ID)
	}
	if _, exists := m.tasks[config.ID]; exists {
		return nil, ErrJobExists
	}

	factory, ok := m.factories[config.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, config.Type)
	}

	workDir := filepath.Join(m.root, config.ID)
	job, err := factory(config, workDir)
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	task := &Task{
		ID:        config.ID,
		Reference: config.Reference,
		Type:      job.Type(),
		Config:    config,
		WorkDir:   workDir,
		CreatedAt: now,
		job:       job,
		status:    StatusCreated,
		updatedAt: now,
	}
	m.tasks[config.ID] = task
	m.logger.Info("job %s (%s) created in %s", task.ID, task.Type, workDir)

	if config.Autostart {
		if err := m.start(task); err != nil {
			return nil, err
		}
	}
	return task, nil
}

func (m *manager) Get(id string) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

// List returns matching tasks ordered by creation time
func (m *manager) List(ids []string, reference string) []*Task {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Task
	for _, t := range m.tasks {
		if len(reference) > 0 && t.Reference != reference {
			continue
		}
		if len(ids) > 0 {
			found := false
			for _, id := range ids {
				if t.ID == id {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Delete aborts a running job and forgets it. Files in the working
// directory are kept.
func (m *manager) Delete(id string) error {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.tasks, id)
	m.mu.Unlock()

	t.mu.RLock()
	cancel := t.cancel
	t.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	t.Wait()
	m.logger.Info("job %s deleted", id)
	return nil
}

func (m *manager) Execute(ctx context.Context, id string) error {
	t, err := m.Get(id)
	if err != nil {
		return err
	}
	ctx, err = m.claim(ctx, t)
	if err != nil {
		return err
	}
	return m.execute(ctx, t)
}

func (m *manager) Start(id string) error {
	t, err := m.Get(id)
	if err != nil {
		return err
	}
	return m.start(t)
}

func (m *manager) start(t *Task) error {
	ctx, err := m.claim(context.Background(), t)
	if err != nil {
		return err
	}
	go func() {
		if err := m.execute(ctx, t); err != nil {
			m.logger.Error("job %s: %v", t.ID, err)
		}
	}()
	return nil
}

func (m *manager) Abort(id string) error {
	t, err := m.Get(id)
	if err != nil {
		return err
	}
	t.mu.RLock()
	cancel := t.cancel
	status := t.status
	t.mu.RUnlock()

	if cancel == nil || (status != StatusRunning && status != StatusCollecting) {
		return ErrNotRunning
	}
	cancel()
	return nil
}

// claim moves a created task to running. A task executes at most once.
func (m *manager) claim(ctx context.Context, t *Task) (context.Context, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusCreated {
		return nil, fmt.Errorf("%w: %s is %s", ErrAlreadyStarted, t.ID, t.status)
	}
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	m.setStatus(t, StatusRunning)
	return ctx, nil
}

// setStatus must be called with t.mu held
func (m *manager) setStatus(t *Task, to Status) {
	from := t.status
	t.status = to
	t.updatedAt = time.Now().Unix()
	m.logger.Info("job %s state %s -> %s", t.ID, from, to)
}

func (m *manager) execute(ctx context.Context, t *Task) (err error) {
	t.mu.RLock()
	cancel, done := t.cancel, t.done
	t.mu.RUnlock()
	defer close(done)
	defer cancel()

	var store *result.Store
	defer func() {
		err = m.finish(t, store, err)
	}()

	if err = os.MkdirAll(t.WorkDir, 0o755); err != nil {
		return fmt.Errorf("creating working directory: %w", err)
	}
	if err = t.job.WriteInput(ctx); err != nil {
		return fmt.Errorf("write input: %w", err)
	}
	if err = t.job.Run(ctx); err != nil {
		return fmt.Errorf("run: %w", err)
	}

	t.mu.Lock()
	m.setStatus(t, StatusCollecting)
	t.mu.Unlock()

	store, err = t.job.CollectOutput(ctx)
	if err != nil {
		return fmt.Errorf("collect output: %w", err)
	}
	return nil
}

// finish seals and archives whatever was collected, including the raw logs
// of a job whose summary failed to parse.
func (m *manager) finish(t *Task, store *result.Store, err error) error {
	var archivePath string
	if store != nil {
		store.Seal()
		archivePath = filepath.Join(t.WorkDir, archive.FileName)
		if aerr := archive.Save(archivePath, store, m.compression); aerr != nil {
			m.logger.Error("job %s: archiving results: %v", t.ID, aerr)
			archivePath = ""
			if err == nil {
				err = fmt.Errorf("archive: %w", aerr)
			}
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.store = store
	t.archive = archivePath
	if err != nil {
		t.err = err
		if errors.Is(err, context.Canceled) {
			m.logger.Warn("job %s aborted", t.ID)
		} else {
			m.logger.Error("job %s failed: %v", t.ID, err)
		}
		m.setStatus(t, StatusAborted)
		return err
	}
	m.setStatus(t, StatusFinished)
	return nil
}
