// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具
//
// Package composition runs compositionspace analyses on a reconstruction.
// The data preparation stage (slices, voxels, voxel composition) always
// runs, the analyses only when requested.

package composition

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ZSC714725/paraprobemanager/internal/logger"
	"github.com/ZSC714725/paraprobemanager/internal/pipeline"
	"github.com/ZSC714725/paraprobemanager/internal/result"
	"github.com/ZSC714725/paraprobemanager/internal/toolchain"
)

// Type is the job type name
const Type = "compositionspace"

// InputFile is written into the working directory and passed as {input}
const InputFile = "compositionspace.yaml"

const prepareStage = "prepare"

// Options for NewJob
type Options struct {
	Config   Config
	Analyses []Analysis
	WorkDir  string
	Tools    toolchain.Toolchain
	Logger   logger.Logger
	LogLines int
}

// Job is one compositionspace run
type Job struct {
	config   Config
	enabled  map[Analysis]bool
	runner   *pipeline.Runner
	logger   logger.Logger
	ran      []string
	done     map[Analysis]bool
	stateMux sync.Mutex
}

// NewJob validates the config and creates a job
func NewJob(opts Options) (*Job, error) {
	if opts.Tools == nil {
		return nil, fmt.Errorf("%w: no toolchain", ErrInvalidConfig)
	}
	if opts.WorkDir == "" {
		return nil, fmt.Errorf("%w: no working directory", ErrInvalidConfig)
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	dir, err := filepath.Abs(opts.WorkDir)
	if err != nil {
		return nil, err
	}

	enabled := map[Analysis]bool{}
	for _, a := range opts.Analyses {
		parsed, err := ParseAnalysis(string(a))
		if err != nil {
			return nil, err
		}
		enabled[parsed] = true
	}

	log := logger.Named(opts.Logger, Type)
	cfg := opts.Config
	cfg.OutputPath = dir
	return &Job{
		config:  cfg,
		enabled: enabled,
		runner:  pipeline.NewRunner(opts.Tools, dir, nil, log, opts.LogLines),
		logger:  log,
		done:    map[Analysis]bool{},
	}, nil
}

func (j *Job) Type() string { return Type }

// Config returns the effective input
func (j *Job) Config() Config { return j.config }

// Reports returns the stage reports so far
func (j *Job) Reports() []pipeline.StageReport { return j.runner.Reports() }

// Enable requests an analysis
func (j *Job) Enable(a Analysis) {
	j.stateMux.Lock()
	defer j.stateMux.Unlock()
	j.enabled[a] = true
}

// InputPath returns the path of the written input file
func (j *Job) InputPath() string {
	return filepath.Join(j.runner.Dir(), InputFile)
}

// WriteInput checks the input path and writes the compositionspace input file
func (j *Job) WriteInput(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if j.config.InputPath == "" {
		return &result.MissingInputError{Path: "input_path", Err: ErrInputPathNotSet}
	}
	if _, err := os.Stat(j.config.InputPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &result.MissingInputError{Path: j.config.InputPath, Err: err}
		}
		return err
	}
	if err := j.runner.Tools().ValidateInput(toolchain.Reconstruction, j.config.InputPath); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := os.MkdirAll(j.runner.Dir(), 0o755); err != nil {
		return fmt.Errorf("creating working directory: %w", err)
	}
	data, err := yaml.Marshal(j.config)
	if err != nil {
		return err
	}
	return os.WriteFile(j.InputPath(), data, 0o644)
}

// stages returns the prepare stage followed by the requested analyses.
// DBSCAN clustering works on the composition clusters, so it pulls in
// composition clustering when that was not requested.
func (j *Job) stages() []pipeline.Stage {
	j.stateMux.Lock()
	defer j.stateMux.Unlock()

	names := []string{prepareStage}
	for _, a := range AllAnalyses() {
		switch {
		case j.enabled[a]:
			names = append(names, string(a))
		case a == CompositionClustering && j.enabled[DBScanClustering]:
			names = append(names, string(a))
		}
	}

	stages := make([]pipeline.Stage, len(names))
	for i, name := range names {
		stages[i] = pipeline.Stage{
			Name:    name,
			Tool:    toolchain.Composition,
			LogFile: name + ".log",
		}
	}
	return stages
}

// Run executes the stages in order. Every stage is one compositionspace
// invocation with its own log.
func (j *Job) Run(ctx context.Context) error {
	for _, s := range j.stages() {
		if _, err := j.runner.Run(ctx, s, j.InputPath()); err != nil {
			return err
		}
		j.stateMux.Lock()
		j.ran = append(j.ran, s.Name)
		if a := Analysis(s.Name); j.enabled[a] {
			j.done[a] = true
		}
		j.stateMux.Unlock()
	}
	return nil
}

// Done reports whether a requested analysis finished
func (j *Job) Done(a Analysis) bool {
	j.stateMux.Lock()
	defer j.stateMux.Unlock()
	return j.done[a]
}

// CollectOutput stores the stage logs and completion flags
func (j *Job) CollectOutput(ctx context.Context) (*result.Store, error) {
	store := result.NewStore(j.logger)
	if err := ctx.Err(); err != nil {
		return store, err
	}

	j.stateMux.Lock()
	ran := append([]string(nil), j.ran...)
	var done []Analysis
	for _, a := range AllAnalyses() {
		if j.done[a] {
			done = append(done, a)
		}
	}
	j.stateMux.Unlock()

	stages := make([]pipeline.Stage, len(ran))
	for i, name := range ran {
		stages[i] = pipeline.Stage{Name: name, LogFile: name + ".log"}
	}
	if err := j.runner.CollectLogs(store, stages); err != nil {
		return store, err
	}
	for _, a := range done {
		if err := store.Set(result.Path(Type, string(a)), result.String("done")); err != nil {
			return store, err
		}
	}
	if err := store.Set(result.Path("files", "input"), result.String(j.config.InputPath)); err != nil {
		return store, err
	}
	if err := store.Set(result.Path("files", "config"), result.String(j.InputPath())); err != nil {
		return store, err
	}
	return store, store.Set(result.Path(Type, "model"), result.String(j.config.MLModels.Name))
}
