// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具
//
// Package pipeline runs tool stages one after another inside a job working
// directory. Every stage receives the artifact of the previous stage as
// {input} and returns its own artifact.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ZSC714725/paraprobemanager/internal/logger"
	"github.com/ZSC714725/paraprobemanager/internal/process"
	"github.com/ZSC714725/paraprobemanager/internal/result"
	"github.com/ZSC714725/paraprobemanager/internal/toolchain"
)

// Stage is one tool invocation
type Stage struct {
	// Name is the result path below "log/", e.g. "configure/transcoder".
	Name string
	Tool string
	// LogFile is relative to the working directory.
	LogFile string
	Vars    toolchain.Vars
	// Output is the artifact the tool must leave in the working directory.
	// Empty passes the stage input through.
	Output string
	// Optional stages are skipped with an empty log when the tool is not
	// configured.
	Optional bool
}

// StageError wraps the failure of one stage
type StageError struct {
	Stage   string
	LogFile string
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageReport records how a stage ran
type StageReport struct {
	Stage      string        `json:"stage"`
	State      string        `json:"state"`
	Skipped    bool          `json:"skipped,omitempty"`
	ExitCode   int           `json:"exit_code"`
	Duration   time.Duration `json:"duration_ns"`
	PeakMemory uint64        `json:"peak_memory_bytes"`
	PeakCPU    float64       `json:"peak_cpu_usage"`
	LastLine   string        `json:"last_logline,omitempty"`
}

// Runner executes stages in a working directory
type Runner struct {
	tools    toolchain.Toolchain
	dir      string
	vars     toolchain.Vars
	logger   logger.Logger
	logLines int

	mu      sync.Mutex
	reports []StageReport
}

// NewRunner creates a runner. vars are available to every stage in addition
// to {workdir}, {input} and {stage}.
func NewRunner(tools toolchain.Toolchain, dir string, vars toolchain.Vars, log logger.Logger, logLines int) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	cp := toolchain.Vars{}
	for k, v := range vars {
		cp[k] = v
	}
	return &Runner{
		tools:    tools,
		dir:      dir,
		vars:     cp,
		logger:   log,
		logLines: logLines,
	}
}

// Dir returns the working directory
func (r *Runner) Dir() string {
	return r.dir
}

// Tools returns the toolchain stages run with
func (r *Runner) Tools() toolchain.Toolchain {
	return r.tools
}

// SetVar sets a placeholder value for all following stages
func (r *Runner) SetVar(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.vars == nil {
		r.vars = toolchain.Vars{}
	}
	r.vars[key] = value
}

// LogPath returns the absolute path of a stage log
func (r *Runner) LogPath(s Stage) string {
	return filepath.Join(r.dir, s.LogFile)
}

// Run executes one stage and returns its artifact path.
func (r *Runner) Run(ctx context.Context, s Stage, input string) (string, error) {
	logPath := r.LogPath(s)

	if s.Optional && !r.tools.Enabled(s.Tool) {
		r.logger.Info("stage %s: %s not configured, skipping", s.Name, s.Tool)
		if err := os.WriteFile(logPath, nil, 0o644); err != nil {
			return "", &StageError{Stage: s.Name, LogFile: logPath, Err: err}
		}
		r.record(StageReport{Stage: s.Name, State: "skipped", Skipped: true})
		return input, nil
	}

	vars := toolchain.Vars{}
	r.mu.Lock()
	for k, v := range r.vars {
		vars[k] = v
	}
	r.mu.Unlock()
	for k, v := range s.Vars {
		vars[k] = v
	}
	vars["workdir"] = r.dir
	vars["input"] = input
	vars["stage"] = filepath.Base(s.Name)

	tail := process.NewTail(r.logLines)
	proc, err := r.tools.New(s.Tool, toolchain.ProcessConfig{
		Vars:    vars,
		Dir:     r.dir,
		LogFile: logPath,
		Parser:  tail,
		Logger:  r.logger,
		OnStateChange: func(from, to string) {
			r.logger.Debug("stage %s: %s -> %s", s.Name, from, to)
		},
	})
	if err != nil {
		return "", &StageError{Stage: s.Name, LogFile: logPath, Err: err}
	}

	r.logger.Info("stage %s: running %s", s.Name, s.Tool)
	rep, err := proc.Run(ctx)
	r.record(StageReport{
		Stage:      s.Name,
		State:      rep.State,
		ExitCode:   rep.ExitCode,
		Duration:   rep.Duration,
		PeakMemory: rep.PeakMemory,
		PeakCPU:    rep.PeakCPU,
		LastLine:   tail.LastLine(),
	})
	if err != nil {
		r.logger.Error("stage %s failed: %v (see %s)", s.Name, err, logPath)
		return "", &StageError{Stage: s.Name, LogFile: logPath, Err: err}
	}

	if s.Output == "" {
		return input, nil
	}
	out := filepath.Join(r.dir, s.Output)
	if _, err := os.Stat(out); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = &result.MissingInputError{Path: out, Err: err}
		}
		return "", &StageError{Stage: s.Name, LogFile: logPath, Err: err}
	}
	return out, nil
}

// RunAll executes stages in order, feeding each output into the next stage.
// The first failure stops the pipeline.
func (r *Runner) RunAll(ctx context.Context, stages []Stage, input string) (string, error) {
	artifact := input
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return "", &StageError{Stage: s.Name, LogFile: r.LogPath(s), Err: err}
		}
		out, err := r.Run(ctx, s, artifact)
		if err != nil {
			return "", err
		}
		artifact = out
	}
	return artifact, nil
}

// CollectLogs copies the raw logs of stages into the store under
// log/<stage name>. Missing logs are reported as MissingInputError.
func (r *Runner) CollectLogs(store *result.Store, stages []Stage) error {
	for _, s := range stages {
		text, err := result.ReadLog(r.LogPath(s))
		if err != nil {
			return err
		}
		if err := store.CopyRaw(result.Path("log", s.Name), text); err != nil {
			return err
		}
	}
	return nil
}

// Reports returns the reports of all stages run so far
func (r *Runner) Reports() []StageReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]StageReport, len(r.reports))
	copy(out, r.reports)
	return out
}

func (r *Runner) record(rep StageReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, rep)
}
