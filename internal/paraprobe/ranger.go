// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具
//
// Package paraprobe runs the paraprobe ranger workflow: the reconstruction
// and ranging files are transcoded, ranged and summarized by the
// auto-reporter, whose summary log becomes the job result.

package paraprobe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ZSC714725/paraprobemanager/internal/config"
	"github.com/ZSC714725/paraprobemanager/internal/logger"
	"github.com/ZSC714725/paraprobemanager/internal/pipeline"
	"github.com/ZSC714725/paraprobemanager/internal/result"
	"github.com/ZSC714725/paraprobemanager/internal/toolchain"
)

// Type is the job type name of the ranger workflow
const Type = "paraprobe-ranger"

// Namespace holds the parsed summary in the result store
const Namespace = "ranger"

// File names inside the working directory
const (
	ReportLog = "result_ranger.log"
	ChartFile = "composition.png"
)

// ArtifactName returns the paraprobe file name of a tool artifact, e.g.
// PARAPROBE.Transcoder.Config.SimID.636502001.nxs
func ArtifactName(tool, kind string, jobID int64, ext string) string {
	return fmt.Sprintf("PARAPROBE.%s.%s.SimID.%d.%s", tool, kind, jobID, ext)
}

// Input of a ranger job
type Input struct {
	Reconstruction string `json:"reconstruction" yaml:"reconstruction"`
	Ranging        string `json:"ranging" yaml:"ranging"`
	JobID          int64  `json:"jobid,omitempty" yaml:"jobid,omitempty"`
	Cores          int    `json:"cores,omitempty" yaml:"cores,omitempty"`
	Plot           bool   `json:"plot,omitempty" yaml:"plot,omitempty"`
}

// Options for NewRanger
type Options struct {
	Input   Input
	WorkDir string
	Tools   toolchain.Toolchain
	// Defaults fill JobID and Cores when the input leaves them zero.
	Defaults config.RangerConfig
	Logger   logger.Logger
	LogLines int
}

// Ranger is one ranger job
type Ranger struct {
	input     Input
	tolerance float64
	runner    *pipeline.Runner
	parser    *result.Parser
	logger    logger.Logger

	reconstruction string
	ranging        string
}

// NewRanger validates the options and creates a job. The input files are
// only checked in WriteInput.
func NewRanger(opts Options) (*Ranger, error) {
	if opts.Tools == nil {
		return nil, fmt.Errorf("%w: no toolchain", ErrInvalidInput)
	}
	if opts.WorkDir == "" {
		return nil, fmt.Errorf("%w: no working directory", ErrInvalidInput)
	}
	in := opts.Input
	if in.JobID == 0 {
		in.JobID = opts.Defaults.JobID
	}
	if in.JobID == 0 {
		in.JobID = config.DefaultJobID
	}
	if in.Cores == 0 {
		in.Cores = opts.Defaults.Cores
	}
	if in.Cores == 0 {
		in.Cores = config.DefaultCores
	}
	if in.JobID < 0 || in.Cores < 0 {
		return nil, fmt.Errorf("%w: jobid and cores must be positive", ErrInvalidInput)
	}
	if opts.Defaults.Plot {
		in.Plot = true
	}

	log := logger.Named(opts.Logger, Type)
	dir, err := filepath.Abs(opts.WorkDir)
	if err != nil {
		return nil, err
	}

	r := &Ranger{
		input:     in,
		tolerance: opts.Defaults.CompositionTolerance,
		parser:    result.NewParser(log),
		logger:    log,
	}
	if r.tolerance == 0 {
		r.tolerance = config.DefaultCompositionTolerance
	}
	r.runner = pipeline.NewRunner(opts.Tools, dir, toolchain.Vars{
		"jobid": strconv.FormatInt(in.JobID, 10),
		"cores": strconv.Itoa(in.Cores),
	}, log, opts.LogLines)
	return r, nil
}

func (r *Ranger) Type() string { return Type }

// Input returns the effective input with defaults applied
func (r *Ranger) Input() Input { return r.input }

// Reports returns the stage reports so far
func (r *Ranger) Reports() []pipeline.StageReport { return r.runner.Reports() }

func (r *Ranger) artifact(tool, kind, ext string) string {
	return ArtifactName(tool, kind, r.input.JobID, ext)
}

func (r *Ranger) prepareStages() []pipeline.Stage {
	return []pipeline.Stage{
		{
			Name:    "configure/transcoder",
			Tool:    toolchain.ConfigureTranscoder,
			LogFile: "configure_transcoder.log",
			Output:  r.artifact("Transcoder", "Config", "nxs"),
		},
		{
			Name:    "execute/transcoder",
			Tool:    toolchain.ExecuteTranscoder,
			LogFile: "execute_transcoder.log",
			Output:  r.artifact("Transcoder", "Results", "h5"),
		},
		{
			Name:    "configure/ranger",
			Tool:    toolchain.ConfigureRanger,
			LogFile: "configure_ranger.log",
			Output:  r.artifact("Ranger", "Config", "nxs"),
		},
	}
}

func (r *Ranger) executeStage() pipeline.Stage {
	return pipeline.Stage{
		Name:     "execute/ranger",
		Tool:     toolchain.ExecuteRanger,
		LogFile:  "execute_ranger.log",
		Optional: true,
	}
}

func (r *Ranger) reportStage() pipeline.Stage {
	return pipeline.Stage{
		Name:    "report/ranger",
		Tool:    toolchain.Reporter,
		LogFile: ReportLog,
	}
}

// WriteInput copies the input files into the working directory and runs the
// transcoder and ranger configuration stages.
func (r *Ranger) WriteInput(ctx context.Context) error {
	if r.input.Reconstruction == "" || r.input.Ranging == "" {
		return ErrFilesNotSet
	}
	if err := os.MkdirAll(r.runner.Dir(), 0o755); err != nil {
		return fmt.Errorf("creating working directory: %w", err)
	}

	if filepath.Base(r.input.Reconstruction) == filepath.Base(r.input.Ranging) {
		return fmt.Errorf("%w: reconstruction and ranging are both named %s", ErrInvalidInput, filepath.Base(r.input.Ranging))
	}
	inputs := []struct {
		kind toolchain.InputKind
		path string
	}{
		{toolchain.Reconstruction, r.input.Reconstruction},
		{toolchain.Ranging, r.input.Ranging},
	}
	for _, in := range inputs {
		if err := r.runner.Tools().ValidateInput(in.kind, in.path); err != nil {
			return fmt.Errorf("%w: %w", ErrInputRejected, err)
		}
	}

	var err error
	if r.reconstruction, err = copyInto(r.input.Reconstruction, r.runner.Dir()); err != nil {
		return err
	}
	if r.ranging, err = copyInto(r.input.Ranging, r.runner.Dir()); err != nil {
		return err
	}
	r.runner.SetVar("reconstruction", r.reconstruction)
	r.runner.SetVar("ranging", r.ranging)

	_, err = r.runner.RunAll(ctx, r.prepareStages(), r.reconstruction)
	return err
}

// Run executes the ranger. Without a configured ranger binary the stage is
// skipped and its log left empty.
func (r *Ranger) Run(ctx context.Context) error {
	_, err := r.runner.Run(ctx, r.executeStage(), filepath.Join(r.runner.Dir(), r.artifact("Ranger", "Config", "nxs")))
	return err
}

// CollectOutput records the raw stage logs and file paths, runs the
// auto-reporter and parses its summary into the "ranger" namespace. When the
// summary cannot be parsed the raw logs stay in the returned store.
func (r *Ranger) CollectOutput(ctx context.Context) (*result.Store, error) {
	store := result.NewStore(r.logger)

	stages := append(r.prepareStages(), r.executeStage())
	if err := r.runner.CollectLogs(store, stages); err != nil {
		return store, err
	}
	if err := r.recordFiles(store); err != nil {
		return store, err
	}

	rangerResults := filepath.Join(r.runner.Dir(), r.artifact("Ranger", "Results", "h5"))
	_, runErr := r.runner.Run(ctx, r.reportStage(), rangerResults)

	// the reporter log is kept even when the reporter failed
	text, err := result.ReadLog(r.runner.LogPath(r.reportStage()))
	if err == nil {
		err = store.CopyRaw(result.Path("log", "report", "ranger"), text)
	}
	if runErr != nil {
		return store, runErr
	}
	if err != nil {
		return store, err
	}

	record, err := r.parser.ParseSummary(result.Tokenize(text))
	if err != nil {
		r.logger.Error("parsing %s: %v", ReportLog, err)
		return store, err
	}
	if err := result.FlattenIntoStore(record, store, Namespace); err != nil {
		return store, err
	}

	comp := result.Describe(record)
	if err := result.WriteComposition(comp, store, Namespace); err != nil {
		return store, err
	}
	if record.Len() > 0 && !comp.Balanced(r.tolerance) {
		r.logger.Warn("composition sums to %.4f %s, expected 100 +/- %g", comp.Sum, result.Unit, r.tolerance)
	}

	if r.input.Plot && record.Len() > 0 {
		chart := filepath.Join(r.runner.Dir(), ChartFile)
		if err := PlotComposition(record, chart); err != nil {
			r.logger.Warn("plotting composition: %v", err)
		} else if err := store.Set(result.Path("files", "composition_plot"), result.String(chart)); err != nil {
			return store, err
		}
	}
	return store, nil
}

func (r *Ranger) recordFiles(store *result.Store) error {
	dir := r.runner.Dir()
	files := []struct {
		key  string
		path string
	}{
		{"reconstruction", r.reconstruction},
		{"ranging", r.ranging},
		{"transcoder_config", filepath.Join(dir, r.artifact("Transcoder", "Config", "nxs"))},
		{"transcoder_results", filepath.Join(dir, r.artifact("Transcoder", "Results", "h5"))},
		{"ranger_config", filepath.Join(dir, r.artifact("Ranger", "Config", "nxs"))},
		{"ranger_results", filepath.Join(dir, r.artifact("Ranger", "Results", "h5"))},
		{"report", filepath.Join(dir, ReportLog)},
	}
	for _, f := range files {
		if f.path == "" {
			continue
		}
		if err := store.Set(result.Path("files", f.key), result.String(f.path)); err != nil {
			return err
		}
	}
	return nil
}

// copyInto copies src into dir under its base name and returns the new path.
func copyInto(src, dir string) (string, error) {
	in, err := os.Open(src) // #nosec G304 -- input paths are checked by the validator
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", &result.MissingInputError{Path: src, Err: err}
		}
		return "", err
	}
	defer in.Close()

	dst := filepath.Join(dir, filepath.Base(src))
	if abs, err := filepath.Abs(src); err == nil && abs == dst {
		return dst, nil
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", fmt.Errorf("copying %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return dst, nil
}
