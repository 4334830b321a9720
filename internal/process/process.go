// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具
//
// Package process runs one external analysis tool to completion and captures
// its output into a log file.

package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ZSC714725/paraprobemanager/internal/logger"
)

var (
	ErrNoBinary = errors.New("no valid binary given")
	ErrRunning  = errors.New("process is already running")
)

// Process represents one tool invocation
type Process interface {
	Status() Status
	Run(ctx context.Context) (Report, error)
	IsRunning() bool
}

// Config for a process
type Config struct {
	Binary string
	Args   []string
	// Dir is the working directory of the tool. The caller's directory is
	// never changed.
	Dir string
	// Env is appended to the current environment.
	Env []string
	// LogFile receives stdout and stderr unmodified. Empty discards output.
	LogFile string
	// KillGrace is the time between the interrupt and the kill on cancel.
	KillGrace      time.Duration
	SampleInterval time.Duration
	Parser         Parser
	Sampler        Sampler
	Logger         logger.Logger
	OnStateChange  func(from, to string)
}

// Status of a process
type Status struct {
	State    string
	States   States
	Duration time.Duration
	Time     time.Time
	CPU      float64
	Memory   uint64
}

// States cumulative counts
type States struct {
	Finished  uint64
	Starting  uint64
	Running   uint64
	Finishing uint64
	Failed    uint64
	Killed    uint64
}

// Report summarizes a finished invocation
type Report struct {
	State      string
	ExitCode   int
	Duration   time.Duration
	PeakCPU    float64
	PeakMemory uint64
	LogFile    string
}

// Default timings
const (
	DefaultKillGrace      = 5 * time.Second
	DefaultSampleInterval = time.Second
)

type stateType string

const (
	stateFinished  stateType = "finished"
	stateStarting  stateType = "starting"
	stateRunning   stateType = "running"
	stateFinishing stateType = "finishing"
	stateFailed    stateType = "failed"
	stateKilled    stateType = "killed"
)

func (s stateType) String() string { return string(s) }

func (s stateType) IsRunning() bool {
	return s == stateStarting || s == stateRunning || s == stateFinishing
}

type process struct {
	config Config

	state struct {
		state  stateType
		time   time.Time
		states States
		lock   sync.Mutex
	}
	parser  Parser
	sampler Sampler
	logger  logger.Logger
}

// New creates a new process
func New(config Config) (Process, error) {
	if len(config.Binary) == 0 {
		return nil, ErrNoBinary
	}

	p := &process{
		config:  config,
		parser:  config.Parser,
		sampler: config.Sampler,
		logger:  config.Logger,
	}
	if p.parser == nil {
		p.parser = &nullParser{}
	}
	if p.sampler == nil {
		p.sampler = NewSysSampler()
	}
	if p.logger == nil {
		p.logger = logger.Nop()
	}
	if p.config.KillGrace <= 0 {
		p.config.KillGrace = DefaultKillGrace
	}
	if p.config.SampleInterval <= 0 {
		p.config.SampleInterval = DefaultSampleInterval
	}

	p.state.state = stateFinished
	p.state.time = time.Now()
	return p, nil
}

func (p *process) setState(state stateType) error {
	p.state.lock.Lock()

	prev := p.state.state
	failed := false

	switch prev {
	case stateFinished, stateFailed, stateKilled:
		if state == stateStarting {
			p.state.states.Starting++
		} else {
			failed = true
		}
	case stateStarting:
		switch state {
		case stateRunning:
			p.state.states.Running++
		case stateFailed:
			p.state.states.Failed++
		default:
			failed = true
		}
	case stateRunning:
		switch state {
		case stateFinished:
			p.state.states.Finished++
		case stateFinishing:
			p.state.states.Finishing++
		case stateFailed:
			p.state.states.Failed++
		case stateKilled:
			p.state.states.Killed++
		default:
			failed = true
		}
	case stateFinishing:
		switch state {
		case stateFinished:
			p.state.states.Finished++
		case stateFailed:
			p.state.states.Failed++
		case stateKilled:
			p.state.states.Killed++
		default:
			failed = true
		}
	default:
		p.state.lock.Unlock()
		return fmt.Errorf("unhandled state: %s", prev)
	}

	if failed {
		p.state.lock.Unlock()
		return fmt.Errorf("can't change from %s to %s", prev, state)
	}

	p.state.state = state
	p.state.time = time.Now()
	p.state.lock.Unlock()

	if p.config.OnStateChange != nil {
		p.config.OnStateChange(prev.String(), state.String())
	}
	return nil
}

func (p *process) getState() stateType {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()
	return p.state.state
}

func (p *process) IsRunning() bool {
	return p.getState().IsRunning()
}

func (p *process) Status() Status {
	cpu, memory := p.sampler.Current()

	p.state.lock.Lock()
	defer p.state.lock.Unlock()
	return Status{
		State:    p.state.state.String(),
		States:   p.state.states,
		Duration: time.Since(p.state.time),
		Time:     p.state.time,
		CPU:      cpu,
		Memory:   memory,
	}
}

// Run starts the tool and blocks until it exits. A non-zero exit status is
// returned as *exec.ExitError, a cancelled context as the context error.
func (p *process) Run(ctx context.Context) (Report, error) {
	if p.IsRunning() {
		return Report{}, ErrRunning
	}
	if err := p.setState(stateStarting); err != nil {
		return Report{}, err
	}

	report := Report{LogFile: p.config.LogFile, ExitCode: -1}
	start := time.Now()

	out, err := p.openLog()
	if err != nil {
		p.setState(stateFailed)
		report.State = stateFailed.String()
		return report, err
	}
	defer out.Close()

	cmd := exec.CommandContext(ctx, p.config.Binary, p.config.Args...)
	cmd.Dir = p.config.Dir
	cmd.Env = append(os.Environ(), p.config.Env...)
	cmd.Cancel = func() error {
		if runtime.GOOS == "windows" {
			return cmd.Process.Kill()
		}
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = p.config.KillGrace

	pr, pw := io.Pipe()
	w := io.MultiWriter(out, pw)
	cmd.Stdout = w
	cmd.Stderr = w

	p.parser.Reset()

	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		p.parser.Parse(err.Error())
		p.setState(stateFailed)
		report.State = stateFailed.String()
		return report, fmt.Errorf("starting %s: %w", p.config.Binary, err)
	}

	p.logger.Debug("started %s (pid %d) in %s", p.config.Binary, cmd.Process.Pid, p.config.Dir)
	if err := p.sampler.Start(cmd.Process.Pid); err != nil {
		p.logger.Debug("resource sampling unavailable: %v", err)
	}
	p.setState(stateRunning)

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		p.reader(pr)
	}()

	samplerCtx, stopSampling := context.WithCancel(context.Background())
	go p.sample(samplerCtx)

	waitErr := cmd.Wait()
	stopSampling()
	pw.Close()
	<-readerDone

	p.sampler.Stop()
	report.PeakCPU, report.PeakMemory = p.sampler.Peak()
	report.Duration = time.Since(start)
	if cmd.ProcessState != nil {
		report.ExitCode = cmd.ProcessState.ExitCode()
	}

	switch {
	case waitErr == nil:
		p.setState(stateFinished)
	case ctx.Err() != nil:
		p.setState(stateKilled)
		waitErr = fmt.Errorf("%s: %w", p.config.Binary, ctx.Err())
	default:
		p.setState(stateFailed)
		waitErr = fmt.Errorf("%s: %w", p.config.Binary, waitErr)
	}
	report.State = p.getState().String()
	return report, waitErr
}

func (p *process) openLog() (io.WriteCloser, error) {
	if p.config.LogFile == "" {
		return nopWriteCloser{io.Discard}, nil
	}
	f, err := os.Create(p.config.LogFile)
	if err != nil {
		return nil, fmt.Errorf("creating log file: %w", err)
	}
	return f, nil
}

func (p *process) reader(r io.ReadCloser) {
	defer r.Close()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanLine)
	for scanner.Scan() {
		p.parser.Parse(scanner.Text())
	}
	// keep draining so the tool never blocks on a full pipe
	io.Copy(io.Discard, r)
}

func (p *process) sample(ctx context.Context) {
	ticker := time.NewTicker(p.config.SampleInterval)
	defer ticker.Stop()

	p.sampler.Sample()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sampler.Sample()
		}
	}
}

func scanLine(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) {
		r, w := utf8.DecodeRune(data[start:])
		if r != '\n' && r != '\r' {
			break
		}
		start += w
	}

	for i := start; i < len(data); {
		r, w := utf8.DecodeRune(data[i:])
		if r == '\n' || r == '\r' {
			return i + w, data[start:i], nil
		}
		i += w
	}

	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	return start, nil, nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
