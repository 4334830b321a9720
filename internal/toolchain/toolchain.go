// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具
//
// Package toolchain resolves the external analysis tools and builds process
// configs for them.

package toolchain

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ZSC714725/paraprobemanager/internal/config"
	"github.com/ZSC714725/paraprobemanager/internal/logger"
	"github.com/ZSC714725/paraprobemanager/internal/process"
)

// Tool names, matching the keys of the tools config section
const (
	ConfigureTranscoder = "configure_transcoder"
	ExecuteTranscoder   = "execute_transcoder"
	ConfigureRanger     = "configure_ranger"
	ExecuteRanger       = "execute_ranger"
	Reporter            = "reporter"
	Composition         = "composition"
)

var (
	ErrUnknownTool     = errors.New("unknown tool")
	ErrToolUnavailable = errors.New("tool unavailable")
	ErrToolDisabled    = errors.New("tool not configured")
)

// Vars are placeholder values substituted into tool arguments. The key
// "jobid" replaces "{jobid}".
type Vars map[string]string

// Expand substitutes every {key} in args
func (v Vars) Expand(args []string) []string {
	pairs := make([]string, 0, 2*len(v))
	for k, val := range v {
		pairs = append(pairs, "{"+k+"}", val)
	}
	r := strings.NewReplacer(pairs...)

	out := make([]string, len(args))
	for i, a := range args {
		out[i] = r.Replace(a)
	}
	return out
}

// Tool is a resolved tool
type Tool struct {
	Name    string
	Command config.Command
	// Path is the absolute binary path, empty when unresolved.
	Path string
	Err  error
}

// Version is the reported version of a tool
type Version struct {
	Name    string `json:"name"`
	Binary  string `json:"binary"`
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ProcessConfig for creating a tool process
type ProcessConfig struct {
	Vars          Vars
	Dir           string
	LogFile       string
	Parser        process.Parser
	Logger        logger.Logger
	OnStateChange func(from, to string)
}

// Toolchain manages the tool binaries
type Toolchain interface {
	Tool(name string) (Tool, error)
	Enabled(name string) bool
	New(name string, config ProcessConfig) (process.Process, error)
	ValidateInput(kind InputKind, path string) error
	Versions(ctx context.Context) []Version
	Reload() error
}

// Config for the toolchain
type Config struct {
	Tools     config.ToolsConfig
	Validator Validator
	// LookPath resolves binaries, exec.LookPath when nil.
	LookPath func(file string) (string, error)
	// Sampler creates a resource sampler per process, gopsutil when nil.
	Sampler func() process.Sampler
}

type toolchain struct {
	commands  map[string]config.Command
	validator Validator
	lookPath  func(string) (string, error)
	sampler   func() process.Sampler

	tools     map[string]Tool
	toolsLock sync.RWMutex

	versions     []Version
	versionsLock sync.Mutex
}

// New creates a toolchain. Unresolvable binaries do not fail construction,
// they fail the stage that needs them.
func New(cfg Config) (Toolchain, error) {
	t := &toolchain{
		commands: map[string]config.Command{
			ConfigureTranscoder: cfg.Tools.ConfigureTranscoder,
			ExecuteTranscoder:   cfg.Tools.ExecuteTranscoder,
			ConfigureRanger:     cfg.Tools.ConfigureRanger,
			ExecuteRanger:       cfg.Tools.ExecuteRanger,
			Reporter:            cfg.Tools.Reporter,
			Composition:         cfg.Tools.Composition,
		},
		validator: cfg.Validator,
		lookPath:  cfg.LookPath,
		sampler:   cfg.Sampler,
	}
	if t.validator == nil {
		t.validator, _ = NewValidator(InputRules{})
	}
	if t.lookPath == nil {
		t.lookPath = exec.LookPath
	}
	if t.sampler == nil {
		t.sampler = process.NewSysSampler
	}

	if err := t.Reload(); err != nil {
		return nil, err
	}
	return t, nil
}

// Reload resolves all binaries again and drops cached versions
func (t *toolchain) Reload() error {
	tools := make(map[string]Tool, len(t.commands))
	for name, cmd := range t.commands {
		tool := Tool{Name: name, Command: cmd}
		if cmd.Enabled() {
			path, err := t.lookPath(cmd.Binary)
			if err != nil {
				tool.Err = fmt.Errorf("%w: %s: %v", ErrToolUnavailable, cmd.Binary, err)
			} else {
				tool.Path = path
			}
		} else {
			tool.Err = fmt.Errorf("%w: %s", ErrToolDisabled, name)
		}
		tools[name] = tool
	}

	t.toolsLock.Lock()
	t.tools = tools
	t.toolsLock.Unlock()

	t.versionsLock.Lock()
	t.versions = nil
	t.versionsLock.Unlock()
	return nil
}

func (t *toolchain) Tool(name string) (Tool, error) {
	t.toolsLock.RLock()
	defer t.toolsLock.RUnlock()

	tool, ok := t.tools[name]
	if !ok {
		return Tool{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return tool, tool.Err
}

func (t *toolchain) Enabled(name string) bool {
	t.toolsLock.RLock()
	defer t.toolsLock.RUnlock()
	return t.tools[name].Command.Enabled()
}

// New creates a process for the named tool with expanded arguments
func (t *toolchain) New(name string, cfg ProcessConfig) (process.Process, error) {
	tool, err := t.Tool(name)
	if err != nil {
		return nil, err
	}
	return process.New(process.Config{
		Binary:        tool.Path,
		Args:          cfg.Vars.Expand(tool.Command.Args),
		Dir:           cfg.Dir,
		LogFile:       cfg.LogFile,
		Parser:        cfg.Parser,
		Sampler:       t.sampler(),
		Logger:        cfg.Logger,
		OnStateChange: cfg.OnStateChange,
	})
}

func (t *toolchain) ValidateInput(kind InputKind, path string) error {
	return t.validator.Check(kind, path)
}

// Versions probes "<binary> --version" once per resolved binary and caches
// the first output line.
func (t *toolchain) Versions(ctx context.Context) []Version {
	t.versionsLock.Lock()
	defer t.versionsLock.Unlock()
	if t.versions != nil {
		return t.versions
	}

	t.toolsLock.RLock()
	names := make([]string, 0, len(t.tools))
	for name := range t.tools {
		names = append(names, name)
	}
	tools := t.tools
	t.toolsLock.RUnlock()
	sort.Strings(names)

	probed := map[string]Version{}
	out := make([]Version, 0, len(names))
	for _, name := range names {
		tool := tools[name]
		v := Version{Name: name, Binary: tool.Command.Binary}
		switch {
		case tool.Err != nil:
			v.Error = tool.Err.Error()
		default:
			if p, ok := probed[tool.Path]; ok {
				v.Version, v.Error = p.Version, p.Error
			} else {
				v.Version, v.Error = probeVersion(ctx, tool.Path)
				probed[tool.Path] = v
			}
		}
		out = append(out, v)
	}

	t.versions = out
	return out
}

func probeVersion(ctx context.Context, binary string) (string, string) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, binary, "--version").CombinedOutput()
	if err != nil {
		return "", err.Error()
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line, ""
		}
	}
	return "", ""
}
