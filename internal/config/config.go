// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/ZSC714725/paraprobemanager/internal/archive"
)

// Config 应用配置
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Workspace   WorkspaceConfig   `yaml:"workspace"`
	Log         LogConfig         `yaml:"log"`
	Inputs      InputsConfig      `yaml:"inputs"`
	Tools       ToolsConfig       `yaml:"tools"`
	Ranger      RangerConfig      `yaml:"ranger"`
	Composition CompositionConfig `yaml:"composition"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Bind string `yaml:"bind"`
}

// WorkspaceConfig 工作目录配置
type WorkspaceConfig struct {
	// Root holds one working directory per job.
	Root        string        `yaml:"root"`
	Compression archive.Level `yaml:"compression"`
}

// LogConfig 日志配置
type LogConfig struct {
	Debug    bool `yaml:"debug"`
	LogLines int  `yaml:"log_lines"`
}

// InputsConfig restricts which reconstruction and ranging files jobs accept.
// Extensions are keyed by input kind (reconstruction, ranging); a missing
// section keeps the paraprobe formats.
type InputsConfig struct {
	Extensions map[string][]string `yaml:"extensions"`
	Block      []string            `yaml:"block"`
}

// Command is an external tool invocation. Args may contain the placeholders
// {jobid}, {workdir}, {input}, {reconstruction}, {ranging}, {cores} and
// {stage}.
type Command struct {
	Binary string   `yaml:"binary"`
	Args   []string `yaml:"args"`
}

// Enabled reports whether a binary is configured
func (c Command) Enabled() bool {
	return c.Binary != ""
}

// ToolsConfig lists the external tools of every pipeline stage
type ToolsConfig struct {
	ConfigureTranscoder Command `yaml:"configure_transcoder"`
	ExecuteTranscoder   Command `yaml:"execute_transcoder"`
	ConfigureRanger     Command `yaml:"configure_ranger"`
	// ExecuteRanger is optional, without it the ranger log stays empty.
	ExecuteRanger Command `yaml:"execute_ranger"`
	Reporter      Command `yaml:"reporter"`
	Composition   Command `yaml:"composition"`
}

// RangerConfig 离子定标任务配置
type RangerConfig struct {
	JobID int64 `yaml:"jobid"`
	Cores int   `yaml:"cores"`
	Plot  bool  `yaml:"plot"`
	// CompositionTolerance is the allowed deviation of the summed composition
	// from 100 before a warning is logged.
	CompositionTolerance float64 `yaml:"composition_tolerance"`
}

// CompositionConfig 成分聚类任务配置
type CompositionConfig struct {
	Model string `yaml:"model"`
}

var (
	ErrInvalidConfig = errors.New("invalid config")
)

// Default values
const (
	DefaultBind                 = ":8080"
	DefaultWorkspace            = "paraprobe-jobs"
	DefaultJobID                = 636502001
	DefaultCores                = 1
	DefaultCompositionTolerance = 1.0
	DefaultLogLines             = 100
	DefaultModel                = "GaussianMixture"
)

// Environment overrides
const (
	EnvWorkspace = "PARAPROBE_WORKSPACE"
	EnvBind      = "PARAPROBE_BIND"
)

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server:    ServerConfig{Bind: DefaultBind},
		Workspace: WorkspaceConfig{Root: DefaultWorkspace, Compression: archive.LevelDefault},
		Log:       LogConfig{LogLines: DefaultLogLines},
		Tools: ToolsConfig{
			ConfigureTranscoder: Command{
				Binary: "paraprobe-parmsetup",
				Args:   []string{"transcoder", "{workdir}", "{reconstruction}", "{ranging}", "{jobid}"},
			},
			ExecuteTranscoder: Command{
				Binary: "paraprobe-transcoder",
				Args:   []string{"{jobid}", "{input}"},
			},
			ConfigureRanger: Command{
				Binary: "paraprobe-parmsetup",
				Args:   []string{"ranger", "{workdir}", "{jobid}"},
			},
			Reporter: Command{
				Binary: "paraprobe-autoreporter",
				Args:   []string{"ranger", "{input}", "{jobid}"},
			},
			Composition: Command{
				Binary: "compositionspace",
				Args:   []string{"{stage}", "{input}"},
			},
		},
		Ranger: RangerConfig{
			JobID:                DefaultJobID,
			Cores:                DefaultCores,
			CompositionTolerance: DefaultCompositionTolerance,
		},
		Composition: CompositionConfig{Model: DefaultModel},
	}
}

// Load 从 YAML 文件加载配置
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path) // #nosec G304 -- user-provided config path is expected
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		data = nil
	}

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnvironmentOverrides()
	cfg.fillDefaults()

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// 填充空值
func (c *Config) fillDefaults() {
	if c.Server.Bind == "" {
		c.Server.Bind = DefaultBind
	}
	if c.Workspace.Root == "" {
		c.Workspace.Root = DefaultWorkspace
	}
	if c.Workspace.Compression == "" {
		c.Workspace.Compression = archive.LevelDefault
	}
	if c.Log.LogLines <= 0 {
		c.Log.LogLines = DefaultLogLines
	}
	if c.Ranger.JobID == 0 {
		c.Ranger.JobID = DefaultJobID
	}
	if c.Ranger.Cores == 0 {
		c.Ranger.Cores = DefaultCores
	}
	if c.Ranger.CompositionTolerance == 0 {
		c.Ranger.CompositionTolerance = DefaultCompositionTolerance
	}
	if c.Composition.Model == "" {
		c.Composition.Model = DefaultModel
	}
}

func (c *Config) applyEnvironmentOverrides() {
	if root := os.Getenv(EnvWorkspace); root != "" {
		c.Workspace.Root = root
	}
	if bind := os.Getenv(EnvBind); bind != "" {
		c.Server.Bind = bind
	}
}

// Validate checks enumerated options and required tools
func Validate(c *Config) error {
	if _, err := c.Workspace.Compression.EncoderLevel(); err != nil {
		return fmt.Errorf("%w: workspace.compression: %v", ErrInvalidConfig, err)
	}
	if c.Ranger.JobID < 0 {
		return fmt.Errorf("%w: ranger.jobid must be positive", ErrInvalidConfig)
	}
	if c.Ranger.Cores < 0 {
		return fmt.Errorf("%w: ranger.cores must be positive", ErrInvalidConfig)
	}
	if c.Ranger.CompositionTolerance < 0 {
		return fmt.Errorf("%w: ranger.composition_tolerance must not be negative", ErrInvalidConfig)
	}
	switch c.Composition.Model {
	case "GaussianMixture", "RandomForest", "DBScan":
	default:
		return fmt.Errorf("%w: composition.model %q (must be GaussianMixture, RandomForest or DBScan)",
			ErrInvalidConfig, c.Composition.Model)
	}

	required := map[string]Command{
		"tools.configure_transcoder": c.Tools.ConfigureTranscoder,
		"tools.execute_transcoder":   c.Tools.ExecuteTranscoder,
		"tools.configure_ranger":     c.Tools.ConfigureRanger,
		"tools.reporter":             c.Tools.Reporter,
		"tools.composition":          c.Tools.Composition,
	}
	for name, cmd := range required {
		if !cmd.Enabled() {
			return fmt.Errorf("%w: %s.binary is required", ErrInvalidConfig, name)
		}
	}

	for _, exp := range c.Inputs.Block {
		if _, err := regexp.Compile(exp); err != nil {
			return fmt.Errorf("%w: inputs: invalid expression %q: %v", ErrInvalidConfig, exp, err)
		}
	}
	return nil
}
