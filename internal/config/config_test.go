// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZSC714725/paraprobemanager/internal/archive"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Valid(t *testing.T) {
	t.Setenv(EnvWorkspace, "")
	t.Setenv(EnvBind, "")
	path := writeTempFile(t, "config.yaml", `
server:
  bind: ":9090"
workspace:
  root: /data/jobs
  compression: best
ranger:
  jobid: 42
  cores: 8
  plot: true
tools:
  execute_ranger:
    binary: mpiexec
    args: ["-n", "{cores}", "paraprobe_ranger", "{jobid}", "{input}"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Bind)
	assert.Equal(t, "/data/jobs", cfg.Workspace.Root)
	assert.Equal(t, archive.LevelBest, cfg.Workspace.Compression)
	assert.Equal(t, int64(42), cfg.Ranger.JobID)
	assert.Equal(t, 8, cfg.Ranger.Cores)
	assert.True(t, cfg.Ranger.Plot)
	assert.True(t, cfg.Tools.ExecuteRanger.Enabled())
	assert.Equal(t, "mpiexec", cfg.Tools.ExecuteRanger.Binary)
	// untouched tools keep their defaults
	assert.Equal(t, "paraprobe-transcoder", cfg.Tools.ExecuteTranscoder.Binary)
	assert.Equal(t, DefaultCompositionTolerance, cfg.Ranger.CompositionTolerance)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv(EnvWorkspace, "")
	t.Setenv(EnvBind, "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvWorkspace, "/scratch/apt")
	t.Setenv(EnvBind, "127.0.0.1:7000")

	cfg, err := Load(writeTempFile(t, "config.yaml", "workspace:\n  root: ignored\n"))
	require.NoError(t, err)
	assert.Equal(t, "/scratch/apt", cfg.Workspace.Root)
	assert.Equal(t, "127.0.0.1:7000", cfg.Server.Bind)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeTempFile(t, "bad.yaml", "server: [unclosed"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown compression", func(c *Config) { c.Workspace.Compression = "ultra" }},
		{"negative jobid", func(c *Config) { c.Ranger.JobID = -1 }},
		{"negative cores", func(c *Config) { c.Ranger.Cores = -2 }},
		{"negative tolerance", func(c *Config) { c.Ranger.CompositionTolerance = -1 }},
		{"unknown model", func(c *Config) { c.Composition.Model = "KMeans" }},
		{"missing reporter", func(c *Config) { c.Tools.Reporter = Command{} }},
		{"bad input expression", func(c *Config) { c.Inputs.Block = []string{"[unclosed"} }},
	}

	require.NoError(t, Validate(Default()))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, Validate(cfg), ErrInvalidConfig)
		})
	}
}

func TestCommandEnabled(t *testing.T) {
	assert.False(t, Default().Tools.ExecuteRanger.Enabled())
	assert.True(t, Default().Tools.Reporter.Enabled())
}
