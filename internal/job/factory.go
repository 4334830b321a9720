// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具

package job

import (
	"fmt"

	"github.com/ZSC714725/paraprobemanager/internal/composition"
	"github.com/ZSC714725/paraprobemanager/internal/config"
	"github.com/ZSC714725/paraprobemanager/internal/logger"
	"github.com/ZSC714725/paraprobemanager/internal/paraprobe"
	"github.com/ZSC714725/paraprobemanager/internal/toolchain"
)

// Factories returns the factories of the bundled job types
func Factories(cfg *config.Config, tools toolchain.Toolchain, log logger.Logger) map[string]Factory {
	return map[string]Factory{
		paraprobe.Type: func(c *Config, workDir string) (Job, error) {
			if c.Ranger == nil {
				return nil, fmt.Errorf("%w: %s needs a ranger section", ErrInvalidConfig, paraprobe.Type)
			}
			return paraprobe.NewRanger(paraprobe.Options{
				Input:    *c.Ranger,
				WorkDir:  workDir,
				Tools:    tools,
				Defaults: cfg.Ranger,
				Logger:   logger.Named(log, c.ID),
				LogLines: cfg.Log.LogLines,
			})
		},
		composition.Type: func(c *Config, workDir string) (Job, error) {
			if c.Composition == nil {
				return nil, fmt.Errorf("%w: %s needs a compositionspace section", ErrInvalidConfig, composition.Type)
			}
			params := c.Composition.Config
			if params.MLModels.Name == "" {
				params.MLModels.Name = cfg.Composition.Model
			}
			analyses := make([]composition.Analysis, 0, len(c.Composition.Analyses))
			for _, name := range c.Composition.Analyses {
				a, err := composition.ParseAnalysis(name)
				if err != nil {
					return nil, err
				}
				analyses = append(analyses, a)
			}
			return composition.NewJob(composition.Options{
				Config:   params,
				Analyses: analyses,
				WorkDir:  workDir,
				Tools:    tools,
				Logger:   logger.Named(log, c.ID),
				LogLines: cfg.Log.LogLines,
			})
		},
	}
}
