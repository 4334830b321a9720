// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具

package job

import (
	"encoding/json"
	"regexp"

	"github.com/ZSC714725/paraprobemanager/internal/composition"
	"github.com/ZSC714725/paraprobemanager/internal/paraprobe"
)

// CompositionInput is a compositionspace config plus the requested analyses
type CompositionInput struct {
	composition.Config
	Analyses []string `json:"analyses"`
}

// UnmarshalJSON fills omitted parameters with the compositionspace
// defaults. An omitted model name stays empty and is set by the manager.
func (c *CompositionInput) UnmarshalJSON(data []byte) error {
	type plain CompositionInput
	p := plain{Config: composition.DefaultConfig()}
	p.MLModels.Name = ""
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = CompositionInput(p)
	return nil
}

// Config for a job
type Config struct {
	ID          string            `json:"id"`
	Reference   string            `json:"reference"`
	Type        string            `json:"type"`
	Autostart   bool              `json:"autostart"`
	Ranger      *paraprobe.Input  `json:"ranger,omitempty"`
	Composition *CompositionInput `json:"compositionspace,omitempty"`
}

// IDs become directory names below the workspace root
var validID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

func validateID(id string) bool {
	return validID.MatchString(id)
}
