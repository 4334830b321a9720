// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具

package api

import (
	"github.com/ZSC714725/paraprobemanager/internal/job"
	"github.com/ZSC714725/paraprobemanager/internal/pipeline"
	"github.com/ZSC714725/paraprobemanager/internal/publication"
	"github.com/ZSC714725/paraprobemanager/internal/toolchain"
)

// Job represents a managed job in API responses
type Job struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Reference string      `json:"reference"`
	CreatedAt int64       `json:"created_at"`
	UpdatedAt int64       `json:"updated_at"`
	Config    *job.Config `json:"config,omitempty"`
	State     *JobState   `json:"state,omitempty"`
}

// JobState for API
type JobState struct {
	Status  string                 `json:"status"`
	Error   string                 `json:"error,omitempty"`
	WorkDir string                 `json:"workdir"`
	Archive string                 `json:"archive,omitempty"`
	Stages  []pipeline.StageReport `json:"stages"`
}

// ResultEntry is one flattened result value
type ResultEntry struct {
	Path  string      `json:"path"`
	Kind  string      `json:"kind"`
	Value interface{} `json:"value"`
}

// Results of a job
type Results struct {
	ID      string        `json:"id"`
	Status  string        `json:"status"`
	Entries []ResultEntry `json:"entries"`
}

// Toolchain lists the configured tools
type Toolchain struct {
	Tools []toolchain.Version `json:"tools"`
}

// Publications lists the citations of the tools
type Publications struct {
	Entries []publication.Entry `json:"entries"`
}

// CommandRequest for run/abort
type CommandRequest struct {
	Command string `json:"command" binding:"required"`
}

// ErrorResponse for API errors
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}
