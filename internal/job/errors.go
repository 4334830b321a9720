// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具

package job

import "errors"

var (
	ErrNotFound       = errors.New("job not found")
	ErrJobExists      = errors.New("job already exists")
	ErrInvalidConfig  = errors.New("invalid job config")
	ErrUnknownType    = errors.New("unknown job type")
	ErrAlreadyStarted = errors.New("job already started")
	ErrNotRunning     = errors.New("job is not running")
	ErrNoResults      = errors.New("job has no results")
)
