// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具

package paraprobe

import "errors"

var (
	ErrFilesNotSet   = errors.New("reconstruction and ranging files must be set")
	ErrInputRejected = errors.New("input file rejected")
	ErrInvalidInput  = errors.New("invalid ranger input")
)
