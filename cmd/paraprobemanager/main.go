// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具

package main

import (
	"os"

	"github.com/ZSC714725/paraprobemanager/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
