// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具

package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerLevelsAndPrefix(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "ranger", false)

	l.Info("parsed %d metrics", 3)
	l.Warn("duplicate key %q", "Fe")
	l.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "[INFO] ranger: parsed 3 metrics")
	assert.Contains(t, out, `[WARN] ranger: duplicate key "Fe"`)
	assert.NotContains(t, out, "hidden")
}

func TestNamedLogger(t *testing.T) {
	var buf bytes.Buffer
	root := NewWithWriter(&buf, "paraprobemanager", true)
	l := Named(root, "job abc")

	l.Error("boom")
	l.Debug("details")

	assert.Contains(t, buf.String(), "[ERROR] paraprobemanager: job abc: boom")
	assert.Contains(t, buf.String(), "[DEBUG] paraprobemanager: job abc: details")
}

func TestNamedNilParent(t *testing.T) {
	l := Named(nil, "x")
	assert.NotPanics(t, func() { l.Info("ok") })
}
