// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具

package process

import (
	"container/ring"
	"sync"
	"time"
)

// Parser consumes tool output line by line while the tool runs
type Parser interface {
	Parse(line string)
	Reset()
	Log() []Line
}

// Line is a timestamped log line
type Line struct {
	Timestamp time.Time
	Data      string
}

// Tail keeps the last lines of a tool's output for status reports
type Tail struct {
	log   *ring.Ring
	lines int
	last  string
	lock  sync.RWMutex
}

// NewTail creates a Tail holding up to lines entries (100 if lines <= 0).
func NewTail(lines int) *Tail {
	if lines <= 0 {
		lines = 100
	}
	return &Tail{
		log:   ring.New(lines),
		lines: lines,
	}
}

func (t *Tail) Parse(line string) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.log.Value = Line{Timestamp: time.Now(), Data: line}
	t.log = t.log.Next()
	t.last = line
}

func (t *Tail) Reset() {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.log = ring.New(t.lines)
	t.last = ""
}

// Log returns the kept lines, oldest first
func (t *Tail) Log() []Line {
	var out []Line
	t.lock.RLock()
	t.log.Do(func(v interface{}) {
		if v != nil {
			out = append(out, v.(Line))
		}
	})
	t.lock.RUnlock()
	return out
}

// LastLine returns the most recent line
func (t *Tail) LastLine() string {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.last
}

type nullParser struct{}

func (p *nullParser) Parse(line string) {}
func (p *nullParser) Reset()            {}
func (p *nullParser) Log() []Line       { return nil }
