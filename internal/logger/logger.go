// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具

package logger

import (
	"io"
	"log"
	"os"
)

// Logger provides a simple logging interface
type Logger interface {
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
}

type defaultLogger struct {
	prefix string
	out    *log.Logger
	debug  bool
}

// New returns a Logger writing to stderr. Each line carries the level and the
// component prefix, e.g. "[WARN] ranger: ...".
func New(prefix string) Logger {
	return NewWithWriter(os.Stderr, prefix, false)
}

// NewWithWriter returns a Logger writing to w. Debug lines are dropped unless
// debug is set.
func NewWithWriter(w io.Writer, prefix string, debug bool) Logger {
	if prefix != "" {
		prefix += ": "
	}
	return &defaultLogger{
		prefix: prefix,
		out:    log.New(w, "", log.LstdFlags),
		debug:  debug,
	}
}

// Named derives a logger for a sub component.
func Named(l Logger, name string) Logger {
	if l == nil {
		return Nop()
	}
	return &namedLogger{parent: l, prefix: name + ": "}
}

func (l *defaultLogger) Info(format string, args ...interface{}) {
	l.out.Printf("[INFO] "+l.prefix+format, args...)
}

func (l *defaultLogger) Warn(format string, args ...interface{}) {
	l.out.Printf("[WARN] "+l.prefix+format, args...)
}

func (l *defaultLogger) Error(format string, args ...interface{}) {
	l.out.Printf("[ERROR] "+l.prefix+format, args...)
}

func (l *defaultLogger) Debug(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.out.Printf("[DEBUG] "+l.prefix+format, args...)
}

type namedLogger struct {
	parent Logger
	prefix string
}

func (l *namedLogger) Info(format string, args ...interface{}) {
	l.parent.Info(l.prefix+format, args...)
}

func (l *namedLogger) Warn(format string, args ...interface{}) {
	l.parent.Warn(l.prefix+format, args...)
}

func (l *namedLogger) Error(format string, args ...interface{}) {
	l.parent.Error(l.prefix+format, args...)
}

func (l *namedLogger) Debug(format string, args ...interface{}) {
	l.parent.Debug(l.prefix+format, args...)
}

// Nop returns a Logger that discards everything
func Nop() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Info(format string, args ...interface{})  {}
func (nopLogger) Warn(format string, args ...interface{})  {}
func (nopLogger) Error(format string, args ...interface{}) {}
func (nopLogger) Debug(format string, args ...interface{}) {}
