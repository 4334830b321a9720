// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具

package result

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrParse        = errors.New("malformed summary log")
	ErrMissingInput = errors.New("missing input")
	ErrSealed       = errors.New("result store is sealed")
	ErrInvalidPath  = errors.New("invalid result path")
)

// ParseError describes a summary log line that does not follow the fixed
// reporter layout. Line is the 0-based index into the parsed line sequence,
// -1 when the input had no header line at all.
type ParseError struct {
	Line   int
	Raw    string
	Token  string
	Reason string
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("summary log")
	if e.Line >= 0 {
		fmt.Fprintf(&b, " line %d", e.Line)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Token != "" {
		fmt.Fprintf(&b, " (token %q)", e.Token)
	}
	if e.Raw != "" {
		fmt.Fprintf(&b, ": %q", e.Raw)
	}
	return b.String()
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// MissingInputError reports a required file that is absent at the expected
// location.
type MissingInputError struct {
	Path string
	Err  error
}

func (e *MissingInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("missing input %s: %v", e.Path, e.Err)
	}
	return "missing input " + e.Path
}

func (e *MissingInputError) Is(target error) bool {
	return target == ErrMissingInput
}

func (e *MissingInputError) Unwrap() error {
	return e.Err
}
