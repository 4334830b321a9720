// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具

package toolchain

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// InputKind is the role of a job input file
type InputKind string

const (
	Reconstruction InputKind = "reconstruction"
	Ranging        InputKind = "ranging"
)

// DefaultExtensions are the formats the paraprobe transcoder reads
var DefaultExtensions = map[InputKind][]string{
	Reconstruction: {".pos", ".apt"},
	Ranging:        {".rrng", ".rng"},
}

var ErrInputRejected = errors.New("input rejected")

// Validator checks a job input file before it is copied into a working
// directory
type Validator interface {
	Check(kind InputKind, path string) error
}

// InputRules for NewValidator
type InputRules struct {
	// Extensions per kind, DefaultExtensions when nil. A kind without
	// entries accepts any extension.
	Extensions map[InputKind][]string
	// Block rejects paths matching any of these expressions.
	Block []string
}

type inputRules struct {
	extensions map[InputKind]map[string]bool
	block      []*regexp.Regexp
}

// NewValidator compiles the rules. Extensions match case-insensitively, with
// or without the leading dot.
func NewValidator(rules InputRules) (Validator, error) {
	exts := rules.Extensions
	if exts == nil {
		exts = DefaultExtensions
	}

	v := &inputRules{extensions: make(map[InputKind]map[string]bool, len(exts))}
	for kind, list := range exts {
		set := make(map[string]bool, len(list))
		for _, ext := range list {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			set[ext] = true
		}
		if len(set) > 0 {
			v.extensions[kind] = set
		}
	}

	for _, exp := range rules.Block {
		if exp = strings.TrimSpace(exp); exp == "" {
			continue
		}
		re, err := regexp.Compile(exp)
		if err != nil {
			return nil, fmt.Errorf("invalid block expression %q: %w", exp, err)
		}
		v.block = append(v.block, re)
	}
	return v, nil
}

func (v *inputRules) Check(kind InputKind, path string) error {
	if path == "" {
		return fmt.Errorf("%w: no %s file", ErrInputRejected, kind)
	}
	for _, re := range v.block {
		if re.MatchString(path) {
			return fmt.Errorf("%w: %s is blocked", ErrInputRejected, path)
		}
	}

	set, ok := v.extensions[kind]
	if !ok {
		return nil
	}
	if !set[strings.ToLower(filepath.Ext(path))] {
		return fmt.Errorf("%w: %s is not a %s file (%s)", ErrInputRejected, path, kind, joinExtensions(set))
	}
	return nil
}

func joinExtensions(set map[string]bool) string {
	list := make([]string, 0, len(set))
	for ext := range set {
		list = append(list, ext)
	}
	sort.Strings(list)
	return strings.Join(list, ", ")
}
