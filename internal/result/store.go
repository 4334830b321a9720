// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具

package result

import (
	"strings"

	"github.com/ZSC714725/paraprobemanager/internal/logger"
)

// Entry is one path/value pair
type Entry struct {
	Path  string
	Value Value
}

// Store maps hierarchical paths ("log/configure/transcoder", "ranger/Fe") to
// values. Keys keep their first insertion order, a later write to the same
// path replaces the value (last write wins).
//
// A Store is owned by the collection step that created it and is not safe for
// concurrent writes. Seal hands it off: afterwards it is read-only and may be
// shared.
type Store struct {
	keys   []string
	values map[string]Value
	sealed bool
	logger logger.Logger
}

// NewStore returns an empty store. A nil logger discards overwrite warnings.
func NewStore(log logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{
		values: make(map[string]Value),
		logger: log,
	}
}

// Path joins path segments with "/", dropping empty segments and stray
// slashes at the segment borders.
func Path(parts ...string) string {
	clean := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			clean = append(clean, p)
		}
	}
	return strings.Join(clean, "/")
}

// Set writes v at path. Replacing an existing entry with a different value is
// logged as a warning, it usually means the upstream format changed.
func (s *Store) Set(path string, v Value) error {
	if s.sealed {
		return ErrSealed
	}
	if path == "" {
		return ErrInvalidPath
	}
	if old, ok := s.values[path]; ok {
		if !old.Equal(v) {
			s.logger.Warn("overwriting result %s: %s -> %s", path, old, v)
		}
	} else {
		s.keys = append(s.keys, path)
	}
	s.values[path] = v
	return nil
}

// CopyRaw stores the full, unmodified text of a log at path. Empty text is
// stored as well.
func (s *Store) CopyRaw(path, text string) error {
	return s.Set(path, Raw(text))
}

// Get returns the value stored at path
func (s *Store) Get(path string) (Value, bool) {
	v, ok := s.values[path]
	return v, ok
}

// Len returns the number of entries
func (s *Store) Len() int {
	return len(s.keys)
}

// Keys returns all paths in insertion order
func (s *Store) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Entries returns all entries in insertion order. With a non-empty prefix only
// paths below that prefix are returned.
func (s *Store) Entries(prefix string) []Entry {
	prefix = strings.Trim(prefix, "/")
	out := make([]Entry, 0, len(s.keys))
	for _, k := range s.keys {
		if prefix != "" && k != prefix && !strings.HasPrefix(k, prefix+"/") {
			continue
		}
		out = append(out, Entry{Path: k, Value: s.values[k]})
	}
	return out
}

// Flat returns the plain path -> value mapping handed to persistence and API
// layers.
func (s *Store) Flat() map[string]interface{} {
	out := make(map[string]interface{}, len(s.values))
	for k, v := range s.values {
		out[k] = v.Interface()
	}
	return out
}

// Seal marks the store read-only
func (s *Store) Seal() {
	s.sealed = true
}

// Sealed reports whether Seal was called
func (s *Store) Sealed() bool {
	return s.sealed
}
