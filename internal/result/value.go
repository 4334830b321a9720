// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具

package result

import (
	"fmt"
	"math"
	"strconv"
)

// Kind of a stored value
type Kind string

const (
	KindRaw    Kind = "raw"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindString Kind = "string"
)

// Value is one entry of a Store: an unparsed log blob, an integer, a float or
// a string.
type Value struct {
	Kind  Kind
	Text  string
	Int   int64
	Float float64
}

// Raw wraps unparsed log text
func Raw(text string) Value { return Value{Kind: KindRaw, Text: text} }

// Int wraps an integer
func Int(i int64) Value { return Value{Kind: KindInt, Int: i} }

// Float wraps a float
func Float(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// String wraps a string
func String(s string) Value { return Value{Kind: KindString, Text: s} }

// Interface returns the plain Go value (string, int64 or float64).
func (v Value) Interface() interface{} {
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	default:
		return v.Text
	}
}

// Equal reports whether both values have the same kind and content. NaN
// floats compare equal to each other.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindInt:
		return v.Int == o.Int
	case KindFloat:
		if math.IsNaN(v.Float) && math.IsNaN(o.Float) {
			return true
		}
		return v.Float == o.Float
	default:
		return v.Text == o.Text
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindRaw:
		return fmt.Sprintf("<raw %d bytes>", len(v.Text))
	default:
		return v.Text
	}
}
