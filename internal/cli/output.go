// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// ParaprobeManager - 原子探针分析任务管理工具

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"text/tabwriter"

	"github.com/ZSC714725/paraprobemanager/internal/result"
)

// Output formats
const (
	formatJSON = "json"
	formatText = "text"
)

func validFormat(format string) error {
	if format != formatJSON && format != formatText {
		return fmt.Errorf("unknown output format %q (must be json or text)", format)
	}
	return nil
}

// printResults writes the entries below prefix. JSON output is the flat
// path -> value object, text output one tab separated line per path in
// insertion order with raw logs abbreviated.
func printResults(w io.Writer, store *result.Store, prefix, format string) error {
	entries := store.Entries(prefix)
	if format == formatText {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\n", e.Path, e.Value)
		}
		return tw.Flush()
	}

	flat := make(map[string]interface{}, len(entries))
	for _, e := range entries {
		v := e.Value.Interface()
		if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			v = strconv.FormatFloat(f, 'g', -1, 64)
		}
		flat[e.Path] = v
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(flat)
}
